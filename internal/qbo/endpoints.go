package qbo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/odyssey-erp/qbportal/internal/credentials"
)

// Report fetches reports/{name}.
func (c *Client) Report(ctx context.Context, cred credentials.Credential, name string, params url.Values) (json.RawMessage, error) {
	return c.Call(ctx, cred, http.MethodGet, "reports/"+name, params)
}

// Query runs a query-language statement against the query endpoint.
func (c *Client) Query(ctx context.Context, cred credentials.Credential, statement string) (json.RawMessage, error) {
	return c.Call(ctx, cred, http.MethodGet, "query", url.Values{"query": {statement}})
}

// CompanyInfo fetches the connected company's profile.
func (c *Client) CompanyInfo(ctx context.Context, cred credentials.Credential) (json.RawMessage, error) {
	return c.Call(ctx, cred, http.MethodGet, "companyinfo/"+url.PathEscape(cred.RealmID), nil)
}

// BankFeedAccounts fetches the live banking feed account list.
func (c *Client) BankFeedAccounts(ctx context.Context, cred credentials.Credential) (json.RawMessage, error) {
	return c.Call(ctx, cred, http.MethodGet, "banking/accounts", nil)
}
