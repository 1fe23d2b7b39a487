package qbo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/qbportal/internal/credentials"
	_ "github.com/odyssey-erp/qbportal/testing"
)

type recordedCall struct {
	call    string
	outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) ObserveUpstreamCall(call, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{call: call, outcome: outcome})
}

var testCred = credentials.Credential{UserID: "u1", AccessToken: "access-1", RealmID: "9130", Connected: true}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	rec := &fakeRecorder{}
	return NewClient(Config{BaseURL: srv.URL, MinorVersion: 75, Timeout: time.Second, Metrics: rec}), rec
}

func TestCallSendsBearerAndMinorVersion(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/9130/reports/ProfitAndLoss", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "75", r.URL.Query().Get("minorversion"))
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("start_date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Header":{"ReportName":"ProfitAndLoss"}}`))
	})

	ctx := WithCallName(context.Background(), "pnl")
	body, err := client.Report(ctx, testCred, "ProfitAndLoss", url.Values{"start_date": {"2026-01-01"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Header":{"ReportName":"ProfitAndLoss"}}`, string(body))
	assert.Equal(t, []recordedCall{{call: "pnl", outcome: "ok"}}, rec.calls)
}

func TestCallNon2xxReturnsHTTPError(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Fault":{"Error":[{"Message":"Invalid query","Detail":"bad token near SELEC","code":"4000"}],"type":"ValidationFault"}}`))
	})

	_, err := client.Query(context.Background(), testCred, "SELEC * FROM Account")
	require.Error(t, err)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Contains(t, httpErr.Fault, "4000 Invalid query")
	assert.Contains(t, httpErr.Body, "ValidationFault")
	assert.Equal(t, "http_error", rec.calls[0].outcome)
	assert.Equal(t, "query", rec.calls[0].call)
}

func TestCallUnauthorizedOutcome(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Fault":{"Error":[{"Message":"AuthenticationFailed","code":"3200"}],"type":"AUTHENTICATION"}}`))
	})

	_, err := client.CompanyInfo(context.Background(), testCred)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.True(t, httpErr.Unauthorized())
	assert.Equal(t, "unauthorized", rec.calls[0].outcome)
}

func TestCallMalformedJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := client.CompanyInfo(context.Background(), testCred)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.True(t, httpErr.Malformed)
	assert.Equal(t, http.StatusOK, httpErr.Status)
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	rec := &fakeRecorder{}
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Metrics: rec})

	_, err := client.BankFeedAccounts(context.Background(), testCred)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "timeout", rec.calls[0].outcome)
}

func TestCallRequiresRealmAndToken(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Call(context.Background(), credentials.Credential{AccessToken: "x"}, http.MethodGet, "query", nil)
	require.Error(t, err)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://quickbooks.api.intuit.com", BaseURL("PRODUCTION"))
	assert.Equal(t, "https://sandbox-quickbooks.api.intuit.com", BaseURL("sandbox"))
	assert.Equal(t, "https://sandbox-quickbooks.api.intuit.com", BaseURL(""))
}
