package reports

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is an upstream entity reference.
type Ref struct {
	Value ID     `json:"value"`
	Name  string `json:"name,omitempty"`
}

// LedgerAccount is an Account entity from the chart of accounts.
type LedgerAccount struct {
	ID             ID     `json:"Id"`
	Name           string `json:"Name"`
	AccountType    string `json:"AccountType"`
	AccountSubType string `json:"AccountSubType"`
	CurrentBalance Number `json:"CurrentBalance"`
	Active         *bool  `json:"Active,omitempty"`
}

// Transaction covers the money-movement entities summed for paid amounts
// (Payment, SalesReceipt, BillPayment, Purchase).
type Transaction struct {
	ID                  ID     `json:"Id"`
	TxnDate             string `json:"TxnDate"`
	TotalAmt            Number `json:"TotalAmt"`
	DepositToAccountRef *Ref   `json:"DepositToAccountRef,omitempty"`
}

// Invoice is the subset of an Invoice entity used for receivable fallbacks.
type Invoice struct {
	ID       ID     `json:"Id"`
	DueDate  string `json:"DueDate"`
	Balance  Number `json:"Balance"`
	TotalAmt Number `json:"TotalAmt"`
}

// FeedAccount is a live bank-feed account keyed by its ledger account id.
type FeedAccount struct {
	QBOAccountID   ID      `json:"qboAccountId"`
	BankBalance    *Number `json:"bankBalance"`
	UnmatchedCount *Number `json:"unmatchedCount"`
	FIName         string  `json:"fiName"`
	ConnectionType string  `json:"connectionType"`
}

// DecodeQuery extracts the entity list named entity from a query response.
// Elements that fail to decode are skipped; a missing entity list is empty.
func DecodeQuery[T any](data []byte, entity string) ([]T, error) {
	var envelope struct {
		QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("reports: decode query: %w", err)
	}
	return decodeList[T](envelope.QueryResponse[entity]), nil
}

// DecodeFeedAccounts accepts either a bare array or an object with an
// "accounts" array.
func DecodeFeedAccounts(data []byte) ([]FeedAccount, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '[' {
		return decodeList[FeedAccount](data), nil
	}
	var envelope struct {
		Accounts json.RawMessage `json:"accounts"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("reports: decode feed accounts: %w", err)
	}
	return decodeList[FeedAccount](envelope.Accounts), nil
}

func decodeList[T any](data json.RawMessage) []T {
	if len(data) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
