package reports

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// AccountTypeBank is the ledger type of bank accounts.
	AccountTypeBank = "Bank"
	// AccountTypeCreditCard is the ledger type of credit card accounts.
	AccountTypeCreditCard = "Credit Card"

	// ConnectionActive marks a feed whose bank balance can be trusted.
	ConnectionActive = "ACTIVE"
	// ConnectionDisconnected is reported when no feed entry exists.
	ConnectionDisconnected = "DISCONNECTED"
)

// MergedAccount is a ledger account enriched with its live bank feed.
type MergedAccount struct {
	ID             ID      `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Subtype        string  `json:"subtype"`
	CurrentBalance float64 `json:"currentBalance"`
	QBOAccountID   ID      `json:"qboAccountId,omitempty"`
	BankBalance    float64 `json:"bankBalance"`
	UnmatchedCount int     `json:"unmatchedCount"`
	FIName         string  `json:"fiName,omitempty"`
	ConnectionType string  `json:"connectionType"`
}

// DashboardAccounts keeps the bank and credit card accounts.
func DashboardAccounts(accounts []LedgerAccount) []LedgerAccount {
	out := make([]LedgerAccount, 0, len(accounts))
	for _, acc := range accounts {
		if acc.AccountType == AccountTypeBank || acc.AccountType == AccountTypeCreditCard {
			out = append(out, acc)
		}
	}
	return out
}

// MergeAccounts produces one MergedAccount per ledger account. An ACTIVE feed
// with a bank balance wins over the ledger balance, and credit card balances
// are negated so they reduce net cash. reviewCounts (by account name) are
// only consulted when feed is empty.
func MergeAccounts(ledger []LedgerAccount, feed []FeedAccount, reviewCounts map[string]int) []MergedAccount {
	byID := make(map[ID]FeedAccount, len(feed))
	for _, f := range feed {
		if f.QBOAccountID == "" {
			continue
		}
		byID[f.QBOAccountID] = f
	}

	merged := make([]MergedAccount, 0, len(ledger))
	for _, acc := range ledger {
		out := MergedAccount{
			ID:             acc.ID,
			Name:           acc.Name,
			Type:           acc.AccountType,
			Subtype:        acc.AccountSubType,
			CurrentBalance: float64(acc.CurrentBalance),
			ConnectionType: ConnectionDisconnected,
		}
		balance := DecimalAmount(acc.CurrentBalance)

		f, ok := byID[acc.ID]
		if ok {
			out.QBOAccountID = f.QBOAccountID
			out.FIName = f.FIName
			if f.ConnectionType != "" {
				out.ConnectionType = f.ConnectionType
			}
			if f.ConnectionType == ConnectionActive && f.BankBalance != nil {
				balance = DecimalAmount(f.BankBalance)
			}
			if f.UnmatchedCount != nil {
				out.UnmatchedCount = int(*f.UnmatchedCount)
			}
		} else if len(feed) == 0 {
			out.UnmatchedCount = reviewCounts[acc.Name]
		}

		if acc.AccountType == AccountTypeCreditCard {
			balance = balance.Neg()
		}
		out.BankBalance = balance.InexactFloat64()
		merged = append(merged, out)
	}
	return merged
}

// NetBankBalance adds up the merged (sign-adjusted) balances.
func NetBankBalance(accounts []MergedAccount) float64 {
	sum := decimal.Zero
	for _, acc := range accounts {
		sum = sum.Add(decimal.NewFromFloat(acc.BankBalance))
	}
	return sum.InexactFloat64()
}

// UndepositedAccountIDs returns the ids of accounts that hold received but not
// yet deposited funds.
func UndepositedAccountIDs(accounts []LedgerAccount) map[ID]struct{} {
	ids := make(map[ID]struct{})
	for _, acc := range accounts {
		name := strings.ToLower(acc.Name)
		if acc.AccountSubType == "UndepositedFunds" ||
			strings.Contains(name, "undeposited") ||
			strings.Contains(name, "payments to deposit") {
			ids[acc.ID] = struct{}{}
		}
	}
	return ids
}
