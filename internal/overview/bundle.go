package overview

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/odyssey-erp/qbportal/internal/reports"
)

// Bundle is the business overview served to the dashboard. Fields whose
// upstream call failed encode as null.
type Bundle struct {
	ProfitAndLoss      json.RawMessage         `json:"profitAndLoss"`
	SalesReport        json.RawMessage         `json:"salesReport"`
	CashFlow           json.RawMessage         `json:"cashFlow"`
	Accounts           []reports.MergedAccount `json:"accounts"`
	BalanceSheet       json.RawMessage         `json:"balanceSheet"`
	ReviewTransactions json.RawMessage         `json:"reviewTransactions"`
	InvoiceStatus      *reports.AgingSummary   `json:"invoiceStatus"`
	CustomerStatus     *reports.AgingSummary   `json:"customerStatus"`
	VendorStatus       *reports.AgingSummary   `json:"vendorStatus"`
	ARAging            json.RawMessage         `json:"arAging"`
	APAging            json.RawMessage         `json:"apAging"`
	ARAgingDetail      json.RawMessage         `json:"arAgingDetail"`
	APAgingDetail      json.RawMessage         `json:"apAgingDetail"`
	CompanyInfo        json.RawMessage         `json:"companyInfo"`
	AllAccounts        json.RawMessage         `json:"allAccounts"`
	LastUpdated        time.Time               `json:"lastUpdated"`
}

// assembler turns raw Results into reconciled values. Shape problems are
// logged and resolve to empty values.
type assembler struct {
	res    Results
	logger *slog.Logger
	now    time.Time
}

func (a assembler) raw(key string) json.RawMessage {
	body, ok := a.res.Body(key)
	if !ok {
		return nil
	}
	return body
}

func (a assembler) report(key string) *reports.Report {
	body, ok := a.res.Body(key)
	if !ok {
		return nil
	}
	r, err := reports.DecodeReport(body)
	if err != nil {
		a.logger.Warn("malformed report", slog.String("report", key), slog.Any("error", err))
		return nil
	}
	return &r
}

func decodeQuery[T any](a assembler, key, entity string) []T {
	body, ok := a.res.Body(key)
	if !ok {
		return nil
	}
	items, err := reports.DecodeQuery[T](body, entity)
	if err != nil {
		a.logger.Warn("malformed query response", slog.String("report", key), slog.Any("error", err))
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// feed returns the bank feed accounts; a failed or malformed feed is empty.
func (a assembler) feed() []reports.FeedAccount {
	body, ok := a.res.Body(KeyBankFeed)
	if !ok {
		return nil
	}
	feed, err := reports.DecodeFeedAccounts(body)
	if err != nil {
		a.logger.Warn("malformed bank feed", slog.Any("error", err))
		return nil
	}
	return feed
}

// accounts merges the dashboard ledger accounts with the bank feed. It
// returns nil when the ledger query failed.
func (a assembler) accounts() []reports.MergedAccount {
	ledger := decodeQuery[reports.LedgerAccount](a, KeyAccounts, "Account")
	if ledger == nil {
		return nil
	}
	var counts map[string]int
	if review := a.report(KeyReviewTransactions); review != nil {
		counts = reports.CountReviewRows(*review)
	}
	return reports.MergeAccounts(reports.DashboardAccounts(ledger), a.feed(), counts)
}

func (a assembler) receivables() *reports.AgingSummary {
	summary, ok := reports.ReceivableStatus(reports.ReceivableInputs{
		Aging:         a.report(KeyARAging),
		AgingDetail:   a.report(KeyARAgingDetail),
		OpenInvoices:  decodeQuery[reports.Invoice](a, KeyUnpaidInvoices, "Invoice"),
		Payments:      decodeQuery[reports.Transaction](a, KeyRecentPayments, "Payment"),
		SalesReceipts: decodeQuery[reports.Transaction](a, KeyRecentSalesReceipts, "SalesReceipt"),
		Accounts:      decodeQuery[reports.LedgerAccount](a, KeyAllAccounts, "Account"),
		AsOf:          a.now,
	})
	if !ok {
		return nil
	}
	return &summary
}

func (a assembler) payables() *reports.AgingSummary {
	summary, ok := reports.PayableStatus(reports.PayableInputs{
		Aging:        a.report(KeyAPAging),
		AgingDetail:  a.report(KeyAPAgingDetail),
		BillPayments: decodeQuery[reports.Transaction](a, KeyRecentBillPayments, "BillPayment"),
		Purchases:    decodeQuery[reports.Transaction](a, KeyRecentPurchases, "Purchase"),
	})
	if !ok {
		return nil
	}
	return &summary
}

func (a assembler) bundle() Bundle {
	receivables := a.receivables()
	return Bundle{
		ProfitAndLoss:      a.raw(KeyProfitAndLoss),
		SalesReport:        a.raw(KeySalesReport),
		CashFlow:           a.raw(KeyCashFlow),
		Accounts:           a.accounts(),
		BalanceSheet:       a.raw(KeyBalanceSheet),
		ReviewTransactions: a.raw(KeyReviewTransactions),
		InvoiceStatus:      receivables,
		CustomerStatus:     receivables,
		VendorStatus:       a.payables(),
		ARAging:            a.raw(KeyARAging),
		APAging:            a.raw(KeyAPAging),
		ARAgingDetail:      a.raw(KeyARAgingDetail),
		APAgingDetail:      a.raw(KeyAPAgingDetail),
		CompanyInfo:        a.raw(KeyCompanyInfo),
		AllAccounts:        a.raw(KeyAllAccounts),
		LastUpdated:        a.now,
	}
}
