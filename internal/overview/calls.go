package overview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/odyssey-erp/qbportal/internal/credentials"
)

// Logical report keys. They double as the metric label of each upstream call
// and as the names accepted by FetchReport.
const (
	KeyProfitAndLoss       = "pnl"
	KeySalesReport         = "salesReport"
	KeyCashFlow            = "cashFlow"
	KeyAccounts            = "accounts"
	KeyBankFeed            = "bankFeed"
	KeyReviewTransactions  = "reviewTransactions"
	KeyBalanceSheet        = "balanceSheet"
	KeyARAging             = "arAging"
	KeyAPAging             = "apAging"
	KeyARAgingDetail       = "arAgingDetail"
	KeyAPAgingDetail       = "apAgingDetail"
	KeyUnpaidInvoices      = "unpaidInvoices"
	KeyRecentPayments      = "recentPayments"
	KeyRecentSalesReceipts = "recentSalesReceipts"
	KeyRecentBillPayments  = "recentBillPayments"
	KeyRecentPurchases     = "recentPurchases"
	KeyAllAccounts         = "allAccounts"
	KeyCompanyInfo         = "companyInfo"
)

// API is the upstream surface the aggregator calls. *qbo.Client satisfies it.
type API interface {
	Report(ctx context.Context, cred credentials.Credential, name string, params url.Values) (json.RawMessage, error)
	Query(ctx context.Context, cred credentials.Credential, statement string) (json.RawMessage, error)
	CompanyInfo(ctx context.Context, cred credentials.Credential) (json.RawMessage, error)
	BankFeedAccounts(ctx context.Context, cred credentials.Credential) (json.RawMessage, error)
}

// Ranges are the reporting windows of one aggregation.
type Ranges struct {
	Today        time.Time
	Last30Start  time.Time
	YearStart    time.Time
	TrailingYear time.Time
}

// RangesAt computes the windows ending on now's calendar day (UTC).
func RangesAt(now time.Time) Ranges {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Ranges{
		Today:        today,
		Last30Start:  today.AddDate(0, 0, -30),
		YearStart:    time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		TrailingYear: today.AddDate(-1, 0, 0),
	}
}

func (r Ranges) window(start time.Time) url.Values {
	return url.Values{
		"start_date": {start.Format(dateLayout)},
		"end_date":   {r.Today.Format(dateLayout)},
	}
}

func (r Ranges) asOf() url.Values {
	return url.Values{"report_date": {r.Today.Format(dateLayout)}}
}

const (
	dateLayout = "2006-01-02"
	maxResults = 1000
)

type fetchFunc func(ctx context.Context, api API, cred credentials.Credential, r Ranges) (json.RawMessage, error)

func report(name string, params func(Ranges) url.Values) fetchFunc {
	return func(ctx context.Context, api API, cred credentials.Credential, r Ranges) (json.RawMessage, error) {
		return api.Report(ctx, cred, name, params(r))
	}
}

func query(statement func(Ranges) string) fetchFunc {
	return func(ctx context.Context, api API, cred credentials.Credential, r Ranges) (json.RawMessage, error) {
		return api.Query(ctx, cred, statement(r))
	}
}

func recent(entity string) fetchFunc {
	return query(func(r Ranges) string {
		return fmt.Sprintf("SELECT * FROM %s WHERE TxnDate >= '%s' ORDERBY TxnDate DESC MAXRESULTS %d",
			entity, r.Last30Start.Format(dateLayout), maxResults)
	})
}

var catalog = map[string]fetchFunc{
	KeyProfitAndLoss: report("ProfitAndLoss", func(r Ranges) url.Values { return r.window(r.Last30Start) }),
	KeySalesReport:   report("ProfitAndLoss", func(r Ranges) url.Values { return r.window(r.YearStart) }),
	KeyCashFlow:      report("CashFlow", func(r Ranges) url.Values { return r.window(r.TrailingYear) }),
	KeyAccounts: query(func(Ranges) string {
		return "SELECT * FROM Account WHERE AccountType IN ('Bank', 'Credit Card') MAXRESULTS 1000"
	}),
	KeyBankFeed: func(ctx context.Context, api API, cred credentials.Credential, _ Ranges) (json.RawMessage, error) {
		return api.BankFeedAccounts(ctx, cred)
	},
	KeyReviewTransactions: report("TransactionList", func(r Ranges) url.Values {
		params := r.window(r.TrailingYear)
		params.Set("cleared", "Uncleared")
		params.Set("columns", "tx_date,txn_type,doc_num,name,account_name,memo,subt_nat_amount")
		return params
	}),
	KeyBalanceSheet:  report("BalanceSheet", func(r Ranges) url.Values { return r.window(r.YearStart) }),
	KeyARAging:       report("AgedReceivables", Ranges.asOf),
	KeyAPAging:       report("AgedPayables", Ranges.asOf),
	KeyARAgingDetail: report("AgedReceivableDetail", Ranges.asOf),
	KeyAPAgingDetail: report("AgedPayableDetail", Ranges.asOf),
	KeyUnpaidInvoices: query(func(Ranges) string {
		return "SELECT * FROM Invoice WHERE Balance > '0' MAXRESULTS 1000"
	}),
	KeyRecentPayments:      recent("Payment"),
	KeyRecentSalesReceipts: recent("SalesReceipt"),
	KeyRecentBillPayments:  recent("BillPayment"),
	KeyRecentPurchases:     recent("Purchase"),
	KeyAllAccounts: query(func(Ranges) string {
		return "SELECT * FROM Account MAXRESULTS 1000"
	}),
	KeyCompanyInfo: func(ctx context.Context, api API, cred credentials.Credential, _ Ranges) (json.RawMessage, error) {
		return api.CompanyInfo(ctx, cred)
	},
}

// overviewKeys is every call of a full business overview.
var overviewKeys = []string{
	KeyProfitAndLoss, KeySalesReport, KeyCashFlow, KeyAccounts, KeyBankFeed,
	KeyReviewTransactions, KeyBalanceSheet, KeyARAging, KeyAPAging,
	KeyARAgingDetail, KeyAPAgingDetail, KeyUnpaidInvoices, KeyRecentPayments,
	KeyRecentSalesReceipts, KeyRecentBillPayments, KeyRecentPurchases,
	KeyAllAccounts, KeyCompanyInfo,
}

var (
	customerKeys = []string{KeyARAging, KeyARAgingDetail, KeyUnpaidInvoices, KeyRecentPayments, KeyRecentSalesReceipts, KeyAllAccounts}
	vendorKeys   = []string{KeyAPAging, KeyAPAgingDetail, KeyRecentBillPayments, KeyRecentPurchases}
	accountKeys  = []string{KeyAccounts, KeyBankFeed, KeyReviewTransactions}
)

// ReportNames lists the keys FetchReport accepts.
func ReportNames() []string {
	return append([]string(nil), overviewKeys...)
}
