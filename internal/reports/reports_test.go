package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/qbportal/testing"
)

const agingSummaryJSON = `{
  "Header": {"ReportName": "AgedReceivables", "Currency": "USD"},
  "Columns": {"Column": [
    {"ColTitle": "", "ColType": "Customer"},
    {"ColTitle": "Current", "ColType": "Money"},
    {"ColTitle": "1 - 30", "ColType": "Money"},
    {"ColTitle": "31 - 60", "ColType": "Money"},
    {"ColTitle": "Total", "ColType": "Money"}
  ]},
  "Rows": {"Row": [
    {"ColData": [{"value": "Acme", "id": 58}, {"value": "500.00"}, {"value": "200.00"}, {"value": ""}, {"value": "700.00"}]},
    {"ColData": [{"value": "Globex", "id": "61"}, {"value": "200.00"}, {"value": ""}, {"value": "100.00"}, {"value": "300.00"}]},
    {"Summary": {"ColData": [{"value": "TOTAL"}, {"value": "700.00"}, {"value": "200.00"}, {"value": "100.00"}, {"value": "1,000.00"}]}, "type": "Section", "group": "GrandTotal"}
  ]}
}`

const agingDetailJSON = `{
  "Header": {"ReportName": "AgedReceivableDetail"},
  "Columns": {"Column": [
    {"ColTitle": "Date", "ColType": "tx_date"},
    {"ColTitle": "Transaction Type", "ColType": "txn_type"},
    {"ColTitle": "Customer", "ColType": "cust_name"},
    {"ColTitle": "Open Balance", "ColType": "subt_neg_open_bal"}
  ]},
  "Rows": {"Row": [
    {"Header": {"ColData": [{"value": "Current"}]},
     "Rows": {"Row": [
       {"ColData": [{"value": "2026-10-01"}, {"value": "Invoice"}, {"value": "Acme"}, {"value": "400.00"}], "type": "Data"}
     ]},
     "Summary": {"ColData": [{"value": "Total for Current"}, {"value": ""}, {"value": ""}, {"value": "400.00"}]},
     "type": "Section"},
    {"Header": {"ColData": [{"value": "1 - 30 days past due"}]},
     "Rows": {"Row": {"ColData": [{"value": "2026-09-01"}, {"value": "Invoice"}, {"value": "Globex"}, {"value": "250.00"}], "type": "Data"}},
     "Summary": {"ColData": [{"value": "Total for 1 - 30 days past due"}, {"value": ""}, {"value": ""}, {"value": "250.00"}]},
     "type": "Section"},
    {"Summary": {"ColData": [{"value": "TOTAL"}, {"value": ""}, {"value": ""}, {"value": "650.00"}]}, "type": "Section", "group": "GrandTotal"}
  ]}
}`

func mustDecode(t *testing.T, body string) Report {
	t.Helper()
	r, err := DecodeReport([]byte(body))
	require.NoError(t, err)
	return r
}

func TestDecimalAmountFormats(t *testing.T) {
	cases := map[string]float64{
		"1,234.56":   1234.56,
		"$1,000.00":  1000,
		"(250.00)":   -250,
		"$(75.10)":   -75.1,
		"-42":        -42,
		"":           0,
		"n/a":        0,
		"1 - 30":     0,
		"\u00a012":  12,
	}
	for in, want := range cases {
		assert.InDelta(t, want, ParseAmount(in), 0.0001, "input %q", in)
	}
	assert.Equal(t, 0.0, ParseAmount(nil))
	assert.Equal(t, 3.5, ParseAmount(Number(3.5)))
	assert.Equal(t, 9.0, ParseAmount(Cell{Value: "9"}))
}

func TestDecodeReportKindsAndSingleRowObject(t *testing.T) {
	r := mustDecode(t, agingDetailJSON)
	require.Len(t, r.Rows, 3)
	assert.Equal(t, SectionRow, r.Rows[0].Kind)
	assert.Equal(t, "Current", r.Rows[0].Label())
	require.Len(t, r.Rows[1].Rows, 1, "a single Row object decodes as one row")
	assert.Equal(t, DataRow, r.Rows[1].Rows[0].Kind)
	assert.Equal(t, SummaryRow, r.Rows[2].Kind)
	assert.Equal(t, "GrandTotal", r.Rows[2].Group)

	summary := mustDecode(t, agingSummaryJSON)
	assert.Equal(t, ID("58"), summary.Rows[0].Cells[0].ID)
	assert.Equal(t, ID("61"), summary.Rows[1].Cells[0].ID)
}

func TestDecodeReportRejectsNonObject(t *testing.T) {
	_, err := DecodeReport([]byte(`not json`))
	require.Error(t, err)

	r, err := DecodeReport([]byte(`{"Rows": {"Row": [42, {"ColData": [{"value": "x"}]}]}}`))
	require.NoError(t, err)
	assert.Len(t, r.Rows, 1, "undecodable rows are skipped")
}

func TestFindTotalRowMatchesSummary(t *testing.T) {
	r := mustDecode(t, agingSummaryJSON)
	total := FindTotalRow(r.Rows)
	require.True(t, total.Found)
	assert.Equal(t, 1000.0, total.Total(4))
	assert.Equal(t, 700.0, total.Value(1))
}

func TestFindTotalRowFallbackSumsLastNumericCell(t *testing.T) {
	rows := []Row{
		{Kind: DataRow, Cells: []Cell{{Value: "A"}, {Value: "10"}, {Value: "40.5"}}},
		{Kind: DataRow, Cells: []Cell{{Value: "B"}, {Value: "5"}, {Value: ""}}},
		{Kind: SectionRow, Header: []Cell{{Value: "ignored"}}, Rows: []Row{
			{Kind: DataRow, Cells: []Cell{{Value: "C"}, {Value: "999"}}},
		}},
	}
	total := FindTotalRow(rows)
	assert.False(t, total.Found)
	assert.InDelta(t, 45.5, total.Total(2), 0.0001)
	assert.InDelta(t, 15.0, total.Value(1), 0.0001)
}

func TestFindTotalRowFlatTotalIdentifier(t *testing.T) {
	rows := []Row{
		{Kind: DataRow, Cells: []Cell{{Value: "A"}, {Value: "1"}}},
		{Kind: DataRow, Cells: []Cell{{Value: " TOTAL "}, {Value: "12"}}},
	}
	total := FindTotalRow(rows)
	require.True(t, total.Found)
	assert.Equal(t, 12.0, total.Total(1))
}

func TestResolveColumn(t *testing.T) {
	cols := []Column{
		{Title: "", Type: "Customer"},
		{Title: "Current"},
		{Title: "1 - 30"},
		{Title: "TOTAL"},
	}
	assert.Equal(t, 0, ResolveColumn(cols, "customer"))
	assert.Equal(t, 1, ResolveColumn(cols, "CURRENT"))
	assert.Equal(t, 2, ResolveColumn(cols, "1-30"))
	assert.Equal(t, 3, TotalColumn(cols))
	assert.Equal(t, -1, ResolveColumn(cols, "91"))
	assert.Equal(t, 1, TotalColumn(cols[:2]), "defaults to the last column")
}

func TestAgingBalancesSummary(t *testing.T) {
	unpaid, notDue := AgingBalances(mustDecode(t, agingSummaryJSON))
	assert.Equal(t, "1000", unpaid.String())
	assert.Equal(t, "700", notDue.String())
}

func TestAgingBalancesDetailUsesGrandTotalAndCurrentSection(t *testing.T) {
	unpaid, notDue := AgingBalances(mustDecode(t, agingDetailJSON))
	assert.Equal(t, "650", unpaid.String())
	assert.Equal(t, "400", notDue.String())
}

func TestReceivableStatusDepositSplit(t *testing.T) {
	aging := Report{
		Columns: []Column{{Title: ""}, {Title: "Current"}, {Title: "Total"}},
		Rows: []Row{
			{Kind: SummaryRow, Summary: []Cell{{Value: "TOTAL"}, {Value: "700.00"}, {Value: "1000.00"}}},
		},
	}
	accounts := []LedgerAccount{
		{ID: "4", Name: "Undeposited Funds", AccountType: "Other Current Asset", AccountSubType: "UndepositedFunds"},
		{ID: "35", Name: "Checking", AccountType: AccountTypeBank},
	}
	payments := []Transaction{
		{ID: "1", TotalAmt: 200, DepositToAccountRef: &Ref{Value: "35"}},
		{ID: "2", TotalAmt: 100, DepositToAccountRef: &Ref{Value: "4"}},
	}

	got, ok := ReceivableStatus(ReceivableInputs{Aging: &aging, Payments: payments, Accounts: accounts})
	require.True(t, ok)
	assert.Equal(t, 1000.0, got.UnpaidAmount)
	assert.Equal(t, 700.0, got.NotDueYetAmount)
	assert.Equal(t, 300.0, got.OverdueAmount)
	assert.Equal(t, 300.0, got.PaidAmount)
	require.NotNil(t, got.DepositedAmount)
	require.NotNil(t, got.NotDepositedAmount)
	assert.Equal(t, 200.0, *got.DepositedAmount)
	assert.Equal(t, 100.0, *got.NotDepositedAmount)
}

func TestReceivableStatusDepositedPayment(t *testing.T) {
	aging := Report{
		Columns: []Column{{Title: ""}, {Title: "Current"}, {Title: "Total"}},
		Rows:    []Row{{Kind: SummaryRow, Summary: []Cell{{Value: "TOTAL"}, {Value: "700"}, {Value: "1000"}}}},
	}
	accounts := []LedgerAccount{
		{ID: "4", Name: "Payments to deposit"},
		{ID: "35", Name: "Checking", AccountType: AccountTypeBank},
	}
	payments := []Transaction{{TotalAmt: 300, DepositToAccountRef: &Ref{Value: "35"}}}

	got, ok := ReceivableStatus(ReceivableInputs{Aging: &aging, Payments: payments, Accounts: accounts})
	require.True(t, ok)
	deposited, notDeposited := 300.0, 0.0
	assert.Equal(t, AgingSummary{
		UnpaidAmount:       1000,
		OverdueAmount:      300,
		NotDueYetAmount:    700,
		PaidAmount:         300,
		DepositedAmount:    &deposited,
		NotDepositedAmount: &notDeposited,
	}, got)
}

func TestReceivableStatusFallsBackToOpenInvoices(t *testing.T) {
	asOf := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	invoices := []Invoice{
		{ID: "1", DueDate: "2026-11-01", Balance: 120},
		{ID: "2", DueDate: "2026-10-16", Balance: 30},
		{ID: "3", DueDate: "2026-09-01", Balance: 50},
	}
	got, ok := ReceivableStatus(ReceivableInputs{OpenInvoices: invoices, AsOf: asOf})
	require.True(t, ok)
	assert.Equal(t, 200.0, got.UnpaidAmount)
	assert.Equal(t, 150.0, got.NotDueYetAmount)
	assert.Equal(t, 50.0, got.OverdueAmount)

	_, ok = ReceivableStatus(ReceivableInputs{AsOf: asOf})
	assert.False(t, ok)
}

func TestPayableStatus(t *testing.T) {
	aging := mustDecode(t, agingSummaryJSON)
	got, ok := PayableStatus(PayableInputs{
		Aging:        &aging,
		BillPayments: []Transaction{{TotalAmt: 80}},
		Purchases:    []Transaction{{TotalAmt: 20.5}},
	})
	require.True(t, ok)
	assert.Equal(t, 100.5, got.PaidAmount)
	assert.Equal(t, 300.0, got.OverdueAmount)
	assert.Nil(t, got.DepositedAmount)

	_, ok = PayableStatus(PayableInputs{})
	assert.False(t, ok)
}

func TestMergeAccountsPrefersActiveFeed(t *testing.T) {
	bank := Number(950)
	stale := Number(1)
	unmatched := Number(3)
	ledger := []LedgerAccount{
		{ID: "35", Name: "Checking", AccountType: AccountTypeBank, CurrentBalance: 900},
		{ID: "41", Name: "Visa", AccountType: AccountTypeCreditCard, CurrentBalance: 500},
		{ID: "50", Name: "Savings", AccountType: AccountTypeBank, CurrentBalance: 75},
	}
	feed := []FeedAccount{
		{QBOAccountID: "35", BankBalance: &bank, UnmatchedCount: &unmatched, ConnectionType: ConnectionActive, FIName: "First Bank"},
		{QBOAccountID: "50", BankBalance: &stale, ConnectionType: "PAUSED"},
	}

	merged := MergeAccounts(ledger, feed, map[string]int{"Visa": 9})
	require.Len(t, merged, 3)
	assert.Equal(t, 950.0, merged[0].BankBalance)
	assert.Equal(t, 3, merged[0].UnmatchedCount)
	assert.Equal(t, "First Bank", merged[0].FIName)
	assert.Equal(t, -500.0, merged[1].BankBalance)
	assert.Equal(t, ConnectionDisconnected, merged[1].ConnectionType)
	assert.Equal(t, 0, merged[1].UnmatchedCount, "review counts only apply without any feed")
	assert.Equal(t, 75.0, merged[2].BankBalance, "inactive feed keeps the ledger balance")
	assert.Equal(t, "PAUSED", merged[2].ConnectionType)

	assert.Equal(t, 525.0, NetBankBalance(merged))
}

func TestMergeAccountsNetBalance(t *testing.T) {
	bank := Number(950)
	ledger := []LedgerAccount{
		{ID: "1", AccountType: AccountTypeBank, CurrentBalance: 1000},
		{ID: "2", AccountType: AccountTypeCreditCard, CurrentBalance: 500},
	}
	feed := []FeedAccount{{QBOAccountID: "1", BankBalance: &bank, ConnectionType: ConnectionActive}}
	merged := MergeAccounts(ledger, feed, nil)
	assert.Equal(t, 450.0, merged[0].BankBalance+merged[1].BankBalance)
}

func TestMergeAccountsWithoutFeedUsesReviewCounts(t *testing.T) {
	ledger := []LedgerAccount{
		{ID: "35", Name: "Checking", AccountType: AccountTypeBank, CurrentBalance: 950},
		{ID: "41", Name: "Visa", AccountType: AccountTypeCreditCard, CurrentBalance: 500},
	}
	merged := MergeAccounts(ledger, nil, map[string]int{"Checking": 2})
	assert.Equal(t, 2, merged[0].UnmatchedCount)
	assert.Equal(t, 450.0, NetBankBalance(merged))
}

func TestDashboardAccounts(t *testing.T) {
	got := DashboardAccounts([]LedgerAccount{
		{Name: "Checking", AccountType: AccountTypeBank},
		{Name: "Sales", AccountType: "Income"},
		{Name: "Visa", AccountType: AccountTypeCreditCard},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Visa", got[1].Name)
}

func TestCountReviewRows(t *testing.T) {
	withColumn := Report{
		Columns: []Column{{Title: "Date"}, {Title: "Account"}, {Title: "Amount"}},
		Rows: []Row{
			{Kind: DataRow, Cells: []Cell{{Value: "2026-10-01"}, {Value: "Checking"}, {Value: "10"}}},
			{Kind: DataRow, Cells: []Cell{{Value: "2026-10-02"}, {Value: "Checking"}, {Value: "12"}}},
			{Kind: DataRow, Cells: []Cell{{Value: "2026-10-03"}, {Value: "Visa"}, {Value: "5"}}},
		},
	}
	assert.Equal(t, map[string]int{"Checking": 2, "Visa": 1}, CountReviewRows(withColumn))

	bySection := Report{
		Columns: []Column{{Title: "Date"}, {Title: "Amount"}},
		Rows: []Row{
			{Kind: SectionRow, Header: []Cell{{Value: "Savings"}}, Rows: []Row{
				{Kind: DataRow, Cells: []Cell{{Value: "2026-10-01"}, {Value: "1"}}},
			}, Summary: []Cell{{Value: "Total for Savings"}, {Value: "1"}}},
		},
	}
	assert.Equal(t, map[string]int{"Savings": 1}, CountReviewRows(bySection))
}

func TestDecodeQueryAndFeed(t *testing.T) {
	body := []byte(`{"QueryResponse": {"Account": [
		{"Id": "35", "Name": "Checking", "AccountType": "Bank", "CurrentBalance": 950.25},
		"bogus",
		{"Id": 41, "Name": "Visa", "AccountType": "Credit Card", "CurrentBalance": "500"}
	]}}`)
	accounts, err := DecodeQuery[LedgerAccount](body, "Account")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, ID("41"), accounts[1].ID)
	assert.Equal(t, Number(500), accounts[1].CurrentBalance)

	empty, err := DecodeQuery[Invoice]([]byte(`{"QueryResponse": {}}`), "Invoice")
	require.NoError(t, err)
	assert.Empty(t, empty)

	feed, err := DecodeFeedAccounts([]byte(`{"accounts": [{"qboAccountId": "35", "bankBalance": "1,200.00", "connectionType": "ACTIVE"}]}`))
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.NotNil(t, feed[0].BankBalance)
	assert.Equal(t, Number(1200), *feed[0].BankBalance)

	bare, err := DecodeFeedAccounts([]byte(`[{"qboAccountId": 50}]`))
	require.NoError(t, err)
	assert.Equal(t, ID("50"), bare[0].QBOAccountID)
}
