package reports

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AgingSummary condenses receivable or payable aging into dashboard figures.
// Deposit figures are only populated for receivables.
type AgingSummary struct {
	UnpaidAmount       float64  `json:"unpaidAmount"`
	OverdueAmount      float64  `json:"overdueAmount"`
	NotDueYetAmount    float64  `json:"notDueYetAmount"`
	PaidAmount         float64  `json:"paidAmount"`
	DepositedAmount    *float64 `json:"depositedAmount,omitempty"`
	NotDepositedAmount *float64 `json:"notDepositedAmount,omitempty"`
}

// ReceivableInputs gathers everything the receivable status is derived from.
// Nil reports and slices mean the upstream call failed or was not made.
type ReceivableInputs struct {
	Aging         *Report
	AgingDetail   *Report
	OpenInvoices  []Invoice
	Payments      []Transaction
	SalesReceipts []Transaction
	Accounts      []LedgerAccount
	AsOf          time.Time
}

// PayableInputs gathers everything the payable status is derived from.
type PayableInputs struct {
	Aging        *Report
	AgingDetail  *Report
	BillPayments []Transaction
	Purchases    []Transaction
}

// ReceivableStatus classifies receivables. It reports false when no source for
// the unpaid balance was available.
func ReceivableStatus(in ReceivableInputs) (AgingSummary, bool) {
	unpaid, notDue, ok := agingSource(in.Aging, in.AgingDetail)
	if !ok && in.OpenInvoices != nil {
		unpaid, notDue = openInvoiceBalances(in.OpenInvoices, in.AsOf)
		ok = true
	}
	if !ok {
		return AgingSummary{}, false
	}

	undeposited := UndepositedAccountIDs(in.Accounts)
	deposited := decimal.Zero
	notDeposited := decimal.Zero
	for _, txns := range [][]Transaction{in.Payments, in.SalesReceipts} {
		for _, txn := range txns {
			amount := DecimalAmount(txn.TotalAmt)
			if txn.DepositToAccountRef == nil || txn.DepositToAccountRef.Value == "" {
				notDeposited = notDeposited.Add(amount)
				continue
			}
			if _, held := undeposited[txn.DepositToAccountRef.Value]; held {
				notDeposited = notDeposited.Add(amount)
				continue
			}
			deposited = deposited.Add(amount)
		}
	}

	summary := buildSummary(unpaid, notDue, deposited.Add(notDeposited))
	dep := deposited.InexactFloat64()
	notDep := notDeposited.InexactFloat64()
	summary.DepositedAmount = &dep
	summary.NotDepositedAmount = &notDep
	return summary, true
}

// PayableStatus classifies payables. It reports false when neither aging
// report was available.
func PayableStatus(in PayableInputs) (AgingSummary, bool) {
	unpaid, notDue, ok := agingSource(in.Aging, in.AgingDetail)
	if !ok {
		return AgingSummary{}, false
	}
	return buildSummary(unpaid, notDue, sumTransactions(in.BillPayments, in.Purchases)), true
}

func buildSummary(unpaid, notDue, paid decimal.Decimal) AgingSummary {
	return AgingSummary{
		UnpaidAmount:    unpaid.InexactFloat64(),
		NotDueYetAmount: notDue.InexactFloat64(),
		OverdueAmount:   unpaid.Sub(notDue).InexactFloat64(),
		PaidAmount:      paid.InexactFloat64(),
	}
}

func agingSource(summary, detail *Report) (unpaid, notDue decimal.Decimal, ok bool) {
	switch {
	case summary != nil:
		unpaid, notDue = AgingBalances(*summary)
		return unpaid, notDue, true
	case detail != nil:
		unpaid, notDue = AgingBalances(*detail)
		return unpaid, notDue, true
	}
	return decimal.Zero, decimal.Zero, false
}

// AgingBalances reads the unpaid total and the not-yet-due ("current") amount
// from an aging summary or aging detail report.
func AgingBalances(r Report) (unpaid, notDue decimal.Decimal) {
	totalIdx := TotalColumn(r.Columns)
	total := grandTotal(r.Rows)
	unpaid = decimal.NewFromFloat(total.Total(totalIdx))

	if idx := ResolveColumn(r.Columns, "current"); idx >= 0 {
		return unpaid, decimal.NewFromFloat(total.Value(idx))
	}
	// Detail reports bucket by section instead of by column.
	return unpaid, currentSection(r.Rows, totalIdx)
}

// grandTotal prefers a top-level row labelled exactly TOTAL, so detail
// reports do not stop at the first "Total for ..." bucket subtotal.
func grandTotal(rows []Row) TotalRow {
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row.Identifier() == totalIdentifier {
			return TotalRow{Cells: row.Cells, Found: true}
		}
		if len(row.Summary) > 0 && strings.EqualFold(strings.TrimSpace(row.Summary[0].Value), totalIdentifier) {
			return TotalRow{Cells: row.Summary, Found: true}
		}
	}
	return FindTotalRow(rows)
}

func currentSection(rows []Row, idx int) decimal.Decimal {
	if idx < 0 {
		return decimal.Zero
	}
	for _, row := range rows {
		if row.Kind != SectionRow || !strings.Contains(strings.ToLower(row.Label()), "current") {
			continue
		}
		if idx < len(row.Summary) {
			return DecimalAmount(row.Summary[idx])
		}
		sum := decimal.Zero
		for _, child := range row.Rows {
			if child.Kind == DataRow && idx < len(child.Cells) {
				sum = sum.Add(DecimalAmount(child.Cells[idx]))
			}
		}
		return sum
	}
	return decimal.Zero
}

func openInvoiceBalances(invoices []Invoice, asOf time.Time) (unpaid, notDue decimal.Decimal) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	today := asOf.Format(dateLayout)
	for _, inv := range invoices {
		balance := DecimalAmount(inv.Balance)
		unpaid = unpaid.Add(balance)
		due, err := time.Parse(dateLayout, inv.DueDate)
		if err != nil || due.Format(dateLayout) >= today {
			notDue = notDue.Add(balance)
		}
	}
	return unpaid, notDue
}

func sumTransactions(groups ...[]Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, txns := range groups {
		for _, txn := range txns {
			sum = sum.Add(DecimalAmount(txn.TotalAmt))
		}
	}
	return sum
}

const dateLayout = "2006-01-02"
