package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one invoice summary inside a prima nota file.
type LedgerEntry struct {
	ID                string          `json:"id"`
	InvoiceNumber     string          `json:"invoice_number"`
	InvoiceDate       string          `json:"invoice_date"`
	PartnerName       string          `json:"partner_name"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	HasWithholding    bool            `json:"has_ritenuta"`
	WithholdingAmount decimal.Decimal `json:"importo_ritenuta"`
	AddedAt           time.Time       `json:"added_at"`
}

// LedgerSummary holds aggregate totals for a ledger. Totals are always
// recomputed from the full entry list, never accumulated incrementally.
type LedgerSummary struct {
	TotalInvoices        int             `json:"total_invoices"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	TotalWithholding     decimal.Decimal `json:"total_withholding"`
	CountWithWithholding int             `json:"count_with_withholding"`
	LastUpdated          time.Time       `json:"last_updated"`
}

// Ledger is the running record of invoices for one
// {client, direction, year} key.
type Ledger struct {
	Company   string        `json:"company"`
	Year      int           `json:"year"`
	Direction Direction     `json:"direction"`
	Invoices  []LedgerEntry `json:"invoices"`
	Summary   LedgerSummary `json:"summary"`
}

// NewLedger returns an empty ledger for the given key.
func NewLedger(company string, year int, direction Direction) *Ledger {
	return &Ledger{
		Company:   company,
		Year:      year,
		Direction: direction,
		Invoices:  []LedgerEntry{},
	}
}

// ComputeSummary derives aggregate totals from an entry list.
func ComputeSummary(entries []LedgerEntry) LedgerSummary {
	summary := LedgerSummary{TotalInvoices: len(entries)}
	total := decimal.Zero
	withholding := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.TotalAmount)
		if e.HasWithholding {
			withholding = withholding.Add(e.WithholdingAmount)
			summary.CountWithWithholding++
		}
	}
	summary.TotalAmount = total
	summary.TotalWithholding = withholding
	return summary
}

// Recompute refreshes the summary from the current entry list.
func (l *Ledger) Recompute(now time.Time) {
	l.Summary = ComputeSummary(l.Invoices)
	l.Summary.LastUpdated = now.UTC()
}
