package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fatturex/pkg/models"
)

func testLedger() *models.Ledger {
	ledger := models.NewLedger("STUDIO_ROSSI", 2025, models.DirectionIssued)
	ledger.Invoices = []models.LedgerEntry{
		{InvoiceNumber: "1", TotalAmount: decimal.RequireFromString("100.00")},
		{InvoiceNumber: "2", TotalAmount: decimal.RequireFromString("250.50"),
			HasWithholding: true, WithholdingAmount: decimal.RequireFromString("50.10")},
	}
	ledger.Recompute(time.Now())
	return ledger
}

func TestSummaryDriftClean(t *testing.T) {
	assert.Empty(t, summaryDrift(testLedger()))
}

func TestSummaryDriftDetectsTampering(t *testing.T) {
	tampered := testLedger()
	tampered.Summary.TotalAmount = decimal.RequireFromString("999.99")
	assert.Contains(t, summaryDrift(tampered), "total_amount")

	tampered = testLedger()
	tampered.Summary.TotalInvoices = 7
	assert.Contains(t, summaryDrift(tampered), "total_invoices")

	tampered = testLedger()
	tampered.Summary.CountWithWithholding = 0
	assert.Contains(t, summaryDrift(tampered), "count_with_withholding")
}

func TestFindLedgers(t *testing.T) {
	root := t.TempDir()
	dirA := filepath.Join(root, "STUDIO_ROSSI", "EMESSE", "2025")
	dirB := filepath.Join(root, "VIZZI_GIUSEPPE", "RICEVUTE", "2024")
	require.NoError(t, os.MkdirAll(dirA, 0o755))
	require.NoError(t, os.MkdirAll(dirB, 0o755))

	ledgerA := filepath.Join(dirA, "prima_nota_2025.json")
	ledgerB := filepath.Join(dirB, "prima_nota_2024.json")
	require.NoError(t, os.WriteFile(ledgerA, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(ledgerB, []byte("{}"), 0o644))
	// Non-ledger files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "altro.json"), []byte("{}"), 0o644))

	paths, err := findLedgers(root)
	require.NoError(t, err)
	assert.Equal(t, []string{ledgerA, ledgerB}, paths)
}
