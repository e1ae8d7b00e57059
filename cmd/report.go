package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fatturex/internal/archive"
	"fatturex/internal/config"
	"fatturex/internal/logger"
	"fatturex/pkg/models"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the prima nota ledgers and verify their totals",
	Long: `Read every prima nota ledger under the archive root, print per
client/direction/year totals and verify that each stored summary still
equals the totals recomputed from the full entry list.

A mismatch means the ledger file was edited or corrupted outside of
processing and is reported as drift.`,
	Example: `  # Summarize the default archive root
  fatturex report

  # Only one client
  fatturex report --client VIZZI_GIUSEPPE`,
	Args: cobra.NoArgs,
	RunE: runReportCmd,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("archive-root", "", "Archive root to read (default: $FATTUREX_ARCHIVE_ROOT)")
	reportCmd.Flags().String("client", "", "Limit the report to one client")
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("report")

	archiveRootFlag, _ := cmd.Flags().GetString("archive-root")
	clientFilter, _ := cmd.Flags().GetString("client")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if archiveRootFlag != "" {
		cfg.ArchiveRoot = archiveRootFlag
	}

	if _, err := os.Stat(cfg.ArchiveRoot); err != nil {
		return fmt.Errorf("archive root not found: %s", cfg.ArchiveRoot)
	}

	paths, err := findLedgers(cfg.ArchiveRoot)
	if err != nil {
		return fmt.Errorf("failed to scan archive: %w", err)
	}
	if len(paths) == 0 {
		fmt.Println("No ledgers found in the archive.")
		return nil
	}

	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("                         PRIMA NOTA")
	fmt.Println(strings.Repeat("=", 72))

	var drifted int
	grandTotal := decimal.Zero
	for _, path := range paths {
		ledger, err := archive.ReadLedger(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("Skipping unreadable ledger")
			continue
		}
		if clientFilter != "" && ledger.Company != clientFilter {
			continue
		}

		fmt.Printf("%-30s %-9s %d  fatture: %4d  totale: %12s  ritenute: %10s\n",
			ledger.Company, ledger.Direction, ledger.Year,
			ledger.Summary.TotalInvoices,
			ledger.Summary.TotalAmount.StringFixed(2),
			ledger.Summary.TotalWithholding.StringFixed(2))

		if drift := summaryDrift(ledger); drift != "" {
			drifted++
			fmt.Printf("  DRIFT: %s (%s)\n", drift, path)
		}
		grandTotal = grandTotal.Add(ledger.Summary.TotalAmount)
	}

	fmt.Println(strings.Repeat("-", 72))
	fmt.Printf("Totale complessivo: %s\n", grandTotal.StringFixed(2))
	if drifted > 0 {
		return fmt.Errorf("%d ledger(s) have drifted summaries", drifted)
	}
	return nil
}

// findLedgers collects every prima nota file under the archive root.
func findLedgers(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := filepath.Base(path)
		if !info.IsDir() && strings.HasPrefix(name, "prima_nota_") && strings.HasSuffix(name, ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// summaryDrift recomputes the totals from the entry list and describes
// the first mismatch with the stored summary, or returns "".
func summaryDrift(ledger *models.Ledger) string {
	recomputed := models.ComputeSummary(ledger.Invoices)
	stored := ledger.Summary

	switch {
	case recomputed.TotalInvoices != stored.TotalInvoices:
		return fmt.Sprintf("total_invoices %d != %d", stored.TotalInvoices, recomputed.TotalInvoices)
	case !recomputed.TotalAmount.Equal(stored.TotalAmount):
		return fmt.Sprintf("total_amount %s != %s", stored.TotalAmount, recomputed.TotalAmount)
	case !recomputed.TotalWithholding.Equal(stored.TotalWithholding):
		return fmt.Sprintf("total_withholding %s != %s", stored.TotalWithholding, recomputed.TotalWithholding)
	case recomputed.CountWithWithholding != stored.CountWithWithholding:
		return fmt.Sprintf("count_with_withholding %d != %d", stored.CountWithWithholding, recomputed.CountWithWithholding)
	}
	return ""
}
