package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fatturex/internal/archive"
	"fatturex/internal/config"
	"fatturex/internal/dedup"
	"fatturex/internal/envelope"
	"fatturex/internal/logger"
	"fatturex/internal/pipeline"
	"fatturex/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [folder-path]",
	Short: "Process a folder of invoice files into the archive",
	Long: `Process every file in a folder: classify by name, decode signed envelopes,
parse FatturaPA data, reject duplicates and write the archive tree plus the
prima nota ledgers.

Files are processed in parallel by a bounded worker pool. One outcome is
recorded per input file; a failure on one file never aborts the batch.

The duplicate index is durable by default (SQLite file inside the archive
root), so re-running over an already-archived folder is idempotent. Use
--memory-index for an isolated one-shot run.

Required configuration:
  FATTUREX_PORTFOLIO (or --portfolio) - portfolio file mapping client tax
                                        identifiers to company names

Optional environment variables:
  FATTUREX_ARCHIVE_ROOT   - archive output root (default: aziende_processate)
  FATTUREX_OPENSSL        - openssl binary path (default: openssl)
  FATTUREX_DECODE_TIMEOUT - per-subprocess timeout in seconds (default: 60)
  BATCH_WORKERS           - number of parallel workers (default: 8)`,
	Example: `  # Process a download folder into the default archive root
  fatturex process ./fatture_da_processare

  # Explicit portfolio file and archive root
  fatturex process ./input --portfolio clienti.yaml --archive-root ./archivio

  # One-shot run without the durable duplicate index
  fatturex process ./input --memory-index

  # Save the per-file outcome report
  fatturex process ./input --report run_report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("portfolio", "", "Portfolio configuration file (default: $FATTUREX_PORTFOLIO or ./fatturex.{yaml,json})")
	processCmd.Flags().String("archive-root", "", "Archive output root (default: $FATTUREX_ARCHIVE_ROOT)")
	processCmd.Flags().Int("workers", 0, "Parallel workers (default: $BATCH_WORKERS or 8)")
	processCmd.Flags().Bool("memory-index", false, "Use an in-memory duplicate index instead of the durable one")
	processCmd.Flags().String("report", "", "Write the per-file outcome report to this JSON file")
}

func runProcess(cmd *cobra.Command, args []string) error {
	runID := uuid.NewString()[:8]
	log := logger.WithRunID(runID)

	inputPath := args[0]
	portfolioFlag, _ := cmd.Flags().GetString("portfolio")
	archiveRootFlag, _ := cmd.Flags().GetString("archive-root")
	workersFlag, _ := cmd.Flags().GetInt("workers")
	memoryIndex, _ := cmd.Flags().GetBool("memory-index")
	reportPath, _ := cmd.Flags().GetString("report")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if archiveRootFlag != "" {
		cfg.ArchiveRoot = archiveRootFlag
	}
	if workersFlag > 0 {
		cfg.Workers = workersFlag
	}
	if portfolioFlag != "" {
		cfg.PortfolioFile = portfolioFlag
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("input folder not found: %s", inputPath)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", inputPath)
	}

	portfolio, err := config.LoadPortfolio(cfg.PortfolioFile)
	if err != nil {
		return err
	}

	files, err := pipeline.FindInputFiles(inputPath)
	if err != nil {
		return fmt.Errorf("failed to scan input folder: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No files found in the input folder.")
		return nil
	}

	index, err := openIndex(cfg, memoryIndex, log)
	if err != nil {
		return err
	}
	defer index.Close()

	processor := pipeline.New(pipeline.Config{
		Portfolio: portfolio,
		Decoder: envelope.NewDecoder(envelope.Config{
			OpenSSLPath: cfg.OpenSSLPath,
			Timeout:     time.Duration(cfg.DecodeTimeoutSecs) * time.Second,
		}),
		Index:   index,
		Writer:  archive.NewWriter(cfg.ArchiveRoot),
		Workers: cfg.Workers,
	})

	log.Info().
		Str("input", inputPath).
		Str("archive_root", cfg.ArchiveRoot).
		Int("files", len(files)).
		Int("workers", cfg.Workers).
		Int("clients", len(portfolio)).
		Bool("memory_index", memoryIndex).
		Msg("Starting batch processing")

	ctx, cancel := signalContext(log)
	defer cancel()

	start := time.Now()
	outcomes := processor.Run(ctx, files)
	stats := pipeline.Stats(outcomes)

	printSummary(stats, time.Since(start))
	printFailures(outcomes)

	if reportPath != "" {
		if err := writeRunReport(reportPath, runID, outcomes, stats); err != nil {
			return err
		}
		fmt.Printf("Report: %s\n", reportPath)
	}

	log.Info().
		Int("total", stats.Total).
		Int("archived", stats.Archived).
		Int("duplicates", stats.Duplicates).
		Int("not_in_portfolio", stats.NotInPortfolio).
		Int("unsupported", stats.Unsupported).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(start)).
		Msg("Batch processing completed")

	return nil
}

// openIndex chooses the duplicate index policy: durable SQLite inside the
// archive root by default, in-memory when requested.
func openIndex(cfg *config.Config, memoryIndex bool, log zerolog.Logger) (dedup.Index, error) {
	if memoryIndex {
		return dedup.NewMemory(), nil
	}
	path := filepath.Join(cfg.ArchiveRoot, ".fatturex", "index.db")
	index, err := dedup.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duplicate index: %w", err)
	}
	log.Debug().Str("path", path).Msg("Durable duplicate index opened")
	return index, nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM. Canceling
// stops dispatching new files; in-flight files finish naturally.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, stopping dispatch")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func printSummary(stats models.RunStats, elapsed time.Duration) {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RISULTATO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("File totali:        %d\n", stats.Total)
	fmt.Printf("Archiviate:         %d\n", stats.Archived)
	if stats.Duplicates > 0 {
		fmt.Printf("Duplicati:          %d\n", stats.Duplicates)
	}
	if stats.NotInPortfolio > 0 {
		fmt.Printf("Fuori portfolio:    %d\n", stats.NotInPortfolio)
	}
	if stats.Unsupported > 0 {
		fmt.Printf("Non supportati:     %d\n", stats.Unsupported)
	}
	if stats.Failed > 0 {
		fmt.Printf("Errori:             %d\n", stats.Failed)
	}
	fmt.Printf("Durata:             %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()
}

// printFailures lists failed files with their decode attempt details.
func printFailures(outcomes []models.ProcessingOutcome) {
	for _, o := range outcomes {
		if o.Status != models.StatusFailed {
			continue
		}
		fmt.Printf("KO  %s - %s\n", o.FileName, o.Detail)
		for _, attempt := range o.Attempts {
			fmt.Printf("      %s\n", attempt)
		}
	}
}

// runReport is the JSON document handed to the reporting layer.
type runReport struct {
	RunID      string                     `json:"run_id"`
	FinishedAt time.Time                  `json:"finished_at"`
	Stats      models.RunStats            `json:"stats"`
	Outcomes   []models.ProcessingOutcome `json:"outcomes"`
}

func writeRunReport(path, runID string, outcomes []models.ProcessingOutcome, stats models.RunStats) error {
	report := runReport{
		RunID:      runID,
		FinishedAt: time.Now().UTC(),
		Stats:      stats,
		Outcomes:   outcomes,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}
