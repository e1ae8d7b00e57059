package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"fatturex/internal/classify"
	"fatturex/internal/config"
	"fatturex/internal/dedup"
	"fatturex/internal/envelope"
	"fatturex/internal/invoice"
	"fatturex/internal/logger"
	"fatturex/pkg/models"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Decode and parse a single file without archiving it",
	Long: `Classify, decode and parse one invoice or notification file and print the
extracted data as JSON. Nothing is written to the archive and the duplicate
index is not touched.

When a portfolio file is available the invoice direction and owning client
are resolved; otherwise the parsed fields are shown without attribution.`,
	Example: `  # Inspect a signed envelope
  fatturex inspect IT02327190845_ab123.xml.p7m

  # Inspect with portfolio attribution, saving the output
  fatturex inspect fattura.xml --portfolio clienti.yaml -o parsed.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

// inspectOutput is the JSON document printed for one inspected file.
type inspectOutput struct {
	FileName     string                `json:"file_name"`
	Category     string                `json:"category"`
	Strategy     string                `json:"decode_strategy,omitempty"`
	Attempts     []string              `json:"decode_attempts,omitempty"`
	Fingerprint  string                `json:"fingerprint,omitempty"`
	Invoice      *models.InvoiceRecord `json:"invoice,omitempty"`
	Notification *invoice.Notification `json:"notification,omitempty"`
	Metadata     *invoice.Notification `json:"metadata,omitempty"`
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	inspectCmd.Flags().String("portfolio", "", "Portfolio configuration file for direction resolution")
	inspectCmd.Flags().Int("timeout", 60, "Decode subprocess timeout in seconds")
}

func runInspect(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("inspect")

	filePath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	portfolioPath, _ := cmd.Flags().GetString("portfolio")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	doc := models.NewRawDocument(filePath, content)

	out := inspectOutput{
		FileName: doc.FileName,
		Category: string(classify.Classify(doc.FileName)),
	}

	if out.Category == string(classify.CategoryUnsupported) {
		return writeInspectOutput(out, outputPath)
	}

	decoder := envelope.NewDecoder(envelope.Config{
		OpenSSLPath: cfg.OpenSSLPath,
		Timeout:     time.Duration(timeoutSecs) * time.Second,
	})

	env, err := decoder.Decode(context.Background(), doc)
	if err != nil {
		var decodeErr *envelope.DecodeError
		if errors.As(err, &decodeErr) {
			out.Attempts = decodeErr.Attempts
			log.Warn().Str("file", doc.FileName).Msg("Decode failed")
			return writeInspectOutput(out, outputPath)
		}
		return err
	}
	out.Strategy = env.Strategy
	out.Attempts = env.Attempts
	out.Fingerprint = dedup.NewFingerprint(doc.Content, env.Payload).Key()

	switch classify.Category(out.Category) {
	case classify.CategoryNotification:
		notification, err := invoice.ParseNotification(env.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse notification: %w", err)
		}
		out.Notification = notification

	case classify.CategoryMetadata:
		metadata, err := invoice.ParseNotification(env.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse metadata file: %w", err)
		}
		out.Metadata = metadata

	case classify.CategoryInvoice:
		record, err := parseForInspect(env.Payload, portfolioPath, cfg)
		if err != nil {
			return err
		}
		record.FileName = doc.FileName
		out.Invoice = record
	}

	return writeInspectOutput(out, outputPath)
}

// parseForInspect resolves direction when a portfolio is available and
// falls back to a plain document parse otherwise.
func parseForInspect(payload []byte, portfolioPath string, cfg *config.Config) (*models.InvoiceRecord, error) {
	if portfolioPath == "" {
		portfolioPath = cfg.PortfolioFile
	}
	if portfolioPath != "" {
		portfolio, err := config.LoadPortfolio(portfolioPath)
		if err != nil {
			return nil, err
		}
		record, err := invoice.Parse(payload, portfolio)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, invoice.ErrNotInPortfolio) {
			return nil, err
		}
		// Fall through: show the document even without attribution.
	}
	return invoice.ParseDocument(payload)
}

func writeInspectOutput(out inspectOutput, outputPath string) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output to %s: %w", filepath.Clean(outputPath), err)
	}
	fmt.Printf("Output saved to: %s\n", outputPath)
	return nil
}
