package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fatturex/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "fatturex",
	Short: "Fatturex - archive and ledger tool for Italian electronic invoices",
	Long: `Fatturex organizes downloaded electronic-invoice artifacts (FatturaPA XML,
signed .p7m envelopes, SDI metadata and notifications) into a deduplicated
per-client/per-direction/per-year archive and keeps a running prima nota
ledger for every key.

Signed envelopes are opened through multiple decode strategies (in-process
CMS parsing, then the openssl command-line tool); no signature trust chain
is verified, only the payload is extracted.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
