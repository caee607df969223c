package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"invoice-scanner-go/internal/app"
	"invoice-scanner-go/internal/model"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan pass and print its summary",
	RunE:  runScan,
}

var encodeSummary = func(s *model.Summary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := app.ScanOnce(ctx, configPath)
	return reportScan(cmd.OutOrStdout(), summary, err)
}

// reportScan prints the summary, if any, and returns the scan error joined
// with any failure to print it.
func reportScan(w io.Writer, summary *model.Summary, scanErr error) error {
	if scanErr != nil {
		scanErr = fmt.Errorf("scan failed: %w", scanErr)
	}
	if summary == nil {
		return scanErr
	}

	out, err := encodeSummary(summary)
	if err != nil {
		return errors.Join(scanErr, fmt.Errorf("failed to encode summary: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return scanErr
}
