package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "invoice-scanner",
	Short: "Find and archive maintenance invoices for one fleet vehicle",
	Long: `Scans a mailbox for repair and maintenance invoices that mention a
configured vehicle, archives their PDF and image attachments by month, and
remembers every decided message so it is never processed twice.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml or ./config/config.yaml)")
}
