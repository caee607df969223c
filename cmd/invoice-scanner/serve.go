package main

import (
	"github.com/spf13/cobra"

	"invoice-scanner-go/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and HTTP API",
	RunE: func(_ *cobra.Command, _ []string) error {
		return app.Run(configPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
