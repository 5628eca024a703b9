package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/supportiq/internal/cli"
	"github.com/cloo-solutions/supportiq/internal/cli/admin"
)

var version = "dev"

func main() {
	rootCmd := newRootCmd()

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "supportiq",
		Short: "SupportIQ ticket triage",
		Long: `SupportIQ classifies support requests, routes them between automation and
human agents, and grounds replies in a FAQ knowledge index.

Configuration is read from SUPPORTIQ_* environment variables (and .env).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.IndexCmd())
	rootCmd.AddCommand(admin.TriageCmd())
	rootCmd.AddCommand(admin.TicketCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.WorkerCmd())

	return rootCmd
}
