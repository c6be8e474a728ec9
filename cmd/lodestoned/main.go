package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lodestone-ai/lodestone/internal/cli"
	"github.com/lodestone-ai/lodestone/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lodestoned",
		Short: "Lodestone daemon",
		Long:  "Lodestone daemon for running the ingestion API server, the workflow dispatcher, and catalogue maintenance",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ScanCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
