package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lodestone-ai/lodestone/internal/cli"
	"github.com/lodestone-ai/lodestone/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lodestone",
		Short: "Lodestone CLI - document ingestion and knowledge-graph pipelines",
		Long: `Lodestone CLI submits documents for ingestion and manages the resulting
chunks, knowledge graph, and vector indices.

Environment variables:
  LODESTONE_API_TOKEN   API token for authentication
  LODESTONE_API_URL     API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.ConfigCmd())
	rootCmd.AddCommand(client.SubmitCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.ExtractCmd())
	rootCmd.AddCommand(client.EnrichCmd())
	rootCmd.AddCommand(client.IndexCmd())
	rootCmd.AddCommand(client.SearchCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
