package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var offset int
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Long:  "Lists documents in the catalogue with their per-stage statuses.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd, offset, limit, outputJSON)
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of documents to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of documents to return")

	return cmd
}

func runList(cmd *cobra.Command, offset, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/v1/documents?offset=%d&limit=%d", offset, limit))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var page DocumentPage
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(page.Results) == 0 {
		fmt.Println("No documents found")
		return nil
	}

	for _, doc := range page.Results {
		fmt.Printf("%s  ingestion=%s extraction=%s enrichment=%s  %s\n",
			doc.ID, doc.IngestionStatus, doc.ExtractionStatus, doc.EnrichmentStatus, doc.Name)
	}
	fmt.Printf("\nShowing %d of %d documents (offset %d)\n", len(page.Results), page.PageInfo.TotalEntries, page.PageInfo.Offset)
	return nil
}
