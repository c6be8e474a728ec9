package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	var showChunks bool

	cmd := &cobra.Command{
		Use:   "get <document_id>",
		Short: "Get a document by ID",
		Long:  "Retrieves a document and displays its per-stage statuses.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], showChunks, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&showChunks, "chunks", false, "Also list the document's chunks")

	return cmd
}

func runGet(cmd *cobra.Command, documentID string, showChunks, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/v1/documents/%s", documentID))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	var chunks []*Chunk
	if showChunks {
		chunkResp, err := api.Get(fmt.Sprintf("/v1/documents/%s/chunks", documentID))
		if err != nil {
			return fmt.Errorf("failed to list chunks: %w", err)
		}
		if err := json.Unmarshal(chunkResp.Data, &chunks); err != nil {
			return fmt.Errorf("failed to parse chunks: %w", err)
		}
	}

	if outputJSON {
		payload := map[string]any{"document": doc}
		if showChunks {
			payload["chunks"] = chunks
		}
		output, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("ID:           %s\n", doc.ID)
	fmt.Printf("Name:         %s\n", doc.Name)
	fmt.Printf("Content type: %s\n", doc.ContentType)
	fmt.Printf("Source:       %s\n", doc.Source)
	if len(doc.CollectionIDs) > 0 {
		fmt.Printf("Collections:  %v\n", doc.CollectionIDs)
	}
	printStatuses(&doc)
	fmt.Printf("Created:      %s\n", doc.CreatedAt)
	fmt.Printf("Updated:      %s\n", doc.UpdatedAt)

	if showChunks {
		fmt.Printf("\nChunks (%d):\n", len(chunks))
		for _, chunk := range chunks {
			preview := chunk.Text
			if len(preview) > 80 {
				preview = preview[:77] + "..."
			}
			fmt.Printf("  [%d] %s  %s\n", chunk.Ordinal, chunk.ID, preview)
		}
	}
	return nil
}
