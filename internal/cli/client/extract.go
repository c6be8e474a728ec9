package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// TriggerExtractionRequest represents the trigger extraction API request.
type TriggerExtractionRequest struct {
	Settings             ExtractionSettings `json:"settings"`
	RunWithOrchestration *bool              `json:"run_with_orchestration,omitempty"`
}

// ExtractionSettings tunes one extraction run.
type ExtractionSettings struct {
	AutomaticDeduplication bool `json:"automatic_deduplication"`
}

// ExtractCmd creates the extract command.
func ExtractCmd() *cobra.Command {
	var dedup bool
	var sync bool

	cmd := &cobra.Command{
		Use:   "extract <document_id>",
		Short: "Trigger entity extraction for a document",
		Long:  "Starts the knowledge-graph extraction stage for an ingested document.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runExtract(cmd, args[0], dedup, sync, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&dedup, "dedup", false, "Collapse candidate entities into existing ones with the same name and category")
	cmd.Flags().BoolVar(&sync, "sync", false, "Run the extraction workflow synchronously instead of enqueueing it")

	return cmd
}

func runExtract(cmd *cobra.Command, documentID string, dedup, sync, outputJSON bool) error {
	req := TriggerExtractionRequest{
		Settings: ExtractionSettings{AutomaticDeduplication: dedup},
	}
	if sync {
		durable := false
		req.RunWithOrchestration = &durable
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post(fmt.Sprintf("/v1/documents/%s/extract", documentID), req)
	if err != nil {
		return fmt.Errorf("failed to trigger extraction: %w", err)
	}

	return printRunOrDocument(resp, outputJSON)
}

// printRunOrDocument renders a stage trigger response, which is either an
// accepted run handle or the refreshed document when run synchronously.
func printRunOrDocument(resp *APIResponse, outputJSON bool) error {
	if outputJSON {
		fmt.Println(string(resp.Data))
		return nil
	}

	var run Run
	if err := json.Unmarshal(resp.Data, &run); err == nil && run.RunID != "" {
		fmt.Printf("Run: %s (%s)\n", run.RunID, run.Workflow)
		return nil
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	printStatuses(&doc)
	return nil
}
