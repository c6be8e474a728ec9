package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// TriggerEnrichmentRequest represents the trigger enrichment API request.
type TriggerEnrichmentRequest struct {
	RunWithOrchestration *bool `json:"run_with_orchestration,omitempty"`
}

// EnrichCmd creates the enrich command.
func EnrichCmd() *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "enrich <document_id>",
		Short: "Trigger graph enrichment for a document",
		Long:  "Starts the community-detection and summarization stage over the document's collection graph.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEnrich(cmd, args[0], sync, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Run the enrichment workflow synchronously instead of enqueueing it")

	return cmd
}

func runEnrich(cmd *cobra.Command, documentID string, sync, outputJSON bool) error {
	req := TriggerEnrichmentRequest{}
	if sync {
		durable := false
		req.RunWithOrchestration = &durable
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post(fmt.Sprintf("/v1/documents/%s/enrich", documentID), req)
	if err != nil {
		return fmt.Errorf("failed to trigger enrichment: %w", err)
	}

	return printRunOrDocument(resp, outputJSON)
}
