package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// SubmitDocumentRequest represents the submit document API request.
type SubmitDocumentRequest struct {
	ID                   string         `json:"id,omitempty"`
	Name                 string         `json:"name,omitempty"`
	ContentType          string         `json:"content_type,omitempty"`
	Content              string         `json:"content,omitempty"`
	ContentBase64        []byte         `json:"content_base64,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	CollectionIDs        []string       `json:"collection_ids,omitempty"`
	RunWithOrchestration *bool          `json:"run_with_orchestration,omitempty"`
}

// SubmitCmd creates the submit command.
func SubmitCmd() *cobra.Command {
	var (
		id          string
		name        string
		contentType string
		collections []string
		metadata    string
		sync        bool
	)

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a document for ingestion",
		Long: `Submit a document file for ingestion. The content type is inferred from
the file extension unless --content-type is given; use "-" to read from stdin.

Examples:
  lodestone submit report.pdf
  lodestone submit notes.md --collection research
  cat article.txt | lodestone submit - --name article --content-type text/plain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSubmit(cmd, args[0], id, name, contentType, collections, metadata, sync, outputJSON)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Document ID (generated if not provided)")
	cmd.Flags().StringVar(&name, "name", "", "Document name (defaults to the file name)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type (inferred from extension if not provided)")
	cmd.Flags().StringArrayVar(&collections, "collection", nil, "Collection ID (repeatable)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "Document metadata as a JSON object")
	cmd.Flags().BoolVar(&sync, "sync", false, "Run the ingestion workflow synchronously instead of enqueueing it")

	return cmd
}

func runSubmit(cmd *cobra.Command, path, id, name, contentType string, collections []string, metadata string, sync, outputJSON bool) error {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	} else {
		raw, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		if name == "" {
			name = filepath.Base(path)
		}
	}

	if contentType == "" {
		contentType = contentTypeForPath(path)
	}

	req := SubmitDocumentRequest{
		ID:            id,
		Name:          name,
		ContentType:   contentType,
		CollectionIDs: collections,
	}

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req.Metadata); err != nil {
			return fmt.Errorf("failed to parse --metadata: %w", err)
		}
	}

	// Binary formats travel base64-encoded; everything else as plain text.
	if isTextContentType(contentType) {
		req.Content = string(raw)
	} else {
		req.ContentBase64 = raw
	}

	if sync {
		durable := false
		req.RunWithOrchestration = &durable
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/v1/documents", req)
	if err != nil {
		return fmt.Errorf("failed to submit document: %w", err)
	}

	var result SubmitResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Submitted document %s (%s)\n", result.Document.ID, result.Document.Name)
	if result.RunID != "" {
		fmt.Printf("Run: %s (%s)\n", result.RunID, result.Workflow)
	} else {
		printStatuses(result.Document)
	}
	return nil
}

func printStatuses(doc *Document) {
	fmt.Printf("Ingestion:  %s%s\n", doc.IngestionStatus, errSuffix(doc.IngestionError))
	fmt.Printf("Extraction: %s%s\n", doc.ExtractionStatus, errSuffix(doc.ExtractionError))
	fmt.Printf("Enrichment: %s%s\n", doc.EnrichmentStatus, errSuffix(doc.EnrichmentError))
}

func errSuffix(msg string) string {
	if msg == "" {
		return ""
	}
	return " (" + msg + ")"
}

func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	default:
		return "text/plain"
	}
}

func isTextContentType(contentType string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	return contentType == "application/json"
}
