package domain

import (
	"fmt"
	"time"
)

// DocumentSource indicates where a document's raw bytes live.
type DocumentSource string

const (
	DocumentSourceInline DocumentSource = "inline"
	DocumentSourceS3     DocumentSource = "s3"
)

// Document represents a submitted document and its pipeline state. Created on
// initial submission; mutated only by the pipeline coordinator as stages
// complete. The three status fields are always persisted together so readers
// never observe a torn combination.
type Document struct {
	ID               string
	Name             string
	ContentType      string
	Source           DocumentSource
	RawContent       []byte // populated only when Source is inline
	Metadata         map[string]any
	CollectionIDs    []string
	IngestionStatus  IngestionStatus
	IngestionError   string
	ExtractionStatus KGExtractionStatus
	ExtractionError  string
	EnrichmentStatus KGEnrichmentStatus
	EnrichmentError  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDocument creates a new Document with all statuses pending
func NewDocument(id, name, contentType string, source DocumentSource, createdAt time.Time) *Document {
	return &Document{
		ID:               id,
		Name:             name,
		ContentType:      contentType,
		Source:           source,
		Metadata:         map[string]any{},
		CollectionIDs:    []string{},
		IngestionStatus:  IngestionStatusPending,
		ExtractionStatus: KGExtractionStatusPending,
		EnrichmentStatus: KGEnrichmentStatusPending,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}

	if !isValidDocumentSource(d.Source) {
		return fmt.Errorf("document Source is invalid: %s", d.Source)
	}

	if !isValidIngestionStatus(d.IngestionStatus) {
		return fmt.Errorf("document IngestionStatus is invalid: %s", d.IngestionStatus)
	}

	if !isValidExtractionStatus(d.ExtractionStatus) {
		return fmt.Errorf("document ExtractionStatus is invalid: %s", d.ExtractionStatus)
	}

	if !isValidEnrichmentStatus(d.EnrichmentStatus) {
		return fmt.Errorf("document EnrichmentStatus is invalid: %s", d.EnrichmentStatus)
	}

	return nil
}

// isValidDocumentSource checks if a DocumentSource is valid
func isValidDocumentSource(s DocumentSource) bool {
	switch s {
	case DocumentSourceInline, DocumentSourceS3:
		return true
	}
	return false
}
