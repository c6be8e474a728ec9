package domain

import (
	"fmt"
	"time"
)

// Chunk is one ordered text span of a document, with its embedding once the
// embed stage has run. A chunk belongs to exactly one document and never
// outlives it.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	Metadata   map[string]any
	Embedding  []float32
	CreatedAt  time.Time
}

// NewChunk creates a new Chunk without an embedding
func NewChunk(id, documentID string, ordinal int, text string, createdAt time.Time) *Chunk {
	return &Chunk{
		ID:         id,
		DocumentID: documentID,
		Ordinal:    ordinal,
		Text:       text,
		Metadata:   map[string]any{},
		CreatedAt:  createdAt,
	}
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}

	if c.Ordinal < 0 {
		return fmt.Errorf("chunk Ordinal must not be negative")
	}

	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}

	return nil
}
