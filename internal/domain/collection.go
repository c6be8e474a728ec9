package domain

import (
	"fmt"
	"time"
)

// Collection groups documents and scopes their extracted graph. Its
// description carries an embedding so collections themselves are similarity
// searchable.
type Collection struct {
	ID                   string
	Name                 string
	Description          string
	DescriptionEmbedding []float32
	CreatedAt            time.Time
}

// NewCollection creates a new Collection instance
func NewCollection(id, name, description string, createdAt time.Time) *Collection {
	return &Collection{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   createdAt,
	}
}

// ValidateCollection validates a Collection instance
func ValidateCollection(c *Collection) error {
	if c == nil {
		return fmt.Errorf("collection cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("collection ID is required")
	}

	if c.Name == "" {
		return fmt.Errorf("collection Name is required")
	}

	return nil
}
