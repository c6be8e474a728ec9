package domain

import (
	"fmt"
	"strings"
	"time"
)

// Entity is a node of a collection-scoped knowledge graph, produced during
// extraction. DocumentID and ChunkID record provenance: the document and
// chunk that first produced the entity. Deleting that document removes the
// entity and cascades to the relationships that touch it.
type Entity struct {
	ID                   string
	CollectionID         string
	DocumentID           string
	ChunkID              string
	Name                 string
	Category             string
	Description          string
	DescriptionEmbedding []float32
	CommunityID          string
	CreatedAt            time.Time
}

// Community is a connected group of entities found during enrichment,
// together with its generated summary.
type Community struct {
	ID           string
	CollectionID string
	Summary      string
	EntityCount  int
	CreatedAt    time.Time
}

// Relationship is an edge between two entities of the same collection graph.
type Relationship struct {
	ID           string
	CollectionID string
	DocumentID   string
	SubjectID    string
	ObjectID     string
	Predicate    string
	Description  string
	Weight       float64
	CreatedAt    time.Time
}

// NewEntity creates a new Entity instance
func NewEntity(id, collectionID, documentID, name, category, description string, createdAt time.Time) *Entity {
	return &Entity{
		ID:           id,
		CollectionID: collectionID,
		DocumentID:   documentID,
		Name:         name,
		Category:     category,
		Description:  description,
		CreatedAt:    createdAt,
	}
}

// NewRelationship creates a new Relationship instance
func NewRelationship(id, collectionID, subjectID, objectID, predicate string, createdAt time.Time) *Relationship {
	return &Relationship{
		ID:           id,
		CollectionID: collectionID,
		SubjectID:    subjectID,
		ObjectID:     objectID,
		Predicate:    predicate,
		CreatedAt:    createdAt,
	}
}

// EntityCandidate is one extracted entity before persistence.
type EntityCandidate struct {
	Name        string
	Category    string
	Description string
}

// RelationshipCandidate is one extracted relationship before persistence.
// Subject and Object name entities; resolution to entity IDs happens when
// the graph is written.
type RelationshipCandidate struct {
	Subject     string
	Object      string
	Predicate   string
	Description string
	Weight      float64
}

// EntityKey returns the deduplication key for an entity: the normalized name
// plus the category. Two entities of one collection sharing a key are
// considered the same entity.
func EntityKey(name, category string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(category))
}

// ValidateEntity validates an Entity instance
func ValidateEntity(e *Entity) error {
	if e == nil {
		return fmt.Errorf("entity cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("entity ID is required")
	}

	if e.CollectionID == "" {
		return fmt.Errorf("entity CollectionID is required")
	}

	if e.Name == "" {
		return fmt.Errorf("entity Name is required")
	}

	return nil
}

// ValidateRelationship validates a Relationship instance
func ValidateRelationship(r *Relationship) error {
	if r == nil {
		return fmt.Errorf("relationship cannot be nil")
	}

	if r.ID == "" {
		return fmt.Errorf("relationship ID is required")
	}

	if r.CollectionID == "" {
		return fmt.Errorf("relationship CollectionID is required")
	}

	if r.SubjectID == "" || r.ObjectID == "" {
		return fmt.Errorf("relationship SubjectID and ObjectID are required")
	}

	if r.Predicate == "" {
		return fmt.Errorf("relationship Predicate is required")
	}

	return nil
}
