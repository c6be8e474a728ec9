package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// ExtractionSettings tunes one extract-entities run.
type ExtractionSettings struct {
	// AutomaticDeduplication folds extracted entities into existing
	// collection entities sharing the same name and category instead of
	// creating duplicates.
	AutomaticDeduplication bool `json:"automatic_deduplication"`
}

// GraphRepositoryInterface defines the repository interface for knowledge graph persistence
type GraphRepositoryInterface interface {
	CreateEntity(ctx context.Context, e *domain.Entity) error
	CreateRelationship(ctx context.Context, rel *domain.Relationship) error
	FindEntityByKey(ctx context.Context, collectionID, name, category string) (*domain.Entity, error)
	ListEntitiesByCollection(ctx context.Context, collectionID string) ([]*domain.Entity, error)
	ListEntitiesByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error)
	ListRelationshipsByCollection(ctx context.Context, collectionID string) ([]*domain.Relationship, error)
	UpdateEntityCommunity(ctx context.Context, entityID, communityID string) error
	DeleteByDocument(ctx context.Context, documentID string) error
	CreateCommunity(ctx context.Context, c *domain.Community) error
	DeleteCommunitiesByCollection(ctx context.Context, collectionID string) error
	ListCommunitiesByCollection(ctx context.Context, collectionID string) ([]*domain.Community, error)
}

// GraphLLM extracts entity and relationship candidates from text and
// summarizes entity communities.
type GraphLLM interface {
	ExtractGraph(ctx context.Context, text string) ([]domain.EntityCandidate, []domain.RelationshipCandidate, error)
	SummarizeCommunity(ctx context.Context, descriptions []string) (string, error)
}

// ExtractionService builds a document's slice of the collection knowledge
// graph from its stored chunks. It implements EntityExtractor.
type ExtractionService struct {
	chunks   ChunkRepositoryInterface
	llm      GraphLLM
	embedder ChunkEmbedder
	txRunner TxRunner
	uuidGen  UUIDGenerator
}

// NewExtractionService creates a new ExtractionService instance
func NewExtractionService(chunks ChunkRepositoryInterface, llm GraphLLM, embedder ChunkEmbedder, txRunner TxRunner) *ExtractionService {
	return &ExtractionService{
		chunks:   chunks,
		llm:      llm,
		embedder: embedder,
		txRunner: txRunner,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewExtractionServiceWithUUIDGen creates an ExtractionService with a custom UUID generator (for testing)
func NewExtractionServiceWithUUIDGen(chunks ChunkRepositoryInterface, llm GraphLLM, embedder ChunkEmbedder, txRunner TxRunner, uuidGen UUIDGenerator) *ExtractionService {
	s := NewExtractionService(chunks, llm, embedder, txRunner)
	s.uuidGen = uuidGen
	return s
}

// pendingEntity accumulates one entity across a document's chunks before the
// graph transaction.
type pendingEntity struct {
	name        string
	category    string
	description string
	chunkID     string
	embedding   []float32
}

// ExtractDocument runs the LLM over every chunk, merges candidates by entity
// key, and replaces the document's graph provenance in one transaction. A
// chunk whose extraction fails is skipped; the run only fails when no chunk
// yields a graph or when persistence fails.
func (s *ExtractionService) ExtractDocument(ctx context.Context, doc *domain.Document, settings ExtractionSettings) error {
	ctx, span := telemetry.StartSpan(ctx, "ExtractionService.ExtractDocument", telemetry.SpanAttributes{
		DocumentID: doc.ID,
		Operation:  "extract_document",
	})
	defer span.End()

	if len(doc.CollectionIDs) == 0 {
		return fmt.Errorf("document %s has no collection", doc.ID)
	}
	collectionID := doc.CollectionIDs[0]

	chunks, err := s.chunks.ListByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no stored chunks: %w", doc.ID, domain.ErrPreconditionFailed)
	}

	entities := make(map[string]*pendingEntity)
	order := make([]string, 0)
	var relationships []domain.RelationshipCandidate
	var lastErr error
	failed := 0

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		ents, rels, err := s.llm.ExtractGraph(ctx, chunk.Text)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				return err
			}
			log.Printf("extraction: document %s chunk %d failed: %v", doc.ID, chunk.Ordinal, err)
			lastErr = err
			failed++
			continue
		}
		for _, cand := range ents {
			name := strings.TrimSpace(cand.Name)
			if name == "" {
				continue
			}
			key := domain.EntityKey(name, cand.Category)
			existing, ok := entities[key]
			if !ok {
				entities[key] = &pendingEntity{
					name:        name,
					category:    strings.TrimSpace(cand.Category),
					description: strings.TrimSpace(cand.Description),
					chunkID:     chunk.ID,
				}
				order = append(order, key)
				continue
			}
			desc := strings.TrimSpace(cand.Description)
			if desc != "" && !strings.Contains(existing.description, desc) {
				if existing.description == "" {
					existing.description = desc
				} else {
					existing.description += "\n" + desc
				}
			}
		}
		relationships = append(relationships, rels...)
	}

	if failed == len(chunks) {
		return fmt.Errorf("extraction failed for all %d chunks: %w", len(chunks), lastErr)
	}

	if err := s.embedDescriptions(ctx, entities, order); err != nil {
		return err
	}

	return s.persistGraph(ctx, doc, collectionID, settings, entities, order, relationships)
}

// embedDescriptions attaches a description embedding to each pending entity.
// Texts the provider rejects simply stay without one.
func (s *ExtractionService) embedDescriptions(ctx context.Context, entities map[string]*pendingEntity, order []string) error {
	if len(order) == 0 {
		return nil
	}
	texts := make([]string, len(order))
	for i, key := range order {
		e := entities[key]
		texts[i] = e.name
		if e.description != "" {
			texts[i] += "\n" + e.description
		}
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed entity descriptions: %w", err)
	}
	for i, key := range order {
		entities[key].embedding = vectors[i]
	}
	return nil
}

// persistGraph replaces the document's provenance-scoped entities and
// relationships. Re-runs are idempotent: previous rows for this document are
// removed first. With deduplication on, candidates that match an existing
// collection entity by key attach their relationships to it instead of
// creating a new node.
func (s *ExtractionService) persistGraph(
	ctx context.Context,
	doc *domain.Document,
	collectionID string,
	settings ExtractionSettings,
	entities map[string]*pendingEntity,
	order []string,
	relationships []domain.RelationshipCandidate,
) error {
	now := time.Now().UTC()

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		graph := repos.Graph()
		if err := graph.DeleteByDocument(ctx, doc.ID); err != nil {
			return err
		}

		idsByName := make(map[string]string, len(order))
		for _, key := range order {
			pending := entities[key]

			if settings.AutomaticDeduplication {
				existing, err := graph.FindEntityByKey(ctx, collectionID, pending.name, pending.category)
				if err != nil && !errors.Is(err, domain.ErrEntityNotFound) {
					return err
				}
				if existing != nil {
					idsByName[strings.ToLower(pending.name)] = existing.ID
					continue
				}
			}

			entity := domain.NewEntity(s.uuidGen.NewString(), collectionID, doc.ID, pending.name, pending.category, pending.description, now)
			entity.ChunkID = pending.chunkID
			entity.DescriptionEmbedding = pending.embedding
			if err := domain.ValidateEntity(entity); err != nil {
				return err
			}
			if err := graph.CreateEntity(ctx, entity); err != nil {
				return err
			}
			idsByName[strings.ToLower(pending.name)] = entity.ID
		}

		for _, cand := range relationships {
			subjectID := idsByName[strings.ToLower(strings.TrimSpace(cand.Subject))]
			objectID := idsByName[strings.ToLower(strings.TrimSpace(cand.Object))]
			predicate := strings.TrimSpace(cand.Predicate)
			if subjectID == "" || objectID == "" || predicate == "" {
				log.Printf("extraction: document %s dropping relationship %q -[%s]-> %q", doc.ID, cand.Subject, predicate, cand.Object)
				continue
			}

			rel := domain.NewRelationship(s.uuidGen.NewString(), collectionID, subjectID, objectID, predicate, now)
			rel.DocumentID = doc.ID
			rel.Description = strings.TrimSpace(cand.Description)
			rel.Weight = clampWeight(cand.Weight)
			if err := domain.ValidateRelationship(rel); err != nil {
				return err
			}
			if err := graph.CreateRelationship(ctx, rel); err != nil {
				return err
			}
		}
		return nil
	})
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
