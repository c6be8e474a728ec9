package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// MinCommunitySize is the smallest connected component that becomes a
// community. Isolated entities stay unassigned.
const MinCommunitySize = 2

// EnrichmentService recomputes communities over a collection graph. It
// implements GraphEnricher.
type EnrichmentService struct {
	graph    GraphRepositoryInterface
	llm      GraphLLM
	txRunner TxRunner
	uuidGen  UUIDGenerator
}

// NewEnrichmentService creates a new EnrichmentService instance
func NewEnrichmentService(graph GraphRepositoryInterface, llm GraphLLM, txRunner TxRunner) *EnrichmentService {
	return &EnrichmentService{
		graph:    graph,
		llm:      llm,
		txRunner: txRunner,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewEnrichmentServiceWithUUIDGen creates an EnrichmentService with a custom UUID generator (for testing)
func NewEnrichmentServiceWithUUIDGen(graph GraphRepositoryInterface, llm GraphLLM, txRunner TxRunner, uuidGen UUIDGenerator) *EnrichmentService {
	s := NewEnrichmentService(graph, llm, txRunner)
	s.uuidGen = uuidGen
	return s
}

// EnrichCollection finds connected components over the collection's
// relationships, summarizes each component of at least MinCommunitySize
// entities, and replaces the collection's communities. Summaries are
// generated before the transaction so the replacement is all or nothing.
func (s *EnrichmentService) EnrichCollection(ctx context.Context, collectionID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "EnrichmentService.EnrichCollection", telemetry.SpanAttributes{
		CollectionID: collectionID,
		Operation:    "enrich_collection",
	})
	defer span.End()

	entities, err := s.graph.ListEntitiesByCollection(ctx, collectionID)
	if err != nil {
		return 0, err
	}
	if len(entities) == 0 {
		// Nothing to group, but prior output may refer to documents that
		// are gone.
		err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			return repos.Graph().DeleteCommunitiesByCollection(ctx, collectionID)
		})
		return 0, err
	}

	relationships, err := s.graph.ListRelationshipsByCollection(ctx, collectionID)
	if err != nil {
		return 0, err
	}

	components := connectedComponents(entities, relationships)

	type pendingCommunity struct {
		summary string
		members []*domain.Entity
	}
	pending := make([]pendingCommunity, 0, len(components))
	for _, members := range components {
		if len(members) < MinCommunitySize {
			continue
		}
		descriptions := make([]string, len(members))
		for i, e := range members {
			descriptions[i] = describeEntity(e)
		}
		summary, err := s.llm.SummarizeCommunity(ctx, descriptions)
		if err != nil {
			return 0, fmt.Errorf("summarize community of %d entities: %w", len(members), err)
		}
		pending = append(pending, pendingCommunity{summary: summary, members: members})
	}

	now := time.Now().UTC()
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		graph := repos.Graph()
		if err := graph.DeleteCommunitiesByCollection(ctx, collectionID); err != nil {
			return err
		}
		for _, p := range pending {
			community := &domain.Community{
				ID:           s.uuidGen.NewString(),
				CollectionID: collectionID,
				Summary:      p.summary,
				EntityCount:  len(p.members),
				CreatedAt:    now,
			}
			if err := graph.CreateCommunity(ctx, community); err != nil {
				return err
			}
			for _, e := range p.members {
				if err := graph.UpdateEntityCommunity(ctx, e.ID, community.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// connectedComponents groups entities by relationship connectivity. Component
// member order follows entity creation order, so re-runs over an unchanged
// graph produce the same grouping.
func connectedComponents(entities []*domain.Entity, relationships []*domain.Relationship) [][]*domain.Entity {
	uf := newUnionFind()
	known := make(map[string]bool, len(entities))
	for _, e := range entities {
		uf.add(e.ID)
		known[e.ID] = true
	}
	for _, rel := range relationships {
		if known[rel.SubjectID] && known[rel.ObjectID] {
			uf.union(rel.SubjectID, rel.ObjectID)
		}
	}

	byRoot := make(map[string][]*domain.Entity)
	roots := make([]string, 0)
	for _, e := range entities {
		root := uf.find(e.ID)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], e)
	}

	components := make([][]*domain.Entity, 0, len(roots))
	for _, root := range roots {
		components = append(components, byRoot[root])
	}
	return components
}

func describeEntity(e *domain.Entity) string {
	label := e.Name
	if e.Category != "" {
		label += " (" + e.Category + ")"
	}
	if e.Description != "" {
		label += ": " + e.Description
	}
	return label
}

// unionFind is a path-compressing disjoint set over entity IDs.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(id string) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
	}
}

func (u *unionFind) find(id string) string {
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[id] != root {
		u.parent[id], id = root, u.parent[id]
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}
