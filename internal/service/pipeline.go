package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, page pagination.Page) ([]*domain.Document, int64, error)
	UpdateStatuses(ctx context.Context, d *domain.Document) error
	UpdateStatusesIf(ctx context.Context, d *domain.Document, expected domain.IngestionStatus) (bool, error)
	Delete(ctx context.Context, id string) error
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	CreateBatch(ctx context.Context, chunks []*domain.Chunk) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)
	CountByDocument(ctx context.Context, documentID string) (int64, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*domain.Chunk, []float64, error)
}

// CollectionRepositoryInterface defines the repository interface for collection persistence
type CollectionRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Collection, error)
	GetOrCreateDefault(ctx context.Context) (*domain.Collection, error)
}

// WorkflowRunCancellerRepository is the slice of the run queue the coordinator
// needs for document deletion.
type WorkflowRunCancellerRepository interface {
	CancelActiveByDocument(ctx context.Context, documentID string) ([]string, error)
}

// ParserRegistry turns raw bytes into text segments by content type.
type ParserRegistry interface {
	Parse(raw []byte, contentType string) ([]string, error)
	Supports(contentType string) bool
}

// ChunkEmbedder embeds chunk texts in order. A nil vector in the result means
// the provider rejected that text and the chunk is dropped; any other failure
// aborts the whole batch.
type ChunkEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor persists a document's knowledge graph from its stored
// chunks.
type EntityExtractor interface {
	ExtractDocument(ctx context.Context, d *domain.Document, settings ExtractionSettings) error
}

// GraphEnricher recomputes communities over a collection graph. It returns
// the number of communities written.
type GraphEnricher interface {
	EnrichCollection(ctx context.Context, collectionID string) (int, error)
}

// RawStore holds submitted document bytes outside the database.
type RawStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// RunCanceller interrupts in-flight executions for a document.
type RunCanceller interface {
	CancelDocument(documentID string)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestPayload is the ingest-document workflow payload.
type IngestPayload struct {
	DocumentID string `json:"document_id"`
}

// ExtractPayload is the extract-entities workflow payload.
type ExtractPayload struct {
	DocumentID string             `json:"document_id"`
	Settings   ExtractionSettings `json:"settings"`
}

// EnrichPayload is the enrich-graph workflow payload.
type EnrichPayload struct {
	DocumentID string `json:"document_id"`
}

// SubmitInput carries one document submission.
type SubmitInput struct {
	ID                   string
	Name                 string
	ContentType          string
	Content              []byte
	Metadata             map[string]any
	CollectionIDs        []string
	RunWithOrchestration bool
}

// PipelineParams collects the coordinator's collaborators.
type PipelineParams struct {
	Documents    DocumentRepositoryInterface
	Chunks       ChunkRepositoryInterface
	Collections  CollectionRepositoryInterface
	Runs         WorkflowRunCancellerRepository
	TxRunner     TxRunner
	Parser       ParserRegistry
	Embedder     ChunkEmbedder
	Extractor    EntityExtractor
	Enricher     GraphEnricher
	RawStore     RawStore
	Orchestrator orchestration.Client
	Inline       orchestration.Client
	Canceller    RunCanceller
	ChunkConfig  ChunkConfig
}

// PipelineService drives documents through ingestion, extraction, and
// enrichment. It is the only writer of document status.
type PipelineService struct {
	documents    DocumentRepositoryInterface
	chunks       ChunkRepositoryInterface
	collections  CollectionRepositoryInterface
	runs         WorkflowRunCancellerRepository
	txRunner     TxRunner
	parser       ParserRegistry
	embedder     ChunkEmbedder
	extractor    EntityExtractor
	enricher     GraphEnricher
	rawStore     RawStore
	orchestrator orchestration.Client
	inline       orchestration.Client
	canceller    RunCanceller
	chunkCfg     ChunkConfig
	uuidGen      UUIDGenerator
}

// NewPipelineService creates a new PipelineService instance
func NewPipelineService(params PipelineParams) *PipelineService {
	cfg := params.ChunkConfig
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	return &PipelineService{
		documents:    params.Documents,
		chunks:       params.Chunks,
		collections:  params.Collections,
		runs:         params.Runs,
		txRunner:     params.TxRunner,
		parser:       params.Parser,
		embedder:     params.Embedder,
		extractor:    params.Extractor,
		enricher:     params.Enricher,
		rawStore:     params.RawStore,
		orchestrator: params.Orchestrator,
		inline:       params.Inline,
		canceller:    params.Canceller,
		chunkCfg:     cfg,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

// NewPipelineServiceWithUUIDGen creates a PipelineService with a custom UUID generator (for testing)
func NewPipelineServiceWithUUIDGen(params PipelineParams, uuidGen UUIDGenerator) *PipelineService {
	s := NewPipelineService(params)
	s.uuidGen = uuidGen
	return s
}

// RegisterWorkflows binds the coordinator's handlers into the workflow
// registry. Call once at assembly, before any client is used.
func (s *PipelineService) RegisterWorkflows(registry *orchestration.Registry) {
	registry.Register(domain.WorkflowIngestDocument, s.HandleIngestDocument)
	registry.Register(domain.WorkflowExtractEntities, s.HandleExtractEntities)
	registry.Register(domain.WorkflowEnrichGraph, s.HandleEnrichGraph)
}

// Submit accepts a document into the pipeline. Re-submitting a stored
// document is a no-op; re-submitting a failed one resets every status and
// restarts ingestion from the first stage. With RunWithOrchestration the call
// returns as soon as the run is accepted, otherwise stages execute inline and
// the call blocks until the document is stored or failed.
func (s *PipelineService) Submit(ctx context.Context, input SubmitInput) (*domain.Document, *orchestration.RunHandle, error) {
	ctx, span := telemetry.StartSpan(ctx, "PipelineService.Submit", telemetry.SpanAttributes{
		DocumentID: input.ID,
		Operation:  "submit",
	})
	defer span.End()

	if input.ID != "" {
		existing, err := s.documents.GetByID(ctx, input.ID)
		if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, nil, err
		}
		if err == nil {
			return s.resubmit(ctx, existing, input.RunWithOrchestration)
		}
	}

	doc, err := s.createDocument(ctx, &input)
	if err != nil {
		return nil, nil, err
	}

	handle, err := s.dispatchIngest(ctx, doc.ID, input.RunWithOrchestration)
	if err != nil {
		if input.RunWithOrchestration {
			return nil, nil, err
		}
		// Inline execution already recorded the failure on the document.
		doc, loadErr := s.documents.GetByID(ctx, doc.ID)
		if loadErr != nil {
			return nil, nil, loadErr
		}
		return doc, nil, err
	}

	if !input.RunWithOrchestration {
		doc, err = s.documents.GetByID(ctx, doc.ID)
		if err != nil {
			return nil, nil, err
		}
	}
	return doc, handle, nil
}

// resubmit applies the idempotent-resumption rules to an existing document.
func (s *PipelineService) resubmit(ctx context.Context, doc *domain.Document, durable bool) (*domain.Document, *orchestration.RunHandle, error) {
	switch doc.IngestionStatus {
	case domain.IngestionStatusStored:
		return doc, nil, nil
	case domain.IngestionStatusFailed:
		resetStatuses(doc)
		if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
			return nil, nil, err
		}
	}

	handle, err := s.dispatchIngest(ctx, doc.ID, durable)
	if err != nil {
		return nil, nil, err
	}
	if !durable {
		doc, err = s.documents.GetByID(ctx, doc.ID)
		if err != nil {
			return nil, nil, err
		}
	}
	return doc, handle, nil
}

// createDocument validates the submission, resolves collections, stores raw
// bytes, and persists the new document with every status pending.
func (s *PipelineService) createDocument(ctx context.Context, input *SubmitInput) (*domain.Document, error) {
	if len(input.Content) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	if input.ContentType == "" {
		input.ContentType = "text/plain"
	}
	if !s.parser.Supports(input.ContentType) {
		return nil, fmt.Errorf("content type %q: %w", input.ContentType, domain.ErrUnsupportedFormat)
	}

	id := input.ID
	if id == "" {
		id = s.uuidGen.NewString()
	}
	name := input.Name
	if name == "" {
		name = id
	}

	collectionIDs := input.CollectionIDs
	if len(collectionIDs) == 0 {
		def, err := s.collections.GetOrCreateDefault(ctx)
		if err != nil {
			return nil, err
		}
		collectionIDs = []string{def.ID}
	} else {
		for _, cid := range collectionIDs {
			if _, err := s.collections.GetByID(ctx, cid); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(id, name, input.ContentType, domain.DocumentSourceInline, now)
	doc.CollectionIDs = collectionIDs
	if input.Metadata != nil {
		doc.Metadata = input.Metadata
	}

	if s.rawStore != nil {
		if err := s.rawStore.Put(ctx, rawDocumentKey(id), input.Content, input.ContentType); err != nil {
			return nil, fmt.Errorf("store raw content: %w", err)
		}
		doc.Source = domain.DocumentSourceS3
	} else {
		doc.RawContent = input.Content
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// TriggerExtraction dispatches the extract-entities workflow. The document
// must already be stored; a terminal extraction status is reset first so
// explicit re-extraction is possible.
func (s *PipelineService) TriggerExtraction(ctx context.Context, documentID string, settings ExtractionSettings, durable bool) (*orchestration.RunHandle, error) {
	ctx, span := telemetry.StartSpan(ctx, "PipelineService.TriggerExtraction", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "trigger_extraction",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !domain.CanProceed(domain.StageExtraction, doc) {
		return nil, fmt.Errorf("ingestion status is %s: %w", doc.IngestionStatus, domain.ErrPreconditionFailed)
	}

	if domain.IsExtractionTerminal(doc.ExtractionStatus) {
		doc.ExtractionStatus = domain.KGExtractionStatusPending
		doc.ExtractionError = ""
		doc.EnrichmentStatus = domain.KGEnrichmentStatusPending
		doc.EnrichmentError = ""
		if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
			return nil, err
		}
	}

	return s.client(durable).RunWorkflow(ctx, domain.WorkflowExtractEntities,
		ExtractPayload{DocumentID: documentID, Settings: settings},
		&orchestration.RunOptions{DedupKey: domain.DocumentDedupKey(documentID, domain.StageExtraction)},
	)
}

// TriggerEnrichment dispatches the enrich-graph workflow. The document's
// extraction must already be extracted.
func (s *PipelineService) TriggerEnrichment(ctx context.Context, documentID string, durable bool) (*orchestration.RunHandle, error) {
	ctx, span := telemetry.StartSpan(ctx, "PipelineService.TriggerEnrichment", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "trigger_enrichment",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !domain.CanProceed(domain.StageEnrichment, doc) {
		return nil, fmt.Errorf("extraction status is %s: %w", doc.ExtractionStatus, domain.ErrPreconditionFailed)
	}

	if domain.IsEnrichmentTerminal(doc.EnrichmentStatus) {
		doc.EnrichmentStatus = domain.KGEnrichmentStatusPending
		doc.EnrichmentError = ""
		if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
			return nil, err
		}
	}

	return s.client(durable).RunWorkflow(ctx, domain.WorkflowEnrichGraph,
		EnrichPayload{DocumentID: documentID},
		&orchestration.RunOptions{DedupKey: domain.DocumentDedupKey(documentID, domain.StageEnrichment)},
	)
}

// Delete removes a document, its chunks, and its graph provenance. In-flight
// runs are cancelled first so no further stage callbacks land after the row
// is gone.
func (s *PipelineService) Delete(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "PipelineService.Delete", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if s.runs != nil {
		cancelled, err := s.runs.CancelActiveByDocument(ctx, documentID)
		if err != nil {
			return fmt.Errorf("cancel active runs: %w", err)
		}
		if len(cancelled) > 0 {
			log.Printf("pipeline: cancelled %d active runs for document %s", len(cancelled), documentID)
		}
	}
	if s.canceller != nil {
		s.canceller.CancelDocument(documentID)
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByDocument(ctx, documentID); err != nil {
			return err
		}
		if err := repos.Graph().DeleteByDocument(ctx, documentID); err != nil {
			return err
		}
		return repos.Documents().Delete(ctx, documentID)
	})
	if err != nil {
		return err
	}

	if s.rawStore != nil && doc.Source == domain.DocumentSourceS3 {
		if err := s.rawStore.Delete(ctx, rawDocumentKey(documentID)); err != nil {
			log.Printf("pipeline: failed to delete raw content for document %s: %v", documentID, err)
		}
	}
	return nil
}

// OnStageComplete applies one typed stage result to the document's status
// group. The workflow handlers deliver their results here so the transition
// logic is identical for in-process and external engines. Store completions
// are committed transactionally with the chunk writes and do not pass through
// this method.
func (s *PipelineService) OnStageComplete(ctx context.Context, result domain.StageResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := s.documents.GetByID(ctx, result.DocumentID)
	if err != nil {
		return err
	}

	switch result.Step {
	case domain.StepParse, domain.StepChunk, domain.StepEmbed, domain.StepStore:
		event, ok := ingestionEvent(result.Step, result.Outcome)
		if !ok {
			// Embed completion carries no transition of its own; the store
			// step finishes the embedding status.
			return nil
		}
		next, err := domain.TransitionIngestion(doc.IngestionStatus, event)
		if err != nil {
			return fmt.Errorf("ingestion %s on %s: %w", event, doc.IngestionStatus, err)
		}
		doc.IngestionStatus = next
		doc.IngestionError = result.Reason
	case domain.StepExtract:
		event := domain.KGExtractionEventComplete
		if result.Outcome == domain.StageOutcomeFailed {
			event = domain.KGExtractionEventFail
		}
		next, err := domain.TransitionExtraction(doc.ExtractionStatus, event)
		if err != nil {
			return fmt.Errorf("extraction %s on %s: %w", event, doc.ExtractionStatus, err)
		}
		doc.ExtractionStatus = next
		doc.ExtractionError = result.Reason
	case domain.StepEnrich:
		event := domain.KGEnrichmentEventComplete
		if result.Outcome == domain.StageOutcomeFailed {
			event = domain.KGEnrichmentEventFail
		}
		next, err := domain.TransitionEnrichment(doc.EnrichmentStatus, event)
		if err != nil {
			return fmt.Errorf("enrichment %s on %s: %w", event, doc.EnrichmentStatus, err)
		}
		doc.EnrichmentStatus = next
		doc.EnrichmentError = result.Reason
	default:
		return fmt.Errorf("unknown pipeline step %q", result.Step)
	}

	if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
		return err
	}
	log.Printf("pipeline: document %s step %s %s", result.DocumentID, result.Step, result.Outcome)
	return nil
}

// ingestionEvent maps a step result onto the ingestion status event it
// triggers. Embed completion returns no event: the status stays embedding
// until the store step commits.
func ingestionEvent(step domain.PipelineStep, outcome domain.StageOutcome) (domain.IngestionEvent, bool) {
	if outcome == domain.StageOutcomeFailed {
		return domain.IngestionEventFail, true
	}
	switch step {
	case domain.StepParse:
		return domain.IngestionEventParse, true
	case domain.StepChunk:
		return domain.IngestionEventChunk, true
	case domain.StepStore:
		return domain.IngestionEventStore, true
	}
	return "", false
}

func (s *PipelineService) client(durable bool) orchestration.Client {
	if durable {
		return s.orchestrator
	}
	return s.inline
}

func (s *PipelineService) dispatchIngest(ctx context.Context, documentID string, durable bool) (*orchestration.RunHandle, error) {
	return s.client(durable).RunWorkflow(ctx, domain.WorkflowIngestDocument,
		IngestPayload{DocumentID: documentID},
		&orchestration.RunOptions{DedupKey: domain.DocumentDedupKey(documentID, domain.StageIngestion)},
	)
}

// resetStatuses returns the whole status group to pending. Restarting
// ingestion invalidates everything derived from the previous content, so
// extraction and enrichment reset with it.
func resetStatuses(d *domain.Document) {
	d.IngestionStatus = domain.IngestionStatusPending
	d.IngestionError = ""
	d.ExtractionStatus = domain.KGExtractionStatusPending
	d.ExtractionError = ""
	d.EnrichmentStatus = domain.KGEnrichmentStatusPending
	d.EnrichmentError = ""
}

// rawDocumentKey is the blob-store key layout for submitted bytes.
func rawDocumentKey(documentID string) string {
	return "documents/" + documentID
}
