package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// HandleIngestDocument executes the ingest-document workflow: parse, chunk,
// embed, store. A document already stored is a committed run and returns
// immediately; any other starting status is restarted from scratch, since no
// stage before store leaves durable artifacts.
func (s *PipelineService) HandleIngestDocument(ctx context.Context, payload []byte) error {
	var p IngestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "malformed ingest payload", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "PipelineService.HandleIngestDocument", telemetry.SpanAttributes{
		DocumentID: p.DocumentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, p.DocumentID)
	if err != nil {
		return err
	}
	if doc.IngestionStatus == domain.IngestionStatusStored {
		log.Printf("pipeline: document %s already stored, skipping ingest", doc.ID)
		return nil
	}
	if doc.IngestionStatus != domain.IngestionStatusPending {
		resetStatuses(doc)
		if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
			return err
		}
	}

	// pending -> parsing, guarded so a concurrent writer loses the race
	// instead of producing two active executions.
	doc.IngestionStatus = domain.IngestionStatusParsing
	ok, err := s.documents.UpdateStatusesIf(ctx, doc, domain.IngestionStatusPending)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("document %s: status changed concurrently", doc.ID)
	}

	raw, err := s.loadRawContent(ctx, doc)
	if err != nil {
		return s.failStep(ctx, doc.ID, domain.StepParse, err)
	}

	segments, err := s.parser.Parse(raw, doc.ContentType)
	if err != nil {
		return s.failStep(ctx, doc.ID, domain.StepParse, err)
	}
	if len(segments) == 0 {
		return s.failStep(ctx, doc.ID, domain.StepParse, domain.ErrEmptyDocument)
	}
	if err := s.completeStep(ctx, doc.ID, domain.StepParse); err != nil {
		return err
	}

	texts := chunkSegments(segments, s.chunkCfg)
	if len(texts) == 0 {
		return s.failStep(ctx, doc.ID, domain.StepChunk, domain.ErrEmptyDocument)
	}
	if err := s.completeStep(ctx, doc.ID, domain.StepChunk); err != nil {
		return err
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return s.failStep(ctx, doc.ID, domain.StepEmbed, err)
	}

	chunks := make([]*domain.Chunk, 0, len(texts))
	for i, vec := range vectors {
		if vec == nil {
			log.Printf("pipeline: document %s chunk %d rejected by embedding provider, dropping", doc.ID, i)
			continue
		}
		chunks = append(chunks, &domain.Chunk{
			ID:         s.uuidGen.NewString(),
			DocumentID: doc.ID,
			Ordinal:    len(chunks),
			Text:       texts[i],
			Embedding:  vec,
		})
	}
	if len(chunks) == 0 {
		return s.failStep(ctx, doc.ID, domain.StepEmbed, fmt.Errorf("no chunk survived embedding: %w", domain.ErrInvalidInput))
	}

	// The store step commits chunks and the stored status in one
	// transaction, so a crash can never leave chunks behind a non-stored
	// document.
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByDocument(ctx, doc.ID); err != nil {
			return err
		}
		if err := repos.Chunks().CreateBatch(ctx, chunks); err != nil {
			return err
		}
		next, err := domain.TransitionIngestion(domain.IngestionStatusEmbedding, domain.IngestionEventStore)
		if err != nil {
			return err
		}
		doc.IngestionStatus = next
		doc.IngestionError = ""
		return repos.Documents().UpdateStatuses(ctx, doc)
	})
	if err != nil {
		return s.failStep(ctx, doc.ID, domain.StepStore, err)
	}

	log.Printf("pipeline: document %s step %s %s (%d chunks)", doc.ID, domain.StepStore, domain.StageOutcomeCompleted, len(chunks))
	return nil
}

// HandleExtractEntities executes the extract-entities workflow over a stored
// document's chunks.
func (s *PipelineService) HandleExtractEntities(ctx context.Context, payload []byte) error {
	var p ExtractPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "malformed extract payload", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "PipelineService.HandleExtractEntities", telemetry.SpanAttributes{
		DocumentID: p.DocumentID,
		Operation:  "extract",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, p.DocumentID)
	if err != nil {
		return err
	}
	if !domain.CanProceed(domain.StageExtraction, doc) {
		return fmt.Errorf("ingestion status is %s: %w", doc.IngestionStatus, domain.ErrPreconditionFailed)
	}
	if doc.ExtractionStatus == domain.KGExtractionStatusExtracted {
		log.Printf("pipeline: document %s already extracted, skipping", doc.ID)
		return nil
	}
	if doc.ExtractionStatus != domain.KGExtractionStatusPending {
		doc.ExtractionStatus = domain.KGExtractionStatusPending
		doc.ExtractionError = ""
		if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
			return err
		}
	}

	next, err := domain.TransitionExtraction(doc.ExtractionStatus, domain.KGExtractionEventStart)
	if err != nil {
		return err
	}
	doc.ExtractionStatus = next
	if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
		return err
	}

	if err := s.extractor.ExtractDocument(ctx, doc, p.Settings); err != nil {
		return s.failStep(ctx, doc.ID, domain.StepExtract, err)
	}
	return s.completeStep(ctx, doc.ID, domain.StepExtract)
}

// HandleEnrichGraph executes the enrich-graph workflow over the graph of the
// document's primary collection.
func (s *PipelineService) HandleEnrichGraph(ctx context.Context, payload []byte) error {
	var p EnrichPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "malformed enrich payload", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "PipelineService.HandleEnrichGraph", telemetry.SpanAttributes{
		DocumentID: p.DocumentID,
		Operation:  "enrich",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, p.DocumentID)
	if err != nil {
		return err
	}
	if !domain.CanProceed(domain.StageEnrichment, doc) {
		return fmt.Errorf("extraction status is %s: %w", doc.ExtractionStatus, domain.ErrPreconditionFailed)
	}
	if doc.EnrichmentStatus == domain.KGEnrichmentStatusEnriched {
		log.Printf("pipeline: document %s already enriched, skipping", doc.ID)
		return nil
	}
	if doc.EnrichmentStatus != domain.KGEnrichmentStatusPending {
		doc.EnrichmentStatus = domain.KGEnrichmentStatusPending
		doc.EnrichmentError = ""
		if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
			return err
		}
	}
	if len(doc.CollectionIDs) == 0 {
		return s.failStep(ctx, doc.ID, domain.StepEnrich, fmt.Errorf("document %s has no collection", doc.ID))
	}

	next, err := domain.TransitionEnrichment(doc.EnrichmentStatus, domain.KGEnrichmentEventStart)
	if err != nil {
		return err
	}
	doc.EnrichmentStatus = next
	if err := s.documents.UpdateStatuses(ctx, doc); err != nil {
		return err
	}

	count, err := s.enricher.EnrichCollection(ctx, doc.CollectionIDs[0])
	if err != nil {
		return s.failStep(ctx, doc.ID, domain.StepEnrich, err)
	}
	log.Printf("pipeline: collection %s enriched with %d communities", doc.CollectionIDs[0], count)
	return s.completeStep(ctx, doc.ID, domain.StepEnrich)
}

// loadRawContent resolves the document's submitted bytes from wherever
// createDocument put them.
func (s *PipelineService) loadRawContent(ctx context.Context, doc *domain.Document) ([]byte, error) {
	if doc.Source == domain.DocumentSourceS3 {
		if s.rawStore == nil {
			return nil, fmt.Errorf("document %s stored in s3 but no raw store configured", doc.ID)
		}
		raw, err := s.rawStore.Get(ctx, rawDocumentKey(doc.ID))
		if err != nil {
			return nil, fmt.Errorf("load raw content: %w", err)
		}
		return raw, nil
	}
	if len(doc.RawContent) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	return doc.RawContent, nil
}

func (s *PipelineService) completeStep(ctx context.Context, documentID string, step domain.PipelineStep) error {
	return s.OnStageComplete(ctx, domain.StageResult{
		DocumentID: documentID,
		Step:       step,
		Outcome:    domain.StageOutcomeCompleted,
	})
}

// failStep records the failure on the status group and hands the original
// error back so the run queue can classify it. Status bookkeeping failures
// take precedence since they mean the record itself is unreachable.
func (s *PipelineService) failStep(ctx context.Context, documentID string, step domain.PipelineStep, cause error) error {
	if err := s.OnStageComplete(ctx, domain.StageResult{
		DocumentID: documentID,
		Step:       step,
		Outcome:    domain.StageOutcomeFailed,
		Reason:     cause.Error(),
	}); err != nil {
		return err
	}
	return cause
}
