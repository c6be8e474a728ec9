package domain

// IngestionStatus tracks a document through parse, chunk, embed, and store.
type IngestionStatus string

const (
	IngestionStatusPending   IngestionStatus = "pending"
	IngestionStatusParsing   IngestionStatus = "parsing"
	IngestionStatusChunking  IngestionStatus = "chunking"
	IngestionStatusEmbedding IngestionStatus = "embedding"
	IngestionStatusStored    IngestionStatus = "stored"
	IngestionStatusFailed    IngestionStatus = "failed"
)

// KGExtractionStatus tracks entity/relationship extraction. Only meaningful
// once ingestion has reached stored.
type KGExtractionStatus string

const (
	KGExtractionStatusPending    KGExtractionStatus = "pending"
	KGExtractionStatusExtracting KGExtractionStatus = "extracting"
	KGExtractionStatusExtracted  KGExtractionStatus = "extracted"
	KGExtractionStatusFailed     KGExtractionStatus = "failed"
)

// KGEnrichmentStatus tracks graph enrichment. Only meaningful once extraction
// has reached extracted.
type KGEnrichmentStatus string

const (
	KGEnrichmentStatusPending   KGEnrichmentStatus = "pending"
	KGEnrichmentStatusEnriching KGEnrichmentStatus = "enriching"
	KGEnrichmentStatusEnriched  KGEnrichmentStatus = "enriched"
	KGEnrichmentStatusFailed    KGEnrichmentStatus = "failed"
)

// Stage identifies one of the three pipeline phases a document moves through.
type Stage string

const (
	StageIngestion  Stage = "ingestion"
	StageExtraction Stage = "extraction"
	StageEnrichment Stage = "enrichment"
)

// IngestionEvent advances an IngestionStatus.
type IngestionEvent string

const (
	IngestionEventStart IngestionEvent = "start" // pending -> parsing
	IngestionEventParse IngestionEvent = "parse" // parsing -> chunking
	IngestionEventChunk IngestionEvent = "chunk" // chunking -> embedding
	IngestionEventStore IngestionEvent = "store" // embedding -> stored
	IngestionEventFail  IngestionEvent = "fail"  // any non-terminal -> failed
	IngestionEventReset IngestionEvent = "reset" // stored or failed -> pending
)

// KGExtractionEvent advances a KGExtractionStatus.
type KGExtractionEvent string

const (
	KGExtractionEventStart    KGExtractionEvent = "start"
	KGExtractionEventComplete KGExtractionEvent = "complete"
	KGExtractionEventFail     KGExtractionEvent = "fail"
	KGExtractionEventReset    KGExtractionEvent = "reset"
)

// KGEnrichmentEvent advances a KGEnrichmentStatus.
type KGEnrichmentEvent string

const (
	KGEnrichmentEventStart    KGEnrichmentEvent = "start"
	KGEnrichmentEventComplete KGEnrichmentEvent = "complete"
	KGEnrichmentEventFail     KGEnrichmentEvent = "fail"
	KGEnrichmentEventReset    KGEnrichmentEvent = "reset"
)

// TransitionIngestion computes the next ingestion status for an event. It has
// no side effects; callers persist the result. Events from a terminal status
// other than an explicit reset return ErrAlreadyTerminal; events that do not
// apply to the current status return ErrInvalidTransition.
func TransitionIngestion(current IngestionStatus, event IngestionEvent) (IngestionStatus, error) {
	if event == IngestionEventReset {
		return IngestionStatusPending, nil
	}
	if IsIngestionTerminal(current) {
		return current, ErrAlreadyTerminal
	}
	if event == IngestionEventFail {
		return IngestionStatusFailed, nil
	}

	switch {
	case current == IngestionStatusPending && event == IngestionEventStart:
		return IngestionStatusParsing, nil
	case current == IngestionStatusParsing && event == IngestionEventParse:
		return IngestionStatusChunking, nil
	case current == IngestionStatusChunking && event == IngestionEventChunk:
		return IngestionStatusEmbedding, nil
	case current == IngestionStatusEmbedding && event == IngestionEventStore:
		return IngestionStatusStored, nil
	}
	return current, ErrInvalidTransition
}

// TransitionExtraction computes the next extraction status for an event.
func TransitionExtraction(current KGExtractionStatus, event KGExtractionEvent) (KGExtractionStatus, error) {
	if event == KGExtractionEventReset {
		return KGExtractionStatusPending, nil
	}
	if IsExtractionTerminal(current) {
		return current, ErrAlreadyTerminal
	}
	if event == KGExtractionEventFail {
		return KGExtractionStatusFailed, nil
	}

	switch {
	case current == KGExtractionStatusPending && event == KGExtractionEventStart:
		return KGExtractionStatusExtracting, nil
	case current == KGExtractionStatusExtracting && event == KGExtractionEventComplete:
		return KGExtractionStatusExtracted, nil
	}
	return current, ErrInvalidTransition
}

// TransitionEnrichment computes the next enrichment status for an event.
func TransitionEnrichment(current KGEnrichmentStatus, event KGEnrichmentEvent) (KGEnrichmentStatus, error) {
	if event == KGEnrichmentEventReset {
		return KGEnrichmentStatusPending, nil
	}
	if IsEnrichmentTerminal(current) {
		return current, ErrAlreadyTerminal
	}
	if event == KGEnrichmentEventFail {
		return KGEnrichmentStatusFailed, nil
	}

	switch {
	case current == KGEnrichmentStatusPending && event == KGEnrichmentEventStart:
		return KGEnrichmentStatusEnriching, nil
	case current == KGEnrichmentStatusEnriching && event == KGEnrichmentEventComplete:
		return KGEnrichmentStatusEnriched, nil
	}
	return current, ErrInvalidTransition
}

// IsIngestionTerminal reports whether an ingestion status accepts no further
// events other than reset.
func IsIngestionTerminal(s IngestionStatus) bool {
	return s == IngestionStatusStored || s == IngestionStatusFailed
}

// IsExtractionTerminal reports whether an extraction status is terminal.
func IsExtractionTerminal(s KGExtractionStatus) bool {
	return s == KGExtractionStatusExtracted || s == KGExtractionStatusFailed
}

// IsEnrichmentTerminal reports whether an enrichment status is terminal.
func IsEnrichmentTerminal(s KGEnrichmentStatus) bool {
	return s == KGEnrichmentStatusEnriched || s == KGEnrichmentStatusFailed
}

// CanProceed reports whether a document satisfies the predecessor-stage
// requirement for the given stage: extraction requires ingestion to be
// stored, enrichment requires extraction to be extracted.
func CanProceed(stage Stage, d *Document) bool {
	if d == nil {
		return false
	}
	switch stage {
	case StageIngestion:
		return true
	case StageExtraction:
		return d.IngestionStatus == IngestionStatusStored
	case StageEnrichment:
		return d.ExtractionStatus == KGExtractionStatusExtracted
	}
	return false
}

// isValidIngestionStatus checks if an IngestionStatus is valid
func isValidIngestionStatus(s IngestionStatus) bool {
	switch s {
	case IngestionStatusPending, IngestionStatusParsing, IngestionStatusChunking,
		IngestionStatusEmbedding, IngestionStatusStored, IngestionStatusFailed:
		return true
	}
	return false
}

// isValidExtractionStatus checks if a KGExtractionStatus is valid
func isValidExtractionStatus(s KGExtractionStatus) bool {
	switch s {
	case KGExtractionStatusPending, KGExtractionStatusExtracting,
		KGExtractionStatusExtracted, KGExtractionStatusFailed:
		return true
	}
	return false
}

// isValidEnrichmentStatus checks if a KGEnrichmentStatus is valid
func isValidEnrichmentStatus(s KGEnrichmentStatus) bool {
	switch s {
	case KGEnrichmentStatusPending, KGEnrichmentStatusEnriching,
		KGEnrichmentStatusEnriched, KGEnrichmentStatusFailed:
		return true
	}
	return false
}
