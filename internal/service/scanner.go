package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/pagination"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// DefaultScanBatchSize is the catalogue page size used by scans.
const DefaultScanBatchSize = 100

// ScanPredicate selects documents by their failure pattern.
type ScanPredicate func(d *domain.Document) bool

// BothFailed matches documents where ingestion and extraction both failed.
func BothFailed(d *domain.Document) bool {
	return d.IngestionStatus == domain.IngestionStatusFailed &&
		d.ExtractionStatus == domain.KGExtractionStatusFailed
}

// IngestionOnlyFailed matches documents where ingestion failed but
// extraction did not.
func IngestionOnlyFailed(d *domain.Document) bool {
	return d.IngestionStatus == domain.IngestionStatusFailed &&
		d.ExtractionStatus != domain.KGExtractionStatusFailed
}

// ExtractionOnlyFailed matches documents where ingestion succeeded but
// extraction failed. These are the matches a corrective re-run can actually
// fix.
func ExtractionOnlyFailed(d *domain.Document) bool {
	return d.IngestionStatus != domain.IngestionStatusFailed &&
		d.ExtractionStatus == domain.KGExtractionStatusFailed
}

// ParseScanPredicate resolves a predicate by its CLI name.
func ParseScanPredicate(name string) (ScanPredicate, error) {
	switch name {
	case "both-failed", "all-failed":
		return BothFailed, nil
	case "ingestion-failed":
		return IngestionOnlyFailed, nil
	case "extraction-failed":
		return ExtractionOnlyFailed, nil
	}
	return nil, fmt.Errorf("unknown scan filter %q (want all-failed, ingestion-failed, or extraction-failed)", name)
}

// ExtractionTrigger is the slice of the pipeline coordinator the scanner
// drives corrections through.
type ExtractionTrigger interface {
	TriggerExtraction(ctx context.Context, documentID string, settings ExtractionSettings, durable bool) (*orchestration.RunHandle, error)
}

// ScanReport tallies one corrective scan.
type ScanReport struct {
	TotalScanned int
	Matching     int
	Processed    int
	Succeeded    int
	Failed       int
}

// ScannerService audits the document catalogue for failure patterns and
// resubmits matches through the orchestration contract.
type ScannerService struct {
	documents DocumentRepositoryInterface
	trigger   ExtractionTrigger
	batchSize int
}

// NewScannerService creates a new ScannerService instance
func NewScannerService(documents DocumentRepositoryInterface, trigger ExtractionTrigger) *ScannerService {
	return &ScannerService{documents: documents, trigger: trigger, batchSize: DefaultScanBatchSize}
}

// NewScannerServiceWithBatchSize creates a ScannerService with a custom page size
func NewScannerServiceWithBatchSize(documents DocumentRepositoryInterface, trigger ExtractionTrigger, batchSize int) *ScannerService {
	s := NewScannerService(documents, trigger)
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	return s
}

// Scan pages through the whole catalogue and streams every document matching
// the predicate to visit. The visitor's error stops the scan.
func (s *ScannerService) Scan(ctx context.Context, predicate ScanPredicate, visit func(*domain.Document) error) (int, error) {
	scanned := 0
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return scanned, err
		}
		docs, total, err := s.documents.List(ctx, pagination.Page{Offset: offset, Limit: s.batchSize})
		if err != nil {
			return scanned, err
		}
		for _, doc := range docs {
			scanned++
			if !predicate(doc) {
				continue
			}
			if err := visit(doc); err != nil {
				return scanned, err
			}
		}
		offset += len(docs)
		if len(docs) == 0 || int64(offset) >= total {
			return scanned, nil
		}
	}
}

// ScanAndCorrect scans with the predicate and dispatches a corrective
// extraction for every match, with deduplication on and durable execution.
// A single document's failure never aborts the scan; failures are tallied
// and folded into one aggregate error at the end.
func (s *ScannerService) ScanAndCorrect(ctx context.Context, predicate ScanPredicate) (*ScanReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "ScannerService.ScanAndCorrect", telemetry.SpanAttributes{
		Operation: "scan_and_correct",
	})
	defer span.End()

	report := &ScanReport{}
	var failures []error

	scanned, err := s.Scan(ctx, predicate, func(doc *domain.Document) error {
		report.Matching++
		report.Processed++

		_, err := s.trigger.TriggerExtraction(ctx, doc.ID,
			ExtractionSettings{AutomaticDeduplication: true}, true)
		switch {
		case err == nil:
			report.Succeeded++
		case errors.Is(err, domain.ErrDuplicateRun):
			// A correction is already in flight; nothing to do.
			report.Succeeded++
		default:
			report.Failed++
			failures = append(failures, fmt.Errorf("document %s: %w", doc.ID, err))
			log.Printf("scanner: correction for document %s failed: %v", doc.ID, err)
		}
		return nil
	})
	report.TotalScanned = scanned
	if err != nil {
		return report, err
	}

	if len(failures) > 0 {
		return report, fmt.Errorf("%d of %d corrections failed, first: %w", len(failures), report.Processed, failures[0])
	}
	return report, nil
}
