package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodestone-ai/lodestone/internal/config"
	"github.com/lodestone-ai/lodestone/internal/database"
	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/repository"
	"github.com/lodestone-ai/lodestone/internal/service"
)

// ScanCmd returns the scan command
func ScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the document catalogue for failed documents",
		Long: `Scan pages through every document and reports those matching a failure
filter. With --trigger it also dispatches a corrective extraction run for
each match; the runs are executed by the serve process's dispatcher.`,
		RunE: runScan,
	}

	cmd.Flags().String("filter", "ingestion-failed", "Failure filter: all-failed, ingestion-failed, or extraction-failed")
	cmd.Flags().Bool("trigger", false, "Dispatch a corrective extraction for each match")
	cmd.Flags().Int("batch-size", service.DefaultScanBatchSize, "Catalogue page size")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filterName, _ := cmd.Flags().GetString("filter")
	trigger, _ := cmd.Flags().GetBool("trigger")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	predicate, err := service.ParseScanPredicate(filterName)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	documentRepo := repository.NewDocumentRepository(pool)
	runRepo := repository.NewWorkflowRunRepository(pool)

	// Corrections are enqueued durably and picked up by the serve process;
	// this command never executes workflows itself, so the registry stays
	// empty and no OpenAI or S3 configuration is needed.
	registry := orchestration.NewRegistry()
	pipeline := service.NewPipelineService(service.PipelineParams{
		Documents:    documentRepo,
		Runs:         runRepo,
		Orchestrator: orchestration.NewDurableClient(runRepo, int32(cfg.RunMaxAttempts)),
		Inline:       orchestration.NewSimpleClient(registry),
	})

	scanner := service.NewScannerServiceWithBatchSize(documentRepo, pipeline, batchSize)

	if !trigger {
		matching := 0
		scanned, err := scanner.Scan(ctx, predicate, func(d *domain.Document) error {
			matching++
			fmt.Printf("%s  ingestion=%s  extraction=%s  %s\n", d.ID, d.IngestionStatus, d.ExtractionStatus, d.Name)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("scanned %d documents, %d matching filter %q\n", scanned, matching, filterName)
		return nil
	}

	report, err := scanner.ScanAndCorrect(ctx, predicate)
	if report != nil {
		fmt.Printf("total_processed:     %d\n", report.TotalScanned)
		fmt.Printf("matching_documents:  %d\n", report.Matching)
		fmt.Printf("successful:          %d\n", report.Succeeded)
		fmt.Printf("failed:              %d\n", report.Failed)
	}
	if err != nil {
		return err
	}
	return nil
}
