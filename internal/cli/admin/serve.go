package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/lodestone-ai/lodestone/internal/api/handlers"
	"github.com/lodestone-ai/lodestone/internal/config"
	"github.com/lodestone-ai/lodestone/internal/database"
	"github.com/lodestone-ai/lodestone/internal/jobs"
	"github.com/lodestone-ai/lodestone/internal/openai"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/parse"
	"github.com/lodestone-ai/lodestone/internal/repository"
	"github.com/lodestone-ai/lodestone/internal/server"
	"github.com/lodestone-ai/lodestone/internal/service"
	"github.com/lodestone-ai/lodestone/internal/storage"
	"github.com/lodestone-ai/lodestone/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and run dispatcher",
		Long:  "Start the lodestone API server and the durable workflow dispatcher",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required: the ingestion pipeline cannot embed or extract without it")
	}

	if cfg.HasSentry() {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	dbCfg := cfg.DatabaseConfig()
	pool, err := database.NewPool(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(dbCfg.DSN()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	collectionRepo := repository.NewCollectionRepository(pool)
	graphRepo := repository.NewGraphRepository(pool)
	indexRepo := repository.NewIndexRepository(pool)
	runRepo := repository.NewWorkflowRunRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var rawStore service.RawStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		rawStore = s3Client
	} else {
		log.Println("S3 not configured, raw documents stored inline")
	}

	embeddingClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	embedder := service.NewEmbeddingService(embeddingClient)
	extractor := openai.NewExtractor(cfg.OpenAIAPIKey, cfg.ChatModel)

	extractionSvc := service.NewExtractionService(chunkRepo, extractor, embedder, txRunner)
	enrichmentSvc := service.NewEnrichmentService(graphRepo, extractor, txRunner)

	registry := orchestration.NewRegistry()
	inline := orchestration.NewSimpleClient(registry)
	durable := orchestration.NewDurableClient(runRepo, int32(cfg.RunMaxAttempts))
	cancels := jobs.NewCancelRegistry()

	pipelineSvc := service.NewPipelineService(service.PipelineParams{
		Documents:    documentRepo,
		Chunks:       chunkRepo,
		Collections:  collectionRepo,
		Runs:         runRepo,
		TxRunner:     txRunner,
		Parser:       parse.NewRegistry(),
		Embedder:     embedder,
		Extractor:    extractionSvc,
		Enricher:     enrichmentSvc,
		RawStore:     rawStore,
		Orchestrator: durable,
		Inline:       inline,
		Canceller:    cancels,
	})
	pipelineSvc.RegisterWorkflows(registry)

	indexSvc := service.NewIndexService(indexRepo, durable, inline)
	indexSvc.RegisterWorkflows(registry)

	documentSvc := service.NewDocumentService(documentRepo, chunkRepo)
	searchSvc := service.NewSearchService(chunkRepo, embedder)

	executor, err := jobs.NewRunExecutor(runRepo, registry, cancels, cfg.WorkerPoolSize, jobs.DefaultClaimSize)
	if err != nil {
		return fmt.Errorf("failed to create run executor: %w", err)
	}
	dispatcher := jobs.NewDispatcher(executor, cfg.WorkerPollInterval)
	go dispatcher.Start(ctx)
	log.Println("run dispatcher started")

	routerCfg := server.RouterConfig{
		AuthToken:       cfg.APIToken,
		DocumentHandler: handlers.NewDocumentHandler(pipelineSvc, documentSvc),
		IndexHandler:    handlers.NewIndexHandler(indexSvc),
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	// Stop claiming new runs, then interrupt in-flight ones. Interrupted runs
	// reschedule themselves back to pending for the next boot.
	dispatcher.Stop()
	executor.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
