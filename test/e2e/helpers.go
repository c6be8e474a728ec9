//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestone-ai/lodestone/internal/api/handlers"
	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/jobs"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/parse"
	"github.com/lodestone-ai/lodestone/internal/repository"
	"github.com/lodestone-ai/lodestone/internal/server"
	"github.com/lodestone-ai/lodestone/internal/service"
	"github.com/lodestone-ai/lodestone/internal/storage"
	"github.com/lodestone-ai/lodestone/internal/testutil"
)

// testAPIToken is the static bearer token the test server is booted with.
const testAPIToken = "e2e-test-token"

// E2ETestEnv holds the full test environment for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	AuthToken    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a complete test environment: postgres with migrations,
// an S3-compatible object store for raw document bytes, and the API server
// with its run dispatcher. The server runs in-process against deterministic
// embedding and extraction fakes, so no OpenAI credentials are needed.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	t.Helper()
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	rustfsC := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        rustfsC.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to ensure bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	serverURL := fmt.Sprintf("http://localhost:%d", port)

	closer := startServer(t, pool, s3Client, port)

	env := &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      rustfsC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: closer,
		S3Client:     s3Client,
		AuthToken:    testAPIToken,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}

	waitForServer(t, env.HTTPClient, serverURL)
	return env
}

// Cleanup tears down the test environment
func (env *E2ETestEnv) Cleanup() {
	if env.ServerCloser != nil {
		env.ServerCloser()
	}
	if env.Pool != nil {
		env.Pool.Close()
	}
	if env.RustFSC != nil {
		_ = env.RustFSC.Terminate(env.Ctx)
	}
	if env.PostgresC != nil {
		_ = env.PostgresC.Terminate(env.Ctx)
	}
	if env.BinaryDir != "" {
		_ = os.RemoveAll(env.BinaryDir)
	}
}

// hashEmbedder derives embeddings from a SHA-256 of the text, so the suite
// never calls a real provider. Identical texts map to identical vectors,
// which keeps similarity ordering stable across the whole run.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		vec := make([]float32, 1536)
		for j := range vec {
			vec[j] = float32(sum[j%len(sum)])/255 - 0.5
		}
		out[i] = vec
	}
	return out, nil
}

// scriptedGraphLLM extracts the same small graph from every chunk. The suite
// asserts pipeline plumbing, not model quality, so a fixed graph is enough.
type scriptedGraphLLM struct{}

func (scriptedGraphLLM) ExtractGraph(_ context.Context, _ string) ([]domain.EntityCandidate, []domain.RelationshipCandidate, error) {
	entities := []domain.EntityCandidate{
		{Name: "Ada Lovelace", Category: "person", Description: "Wrote the first published program"},
		{Name: "Analytical Engine", Category: "machine", Description: "Proposed general-purpose mechanical computer"},
	}
	relationships := []domain.RelationshipCandidate{
		{Subject: "Ada Lovelace", Object: "Analytical Engine", Predicate: "programmed", Weight: 0.9},
	}
	return entities, relationships, nil
}

func (scriptedGraphLLM) SummarizeCommunity(_ context.Context, descriptions []string) (string, error) {
	return fmt.Sprintf("community of %d entities", len(descriptions)), nil
}

// startServer assembles the service stack the way serve does, with the fake
// embedder and extraction LLM swapped in, and starts the HTTP server plus the
// run dispatcher on a short poll interval so durable runs finish quickly.
func startServer(t *testing.T, pool *pgxpool.Pool, rawStore service.RawStore, port int) func() {
	t.Helper()

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	collectionRepo := repository.NewCollectionRepository(pool)
	graphRepo := repository.NewGraphRepository(pool)
	indexRepo := repository.NewIndexRepository(pool)
	runRepo := repository.NewWorkflowRunRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embedder := service.NewEmbeddingService(hashEmbedder{})
	llm := scriptedGraphLLM{}
	extractionSvc := service.NewExtractionService(chunkRepo, llm, embedder, txRunner)
	enrichmentSvc := service.NewEnrichmentService(graphRepo, llm, txRunner)

	registry := orchestration.NewRegistry()
	inline := orchestration.NewSimpleClient(registry)
	durable := orchestration.NewDurableClient(runRepo, 3)
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

	executor, err := jobs.NewRunExecutor(runRepo, registry, cancels, 2, jobs.DefaultClaimSize)
	if err != nil {
		t.Fatalf("failed to create run executor: %v", err)
	}
	dispatcher := jobs.NewDispatcher(executor, 100*time.Millisecond)

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	go dispatcher.Start(dispatchCtx)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: server.NewRouter(server.RouterConfig{
			AuthToken:       testAPIToken,
			DocumentHandler: handlers.NewDocumentHandler(pipelineSvc, documentSvc),
			IndexHandler:    handlers.NewIndexHandler(indexSvc),
			SearchHandler:   handlers.NewSearchHandler(searchSvc),
		}),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server stopped: %v", err)
		}
	}()

	return func() {
		cancelDispatch()
		dispatcher.Stop()
		executor.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// waitForServer polls the health endpoint until the server answers.
func waitForServer(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server at %s did not become ready", baseURL)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// BuildBinaries compiles the lodestoned and lodestone binaries into a temp dir
func (env *E2ETestEnv) BuildBinaries() {
	env.T.Helper()

	binDir, err := os.MkdirTemp("", "lodestone-bins-*")
	if err != nil {
		env.T.Fatalf("failed to create binary dir: %v", err)
	}
	env.BinaryDir = binDir

	repoRoot, err := filepath.Abs("../..")
	if err != nil {
		env.T.Fatalf("failed to resolve repo root: %v", err)
	}

	binaries := []struct {
		name string
		pkg  string
	}{
		{"lodestoned", "./cmd/lodestoned"},
		{"lodestone", "./cmd/lodestone"},
	}
	for _, b := range binaries {
		cmd := exec.Command("go", "build", "-o", filepath.Join(binDir, b.name), b.pkg)
		cmd.Dir = repoRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			env.T.Fatalf("failed to build %s: %v\n%s", b.name, err, out)
		}
	}
}

// RunLodestone executes the lodestone CLI with credentials pointing at the
// test server. The config directory is redirected into dir so nothing leaks
// into the user's real one.
func (env *E2ETestEnv) RunLodestone(dir string, args ...string) (string, error) {
	return env.runLodestone(dir, "", args...)
}

// RunLodestoneWithInput executes the lodestone CLI with the given stdin
func (env *E2ETestEnv) RunLodestoneWithInput(dir, input string, args ...string) (string, error) {
	return env.runLodestone(dir, input, args...)
}

func (env *E2ETestEnv) runLodestone(dir, input string, args ...string) (string, error) {
	if env.BinaryDir == "" {
		env.T.Fatal("BuildBinaries must be called before RunLodestone")
	}

	cmd := exec.Command(filepath.Join(env.BinaryDir, "lodestone"), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"LODESTONE_API_TOKEN="+env.AuthToken,
		"LODESTONE_API_URL="+env.ServerURL,
		"XDG_CONFIG_HOME="+filepath.Join(dir, ".config"),
	)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunLodestoned executes the lodestoned admin binary against the test
// database. Used for the scan command; serve stays in-process.
func (env *E2ETestEnv) RunLodestoned(args ...string) (string, error) {
	if env.BinaryDir == "" {
		env.T.Fatal("BuildBinaries must be called before RunLodestoned")
	}

	cmd := exec.Command(filepath.Join(env.BinaryDir, "lodestoned"), args...)
	cmd.Env = append(os.Environ(),
		"LODESTONE_DB_HOST="+env.PostgresC.Host,
		"LODESTONE_DB_PORT="+env.PostgresC.Port,
		"LODESTONE_DB_USER="+env.PostgresC.User,
		"LODESTONE_DB_PASSWORD="+env.PostgresC.Password,
		"LODESTONE_DB_NAME="+env.PostgresC.Database,
	)

	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse mirrors the server's response envelope
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

// Get makes a GET request to the API
func (env *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return env.doRequest("GET", path, nil, token)
}

// Post makes a POST request to the API
func (env *E2ETestEnv) Post(path string, body interface{}, token string) (*APIResponse, error) {
	return env.doRequest("POST", path, body, token)
}

// Delete makes a DELETE request to the API
func (env *E2ETestEnv) Delete(path, token string) (*APIResponse, error) {
	return env.doRequest("DELETE", path, nil, token)
}

func (env *E2ETestEnv) doRequest(method, path string, body interface{}, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.ServerURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp APIResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response (status %d): %s", resp.StatusCode, respBody)
		}
	}

	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// DocumentPayload is the slice of the document response the suite asserts on.
type DocumentPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ContentType      string `json:"content_type"`
	Source           string `json:"source"`
	IngestionStatus  string `json:"ingestion_status"`
	IngestionError   string `json:"ingestion_error"`
	ExtractionStatus string `json:"extraction_status"`
	ExtractionError  string `json:"extraction_error"`
	EnrichmentStatus string `json:"enrichment_status"`
	EnrichmentError  string `json:"enrichment_error"`
}

// GetDocument fetches one document through the API
func (env *E2ETestEnv) GetDocument(id string) (*DocumentPayload, error) {
	resp, err := env.Get("/v1/documents/"+id, env.AuthToken)
	if err != nil {
		return nil, err
	}
	var doc DocumentPayload
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

// WaitForIngestion polls the document until ingestion reaches want or the
// timeout elapses. Fails the test on timeout.
func (env *E2ETestEnv) WaitForIngestion(id, want string, timeout time.Duration) *DocumentPayload {
	env.T.Helper()
	var last *DocumentPayload
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		doc, err := env.GetDocument(id)
		if err == nil {
			last = doc
			if doc.IngestionStatus == want {
				return doc
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	if last != nil {
		env.T.Fatalf("document %s ingestion never reached %q (last status %q, error %q)",
			id, want, last.IngestionStatus, last.IngestionError)
	}
	env.T.Fatalf("document %s ingestion never reached %q", id, want)
	return nil
}

// WaitForExtraction polls the document until extraction reaches want.
func (env *E2ETestEnv) WaitForExtraction(id, want string, timeout time.Duration) *DocumentPayload {
	env.T.Helper()
	var last *DocumentPayload
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		doc, err := env.GetDocument(id)
		if err == nil {
			last = doc
			if doc.ExtractionStatus == want {
				return doc
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	if last != nil {
		env.T.Fatalf("document %s extraction never reached %q (last status %q, error %q)",
			id, want, last.ExtractionStatus, last.ExtractionError)
	}
	env.T.Fatalf("document %s extraction never reached %q", id, want)
	return nil
}

// SHA256Sum computes the SHA256 hash of data as a hex string
func SHA256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
