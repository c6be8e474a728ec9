package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lodestone-ai/lodestone/internal/domain"
	"github.com/lodestone-ai/lodestone/internal/orchestration"
	"github.com/lodestone-ai/lodestone/internal/pagination"
)

// In-memory fakes for the coordinator and stage service tests. They mirror
// just enough repository behavior (copy-on-read, CAS on ingestion status,
// cascade deletes) for the services to run end to end without Postgres.

type seqUUID struct {
	mu sync.Mutex
	n  int
}

func (g *seqUUID) NewString() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// ---- documents ----

type fakeDocumentRepo struct {
	mu    sync.Mutex
	docs  map[string]*domain.Document
	order []string

	listErr error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[string]*domain.Document)}
}

func copyDocument(d *domain.Document) *domain.Document {
	c := *d
	c.CollectionIDs = append([]string(nil), d.CollectionIDs...)
	c.RawContent = append([]byte(nil), d.RawContent...)
	if d.Metadata != nil {
		c.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func applyStatuses(dst, src *domain.Document) {
	dst.IngestionStatus = src.IngestionStatus
	dst.IngestionError = src.IngestionError
	dst.ExtractionStatus = src.ExtractionStatus
	dst.ExtractionError = src.ExtractionError
	dst.EnrichmentStatus = src.EnrichmentStatus
	dst.EnrichmentError = src.EnrichmentError
	dst.UpdatedAt = src.UpdatedAt
}

func (r *fakeDocumentRepo) Create(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[d.ID]; ok {
		return fmt.Errorf("document %s already exists", d.ID)
	}
	r.docs[d.ID] = copyDocument(d)
	r.order = append(r.order, d.ID)
	return nil
}

func (r *fakeDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return copyDocument(d), nil
}

func (r *fakeDocumentRepo) List(_ context.Context, page pagination.Page) ([]*domain.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	total := int64(len(r.order))
	if page.Offset >= len(r.order) {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(r.order) {
		end = len(r.order)
	}
	out := make([]*domain.Document, 0, end-page.Offset)
	for _, id := range r.order[page.Offset:end] {
		out = append(out, copyDocument(r.docs[id]))
	}
	return out, total, nil
}

func (r *fakeDocumentRepo) UpdateStatuses(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[d.ID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	applyStatuses(stored, d)
	return nil
}

func (r *fakeDocumentRepo) UpdateStatusesIf(_ context.Context, d *domain.Document, expected domain.IngestionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[d.ID]
	if !ok {
		return false, domain.ErrDocumentNotFound
	}
	if stored.IngestionStatus != expected {
		return false, nil
	}
	applyStatuses(stored, d)
	return true, nil
}

func (r *fakeDocumentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(r.docs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// setStatuses mutates the stored row directly, bypassing the coordinator,
// for seeding precondition states.
func (r *fakeDocumentRepo) setStatuses(id string, mutate func(*domain.Document)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		mutate(d)
	}
}

// ---- chunks ----

type fakeChunkRepo struct {
	mu     sync.Mutex
	chunks []*domain.Chunk

	searchChunks []*domain.Chunk
	searchScores []float64
	searchErr    error
	lastLimit    int
	lastVector   []float32
}

func (r *fakeChunkRepo) CreateBatch(_ context.Context, chunks []*domain.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range chunks {
		c := *ch
		r.chunks = append(r.chunks, &c)
	}
	return nil
}

func (r *fakeChunkRepo) ListByDocument(_ context.Context, documentID string) ([]*domain.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Chunk
	for _, ch := range r.chunks {
		if ch.DocumentID == documentID {
			c := *ch
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (r *fakeChunkRepo) CountByDocument(_ context.Context, documentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ch := range r.chunks {
		if ch.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (r *fakeChunkRepo) DeleteByDocument(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.chunks[:0]
	for _, ch := range r.chunks {
		if ch.DocumentID != documentID {
			kept = append(kept, ch)
		}
	}
	r.chunks = kept
	return nil
}

func (r *fakeChunkRepo) SearchByEmbedding(_ context.Context, embedding []float32, limit int) ([]*domain.Chunk, []float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastVector = embedding
	r.lastLimit = limit
	if r.searchErr != nil {
		return nil, nil, r.searchErr
	}
	return r.searchChunks, r.searchScores, nil
}

// ---- collections ----

type fakeCollectionRepo struct {
	mu          sync.Mutex
	collections map[string]*domain.Collection
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{collections: make(map[string]*domain.Collection)}
}

func (r *fakeCollectionRepo) GetByID(_ context.Context, id string) (*domain.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", id, domain.ErrCollectionNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCollectionRepo) GetOrCreateDefault(_ context.Context) (*domain.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.collections {
		if c.Name == "default" {
			cp := *c
			return &cp, nil
		}
	}
	c := &domain.Collection{ID: "default-collection", Name: "default"}
	r.collections[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *fakeCollectionRepo) add(c *domain.Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[c.ID] = c
}

// ---- graph ----

type fakeGraphRepo struct {
	mu            sync.Mutex
	entities      []*domain.Entity
	relationships []*domain.Relationship
	communities   []*domain.Community
}

func (r *fakeGraphRepo) CreateEntity(_ context.Context, e *domain.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *e
	r.entities = append(r.entities, &c)
	return nil
}

func (r *fakeGraphRepo) CreateRelationship(_ context.Context, rel *domain.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *rel
	r.relationships = append(r.relationships, &c)
	return nil
}

func (r *fakeGraphRepo) FindEntityByKey(_ context.Context, collectionID, name, category string) (*domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domain.EntityKey(name, category)
	for _, e := range r.entities {
		if e.CollectionID == collectionID && domain.EntityKey(e.Name, e.Category) == key {
			c := *e
			return &c, nil
		}
	}
	return nil, domain.ErrEntityNotFound
}

func (r *fakeGraphRepo) ListEntitiesByCollection(_ context.Context, collectionID string) ([]*domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Entity
	for _, e := range r.entities {
		if e.CollectionID == collectionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeGraphRepo) ListEntitiesByDocument(_ context.Context, documentID string) ([]*domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Entity
	for _, e := range r.entities {
		if e.DocumentID == documentID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeGraphRepo) ListRelationshipsByCollection(_ context.Context, collectionID string) ([]*domain.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Relationship
	for _, rel := range r.relationships {
		if rel.CollectionID == collectionID {
			c := *rel
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeGraphRepo) UpdateEntityCommunity(_ context.Context, entityID, communityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entities {
		if e.ID == entityID {
			e.CommunityID = communityID
			return nil
		}
	}
	return domain.ErrEntityNotFound
}

func (r *fakeGraphRepo) DeleteByDocument(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := make(map[string]bool)
	keptEntities := r.entities[:0]
	for _, e := range r.entities {
		if e.DocumentID == documentID {
			removed[e.ID] = true
			continue
		}
		keptEntities = append(keptEntities, e)
	}
	r.entities = keptEntities
	keptRels := r.relationships[:0]
	for _, rel := range r.relationships {
		if rel.DocumentID == documentID || removed[rel.SubjectID] || removed[rel.ObjectID] {
			continue
		}
		keptRels = append(keptRels, rel)
	}
	r.relationships = keptRels
	return nil
}

func (r *fakeGraphRepo) CreateCommunity(_ context.Context, c *domain.Community) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.communities = append(r.communities, &cp)
	return nil
}

func (r *fakeGraphRepo) DeleteCommunitiesByCollection(_ context.Context, collectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := make(map[string]bool)
	kept := r.communities[:0]
	for _, c := range r.communities {
		if c.CollectionID == collectionID {
			removed[c.ID] = true
			continue
		}
		kept = append(kept, c)
	}
	r.communities = kept
	for _, e := range r.entities {
		if removed[e.CommunityID] {
			e.CommunityID = ""
		}
	}
	return nil
}

func (r *fakeGraphRepo) ListCommunitiesByCollection(_ context.Context, collectionID string) ([]*domain.Community, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Community
	for _, c := range r.communities {
		if c.CollectionID == collectionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGraphRepo) entityByName(name string) *domain.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entities {
		if e.Name == name {
			c := *e
			return &c
		}
	}
	return nil
}

// ---- workflow runs ----

type fakeRunQueue struct {
	mu        sync.Mutex
	cancelled []string
	ids       []string
}

func (r *fakeRunQueue) CancelActiveByDocument(_ context.Context, documentID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, documentID)
	return r.ids, nil
}

// ---- parsing, embedding, extraction, enrichment ----

type fakeParser struct {
	mu          sync.Mutex
	segments    []string
	err         error
	unsupported map[string]bool
	calls       int
	lastRaw     []byte
}

func (p *fakeParser) Parse(raw []byte, _ string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastRaw = raw
	if p.err != nil {
		return nil, p.err
	}
	if p.segments != nil {
		return append([]string(nil), p.segments...), nil
	}
	return []string{string(raw)}, nil
}

func (p *fakeParser) Supports(contentType string) bool {
	return !p.unsupported[contentType]
}

func fakeEmbeddingFor(text string) []float32 {
	return []float32{float32(len([]rune(text))), 1, 0.5, 0.25}
}

type fakeEmbedder struct {
	mu       sync.Mutex
	err      error
	rejected map[string]bool
	batches  [][]string
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.rejected[t] {
			continue
		}
		out[i] = fakeEmbeddingFor(t)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type extractCall struct {
	documentID string
	settings   ExtractionSettings
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls []extractCall
	err   error
}

func (e *fakeExtractor) ExtractDocument(_ context.Context, d *domain.Document, settings ExtractionSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, extractCall{documentID: d.ID, settings: settings})
	return e.err
}

type fakeEnricher struct {
	mu          sync.Mutex
	collections []string
	count       int
	err         error
}

func (e *fakeEnricher) EnrichCollection(_ context.Context, collectionID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections = append(e.collections, collectionID)
	if e.err != nil {
		return 0, e.err
	}
	return e.count, nil
}

// ---- raw store and run cancelling ----

type fakeRawStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string

	putErr error
	getErr error
}

func newFakeRawStore() *fakeRawStore {
	return &fakeRawStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeRawStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return nil
}

func (s *fakeRawStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (s *fakeRawStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

type fakeCanceller struct {
	mu        sync.Mutex
	cancelled []string
}

func (c *fakeCanceller) CancelDocument(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, documentID)
}

// ---- orchestration ----

type recordedRun struct {
	name    domain.WorkflowName
	payload any
	opts    *orchestration.RunOptions
}

// recordingRunClient stands in for the durable client: it accepts every run
// without executing anything.
type recordingRunClient struct {
	mu   sync.Mutex
	runs []recordedRun
	err  error
}

func (c *recordingRunClient) RunWorkflow(_ context.Context, name domain.WorkflowName, payload any, opts *orchestration.RunOptions) (*orchestration.RunHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, recordedRun{name: name, payload: payload, opts: opts})
	if c.err != nil {
		return nil, c.err
	}
	return &orchestration.RunHandle{RunID: fmt.Sprintf("run-%d", len(c.runs)), Name: name}, nil
}

func (c *recordingRunClient) lastRun() recordedRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[len(c.runs)-1]
}

// ---- graph LLM ----

type graphSample struct {
	entities      []domain.EntityCandidate
	relationships []domain.RelationshipCandidate
}

type fakeGraphLLM struct {
	mu           sync.Mutex
	samples      map[string]graphSample
	extractErrs  map[string]error
	summaryErr   error
	summaryCalls [][]string
}

func newFakeGraphLLM() *fakeGraphLLM {
	return &fakeGraphLLM{
		samples:     make(map[string]graphSample),
		extractErrs: make(map[string]error),
	}
}

func (l *fakeGraphLLM) ExtractGraph(_ context.Context, text string) ([]domain.EntityCandidate, []domain.RelationshipCandidate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.extractErrs[text]; err != nil {
		return nil, nil, err
	}
	s := l.samples[text]
	return s.entities, s.relationships, nil
}

func (l *fakeGraphLLM) SummarizeCommunity(_ context.Context, descriptions []string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaryCalls = append(l.summaryCalls, append([]string(nil), descriptions...))
	if l.summaryErr != nil {
		return "", l.summaryErr
	}
	return fmt.Sprintf("community of %d entities", len(descriptions)), nil
}

// ---- indices ----

type droppedIndex struct {
	name         string
	concurrently bool
}

type fakeIndexRepo struct {
	mu      sync.Mutex
	records []*domain.IndexRecord
	created []*domain.IndexConfig
	dropped []droppedIndex

	existsErr error
}

func (r *fakeIndexRepo) List(_ context.Context, filters IndexFilters, page pagination.Page) ([]*domain.IndexRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.IndexRecord
	for _, rec := range r.records {
		if filters.TableName != "" && rec.TableName != filters.TableName {
			continue
		}
		if filters.IndexName != "" && rec.IndexName != filters.IndexName {
			continue
		}
		cp := *rec
		matched = append(matched, &cp)
	}
	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[page.Offset:end], total, nil
}

func (r *fakeIndexRepo) Get(_ context.Context, tableName, indexName string) ([]*domain.IndexRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.IndexRecord
	for _, rec := range r.records {
		if rec.TableName == tableName && rec.IndexName == indexName {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIndexRepo) Exists(_ context.Context, tableName, indexName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsErr != nil {
		return false, r.existsErr
	}
	for _, rec := range r.records {
		if rec.TableName == tableName && rec.IndexName == indexName {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeIndexRepo) CreateIndex(_ context.Context, cfg *domain.IndexConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	r.created = append(r.created, &cp)
	r.records = append(r.records, &domain.IndexRecord{
		TableName:  string(cfg.TableName),
		IndexName:  cfg.IndexName,
		Definition: fmt.Sprintf("CREATE INDEX %s ON public.%s USING %s (%s)", cfg.IndexName, cfg.TableName, cfg.IndexMethod, cfg.IndexColumn),
	})
	return nil
}

func (r *fakeIndexRepo) DropIndex(_ context.Context, indexName string, concurrently bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, droppedIndex{name: indexName, concurrently: concurrently})
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.IndexName != indexName {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

// ---- scanner trigger ----

type triggerCall struct {
	documentID string
	settings   ExtractionSettings
	durable    bool
}

type fakeTrigger struct {
	mu    sync.Mutex
	calls []triggerCall
	errs  map[string]error
}

func (f *fakeTrigger) TriggerExtraction(_ context.Context, documentID string, settings ExtractionSettings, durable bool) (*orchestration.RunHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, triggerCall{documentID: documentID, settings: settings, durable: durable})
	if err := f.errs[documentID]; err != nil {
		return nil, err
	}
	return &orchestration.RunHandle{RunID: "run-" + documentID, Name: domain.WorkflowExtractEntities}, nil
}

// ---- coordinator fixture ----

// pipelineFixture wires a PipelineService against the in-memory fakes with a
// real inline client, so synchronous submissions execute the real handlers.
type pipelineFixture struct {
	documents   *fakeDocumentRepo
	chunks      *fakeChunkRepo
	collections *fakeCollectionRepo
	graph       *fakeGraphRepo
	runs        *fakeRunQueue
	parser      *fakeParser
	embedder    *fakeEmbedder
	extractor   *fakeExtractor
	enricher    *fakeEnricher
	rawStore    *fakeRawStore
	canceller   *fakeCanceller
	durable     *recordingRunClient
	svc         *PipelineService
}

type fixtureOption func(*PipelineParams, *pipelineFixture)

func withRawStore() fixtureOption {
	return func(params *PipelineParams, f *pipelineFixture) {
		f.rawStore = newFakeRawStore()
		params.RawStore = f.rawStore
	}
}

func withChunkConfig(cfg ChunkConfig) fixtureOption {
	return func(params *PipelineParams, _ *pipelineFixture) {
		params.ChunkConfig = cfg
	}
}

func newPipelineFixture(opts ...fixtureOption) *pipelineFixture {
	f := &pipelineFixture{
		documents:   newFakeDocumentRepo(),
		chunks:      &fakeChunkRepo{},
		collections: newFakeCollectionRepo(),
		graph:       &fakeGraphRepo{},
		runs:        &fakeRunQueue{},
		parser:      &fakeParser{},
		embedder:    &fakeEmbedder{},
		extractor:   &fakeExtractor{},
		enricher:    &fakeEnricher{},
		canceller:   &fakeCanceller{},
		durable:     &recordingRunClient{},
	}
	params := PipelineParams{
		Documents:   f.documents,
		Chunks:      f.chunks,
		Collections: f.collections,
		Runs:        f.runs,
		TxRunner: &testTxRunner{repos: &testTxRepos{
			documents: f.documents,
			chunks:    f.chunks,
			graph:     f.graph,
		}},
		Parser:       f.parser,
		Embedder:     f.embedder,
		Extractor:    f.extractor,
		Enricher:     f.enricher,
		Orchestrator: f.durable,
		Canceller:    f.canceller,
	}
	for _, opt := range opts {
		opt(&params, f)
	}
	registry := orchestration.NewRegistry()
	params.Inline = orchestration.NewSimpleClient(registry)
	f.svc = NewPipelineServiceWithUUIDGen(params, &seqUUID{})
	f.svc.RegisterWorkflows(registry)
	return f
}
