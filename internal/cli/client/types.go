package client

// Document mirrors the API document representation.
type Document struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	ContentType      string         `json:"content_type"`
	Source           string         `json:"source"`
	Metadata         map[string]any `json:"metadata"`
	CollectionIDs    []string       `json:"collection_ids"`
	IngestionStatus  string         `json:"ingestion_status"`
	IngestionError   string         `json:"ingestion_error,omitempty"`
	ExtractionStatus string         `json:"extraction_status"`
	ExtractionError  string         `json:"extraction_error,omitempty"`
	EnrichmentStatus string         `json:"enrichment_status"`
	EnrichmentError  string         `json:"enrichment_error,omitempty"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

// SubmitResult is the response to a document submission.
type SubmitResult struct {
	Document *Document `json:"document"`
	RunID    string    `json:"run_id,omitempty"`
	Workflow string    `json:"workflow,omitempty"`
}

// Run identifies an accepted durable workflow run.
type Run struct {
	RunID    string `json:"run_id"`
	Workflow string `json:"workflow"`
}

// Chunk mirrors the API chunk representation.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at"`
}

// Index mirrors one pg_indexes catalogue row.
type Index struct {
	TableName  string `json:"table_name"`
	IndexName  string `json:"index_name"`
	Definition string `json:"definition"`
}

// SearchResult is one scored chunk match.
type SearchResult struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// PageInfo describes the window a list response covers.
type PageInfo struct {
	Offset       int   `json:"offset"`
	Limit        int   `json:"limit"`
	TotalEntries int64 `json:"total_entries"`
}

// DocumentPage is a paginated document listing.
type DocumentPage struct {
	Results  []*Document `json:"results"`
	PageInfo PageInfo    `json:"page_info"`
}

// IndexPage is a paginated index listing.
type IndexPage struct {
	Results  []*Index `json:"results"`
	PageInfo PageInfo `json:"page_info"`
}
