package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	now := time.Now()
	doc := NewDocument("d1", "report.pdf", "application/pdf", DocumentSourceS3, now)

	assert.Equal(t, "d1", doc.ID)
	assert.Equal(t, "report.pdf", doc.Name)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, DocumentSourceS3, doc.Source)
	assert.Equal(t, IngestionStatusPending, doc.IngestionStatus)
	assert.Equal(t, KGExtractionStatusPending, doc.ExtractionStatus)
	assert.Equal(t, KGEnrichmentStatusPending, doc.EnrichmentStatus)
	assert.Empty(t, doc.CollectionIDs)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, now, doc.UpdatedAt)
}

func TestValidateDocument(t *testing.T) {
	now := time.Now()

	valid := func() *Document {
		d := NewDocument("d1", "notes.md", "text/markdown", DocumentSourceInline, now)
		d.RawContent = []byte("# notes")
		return d
	}

	tests := []struct {
		name    string
		mutate  func(*Document)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid document",
			mutate:  func(d *Document) {},
			wantErr: false,
		},
		{
			name:    "missing ID",
			mutate:  func(d *Document) { d.ID = "" },
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name:    "missing Name",
			mutate:  func(d *Document) { d.Name = "" },
			wantErr: true,
			errMsg:  "Name",
		},
		{
			name:    "invalid Source",
			mutate:  func(d *Document) { d.Source = DocumentSource("ftp") },
			wantErr: true,
			errMsg:  "Source",
		},
		{
			name:    "invalid IngestionStatus",
			mutate:  func(d *Document) { d.IngestionStatus = IngestionStatus("melting") },
			wantErr: true,
			errMsg:  "IngestionStatus",
		},
		{
			name:    "invalid ExtractionStatus",
			mutate:  func(d *Document) { d.ExtractionStatus = KGExtractionStatus("bad") },
			wantErr: true,
			errMsg:  "ExtractionStatus",
		},
		{
			name:    "invalid EnrichmentStatus",
			mutate:  func(d *Document) { d.EnrichmentStatus = KGEnrichmentStatus("bad") },
			wantErr: true,
			errMsg:  "EnrichmentStatus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid()
			tt.mutate(doc)
			err := ValidateDocument(doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("nil document", func(t *testing.T) {
		require.Error(t, ValidateDocument(nil))
	})
}

func TestValidateChunk(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid chunk",
			chunk:   NewChunk("c1", "d1", 0, "some text", now),
			wantErr: false,
		},
		{
			name:    "missing DocumentID",
			chunk:   NewChunk("c1", "", 0, "some text", now),
			wantErr: true,
			errMsg:  "DocumentID",
		},
		{
			name:    "negative Ordinal",
			chunk:   NewChunk("c1", "d1", -1, "some text", now),
			wantErr: true,
			errMsg:  "Ordinal",
		},
		{
			name:    "empty Text",
			chunk:   NewChunk("c1", "d1", 0, "", now),
			wantErr: true,
			errMsg:  "Text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
