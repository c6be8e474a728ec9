package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIndexConfig(t *testing.T) {
	valid := func() *IndexConfig {
		return &IndexConfig{
			TableName:      VectorTableVectors,
			IndexMethod:    IndexMethodHNSW,
			IndexMeasure:   IndexMeasureCosine,
			IndexName:      "idx_vectors_embedding",
			IndexArguments: map[string]int{"m": 16, "ef_construction": 64},
			Concurrently:   true,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*IndexConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid hnsw config",
			mutate:  func(c *IndexConfig) {},
			wantErr: false,
		},
		{
			name: "valid ivf flat config",
			mutate: func(c *IndexConfig) {
				c.IndexMethod = IndexMethodIVFFlat
				c.IndexArguments = map[string]int{"lists": 100}
			},
			wantErr: false,
		},
		{
			name: "valid without arguments",
			mutate: func(c *IndexConfig) {
				c.IndexArguments = nil
			},
			wantErr: false,
		},
		{
			name: "valid entity table with explicit column",
			mutate: func(c *IndexConfig) {
				c.TableName = VectorTableEntity
				c.IndexColumn = "description_embedding"
			},
			wantErr: false,
		},
		{
			name:    "unknown table",
			mutate:  func(c *IndexConfig) { c.TableName = VectorTableName("users") },
			wantErr: true,
			errMsg:  "TableName",
		},
		{
			name:    "unknown method",
			mutate:  func(c *IndexConfig) { c.IndexMethod = IndexMethod("btree") },
			wantErr: true,
			errMsg:  "IndexMethod",
		},
		{
			name:    "unknown measure",
			mutate:  func(c *IndexConfig) { c.IndexMeasure = IndexMeasure("hamming") },
			wantErr: true,
			errMsg:  "IndexMeasure",
		},
		{
			name:    "missing name",
			mutate:  func(c *IndexConfig) { c.IndexName = "" },
			wantErr: true,
			errMsg:  "IndexName",
		},
		{
			name:    "name with injection",
			mutate:  func(c *IndexConfig) { c.IndexName = "idx; DROP TABLE vectors" },
			wantErr: true,
			errMsg:  "identifier",
		},
		{
			name:    "column with injection",
			mutate:  func(c *IndexConfig) { c.IndexColumn = "embedding)--" },
			wantErr: true,
			errMsg:  "identifier",
		},
		{
			name: "hnsw rejects lists",
			mutate: func(c *IndexConfig) {
				c.IndexArguments = map[string]int{"lists": 100}
			},
			wantErr: true,
			errMsg:  "lists",
		},
		{
			name: "ivf flat rejects m",
			mutate: func(c *IndexConfig) {
				c.IndexMethod = IndexMethodIVFFlat
				c.IndexArguments = map[string]int{"m": 16}
			},
			wantErr: true,
			errMsg:  `"m"`,
		},
		{
			name: "non positive argument",
			mutate: func(c *IndexConfig) {
				c.IndexArguments = map[string]int{"m": 0}
			},
			wantErr: true,
			errMsg:  "positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateIndexConfig(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("nil config", func(t *testing.T) {
		require.Error(t, ValidateIndexConfig(nil))
	})
}

func TestDefaultIndexColumn(t *testing.T) {
	assert.Equal(t, "embedding", DefaultIndexColumn(VectorTableVectors))
	assert.Equal(t, "description_embedding", DefaultIndexColumn(VectorTableEntity))
	assert.Equal(t, "description_embedding", DefaultIndexColumn(VectorTableDocumentCollections))
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "idx_embedding", true},
		{"leading underscore", "_idx", true},
		{"digits inside", "idx2", true},
		{"empty", "", false},
		{"leading digit", "2idx", false},
		{"space", "idx name", false},
		{"semicolon", "idx;", false},
		{"quote", `idx"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidIdentifier(tt.input))
		})
	}
}
