package domain

import "fmt"

// VectorTableName identifies a table carrying an embedding column that may be
// indexed. The set is fixed; index requests against any other table are
// rejected before dispatch.
type VectorTableName string

const (
	VectorTableVectors             VectorTableName = "vectors"
	VectorTableEntity              VectorTableName = "entity"
	VectorTableDocumentCollections VectorTableName = "document_collections"
)

// IndexMethod selects the similarity-search index structure.
type IndexMethod string

const (
	IndexMethodHNSW    IndexMethod = "hnsw"
	IndexMethodIVFFlat IndexMethod = "ivf_flat"
)

// IndexMeasure selects the distance function an index accelerates.
type IndexMeasure string

const (
	IndexMeasureCosine       IndexMeasure = "cosine_distance"
	IndexMeasureL2           IndexMeasure = "l2_distance"
	IndexMeasureInnerProduct IndexMeasure = "ip_distance"
)

// IndexConfig describes one similarity-search index build or delete request.
// Immutable once the build workflow is dispatched.
type IndexConfig struct {
	TableName    VectorTableName
	IndexMethod  IndexMethod
	IndexMeasure IndexMeasure
	IndexName    string
	IndexColumn  string
	// IndexArguments holds method-specific build parameters: m and
	// ef_construction for HNSW, lists for IVF-Flat.
	IndexArguments map[string]int
	Concurrently   bool
}

// IndexRecord is one row of the index catalogue.
type IndexRecord struct {
	TableName  string
	IndexName  string
	Definition string
}

// DefaultIndexColumn returns the embedding column indexed by default for a
// vector table.
func DefaultIndexColumn(table VectorTableName) string {
	if table == VectorTableVectors {
		return "embedding"
	}
	return "description_embedding"
}

// DefaultIndexName derives a deterministic index name from the config, used
// when the caller does not pick one.
func DefaultIndexName(c *IndexConfig) string {
	column := c.IndexColumn
	if column == "" {
		column = DefaultIndexColumn(c.TableName)
	}
	return fmt.Sprintf("ix_%s_%s_%s_%s", c.IndexMeasure, c.IndexMethod, c.TableName, column)
}

// ValidateIndexConfig validates an IndexConfig instance. IndexName and
// IndexColumn end up inside DDL statements, so both must be plain SQL
// identifiers.
func ValidateIndexConfig(c *IndexConfig) error {
	if c == nil {
		return fmt.Errorf("index config cannot be nil")
	}

	if !isValidVectorTableName(c.TableName) {
		return fmt.Errorf("index TableName is invalid: %s", c.TableName)
	}

	if !isValidIndexMethod(c.IndexMethod) {
		return fmt.Errorf("index IndexMethod is invalid: %s", c.IndexMethod)
	}

	if !isValidIndexMeasure(c.IndexMeasure) {
		return fmt.Errorf("index IndexMeasure is invalid: %s", c.IndexMeasure)
	}

	if c.IndexName == "" {
		return fmt.Errorf("index IndexName is required")
	}

	if !IsValidIdentifier(c.IndexName) {
		return fmt.Errorf("index IndexName is not a valid identifier: %s", c.IndexName)
	}

	if c.IndexColumn != "" && !IsValidIdentifier(c.IndexColumn) {
		return fmt.Errorf("index IndexColumn is not a valid identifier: %s", c.IndexColumn)
	}

	if err := validateIndexArguments(c.IndexMethod, c.IndexArguments); err != nil {
		return err
	}

	return nil
}

// validateIndexArguments checks the method-specific parameter mapping.
func validateIndexArguments(method IndexMethod, args map[string]int) error {
	allowed := map[string]bool{}
	switch method {
	case IndexMethodHNSW:
		allowed["m"] = true
		allowed["ef_construction"] = true
	case IndexMethodIVFFlat:
		allowed["lists"] = true
	}

	for key, value := range args {
		if !allowed[key] {
			return fmt.Errorf("index argument %q is not supported by method %s", key, method)
		}
		if value <= 0 {
			return fmt.Errorf("index argument %q must be positive, got %d", key, value)
		}
	}
	return nil
}

// IsValidIdentifier reports whether s is a bare SQL identifier: a letter or
// underscore followed by letters, digits, or underscores.
func IsValidIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// isValidVectorTableName checks if a VectorTableName is valid
func isValidVectorTableName(t VectorTableName) bool {
	switch t {
	case VectorTableVectors, VectorTableEntity, VectorTableDocumentCollections:
		return true
	}
	return false
}

// isValidIndexMethod checks if an IndexMethod is valid
func isValidIndexMethod(m IndexMethod) bool {
	switch m {
	case IndexMethodHNSW, IndexMethodIVFFlat:
		return true
	}
	return false
}

// isValidIndexMeasure checks if an IndexMeasure is valid
func isValidIndexMeasure(m IndexMeasure) bool {
	switch m {
	case IndexMeasureCosine, IndexMeasureL2, IndexMeasureInnerProduct:
		return true
	}
	return false
}
