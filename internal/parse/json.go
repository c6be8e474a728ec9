package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// JSONParser flattens a JSON document into "path: value" lines so nested
// fields stay searchable as text.
type JSONParser struct{}

func (p *JSONParser) Parse(raw []byte) ([]string, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v: %w", err, domain.ErrCorruptInput)
	}

	var lines []string
	flattenJSON("", value, &lines)
	if len(lines) == 0 {
		return nil, nil
	}
	return []string{strings.Join(lines, "\n")}, nil
}

func flattenJSON(path string, value any, lines *[]string) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			flattenJSON(joinPath(path, key), v[key], lines)
		}
	case []any:
		for i, item := range v {
			flattenJSON(fmt.Sprintf("%s[%d]", path, i), item, lines)
		}
	case nil:
		// Null fields carry no text.
	default:
		text := strings.TrimSpace(fmt.Sprintf("%v", v))
		if text == "" {
			return
		}
		if path == "" {
			*lines = append(*lines, text)
			return
		}
		*lines = append(*lines, fmt.Sprintf("%s: %s", path, text))
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
