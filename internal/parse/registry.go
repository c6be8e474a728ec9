// Package parse turns raw document bytes into text segments, selecting a
// parser by content type.
package parse

import (
	"fmt"
	"strings"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// Parser extracts text segments from raw bytes.
type Parser interface {
	Parse(raw []byte) ([]string, error)
}

// Registry maps normalized content types to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register("text/plain", &TextParser{})
	r.Register("text/markdown", &MarkdownParser{})
	r.Register("application/json", &JSONParser{})
	r.Register("application/pdf", &PDFParser{})
	return r
}

func (r *Registry) Register(contentType string, p Parser) {
	r.parsers[normalizeContentType(contentType)] = p
}

// Parse dispatches to the parser registered for the content type.
func (r *Registry) Parse(raw []byte, contentType string) ([]string, error) {
	normalized := normalizeContentType(contentType)
	parser, ok := r.parsers[normalized]
	if !ok {
		return nil, fmt.Errorf("content type %q: %w", contentType, domain.ErrUnsupportedFormat)
	}
	return parser.Parse(raw)
}

// Supports reports whether a parser is registered for the content type.
func (r *Registry) Supports(contentType string) bool {
	_, ok := r.parsers[normalizeContentType(contentType)]
	return ok
}

// normalizeContentType lowercases the media type and drops parameters such as
// "; charset=utf-8".
func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
