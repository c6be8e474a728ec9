package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// TextParser handles plain text. The whole body becomes a single segment.
type TextParser struct{}

func (p *TextParser) Parse(raw []byte) ([]string, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("text is not valid UTF-8: %w", domain.ErrCorruptInput)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

// MarkdownParser strips lightweight markup noise before segmenting. Code
// fences and heading/list markers carry no retrieval value.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(raw []byte) ([]string, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("markdown is not valid UTF-8: %w", domain.ErrCorruptInput)
	}

	var out []string
	inFence := false
	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		trimmed = strings.TrimLeft(trimmed, "#>")
		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		out = append(out, strings.TrimSpace(trimmed))
	}

	text := strings.TrimSpace(strings.Join(out, "\n"))
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
