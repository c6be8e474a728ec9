package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// PDFParser extracts text page by page, one segment per non-empty page.
type PDFParser struct{}

func (p *PDFParser) Parse(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	reader, err := model.NewPdfReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %v: %w", err, domain.ErrCorruptInput)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("read pdf page count: %v: %w", err, domain.ErrCorruptInput)
	}

	var segments []string
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %v: %w", i, err, domain.ErrCorruptInput)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %v: %w", i, err, domain.ErrCorruptInput)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d text: %v: %w", i, err, domain.ErrCorruptInput)
		}
		text = strings.TrimSpace(text)
		if text != "" {
			segments = append(segments, text)
		}
	}

	return segments, nil
}
