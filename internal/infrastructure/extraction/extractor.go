// Package extraction pulls machine-readable text out of document bytes.
// It covers the text-bearing input types only; image types are the OCR
// engine's territory and are rejected here with a typed error.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, data []byte, mimeType string) (domain.ExtractionResult, error) {
	if len(data) == 0 {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "extract", fmt.Errorf("empty document"))
	}

	switch mimeType {
	case domain.MimePDF:
		return extractPDF(data)
	case domain.MimeDOCX:
		return extractDOCX(data)
	case domain.MimeDOC:
		return extractDOC(data)
	case domain.MimeXLSX:
		return extractXLSX(data)
	case domain.MimeText:
		return extractPlainText(data)
	default:
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrUnsupportedInput, "extract", fmt.Errorf("mime type %q", mimeType))
	}
}

func extractPlainText(data []byte) (domain.ExtractionResult, error) {
	if !utf8.Valid(data) {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "plain text", fmt.Errorf("invalid utf-8"))
	}
	text := strings.TrimSpace(string(data))
	res := domain.ExtractionResult{
		Text:   text,
		Method: domain.MethodPlainText,
	}
	if text != "" {
		res.Confidence = fullConfidence()
	}
	return res, nil
}

// fullConfidence marks a lossless extraction path on the 0-100 scale shared
// with OCR output.
func fullConfidence() *float64 {
	c := 100.0
	return &c
}

func intPtr(n int) *int {
	return &n
}

// normalizeWhitespace collapses runs of blank lines and trailing spaces that
// XML and binary scrapes tend to leave behind.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
