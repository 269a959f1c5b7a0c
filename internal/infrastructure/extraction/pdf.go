package extraction

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// extractPDF reads the PDF text layer. A scanned PDF parses fine but yields
// no text; the orchestrator routes those to OCR. The pdf package panics on
// some malformed inputs, so the whole parse runs under a recover.
func extractPDF(data []byte) (res domain.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.ExtractionResult{}
			err = domain.WrapError(domain.ErrMalformedInput, "parse pdf", fmt.Errorf("parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "parse pdf", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "read pdf text layer", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "read pdf text layer", err)
	}

	text := normalizeWhitespace(string(raw))
	res = domain.ExtractionResult{
		Text:      text,
		Method:    domain.MethodDirectText,
		PageCount: intPtr(reader.NumPage()),
		Metadata:  pdfMetadata(reader),
	}
	if text != "" {
		res.Confidence = fullConfidence()
	}
	return res, nil
}

func pdfMetadata(reader *pdf.Reader) *domain.DocumentMetadata {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}

	meta := &domain.DocumentMetadata{
		Author: info.Key("Author").RawString(),
		Title:  info.Key("Title").RawString(),
	}
	if created := parsePDFDate(info.Key("CreationDate").RawString()); created != nil {
		meta.CreatedDate = created
	}
	if meta.Author == "" && meta.Title == "" && meta.CreatedDate == nil {
		return nil
	}
	return meta
}

// parsePDFDate handles the "D:YYYYMMDDHHmmSS" form; timezone suffixes are
// ignored.
func parsePDFDate(raw string) *time.Time {
	raw = strings.TrimPrefix(raw, "D:")
	if len(raw) < 8 {
		return nil
	}
	for _, layout := range []string{"20060102150405", "200601021504", "20060102"} {
		if len(raw) < len(layout) {
			continue
		}
		if t, err := time.Parse(layout, raw[:len(layout)]); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
