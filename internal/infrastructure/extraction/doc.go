package extraction

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// docScrapeConfidence reflects that legacy DOC extraction is a best-effort
// scrape of the WordDocument stream, not a full binary-format parse.
const docScrapeConfidence = 70.0

// minRunLength filters the control noise the WordDocument stream is full of.
const minRunLength = 4

// extractDOC pulls text out of the OLE compound container. The Word binary
// format proper is not parsed; printable runs (cp1252 and UTF-16LE) from the
// WordDocument stream are good enough for routing and downstream stages, and
// a document that yields nothing falls through to OCR like any other empty
// extraction.
func extractDOC(data []byte) (domain.ExtractionResult, error) {
	container, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "open doc container", err)
	}

	var stream []byte
	for entry, err := container.Next(); err == nil; entry, err = container.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		stream, err = io.ReadAll(entry)
		if err != nil {
			return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "read doc stream", err)
		}
		break
	}
	if stream == nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "read doc stream", fmt.Errorf("WordDocument stream missing"))
	}

	text := normalizeWhitespace(scrapePrintableRuns(stream))
	res := domain.ExtractionResult{
		Text:   text,
		Method: domain.MethodOfficeDocument,
	}
	if text != "" {
		c := docScrapeConfidence
		res.Confidence = &c
	}
	return res, nil
}

func scrapePrintableRuns(stream []byte) string {
	var sb strings.Builder

	flush := func(run []rune) {
		if len(run) >= minRunLength {
			sb.WriteString(string(run))
			sb.WriteByte('\n')
		}
	}

	// Single-byte (cp1252-ish) runs.
	var run []rune
	for _, b := range stream {
		r := rune(b)
		if r == '\r' {
			r = '\n'
		}
		if printableDocRune(r) {
			run = append(run, r)
			continue
		}
		flush(run)
		run = run[:0]
	}
	flush(run)

	// UTF-16LE runs: pairs with a zero high byte.
	var units []uint16
	for i := 0; i+1 < len(stream); i += 2 {
		u := uint16(stream[i]) | uint16(stream[i+1])<<8
		r := rune(u)
		if u != 0 && (printableDocRune(r) || r == '\n') {
			units = append(units, u)
			continue
		}
		flush(utf16.Decode(units))
		units = units[:0]
	}
	flush(utf16.Decode(units))

	return sb.String()
}

func printableDocRune(r rune) bool {
	return r == '\n' || r == '\t' || r == ' ' || unicode.IsPrint(r)
}
