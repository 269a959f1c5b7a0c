package extraction

import (
	"bytes"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// extractXLSX flattens every sheet to tab-separated rows. PageCount carries
// the sheet count.
func extractXLSX(data []byte) (domain.ExtractionResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "open xlsx", err)
	}
	defer f.Close()

	var sb strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "read xlsx sheet", err)
		}
		if len(sheets) > 1 {
			sb.WriteString(sheet)
			sb.WriteByte('\n')
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
	}

	text := normalizeWhitespace(sb.String())
	res := domain.ExtractionResult{
		Text:      text,
		Method:    domain.MethodOfficeDocument,
		PageCount: intPtr(len(sheets)),
		Metadata:  xlsxMetadata(f),
	}
	if text != "" {
		res.Confidence = fullConfidence()
	}
	return res, nil
}

func xlsxMetadata(f *excelize.File) *domain.DocumentMetadata {
	props, err := f.GetDocProps()
	if err != nil || props == nil {
		return nil
	}
	meta := &domain.DocumentMetadata{Author: props.Creator, Title: props.Title}
	if t, err := time.Parse(time.RFC3339, props.Created); err == nil {
		utc := t.UTC()
		meta.CreatedDate = &utc
	}
	if meta.Author == "" && meta.Title == "" && meta.CreatedDate == nil {
		return nil
	}
	return meta
}
