package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

func TestExtractPlainText(t *testing.T) {
	ex := New()
	got, err := ex.Extract(context.Background(), []byte("  Invoice #123, due $450 on 2024-01-15.\n"), domain.MimeText)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Method != domain.MethodPlainText {
		t.Fatalf("method = %q, want %q", got.Method, domain.MethodPlainText)
	}
	if got.Text != "Invoice #123, due $450 on 2024-01-15." {
		t.Fatalf("text = %q", got.Text)
	}
	if got.Confidence == nil || *got.Confidence != 100 {
		t.Fatalf("confidence = %v, want 100", got.Confidence)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	ex := New()
	_, err := ex.Extract(context.Background(), nil, domain.MimeText)
	if !domain.IsKind(err, domain.ErrMalformedInput) {
		t.Fatalf("error = %v, want malformed input", err)
	}
}

func TestExtractInvalidUTF8PlainText(t *testing.T) {
	ex := New()
	_, err := ex.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}, domain.MimeText)
	if !domain.IsKind(err, domain.ErrMalformedInput) {
		t.Fatalf("error = %v, want malformed input", err)
	}
}

func TestExtractUnsupportedMimeType(t *testing.T) {
	ex := New()
	_, err := ex.Extract(context.Background(), []byte("GIF89a"), "image/gif")
	if !domain.IsKind(err, domain.ErrUnsupportedInput) {
		t.Fatalf("error = %v, want unsupported input", err)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	ex := New()
	_, err := ex.Extract(context.Background(), []byte("%PDF-1.7 garbage with no xref"), domain.MimePDF)
	if !domain.IsKind(err, domain.ErrMalformedInput) {
		t.Fatalf("error = %v, want malformed input", err)
	}
}

func buildDOCX(t *testing.T, body, core string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"word/document.xml": body,
		"docProps/core.xml": core,
	} {
		if content == "" {
			continue
		}
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	body := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Lease Agreement</w:t></w:r></w:p>
    <w:p><w:r><w:t>Rent:</w:t><w:tab/><w:t>$2,000</w:t></w:r></w:p>
  </w:body>
</w:document>`
	core := `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
  xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
  <dc:creator>R. Vance</dc:creator>
  <dc:title>Lease</dc:title>
  <dcterms:created>2024-02-01T09:30:00Z</dcterms:created>
</cp:coreProperties>`

	ex := New()
	got, err := ex.Extract(context.Background(), buildDOCX(t, body, core), domain.MimeDOCX)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Method != domain.MethodOfficeDocument {
		t.Fatalf("method = %q", got.Method)
	}
	if !strings.Contains(got.Text, "Lease Agreement") || !strings.Contains(got.Text, "Rent:\t$2,000") {
		t.Fatalf("text = %q", got.Text)
	}
	if got.Metadata == nil || got.Metadata.Author != "R. Vance" || got.Metadata.Title != "Lease" {
		t.Fatalf("metadata = %+v", got.Metadata)
	}
	if got.Metadata.CreatedDate == nil || got.Metadata.CreatedDate.Year() != 2024 {
		t.Fatalf("created date = %v", got.Metadata.CreatedDate)
	}
	if got.Confidence == nil || *got.Confidence != 100 {
		t.Fatalf("confidence = %v", got.Confidence)
	}
}

func TestExtractDOCXMissingBody(t *testing.T) {
	data := buildDOCX(t, "", `<cp:coreProperties xmlns:cp="x"/>`)
	ex := New()
	_, err := ex.Extract(context.Background(), data, domain.MimeDOCX)
	if !domain.IsKind(err, domain.ErrMalformedInput) {
		t.Fatalf("error = %v, want malformed input", err)
	}
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "Item"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "Amount"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "Retainer"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := f.SetCellValue("Sheet1", "B2", 5000); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	ex := New()
	got, err := ex.Extract(context.Background(), buf.Bytes(), domain.MimeXLSX)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Method != domain.MethodOfficeDocument {
		t.Fatalf("method = %q", got.Method)
	}
	if !strings.Contains(got.Text, "Item\tAmount") || !strings.Contains(got.Text, "Retainer\t5000") {
		t.Fatalf("text = %q", got.Text)
	}
	if got.PageCount == nil || *got.PageCount != 1 {
		t.Fatalf("page count = %v, want 1", got.PageCount)
	}
}

func TestExtractCorruptXLSX(t *testing.T) {
	ex := New()
	_, err := ex.Extract(context.Background(), []byte("not a spreadsheet"), domain.MimeXLSX)
	if !domain.IsKind(err, domain.ErrMalformedInput) {
		t.Fatalf("error = %v, want malformed input", err)
	}
}

func TestExtractCorruptDOC(t *testing.T) {
	ex := New()
	_, err := ex.Extract(context.Background(), []byte("not an ole container"), domain.MimeDOC)
	if !domain.IsKind(err, domain.ErrMalformedInput) {
		t.Fatalf("error = %v, want malformed input", err)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "Heading  \n\n\n\nBody line\t\n\n"
	want := "Heading\n\nBody line"
	if got := normalizeWhitespace(in); got != want {
		t.Fatalf("normalizeWhitespace = %q, want %q", got, want)
	}
}
