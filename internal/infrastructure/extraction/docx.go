package extraction

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// extractDOCX walks the OOXML container: body text from word/document.xml,
// descriptive metadata from docProps/core.xml.
func extractDOCX(data []byte) (domain.ExtractionResult, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "open docx container", err)
	}

	doc := zipEntry(archive, "word/document.xml")
	if doc == nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "open docx container", fmt.Errorf("word/document.xml missing"))
	}

	text, err := wordXMLText(doc)
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrMalformedInput, "parse docx body", err)
	}

	res := domain.ExtractionResult{
		Text:     text,
		Method:   domain.MethodOfficeDocument,
		Metadata: docxMetadata(archive),
	}
	if text != "" {
		res.Confidence = fullConfidence()
	}
	return res, nil
}

func zipEntry(archive *zip.Reader, name string) *zip.File {
	for _, f := range archive.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// wordXMLText flattens WordprocessingML to plain text: character data is
// kept, paragraph ends become newlines, explicit tabs and breaks are
// preserved.
func wordXMLText(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			switch t.Name.Local {
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		}
	}
	return normalizeWhitespace(sb.String()), nil
}

func docxMetadata(archive *zip.Reader) *domain.DocumentMetadata {
	core := zipEntry(archive, "docProps/core.xml")
	if core == nil {
		return nil
	}
	rc, err := core.Open()
	if err != nil {
		return nil
	}
	defer rc.Close()

	var props struct {
		Creator string `xml:"creator"`
		Title   string `xml:"title"`
		Created string `xml:"created"`
	}
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
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
