// Package tesseract adapts the tesseract OCR engine (via gosseract) to the
// pipeline's OCREngine port.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

type Engine struct {
	languages []string
}

func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{languages: languages}
}

// Recognize runs OCR over the image bytes and reports line-level blocks.
// An image with nothing readable on it yields empty text with zero
// confidence; that is a valid result, not an error. gosseract clients are
// not safe for concurrent use, so each call gets its own.
func (e *Engine) Recognize(ctx context.Context, image []byte, _ string) (domain.OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.OCRResult{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return domain.OCRResult{}, fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return domain.OCRResult{}, domain.WrapError(domain.ErrMalformedInput, "load image", err)
	}

	text, err := client.Text()
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("recognize text: %w", err)
	}
	text = strings.TrimSpace(text)

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("read ocr blocks: %w", err)
	}

	result := domain.OCRResult{Text: text}
	var confidenceSum float64
	for _, box := range boxes {
		lineText := strings.TrimSpace(box.Word)
		if lineText == "" {
			continue
		}
		result.Blocks = append(result.Blocks, domain.OCRBlock{
			Type:       domain.BlockLine,
			Text:       lineText,
			Confidence: box.Confidence,
			Box: &domain.BoundingBox{
				X:      box.Box.Min.X,
				Y:      box.Box.Min.Y,
				Width:  box.Box.Dx(),
				Height: box.Box.Dy(),
			},
		})
		confidenceSum += box.Confidence
	}
	if len(result.Blocks) > 0 {
		result.Confidence = confidenceSum / float64(len(result.Blocks))
	}
	return result, nil
}
