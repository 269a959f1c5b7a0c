// Package ollama adapts a local Ollama server to the classification and
// summarization ports. All calls go through /api/generate with JSON output
// format so responses can be parsed deterministically.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

type Options struct {
	HTTPTimeout        time.Duration
	RequestsPerSecond  float64
	Burst              int
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	httpTimeout := options.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		burst := options.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: httpTimeout},
		limiter:    limiter,
		executor:   options.ResilienceExecutor,
	}
}

type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.ClassificationResult, error) {
	respText, err := c.client.generateJSON(ctx, "classify", buildClassificationPrompt(text))
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	var raw struct {
		DocumentType string  `json:"document_type"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("parse classification json: %w", err)
	}

	result := domain.ClassificationResult{
		DocumentType: domain.DocumentType(strings.ToLower(strings.TrimSpace(raw.DocumentType))),
		Confidence:   clampConfidence(raw.Confidence),
		Reasoning:    strings.TrimSpace(raw.Reasoning),
	}
	// Labels outside the taxonomy collapse to "other"; the raw label is
	// kept in the reasoning for review.
	if !domain.IsKnownDocumentType(result.DocumentType) {
		if result.Reasoning == "" {
			result.Reasoning = fmt.Sprintf("model returned unknown type %q", raw.DocumentType)
		} else {
			result.Reasoning = fmt.Sprintf("%s (model returned unknown type %q)", result.Reasoning, raw.DocumentType)
		}
		result.DocumentType = domain.DocOther
	}
	return result, nil
}

type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

const maxKeyPoints = 5

func (s *Summarizer) Summarize(ctx context.Context, text string) (domain.SummarizationResult, error) {
	respText, err := s.client.generateJSON(ctx, "summarize", buildSummarizationPrompt(text))
	if err != nil {
		return domain.SummarizationResult{}, err
	}

	var raw struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.SummarizationResult{}, fmt.Errorf("parse summarization json: %w", err)
	}

	points := make([]string, 0, maxKeyPoints)
	for _, p := range raw.KeyPoints {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		points = append(points, p)
		if len(points) == maxKeyPoints {
			break
		}
	}
	return domain.SummarizationResult{
		Summary:   strings.TrimSpace(raw.Summary),
		KeyPoints: points,
	}, nil
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
