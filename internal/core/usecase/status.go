package usecase

import (
	"context"
	"unicode/utf8"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// statusTextLimit bounds the extracted text echoed by status queries so
// polling responses stay small.
const statusTextLimit = 500

// GetStatus aggregates the durable evidence record with the active job and
// the advisory progress cache. Cache misses and cache errors degrade to "no
// progress info"; they never fail the query.
func (uc *ProcessEvidenceUseCase) GetStatus(ctx context.Context, evidenceID string) (*domain.EvidenceStatus, error) {
	ev, err := uc.loadEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	status := &domain.EvidenceStatus{
		EvidenceID:      ev.ID,
		Status:          ev.Status,
		ProcessingError: ev.ProcessingError,
		ProcessedAt:     ev.ProcessedAt,
		Entities:        ev.Entities,
		Classification:  ev.Classification,
	}
	if ev.Extraction != nil {
		status.ExtractedText = truncate(ev.Extraction.Text, statusTextLimit)
	}
	if status.ExtractedText == "" && ev.OCR != nil {
		status.ExtractedText = truncate(ev.OCR.Text, statusTextLimit)
	}
	if ev.Classification != nil {
		status.DocumentType = ev.Classification.DocumentType
	}
	if ev.Summary != nil {
		status.Summary = ev.Summary.Summary
		status.KeyPoints = ev.Summary.KeyPoints
	}

	active, err := uc.jobs.GetActiveForEvidence(ctx, evidenceID)
	if err != nil && !domain.IsKind(err, domain.ErrJobNotFound) {
		uc.logger.Warn("status.active_job_lookup_failed", "evidence_id", evidenceID, "error", err)
	}
	status.CurrentJob = active

	if progress, ok, err := uc.cache.Get(ctx, evidenceID); err != nil {
		uc.logger.Debug("status.progress_cache_unavailable", "evidence_id", evidenceID, "error", err)
	} else if ok {
		status.Progress = &progress
	}

	return status, nil
}

// truncate cuts on a rune boundary so a multibyte character on the limit
// never surfaces as U+FFFD in responses.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
