package usecase

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

type fakeRepo struct {
	mu       sync.Mutex
	evidence map[string]*domain.Evidence

	extractions     map[string]domain.ExtractionResult
	ocrs            map[string]domain.OCRResult
	classifications map[string]domain.ClassificationResult
	entities        map[string]domain.ExtractedEntities
	summaries       map[string]domain.SummarizationResult

	statusUpdates []domain.ProcessingStatus
	finishStatus  domain.ProcessingStatus
	finishError   string
	finished      bool
}

func newFakeRepo(evs ...*domain.Evidence) *fakeRepo {
	repo := &fakeRepo{
		evidence:        make(map[string]*domain.Evidence),
		extractions:     make(map[string]domain.ExtractionResult),
		ocrs:            make(map[string]domain.OCRResult),
		classifications: make(map[string]domain.ClassificationResult),
		entities:        make(map[string]domain.ExtractedEntities),
		summaries:       make(map[string]domain.SummarizationResult),
	}
	for _, ev := range evs {
		repo.evidence[ev.ID] = ev
	}
	return repo
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.evidence[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrEvidenceNotFound, "evidence.get", errNotFound)
	}
	clone := *ev
	return &clone, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusUpdates = append(r.statusUpdates, status)
	if ev, ok := r.evidence[id]; ok {
		ev.Status = status
		ev.ProcessingError = errMessage
	}
	return nil
}

func (r *fakeRepo) SaveExtraction(_ context.Context, id string, res domain.ExtractionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractions[id] = res
	return nil
}

func (r *fakeRepo) SaveOCR(_ context.Context, id string, res domain.OCRResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrs[id] = res
	return nil
}

func (r *fakeRepo) SaveClassification(_ context.Context, id string, res domain.ClassificationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifications[id] = res
	return nil
}

func (r *fakeRepo) SaveEntities(_ context.Context, id string, res domain.ExtractedEntities) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[id] = res
	return nil
}

func (r *fakeRepo) SaveSummary(_ context.Context, id string, res domain.SummarizationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[id] = res
	return nil
}

func (r *fakeRepo) Finish(_ context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
	r.finishStatus = status
	r.finishError = errMessage
	if ev, ok := r.evidence[id]; ok {
		ev.Status = status
		ev.ProcessingError = errMessage
		now := time.Now().UTC()
		ev.ProcessedAt = &now
	}
	return nil
}

type fakeJobs struct {
	mu       sync.Mutex
	jobs     map[string]*domain.ProcessingJob
	active   map[string]string
	progress map[string][]int
	getCalls int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		jobs:     make(map[string]*domain.ProcessingJob),
		active:   make(map[string]string),
		progress: make(map[string][]int),
	}
}

func (j *fakeJobs) CreateIfAbsent(_ context.Context, job *domain.ProcessingJob) (bool, *domain.ProcessingJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if activeID, ok := j.active[job.EvidenceID]; ok {
		return false, j.jobs[activeID], nil
	}
	clone := *job
	j.jobs[job.ID] = &clone
	j.active[job.EvidenceID] = job.ID
	return true, &clone, nil
}

func (j *fakeJobs) Claim(_ context.Context, jobID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok || job.Status != domain.JobQueued {
		return false, nil
	}
	job.Status = domain.JobRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	return true, nil
}

func (j *fakeJobs) UpdateProgress(_ context.Context, jobID string, progress int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress[jobID] = append(j.progress[jobID], progress)
	if job, ok := j.jobs[jobID]; ok {
		job.Progress = progress
	}
	return nil
}

func (j *fakeJobs) Finish(_ context.Context, jobID string, status domain.JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = status
	now := time.Now().UTC()
	job.CompletedAt = &now
	delete(j.active, job.EvidenceID)
	return nil
}

func (j *fakeJobs) GetByID(_ context.Context, jobID string) (*domain.ProcessingJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.getCalls++
	job, ok := j.jobs[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "job.get", errNotFound)
	}
	clone := *job
	return &clone, nil
}

func (j *fakeJobs) GetActiveForEvidence(_ context.Context, evidenceID string) (*domain.ProcessingJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	activeID, ok := j.active[evidenceID]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "job.get", errNotFound)
	}
	clone := *j.jobs[activeID]
	return &clone, nil
}

type fakeStorage struct {
	objects map[string][]byte
	openErr error
}

func (s *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "storage.open", errNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries []domain.Progress
	setErr  error
	getErr  error
}

func (c *fakeCache) Set(_ context.Context, progress domain.Progress) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, progress)
	return nil
}

func (c *fakeCache) Get(_ context.Context, evidenceID string) (domain.Progress, bool, error) {
	if c.getErr != nil {
		return domain.Progress{}, false, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].EvidenceID == evidenceID {
			return c.entries[i], true, nil
		}
	}
	return domain.Progress{}, false, nil
}

type fakePublisher struct {
	mu         sync.Mutex
	published  []domain.ProcessRequest
	publishErr error
}

func (q *fakePublisher) PublishProcessRequest(_ context.Context, req domain.ProcessRequest) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, req)
	return nil
}

func (q *fakePublisher) SubscribeProcessRequests(ctx context.Context, _ func(context.Context, domain.ProcessRequest) error) error {
	<-ctx.Done()
	return nil
}

type fakeExtractor struct {
	result domain.ExtractionResult
	err    error
	calls  int
}

func (e *fakeExtractor) Extract(context.Context, []byte, string) (domain.ExtractionResult, error) {
	e.calls++
	return e.result, e.err
}

type fakeOCR struct {
	result domain.OCRResult
	err    error
	calls  int
}

func (o *fakeOCR) Recognize(context.Context, []byte, string) (domain.OCRResult, error) {
	o.calls++
	return o.result, o.err
}

type fakeClassifier struct {
	result domain.ClassificationResult
	err    error
	calls  int
}

func (c *fakeClassifier) Classify(context.Context, string) (domain.ClassificationResult, error) {
	c.calls++
	return c.result, c.err
}

type fakeEntities struct {
	result domain.ExtractedEntities
	err    error
	calls  int
	text   string
}

func (e *fakeEntities) Extract(_ context.Context, text string) (domain.ExtractedEntities, error) {
	e.calls++
	e.text = text
	return e.result, e.err
}

type fakeSummarizer struct {
	result domain.SummarizationResult
	err    error
	calls  int
}

func (s *fakeSummarizer) Summarize(context.Context, string) (domain.SummarizationResult, error) {
	s.calls++
	return s.result, s.err
}
