// Package httpadapter exposes the processing pipeline over HTTP:
//
//	POST /v1/evidence/{id}/process  start processing (async by default)
//	GET  /v1/evidence/{id}/status   lifecycle status plus result previews
//	GET  /healthz                   liveness
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
	"github.com/caseflow-io/evidence-pipeline/internal/core/ports"
	"github.com/caseflow-io/evidence-pipeline/internal/observability/metrics"
)

type Router struct {
	processor ports.EvidenceProcessor
	options   RouterOptions
}

type RouterOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	Metrics        *metrics.HTTPServerMetrics
	Service        string
}

func NewRouter(processor ports.EvidenceProcessor, options RouterOptions) *Router {
	return &Router{processor: processor, options: options}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/evidence/", rt.evidence)

	var handler http.Handler = mux
	if rt.options.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.options.MaxInFlight, defaultBackpressureWait)
	}
	if rt.options.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.options.RateLimitRPS, rt.options.RateLimitBurst)
	}
	if rt.options.Metrics != nil {
		handler = rt.options.Metrics.Middleware(rt.service(), handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) service() string {
	if rt.options.Service != "" {
		return rt.options.Service
	}
	return "evidence-api"
}

func (rt *Router) recordSubmission(mode string, err error) {
	if rt.options.Metrics == nil {
		return
	}
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	rt.options.Metrics.RecordSubmission(rt.service(), mode, outcome)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// evidence dispatches /v1/evidence/{id}/{action}.
func (rt *Router) evidence(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/evidence/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	evidenceID, action := parts[0], parts[1]

	switch action {
	case "process":
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		rt.process(w, r, evidenceID)
	case "status":
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		rt.status(w, r, evidenceID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

type processRequest struct {
	Async   *bool                   `json:"async,omitempty"`
	Force   bool                    `json:"force,omitempty"`
	Options domain.ProcessorOptions `json:"options,omitempty"`
}

func (rt *Router) process(w http.ResponseWriter, r *http.Request, evidenceID string) {
	var req processRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	opts := req.Options
	opts.Force = opts.Force || req.Force

	async := true
	if req.Async != nil {
		async = *req.Async
	}

	if !async {
		result, err := rt.processor.Process(r.Context(), evidenceID, opts)
		rt.recordSubmission("sync", err)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	jobID, err := rt.processor.Queue(r.Context(), evidenceID, opts)
	rt.recordSubmission("async", err)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if jobID == "" {
		// Already completed and no force: answer with the current state.
		rt.status(w, r, evidenceID)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      jobID,
		"evidence_id": evidenceID,
		"status":      string(domain.JobQueued),
	})
}

func (rt *Router) status(w http.ResponseWriter, r *http.Request, evidenceID string) {
	status, err := rt.processor.GetStatus(r.Context(), evidenceID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
