// Package api provides HTTP handlers for the semantic query compiler.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"semsql/internal/domain"
	"semsql/internal/service/generator"
	"semsql/internal/service/semantic"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// maxBatchQuestions bounds POST /v1/generate/batch.
const maxBatchQuestions = 100

// semanticService defines the compiler operations used by the handler.
type semanticService interface {
	Compile(ctx context.Context, gq domain.GeneratedQuery) (string, error)
	Explain(ctx context.Context, gq domain.GeneratedQuery) (*semantic.QueryPlan, error)
	Run(ctx context.Context, gq domain.GeneratedQuery) (*semantic.RunResult, error)
}

// generationService defines the question pipeline used by the handler.
type generationService interface {
	Answer(ctx context.Context, q generator.Question) (*generator.Answer, error)
	AnswerAll(ctx context.Context, questions []generator.Question) ([]generator.BatchResult, error)
}

// Handler serves the compile, explain, generate and run endpoints.
type Handler struct {
	semantic  semanticService
	generator generationService
	logger    *slog.Logger
}

// NewHandler creates a Handler. gen may be nil, in which case generation
// endpoints answer 503.
func NewHandler(svc semanticService, gen generationService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{semantic: svc, generator: gen, logger: logger}
}

// CompileResponse is the body of POST /v1/compile.
type CompileResponse struct {
	SQL string `json:"sql"`
}

// RunResponse is the body of POST /v1/run.
type RunResponse struct {
	SQL       string          `json:"sql"`
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	TotalRows int             `json:"total_rows"`
}

// BatchRequest is the body of POST /v1/generate/batch.
type BatchRequest struct {
	Questions []generator.Question `json:"questions"`
}

// BatchResponse is the body returned by POST /v1/generate/batch.
type BatchResponse struct {
	Results []generator.BatchResult `json:"results"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Compile translates a generated query into SQL.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	var gq domain.GeneratedQuery
	if err := decodeBody(w, r, &gq); err != nil {
		h.writeError(w, r, err)
		return
	}
	sql, err := h.semantic.Compile(r.Context(), gq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompileResponse{SQL: sql})
}

// Explain compiles a generated query and returns its plan.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var gq domain.GeneratedQuery
	if err := decodeBody(w, r, &gq); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.semantic.Explain(r.Context(), gq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Run compiles a generated query and executes it against the warehouse.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var gq domain.GeneratedQuery
	if err := decodeBody(w, r, &gq); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.semantic.Run(r.Context(), gq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{
		SQL:       out.Plan.SQL,
		Columns:   out.Result.Columns,
		Rows:      out.Result.Rows,
		TotalRows: out.Result.TotalRows,
	})
}

// Generate answers one natural-language question.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		h.writeError(w, r, domain.ErrNotConfigured("generator"))
		return
	}
	var q generator.Question
	if err := decodeBody(w, r, &q); err != nil {
		h.writeError(w, r, err)
		return
	}
	ans, err := h.generator.Answer(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// GenerateBatch answers several questions concurrently. Per-question failures
// are reported inside the results.
func (h *Handler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		h.writeError(w, r, domain.ErrNotConfigured("generator"))
		return
	}
	var req BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.Questions) == 0 {
		h.writeError(w, r, domain.ErrValidation("questions must not be empty"))
		return
	}
	if len(req.Questions) > maxBatchQuestions {
		h.writeError(w, r, domain.ErrValidation("at most %d questions per batch", maxBatchQuestions))
		return
	}
	results, err := h.generator.AnswerAll(r.Context(), req.Questions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Results: results})
}

// decodeBody reads a single JSON document into dst. Unknown fields are rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domain.ErrValidation("request body is required")
		case errors.As(err, &tooLarge):
			return domain.ErrValidation("request body exceeds %d bytes", tooLarge.Limit)
		default:
			return domain.ErrValidation("invalid request body: %v", err)
		}
	}
	if dec.More() {
		return domain.ErrValidation("request body must contain a single JSON document")
	}
	return nil
}
