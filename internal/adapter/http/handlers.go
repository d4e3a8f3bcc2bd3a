package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/port/projectstore"
	"github.com/clipforge/clipforge/internal/service"
)

const maxBodySize = 1 << 20 // 1 MiB

// Pipeline is the slice of the feedback processor the HTTP layer consumes.
type Pipeline interface {
	Process(ctx context.Context, text string, dryRun bool) (*feedback.Item, error)
	ProcessItem(ctx context.Context, id string, dryRun bool) (*feedback.Item, error)
	GetItem(ctx context.Context, id string) (*feedback.Item, error)
	ListFeedback(ctx context.Context, status *feedback.Status) ([]feedback.Item, error)
	GetHistory(ctx context.Context) (*service.HistorySummary, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	pipeline Pipeline
	projects projectstore.Store
	logger   *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(pipeline Pipeline, projects projectstore.Store, logger *slog.Logger) *Handlers {
	return &Handlers{pipeline: pipeline, projects: projects, logger: logger}
}

type submitFeedbackRequest struct {
	FeedbackText string `json:"feedback_text"`
	DryRun       bool   `json:"dry_run"`
}

// SubmitFeedback stores new feedback and runs it through the pipeline
// synchronously. The response carries the item in its final state; a failed
// item is still a 200; the caller inspects status and error_message.
func (h *Handlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitFeedbackRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.FeedbackText, "feedback_text") {
		return
	}

	item, err := h.pipeline.Process(r.Context(), req.FeedbackText, req.DryRun)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type processItemRequest struct {
	DryRun bool `json:"dry_run"`
}

// ProcessItem resumes a stored feedback item from its last completed stage.
func (h *Handlers) ProcessItem(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	var req processItemRequest
	if r.ContentLength > 0 {
		var ok bool
		if req, ok = readJSON[processItemRequest](w, r, maxBodySize); !ok {
			return
		}
	}

	item, err := h.pipeline.ProcessItem(r.Context(), id, req.DryRun)
	if err != nil {
		writeDomainError(w, err, "feedback item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListFeedback returns stored items, optionally filtered by ?status=.
func (h *Handlers) ListFeedback(w http.ResponseWriter, r *http.Request) {
	var status *feedback.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := feedback.ParseStatus(s)
		if err != nil {
			writeDomainError(w, err, "")
			return
		}
		status = &st
	}

	items, err := h.pipeline.ListFeedback(r.Context(), status)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if items == nil {
		items = []feedback.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetFeedback returns one stored item by id.
func (h *Handlers) GetFeedback(w http.ResponseWriter, r *http.Request) {
	item, err := h.pipeline.GetItem(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "feedback item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// GetHistory returns the aggregate feedback history summary.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	summary, err := h.pipeline.GetHistory(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetScript returns the current script document.
func (h *Handlers) GetScript(w http.ResponseWriter, r *http.Request) {
	doc, err := h.projects.LoadScript(r.Context())
	if err != nil {
		writeDomainError(w, err, "script not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
