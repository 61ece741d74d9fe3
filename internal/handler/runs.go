package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/josh-kwaku/isp-billing/internal/domain"
)

type runReader interface {
	Latest(ctx context.Context, anchor domain.BillingAnchor) (*domain.BillingRun, error)
}

// RunsHandler reports recorded billing runs to operators.
type RunsHandler struct {
	runs runReader
}

func NewRunsHandler(runs runReader) *RunsHandler {
	return &RunsHandler{runs: runs}
}

type runResponse struct {
	ID          string                        `json:"id"`
	Anchor      int                           `json:"anchor"`
	RunDate     string                        `json:"run_date"`
	StartedAt   string                        `json:"started_at"`
	CompletedAt string                        `json:"completed_at"`
	Summary     domain.BillingRunSummary      `json:"summary"`
	Results     []domain.ServiceBillingResult `json:"results,omitempty"`
}

// Latest serves GET /runs/latest?anchor=N. Per-service results are included
// only when results=true.
func (h *RunsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.URL.Query().Get("anchor"))
	if err != nil {
		RespondAppError(w, r, ErrInvalidRequest, map[string]string{"anchor": "must be one of 1, 5, 25, 30"})
		return
	}
	anchor, err := domain.ParseBillingAnchor(day)
	if err != nil {
		RespondAppError(w, r, ErrInvalidRequest, map[string]string{"anchor": "must be one of 1, 5, 25, 30"})
		return
	}

	run, err := h.runs.Latest(r.Context(), anchor)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	resp := runResponse{
		ID:          run.ID.String(),
		Anchor:      run.Anchor.Day(),
		RunDate:     run.RunDate.Format(time.DateOnly),
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt: run.CompletedAt.UTC().Format(time.RFC3339),
		Summary:     run.Summary,
	}
	if r.URL.Query().Get("results") == "true" {
		resp.Results = run.Results
	}
	RespondSuccess(w, r, resp)
}
