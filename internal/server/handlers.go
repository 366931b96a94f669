package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"breachstudy/internal/enrich"
	apierrors "breachstudy/internal/errors"
	"breachstudy/internal/regress"
	"breachstudy/internal/store"
)

// RunStore is the slice of the results store the API needs.
type RunStore interface {
	ListRuns(ctx context.Context) ([]*store.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*store.RunRecord, error)
	LoadEstimates(ctx context.Context, runID string) ([]*regress.Estimate, error)
	LoadAttrition(ctx context.Context, runID string) (*enrich.AttritionAudit, error)
}

// Handler serves run results over JSON.
type Handler struct {
	store  RunStore
	logger *slog.Logger
}

// NewHandler creates a results handler.
func NewHandler(st RunStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  st,
		logger: logger.With(slog.String("component", "results_handler")),
	}
}

// Routes returns the results API routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/runs", h.ListRuns)
	r.Route("/runs/{runID}", func(r chi.Router) {
		r.Use(h.RunCtx)
		r.Get("/", h.GetRun)
		r.Get("/estimates", h.GetEstimates)
		r.Get("/attrition", h.GetAttrition)
	})

	return r
}

// RunCtx validates the runID parameter and loads the run into context.
func (h *Handler) RunCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runID")
		if runID == "" {
			h.renderError(w, r, apierrors.ErrValidation("runID", "Run ID is required"))
			return
		}

		run, err := h.store.GetRun(r.Context(), runID)
		if err != nil {
			h.renderStoreError(w, r, err, "run")
			return
		}

		ctx := context.WithValue(r.Context(), runRecordKey, run)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const runRecordKey contextKey = "run-record"

func runFromContext(ctx context.Context) *store.RunRecord {
	run, _ := ctx.Value(runRecordKey).(*store.RunRecord)
	return run
}

// ListRuns returns all recorded pipeline runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		h.renderStoreError(w, r, err, "runs")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns a single run record.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()))
}

// GetEstimates returns all regression estimates saved for a run.
func (h *Handler) GetEstimates(w http.ResponseWriter, r *http.Request) {
	run := runFromContext(r.Context())
	estimates, err := h.store.LoadEstimates(r.Context(), run.RunID)
	if err != nil {
		h.renderStoreError(w, r, err, "estimates")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"run_id":    run.RunID,
		"estimates": estimates,
		"count":     len(estimates),
	})
}

// GetAttrition returns the sample attrition audit for a run.
func (h *Handler) GetAttrition(w http.ResponseWriter, r *http.Request) {
	run := runFromContext(r.Context())
	audit, err := h.store.LoadAttrition(r.Context(), run.RunID)
	if err != nil {
		h.renderStoreError(w, r, err, "attrition audit")
		return
	}

	render.JSON(w, r, audit)
}

func (h *Handler) renderStoreError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	var appErr *apierrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apierrors.ErrTypeNotFound {
		h.renderError(w, r, apierrors.NotFoundError(resource))
		return
	}

	h.logger.ErrorContext(r.Context(), "store query failed",
		slog.String("resource", resource),
		slog.String("error", err.Error()))
	h.renderError(w, r, apierrors.ErrInternalServer)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	renderAPIError(w, r, h.logger, apiErr)
}
