package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/discount-allocator/internal/api/dto"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/storage"
)

// BackfillHandler handles historical back-fill requests.
type BackfillHandler struct {
	*Base
	runner BatchRunner
	logger *slog.Logger
}

// NewBackfillHandler creates a new back-fill handler.
// runner may be nil, in which case Run responds 404.
func NewBackfillHandler(repo storage.Repository, runner BatchRunner, logger *slog.Logger) *BackfillHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackfillHandler{
		Base:   NewBase(repo),
		runner: runner,
		logger: logger,
	}
}

// Run handles POST /api/backfill - processes one batch.
func (h *BackfillHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("backfill runner"))
		return
	}

	pageSize, ok := ParseIntParam(r, "page_size", 0)
	if !ok || pageSize < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("page_size must be a non-negative integer"))
		return
	}

	result, err := h.runner.RunBatch(r.Context(), pageSize)
	if err != nil {
		h.logger.Error("Backfill batch failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.BackfillResponse{
		RunID:     result.RunID,
		Label:     result.Label,
		Selected:  result.Selected,
		Migrated:  result.Migrated,
		Remaining: result.Remaining,
		Failed:    result.Failed,
		Errors:    make([]dto.BackfillErrorResponse, 0, len(result.Errors)),
	}
	for _, e := range result.Errors {
		response.Errors = append(response.Errors, dto.BackfillErrorResponse{OrderID: e.OrderID, Message: e.Message})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// ListRuns handles GET /api/backfill/runs - returns recent batches.
func (h *BackfillHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := ParseIntParam(r, "limit", dto.DefaultBackfillRunListParams().Limit)
	if !ok || limit <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("limit must be a positive integer"))
		return
	}

	runs, err := h.repo.ListBackfillRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.BackfillRunListResponse{
		Runs:  make([]dto.BackfillRunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// GetRun handles GET /api/backfill/runs/{id} - returns a single batch by ID.
func (h *BackfillHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}

	run, err := h.repo.GetBackfillRun(id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("backfill run"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

func toRunResponse(run storage.BackfillRun) dto.BackfillRunResponse {
	return dto.BackfillRunResponse{
		ID:              run.ID,
		Label:           run.Label,
		Cutoff:          run.Cutoff,
		PageSize:        run.PageSize,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		OrdersSelected:  run.OrdersSelected,
		OrdersMigrated:  run.OrdersMigrated,
		OrdersErrored:   run.OrdersErrored,
		OrdersRemaining: run.OrdersRemaining,
		Status:          run.Status,
	}
}
