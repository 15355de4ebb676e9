// Package handler provides the HTTP query API over ingested budget data.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/budget/repository"
	"github.com/FACorreiaa/federal-budget-tracker/pkg/observability"
)

// BudgetHandler serves outlay aggregations and import batch lookups
type BudgetHandler struct {
	repo   repository.BudgetRepository
	logger *slog.Logger
}

// NewBudgetHandler constructs a new handler
func NewBudgetHandler(repo repository.BudgetRepository, logger *slog.Logger) *BudgetHandler {
	return &BudgetHandler{repo: repo, logger: logger}
}

// Routes mounts the query API under the given router
func (h *BudgetHandler) Routes(r chi.Router) {
	r.Get("/outlays", h.handleOutlays)
	r.Get("/batches/{batchID}", h.handleGetBatch)
}

type outlaysResponse struct {
	Data []*repository.OutlaySummary `json:"data"`
	// GrandTotal is the sum over all buckets, in thousands of dollars.
	GrandTotal int64 `json:"grand_total"`
	Count      int   `json:"count"`
}

// handleOutlays returns outlay totals grouped by agency, budget function,
// fiscal year and period. All filters are optional.
func (h *BudgetHandler) handleOutlays(w http.ResponseWriter, r *http.Request) {
	filter := repository.OutlayFilter{
		Period:       r.URL.Query().Get("period"),
		AgencyCode:   r.URL.Query().Get("agency"),
		FunctionCode: r.URL.Query().Get("function"),
	}

	if raw := r.URL.Query().Get("fiscal_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, "/v1/outlays", http.StatusBadRequest, "invalid fiscal_year")
			return
		}
		filter.FiscalYear = year
	}

	summaries, err := h.repo.SummarizeOutlays(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to summarize outlays", "error", err)
		h.writeError(w, "/v1/outlays", http.StatusInternalServerError, "query failed")
		return
	}
	if summaries == nil {
		summaries = []*repository.OutlaySummary{}
	}

	var grandTotal int64
	for _, s := range summaries {
		grandTotal += s.TotalAmount
	}

	h.writeJSON(w, "/v1/outlays", outlaysResponse{
		Data:       summaries,
		GrandTotal: grandTotal,
		Count:      len(summaries),
	})
}

// handleGetBatch returns one import batch's ledger record
func (h *BudgetHandler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/batches/{batchID}"

	id, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		h.writeError(w, route, http.StatusBadRequest, "invalid batch ID")
		return
	}

	batch, err := h.repo.GetImportBatch(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get import batch", "batch_id", id, "error", err)
		h.writeError(w, route, http.StatusInternalServerError, "query failed")
		return
	}
	if batch == nil {
		h.writeError(w, route, http.StatusNotFound, "batch not found")
		return
	}

	h.writeJSON(w, route, batch)
}

func (h *BudgetHandler) writeJSON(w http.ResponseWriter, route string, payload any) {
	observability.QueryRequestsTotal.WithLabelValues(route, strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *BudgetHandler) writeError(w http.ResponseWriter, route string, code int, message string) {
	observability.QueryRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
