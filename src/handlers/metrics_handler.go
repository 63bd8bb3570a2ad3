package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/username/fundsight/backend/src/models"
	"github.com/username/fundsight/backend/src/processors"
	"github.com/username/fundsight/backend/src/utils"
)

type MetricsHandler struct {
	calculator *processors.MetricsCalculator
	log        *slog.Logger
}

func NewMetricsHandler(calculator *processors.MetricsCalculator, log *slog.Logger) *MetricsHandler {
	return &MetricsHandler{calculator: calculator, log: log}
}

// HandleGetFundMetrics returns the full metrics report for a fund.
func (h *MetricsHandler) HandleGetFundMetrics(w http.ResponseWriter, r *http.Request) {
	fundID, ok := h.fundIDFromPath(w, r)
	if !ok {
		return
	}
	metrics := h.calculator.CalculateAllMetrics(fundID)
	utils.SendJSON(w, metrics, http.StatusOK)
}

// HandleGetCalculationBreakdown returns the audit trail for a single metric.
func (h *MetricsHandler) HandleGetCalculationBreakdown(w http.ResponseWriter, r *http.Request) {
	fundID, ok := h.fundIDFromPath(w, r)
	if !ok {
		return
	}
	metric := r.PathValue("metric")
	breakdown := h.calculator.GetCalculationBreakdown(fundID, metric)
	if bErr, isErr := breakdown.(models.BreakdownError); isErr {
		utils.SendJSON(w, bErr, http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, breakdown, http.StatusOK)
}

func (h *MetricsHandler) fundIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	fundID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Fund ID must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return fundID, true
}
