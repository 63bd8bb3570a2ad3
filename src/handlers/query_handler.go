package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/username/fundsight/backend/src/services"
	"github.com/username/fundsight/backend/src/utils"
)

type QueryHandler struct {
	query *services.QueryService
	log   *slog.Logger
}

func NewQueryHandler(query *services.QueryService, log *slog.Logger) *QueryHandler {
	return &QueryHandler{query: query, log: log}
}

type queryRequest struct {
	Query  string `json:"query"`
	FundID *int64 `json:"fund_id,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}

// HandleQuery answers a natural-language question grounded on the
// ingested statement text, optionally scoped to a single fund.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		utils.SendJSONError(w, "Query cannot be empty", http.StatusBadRequest)
		return
	}

	result, err := h.query.Answer(r.Context(), req.Query, req.FundID, req.TopK)
	if err != nil {
		h.log.Error("Failed to answer query", "error", err)
		utils.SendJSONError(w, "An internal error occurred while answering the query.", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}
