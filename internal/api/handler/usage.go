package handler

import (
	"net/http"

	"github.com/bcnelson/support-portal/internal/api/middleware"
	"github.com/bcnelson/support-portal/internal/service"
	"go.uber.org/zap"
)

// UsageHandler handles usage endpoints.
type UsageHandler struct {
	usage *service.UsageService
	log   *zap.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage *service.UsageService, log *zap.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, log: log}
}

// Stats returns the caller's usage summary.
func (h *UsageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.usage.Stats(r.Context(), middleware.CustomerIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
