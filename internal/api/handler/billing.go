package handler

import (
	"net/http"

	"github.com/bcnelson/support-portal/internal/api/middleware"
	"github.com/bcnelson/support-portal/internal/service"
	"go.uber.org/zap"
)

// BillingHandler handles billing endpoints.
type BillingHandler struct {
	billing *service.BillingService
	log     *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing *service.BillingService, log *zap.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, log: log}
}

// History returns the caller's recent invoices as a JSON array.
func (h *BillingHandler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.billing.History(r.Context(), middleware.CustomerIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, items)
}
