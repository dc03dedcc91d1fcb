package handler

import (
	"net/http"

	"github.com/bcnelson/support-portal/internal/api/middleware"
	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/service"
	"github.com/bcnelson/support-portal/internal/validation"
	"go.uber.org/zap"
)

// TicketHandler handles support ticket endpoints.
type TicketHandler struct {
	tickets *service.TicketService
	log     *zap.Logger
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(tickets *service.TicketService, log *zap.Logger) *TicketHandler {
	return &TicketHandler{tickets: tickets, log: log}
}

// Create submits a new ticket.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := validation.ValidateCreateTicket(&req); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	resp, err := h.tickets.Create(r.Context(), middleware.CustomerIDFromContext(r.Context()), &req)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// List lists the caller's tickets.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.List(r.Context(), middleware.CustomerIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, &domain.TicketList{Tickets: tickets})
}

// Responses lists the thread of one of the caller's tickets.
func (h *TicketHandler) Responses(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	responses, err := h.tickets.Responses(r.Context(), middleware.CustomerIDFromContext(r.Context()), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, &domain.TicketResponseList{Responses: responses})
}
