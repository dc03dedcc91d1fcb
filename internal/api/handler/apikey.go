package handler

import (
	"net/http"

	"github.com/bcnelson/support-portal/internal/api/middleware"
	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/service"
	"github.com/bcnelson/support-portal/internal/validation"
	"go.uber.org/zap"
)

// revokedMessage is returned by every revoke call, whether or not a key changed.
const revokedMessage = "API key revoked"

// APIKeyHandler handles API key endpoints.
type APIKeyHandler struct {
	keys *service.KeyService
	log  *zap.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keys *service.KeyService, log *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, log: log}
}

// Create issues a new API key. The customer is named in the body, not the header.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := validation.ValidateCreateAPIKey(&req); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	issued, err := h.keys.Create(r.Context(), req.CustomerID, req.Name)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, issued)
}

// Rotate replaces the caller's key with a new one.
func (h *APIKeyHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	var req domain.RotateAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := validation.ValidateRotateAPIKey(&req); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	customerID := middleware.CustomerIDFromContext(r.Context())
	issued, err := h.keys.Rotate(r.Context(), customerID, req.OldKey)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, issued)
}

// List lists the caller's API keys (without the actual key values).
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), middleware.CustomerIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, &domain.APIKeyList{Keys: keys})
}

// Revoke revokes one of the caller's keys.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "key_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	if err := h.keys.Revoke(r.Context(), middleware.CustomerIDFromContext(r.Context()), id); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": revokedMessage})
}
