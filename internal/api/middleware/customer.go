package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bcnelson/support-portal/internal/domain"
)

type contextKey string

const customerIDContextKey contextKey = "customer_id"

// CustomerHeader carries the caller's customer identifier.
const CustomerHeader = "X-Customer-ID"

// RequireCustomer rejects requests without a customer identifier and stores
// the identifier in the request context.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := strings.TrimSpace(r.Header.Get(CustomerHeader))
		if customerID == "" {
			writeError(w, http.StatusUnauthorized, "Customer ID required")
			return
		}

		ctx := context.WithValue(r.Context(), customerIDContextKey, customerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CustomerIDFromContext retrieves the customer identifier from the request context.
func CustomerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(customerIDContextKey).(string)
	return id
}

// ContentType sets the JSON content type on responses.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&domain.APIError{Code: status, Message: message})
}
