package api

import (
	"net/http"

	"github.com/bcnelson/support-portal/internal/api/handler"
	"github.com/bcnelson/support-portal/internal/api/middleware"
	"github.com/bcnelson/support-portal/internal/metrics"
	"github.com/bcnelson/support-portal/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configures optional parts of the router.
type Options struct {
	// AllowedOrigins lists the CORS origins; "*" allows any origin.
	AllowedOrigins []string
	// Metrics, when set, records request metrics and serves them on /metrics.
	Metrics *metrics.Metrics
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(svcs *service.Services, log *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log.Named("http"), opts.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.CustomerHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	keyHandler := handler.NewAPIKeyHandler(svcs.Keys, log)
	usageHandler := handler.NewUsageHandler(svcs.Usage, log)
	billingHandler := handler.NewBillingHandler(svcs.Billing, log)
	ticketHandler := handler.NewTicketHandler(svcs.Tickets, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentType)

		// Key creation names the customer in the body.
		r.Post("/keys/create", keyHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCustomer)

			// API Keys
			r.Post("/keys/rotate", keyHandler.Rotate)
			r.Get("/keys/list", keyHandler.List)
			r.Delete("/keys/{key_id}", keyHandler.Revoke)

			// Usage and billing
			r.Get("/usage/stats", usageHandler.Stats)
			r.Get("/billing/history", billingHandler.History)

			// Tickets
			r.Post("/tickets/create", ticketHandler.Create)
			r.Get("/tickets/list", ticketHandler.List)
			r.Get("/tickets/{id}/responses", ticketHandler.Responses)
		})
	})

	return r
}
