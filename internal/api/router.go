package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iplweb/dkp/internal/api/middleware"
	"github.com/iplweb/dkp/internal/handlers"
	"github.com/iplweb/dkp/internal/presence"
	"github.com/iplweb/dkp/internal/store"
	"github.com/iplweb/dkp/internal/ws"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, db store.DataStore, pres presence.Store, wsHandler *ws.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Websocket endpoints stay outside the wrapped-response middleware
	// stack: the upgrade needs the raw hijackable ResponseWriter. The
	// monitor route is registered first; it is a special case of the
	// generic pattern and must win the match.
	r.Get("/ws/comms/Anesthetist/ward/{ward_id}", wsHandler.ServeMonitor)
	r.Get("/ws/comms/{role}/{location_type}/{location_id}", wsHandler.ServePeer)

	r.Group(func(r chi.Router) {
		// Metrics middleware (first to capture all requests)
		r.Use(middleware.Metrics)

		// Security middleware
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
		r.Use(middleware.ValidateRequest)

		// Standard middleware
		r.Use(chimw.RequestID)
		r.Use(chimw.RealIP)
		r.Use(middleware.Logger(logger))
		r.Use(chimw.Recoverer)

		// CORS - the reference endpoints are read by UIs served elsewhere
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		h := handlers.NewHandler(db, pres)

		// Metrics endpoint (for Prometheus scraping)
		r.Handle("/metrics", promhttp.Handler())

		r.Get("/health", h.Health)

		r.Route("/api", func(r chi.Router) {
			r.Get("/wards", h.ListWards)
			r.Get("/operating-rooms", h.ListOperatingRooms)
			r.Get("/message-types", h.ListMessageTypes)
			r.Get("/messages", h.ListMessages)
		})
	})

	return r
}
