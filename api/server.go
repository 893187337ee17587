/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a dashboard frontend

ROUTE GROUPS:
  /api/state, /api/kpis, ...   Read the current state
  /api/intents, /api/ticks     Drive the simulation
  /api/scenarios/*             Preset scenarios
  /metrics                     Prometheus scrape endpoint
  /ws/telemetry                Websocket event stream

SECURITY NOTE:
  No authentication middleware. All endpoints are public; run behind a
  gateway when exposed beyond localhost.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/workforce/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultOrigins is used when NewRouter gets no origins.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/state/digest", h.GetDigest)
		r.Get("/kpis", h.GetKPIs)
		r.Get("/warnings", h.GetWarnings)
		r.Get("/payroll", h.GetPayroll)
		r.Get("/market", h.GetMarket)
		r.Get("/events", h.ListEvents)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{id}", h.GetEmployee)
		})
		r.Get("/tasks", h.ListTasks)

		r.Route("/intents", func(r chi.Router) {
			r.Get("/", h.ListPendingIntents)
			r.Post("/", h.SubmitIntents)
		})
		r.Post("/ticks", h.StepTicks)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	if h.Metrics != nil {
		r.Method("GET", "/metrics", h.Metrics)
	}
	if h.Telemetry != nil {
		r.Method("GET", "/ws/telemetry", h.Telemetry)
	}

	return r
}
