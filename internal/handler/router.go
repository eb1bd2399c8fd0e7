package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the optional pieces NewRouter wires around the
// facility routes.
type RouterConfig struct {
	CORSOrigin string
	// Limiter throttles booking per client. Nil disables throttling.
	Limiter *RateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     *logger.Logger
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *FacilityHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(cfg.Log))
	r.Use(CORS(cfg.CORSOrigin))

	r.Get("/health", HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	routes := func(r chi.Router) {
		r.Get("/", h.ListFacilities)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/capacity", h.GetCapacity)
			r.With(RateLimit(cfg.Limiter)).Post("/book", h.Book)
			r.Get("/reservations", h.ListReservations)
			r.Post("/sensor", h.ReportSensor)
			r.Get("/sensor-readings", h.SensorReadings)
		})
	}
	r.Route("/facilities", routes)
	r.Route("/gyms", routes)

	return r
}
