package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/booth-access/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig is everything NewRouter needs.
type RouterConfig struct {
	Access            *service.AccessService
	Admin             *service.AdminService
	AdminKey          string
	CORSOrigins       []string
	RequestsPerSecond float64
	RequestBurst      int
	EnableMetrics     bool
}

// NewRouter builds the HTTP routing tree.
func NewRouter(cfg RouterConfig) http.Handler {
	access := NewAccessHandler(cfg.Access)
	admin := NewAdminHandler(cfg.Admin)
	throttle := NewThrottle(cfg.RequestsPerSecond, cfg.RequestBurst)

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/health", HealthCheck)
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(throttle.Limit)
		r.Post("/", access.StartSession)
		r.Get("/current", access.CurrentSession)
		r.Post("/current/refresh", access.RefreshSession)
		r.Delete("/current", access.EndSession)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(throttle.Limit)
		r.Use(AdminAuth(cfg.AdminKey))

		r.Route("/booths/{id}", func(r chi.Router) {
			r.Post("/code", admin.AssignCode)
			r.Put("/code", admin.RegenerateCode)
			r.Delete("/code", admin.RevokeCode)
			r.Get("/code.png", admin.CodeQR)
			r.Get("/operators", admin.ListOperators)
		})
		r.Post("/operations/{id}/end", admin.EndOperation)
		r.Get("/stats", admin.Stats)
	})

	return r
}
