package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/bookswap-backend/internal/api/handlers"
	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/auth"
	"github.com/baharkarakas/bookswap-backend/internal/config"
	"github.com/baharkarakas/bookswap-backend/internal/metrics"
	"github.com/baharkarakas/bookswap-backend/internal/middleware"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/services"
)

type RouterDeps struct {
	Cfg         config.Config
	Log         *slog.Logger
	Tokens      *auth.TokenManager
	Users       *services.UserService
	Exchanges   *services.ExchangeService
	Catalog     *services.CatalogService
	Collections *services.CollectionService
	// Health reports storage readiness. Nil means always healthy.
	Health func(r *http.Request) error
}

func NewRouter(d RouterDeps) http.Handler {
	authH := handlers.NewAuthHandler(d.Users)
	exH := handlers.NewExchangeHandler(d.Exchanges)
	bookH := handlers.NewBookHandler(d.Catalog)
	colH := handlers.NewCollectionHandler(d.Collections)
	adminH := &handlers.AdminHandler{Users: d.Users, Exchanges: d.Exchanges, Catalog: d.Catalog}
	authMW := middleware.NewAuthMiddleware(d.Tokens)
	limit := middleware.RateLimit(d.Cfg.RateRPS, d.Cfg.RateBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID(d.Log), middleware.Recover, middleware.HTTPMetrics, middleware.AccessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(r); err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "storage unavailable", nil)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/auth/register", authH.Register)
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/refresh", authH.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth, limit)

			r.Get("/me", authH.Me)

			// ---------- books ----------
			r.Get("/books", bookH.List)
			r.Post("/books", bookH.Create)
			r.Get("/books/available", bookH.Available)
			r.Get("/books/{id}", bookH.Get)
			r.Put("/books/{id}", bookH.Update)
			r.Delete("/books/{id}", bookH.Delete)

			// ---------- exchanges ----------
			r.Post("/exchanges", exH.Propose)
			r.Get("/exchanges", exH.List)
			r.Get("/exchanges/{id}", exH.Get)
			r.Get("/exchanges/{id}/history", exH.History)
			r.Post("/exchanges/{id}/respond", exH.Respond)
			r.Post("/exchanges/{id}/advance", exH.Advance)

			// ---------- collections ----------
			r.Get("/collections", colH.List)
			r.Post("/collections", colH.Create)
			r.Get("/collections/{id}", colH.Get)
			r.Put("/collections/{id}", colH.Rename)
			r.Delete("/collections/{id}", colH.Delete)
			r.Post("/collections/{id}/books", colH.AddBooks)
			r.Delete("/collections/{id}/books/{bookID}", colH.RemoveBook)

			// ---------- admin ----------
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Get("/users", adminH.ListUsers)
				r.Put("/users/{id}/role", adminH.SetRole)
				r.Get("/exchanges", adminH.ListExchanges)
				r.Delete("/books/{id}", adminH.DeleteBook)
			})
		})
	})

	return r
}
