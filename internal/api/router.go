// Package api wires the HTTP routes of the read API.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/fci-sync/internal/api/handlers"
	custommiddleware "github.com/ndewijer/fci-sync/internal/api/middleware"
	"github.com/ndewijer/fci-sync/internal/config"
	"github.com/ndewijer/fci-sync/internal/service"
)

// Services are the service dependencies of the router.
type Services struct {
	System    *service.SystemService
	Funds     *service.FundService
	Analytics *service.AnalyticsService
	Sync      *service.SyncService
}

// NewRouter creates and configures the HTTP router. Syncs triggered over HTTP
// run under ctx. metrics may be nil.
func NewRouter(ctx context.Context, svcs Services, metrics http.Handler, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(middleware.Recoverer)

	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svcs.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/funds", func(r chi.Router) {
			fundHandler := handlers.NewFundHandler(svcs.Funds)
			r.Get("/", fundHandler.FundClasses)
			r.Route("/{classId}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateClassIDMiddleware)
				r.Get("/", fundHandler.FundClass)
			})
		})

		analyticsHandler := handlers.NewAnalyticsHandler(svcs.Analytics)
		r.Get("/analytics", analyticsHandler.Market)

		syncHandler := handlers.NewSyncHandler(ctx, svcs.Sync)
		r.Get("/status", syncHandler.Status)
		r.Route("/sync", func(r chi.Router) {
			r.Get("/", syncHandler.State)
			r.Post("/", syncHandler.Trigger)
		})
	})

	return r
}
