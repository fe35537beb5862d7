// Package app contains the application setup for the product hub.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/producthub/internal/cache"
	"github.com/abgdnv/producthub/internal/config"
	"github.com/abgdnv/producthub/internal/remote"
	"github.com/abgdnv/producthub/internal/service"
	"github.com/abgdnv/producthub/internal/transport/rest"
	"github.com/abgdnv/producthub/internal/validation"
	"github.com/abgdnv/producthub/pkg/client/httpclient"
	"github.com/abgdnv/producthub/pkg/server"
	"github.com/go-chi/chi/v5"
)

type Dependencies struct {
	CatalogService *service.Service
	Logger         *slog.Logger
	// MetricsHandler serves the Prometheus registry. Nil when metrics are disabled.
	MetricsHandler http.Handler
	MetricsPath    string
}

// SetupDependencies builds the resilient remote client, the cache and the service.
func SetupDependencies(cfg *config.Config, logger *slog.Logger, metricsHandler http.Handler) (*Dependencies, error) {
	httpClient := httpclient.New("catalog", cfg.Catalog.Client, cfg.Resilience.CircuitBreaker, logger)
	return setupDependencies(cfg, httpClient, logger, metricsHandler)
}

func setupDependencies(cfg *config.Config, httpClient *http.Client, logger *slog.Logger, metricsHandler http.Handler) (*Dependencies, error) {
	api, err := remote.NewClient(cfg.Catalog.Client.URL, httpClient, cfg.Catalog.SearchLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}
	svc := service.NewService(
		api,
		cache.New(cfg.Catalog.PageSize),
		validation.New(),
		logger,
		service.Options{SettleDelay: cfg.Catalog.RefreshDelay},
	)
	return &Dependencies{
		CatalogService: svc,
		Logger:         logger,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Telemetry.Metrics.Path,
	}, nil
}

// SetupHttpHandler initializes the router with middleware and routes.
// Used by tests to exercise the full HTTP stack.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the product hub.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	catalogHandler := rest.NewHandler(deps.CatalogService, deps.Logger)
	catalogHandler.RegisterRoutes(mux)
	if deps.MetricsHandler != nil {
		mux.Handle(deps.MetricsPath, deps.MetricsHandler)
	}
}

// SetupHttpServer creates and configures the HTTP server of the product hub.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {

	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, "producthub", mux)
}
