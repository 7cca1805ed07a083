package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// RouterConfig controls the HTTP surface around the catalog
type RouterConfig struct {
	ServiceName   string
	Environment   string
	CORSOrigins   []string
	EnableMetrics bool
	MaxUploadSize int64
	Logger        *slog.Logger
}

// NewRouter mounts the catalog API, health check and optional metrics endpoint
func NewRouter(svc catalog.Service, cfg RouterConfig) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "catalog"
	}

	requestLogger := httplog.NewLogger(cfg.ServiceName, httplog.Options{
		JSON:     cfg.Environment == "production",
		LogLevel: slog.LevelInfo,
		Concise:  true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.EnableMetrics {
		r.Use(MetricsMiddleware)
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/api/health", Health)
	r.Mount("/api/files", NewFilesHandler(svc, cfg.MaxUploadSize, cfg.Logger).Routes())

	return r
}
