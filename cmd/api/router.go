package main

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/stagebox/service/internal/config"
	appMiddleware "github.com/stagebox/service/internal/middleware"
	"github.com/stagebox/service/internal/relay"
	"github.com/stagebox/service/web"
)

func newRouter(cfg *config.Config, uploads *relay.Handler, logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/upload", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
		}
		r.Use(chiMiddleware.Timeout(cfg.UploadTimeout))
		r.Post("/", uploads.Upload)
		r.Get("/{id}", uploads.Get)
		r.Delete("/{id}", uploads.Delete)
	})

	static := http.FileServer(http.FS(web.Static()))
	r.Handle("/*", static)

	return r
}

func newServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		// Bodies of large batches stream in for up to the upload timeout.
		ReadTimeout:  cfg.UploadTimeout + 15*time.Second,
		WriteTimeout: cfg.UploadTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
