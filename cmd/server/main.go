package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/vericloud/vericloud/pkg/vericloud/api"
	"github.com/vericloud/vericloud/pkg/vericloud/config"
)

// processConfig holds process-level settings that do not belong in the
// storage library configuration.
type processConfig struct {
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" env-default:"http://localhost:3000,http://127.0.0.1:3000"`
}

func main() {
	var proc processConfig
	if err := cleanenv.ReadEnv(&proc); err != nil {
		slog.Error("failed to read process configuration", "error", err)
		os.Exit(1)
	}

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("failed to load server configuration", "error", err)
		os.Exit(1)
	}

	svc, err := serverConfig.BuildService()
	if err != nil {
		slog.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(svc, serverConfig.MaxUploadSize)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: routes(handler, serverConfig, proc),
	}

	go func() {
		slog.Info("vericloud server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"storage_backend", serverConfig.StorageBackend,
			"metadata_backend", serverConfig.MetadataBackend)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), proc.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exiting")
}

func routes(handler *api.Handler, serverConfig *config.ServerConfig, proc processConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(proc.RequestTimeout))

	if serverConfig.Environment == "development" {
		r.Use(corsMiddleware(proc.CORSOrigins))
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{
			"message": "Vericloud API is running",
			"status":  "active",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Mount("/api", handler.Routes())

	return r
}

// corsMiddleware allows the configured development origins, mirroring the
// settings the React dev server expects.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if slices.Contains(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
