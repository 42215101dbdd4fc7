package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	claimsapi "github.com/BearBump/ClaimBox/internal/api/claims_api"
	"github.com/BearBump/ClaimBox/internal/bootstrap"
	"github.com/BearBump/ClaimBox/internal/metrics"
	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type claimAPIOpts struct {
	httpAddr    string
	swaggerPath string

	reportStatuses []models.ClaimStatus
	timeZone       func(country string) (int, bool)

	onListen func(httpAddr string)
}

func runClaimAPI(ctx context.Context, opts claimAPIOpts, svc bootstrap.Services) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newRouter(opts, svc), ReadHeaderTimeout: 5 * time.Second}

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		// Батч, который уже идёт, доживает до конца в пределах таймаута.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func newRouter(opts claimAPIOpts, svc bootstrap.Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reorder": svc.Reorder.Stats(),
			"cancel":  svc.Cancel.Stats(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	claimsapi.New(svc.Reorder, svc.Cancel, svc.Search).
		WithReport(opts.reportStatuses, opts.timeZone).
		Routes(r)
	return r
}
