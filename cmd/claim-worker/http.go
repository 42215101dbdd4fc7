package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/ClaimBox/config"
	"github.com/BearBump/ClaimBox/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type workerHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	handler *outcomeHandler
	cfg     *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newWorkerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.HTTP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.handler == nil {
			_, _ = w.Write([]byte(`{"error":"handler not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.handler.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Только рабочие настройки, без токенов и паролей.
		cb := opts.cfg.ClaimBox
		out := map[string]any{
			"topic":              outcomesTopic(opts.cfg),
			"consumerGroup":      consumerGroup(opts.cfg),
			"cancelOriginals":    cb.CancelOriginals,
			"concurrency":        cb.Concurrency,
			"rateLimitPerMinute": cb.RateLimitPerMinute,
			"cargoRPS":           opts.cfg.Cargo.RPS,
			"emulator":           opts.cfg.Cargo.Emulator,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
