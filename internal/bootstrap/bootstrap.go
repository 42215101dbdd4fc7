// Package bootstrap builds the pieces the binaries share from config.
package bootstrap

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/BearBump/ClaimBox/config"
	"github.com/BearBump/ClaimBox/internal/broker/kafka"
	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/integrations/cargo/fake"
	"github.com/BearBump/ClaimBox/internal/metrics"
	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/BearBump/ClaimBox/internal/ratelimit"
	"github.com/BearBump/ClaimBox/internal/services/cancel"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/BearBump/ClaimBox/internal/services/reorder"
	"github.com/BearBump/ClaimBox/internal/services/resolver"
	"github.com/BearBump/ClaimBox/internal/services/search"
	"github.com/BearBump/ClaimBox/internal/storage/pgoutcomes"
	"github.com/pkg/errors"
)

// SetupLogger installs a JSON slog handler at the given level as the default.
func SetupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	l := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(l)
	return l
}

// Closers runs cleanup functions in reverse order.
type Closers []func()

func (c *Closers) Add(fn func()) {
	if fn != nil {
		*c = append(*c, fn)
	}
}

func (c Closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// NewCargoAPI builds the claims API client with its outbound limiters. In
// emulator mode the client talks to an in-process fake.
func NewCargoAPI(cfg *config.Config) (*cargo.API, func(), error) {
	var closers Closers

	baseURL := cfg.Cargo.BaseURL
	token := cfg.Cargo.Token
	if cfg.Cargo.Emulator {
		hs := httptest.NewServer(fake.Demo(time.Now()))
		closers.Add(hs.Close)
		baseURL, token = hs.URL, "emulator"
		slog.Warn("cargo emulator enabled", "url", hs.URL)
	}
	if token == "" {
		return nil, nil, errors.New("cargo token is required (cargo.token or CLAIMBOX_CARGO_TOKEN)")
	}

	limiters := ratelimit.Chain{ratelimit.NewLocal(cfg.Cargo.RPS, cfg.Cargo.Burst)}
	if addr := cfg.RedisAddr(); addr != "" && cfg.ClaimBox.RateLimitPerMinute > 0 {
		prefix := "rl:cargo"
		if cfg.ClaimBox.Client != "" {
			prefix += ":" + cfg.ClaimBox.Client
		}
		rl := ratelimit.NewRedis(addr, prefix, int64(cfg.ClaimBox.RateLimitPerMinute))
		closers.Add(func() { _ = rl.Close() })
		limiters = append(limiters, rl)
	}

	client := cargo.New(baseURL, cfg.Cargo.RoutePrefix, token).
		WithLanguage(cfg.Cargo.Language).
		WithTimeout(time.Duration(cfg.Cargo.TimeoutSeconds) * time.Second).
		WithLimiter(limiters)

	return cargo.NewAPI(client), closers.Close, nil
}

// NewReporter fans outcomes out to the log, prometheus and, when configured,
// kafka and the postgres journal.
func NewReporter(ctx context.Context, cfg *config.Config) (outcome.Reporter, func(), error) {
	var closers Closers
	reps := outcome.Multi{outcome.LogReporter{}, metrics.Reporter{}}

	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		p := kafka.NewProducer(brokers)
		closers.Add(func() { _ = p.Close() })
		reps = append(reps, outcome.NewKafkaReporter(p, cfg.Kafka.ClaimOutcomesTopicName))
	}
	if dsn := cfg.PostgresDSN(); dsn != "" {
		j, err := OpenJournalWithRetry(ctx, dsn, 60*time.Second)
		if err != nil {
			closers.Close()
			return nil, nil, err
		}
		closers.Add(j.Close)
		reps = append(reps, j)
	}
	return reps, closers.Close, nil
}

// OpenJournalWithRetry waits for postgres to accept connections.
func OpenJournalWithRetry(ctx context.Context, dsn string, wait time.Duration) (*pgoutcomes.Journal, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		j, err := pgoutcomes.New(ctx, dsn)
		if err == nil {
			return j, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
}

// ReportStatuses converts configured status names, dropping unknown ones.
func ReportStatuses(names []string) []models.ClaimStatus {
	var out []models.ClaimStatus
	for _, n := range names {
		st := models.ClaimStatus(strings.TrimSpace(n))
		if !st.IsKnown() {
			slog.Warn("unknown report status ignored", "status", n)
			continue
		}
		out = append(out, st)
	}
	return out
}

// Services are the orchestrators every binary drives.
type Services struct {
	Reorder *reorder.Orchestrator
	Cancel  *cancel.Orchestrator
	Search  *search.Engine
}

func NewServices(cfg *config.Config, api *cargo.API, rep outcome.Reporter) Services {
	cb := cfg.ClaimBox
	return Services{
		Reorder: reorder.New(api, rep).
			WithConcurrency(cb.Concurrency).
			WithSameDay(cb.SameDayEnabled()).
			WithAcceptDelay(time.Duration(cb.AcceptDelayMs)*time.Millisecond, cb.AcceptDelayThreshold),
		Cancel: cancel.New(api, resolver.New(api), rep).WithConcurrency(cb.Concurrency),
		Search: search.New(api),
	}
}
