package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/ClaimBox/config"
	"github.com/BearBump/ClaimBox/internal/bootstrap"
	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
)

const defaultSwaggerPath = "api/claimbox.swagger.json"

type apiFactories struct {
	newCargoAPI func(cfg *config.Config) (*cargo.API, func(), error)
	newReporter func(ctx context.Context, cfg *config.Config) (outcome.Reporter, func(), error)
}

func defaultAPIFactories() apiFactories {
	return apiFactories{
		newCargoAPI: bootstrap.NewCargoAPI,
		newReporter: bootstrap.NewReporter,
	}
}

type claimAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    claimAPIOpts
	svc     bootstrap.Services
	closers bootstrap.Closers
}

func newClaimAPIApp(ctx context.Context, cfg *config.Config, f apiFactories) (*claimAPIApp, error) {
	app := &claimAPIApp{}

	api, closeAPI, err := f.newCargoAPI(cfg)
	if err != nil {
		return nil, err
	}
	app.closers.Add(closeAPI)

	rep, closeRep, err := f.newReporter(ctx, cfg)
	if err != nil {
		app.closers.Close()
		return nil, err
	}
	app.closers.Add(closeRep)

	httpAddr := cfg.ClaimBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		swaggerPath = defaultSwaggerPath
	}

	app.svc = bootstrap.NewServices(cfg, api, rep)
	app.opts = claimAPIOpts{
		httpAddr:       httpAddr,
		swaggerPath:    swaggerPath,
		reportStatuses: bootstrap.ReportStatuses(cfg.ClaimBox.ReportStatuses),
		timeZone:       cfg.ClaimBox.TimeZone,
	}
	return app, nil
}

func mustBootstrapClaimAPI() *claimAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	bootstrap.SetupLogger(cfg.ClaimBox.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app, err := newClaimAPIApp(ctx, cfg, defaultAPIFactories())
	if err != nil {
		cancel()
		panic(err)
	}
	app.ctx, app.cancel = ctx, cancel
	return app
}

func (a *claimAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.closers.Close()
}

func (a *claimAPIApp) Run() error {
	return runClaimAPI(a.ctx, a.opts, a.svc)
}
