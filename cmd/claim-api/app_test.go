package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BearBump/ClaimBox/config"
	"github.com/BearBump/ClaimBox/internal/bootstrap"
	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func emulatorServices(t *testing.T) bootstrap.Services {
	t.Helper()
	cfg := &config.Config{Cargo: config.CargoConfig{Emulator: true, RPS: 1000}, ClaimBox: config.ClaimBoxConfig{AcceptDelayMs: -1}}
	api, closeFn, err := bootstrap.NewCargoAPI(cfg)
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return bootstrap.NewServices(cfg, api, &outcome.Collector{})
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestRunClaimAPI_ServesRoutes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := claimAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: writeSwagger(t),
		timeZone:    config.ClaimBoxConfig{TimeZones: map[string]int{"ru": 3}}.TimeZone,
		onListen:    func(addr string) { addrCh <- addr },
	}

	svc := emulatorServices(t)
	errCh := make(chan error, 1)
	go func() { errCh <- runClaimAPI(ctx, opts, svc) }()
	base := "http://" + <-addrCh

	code, body := get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"ok"}`, body)

	code, body = get(t, base+"/swagger.json")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"swagger"`)

	code, body = get(t, base+"/v1/claims/sorting")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "route-1")

	resp, err := http.Post(base+"/v1/claims/cancel", "application/json", strings.NewReader(`{"tokens":["DEMO-002"]}`))
	require.NoError(t, err)
	var out struct {
		Outcomes []struct {
			Line string `json:"line"`
			OK   bool   `json:"ok"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	_ = resp.Body.Close()
	require.Len(t, out.Outcomes, 1)
	require.True(t, out.Outcomes[0].OK)
	require.Equal(t, "00000000000000000000000000000002 - cancelled", out.Outcomes[0].Line)

	code, body = get(t, base+"/stats")
	require.Equal(t, http.StatusOK, code)
	var stats map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	require.EqualValues(t, 1, stats["cancel"]["totalProcessed"])

	code, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "claimbox_http_requests_total")

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunClaimAPI_SwaggerRequired(t *testing.T) {
	err := runClaimAPI(context.Background(), claimAPIOpts{httpAddr: "127.0.0.1:0"}, bootstrap.Services{})
	require.Error(t, err)

	err = runClaimAPI(context.Background(), claimAPIOpts{httpAddr: "127.0.0.1:0", swaggerPath: "/nope/swagger.json"}, bootstrap.Services{})
	require.ErrorContains(t, err, "swagger file not found")
}

func TestNewClaimAPIApp_Defaults(t *testing.T) {
	closed := 0
	f := apiFactories{
		newCargoAPI: func(cfg *config.Config) (*cargo.API, func(), error) {
			return cargo.NewAPI(cargo.New("http://127.0.0.1:1", "", "t")), func() { closed++ }, nil
		},
		newReporter: func(ctx context.Context, cfg *config.Config) (outcome.Reporter, func(), error) {
			return outcome.LogReporter{}, func() { closed++ }, nil
		},
	}
	t.Setenv("swaggerPath", "")

	app, err := newClaimAPIApp(context.Background(), &config.Config{
		ClaimBox: config.ClaimBoxConfig{ReportStatuses: []string{"delivered", "lost"}},
	}, f)
	require.NoError(t, err)
	require.Equal(t, ":8080", app.opts.httpAddr)
	require.Equal(t, defaultSwaggerPath, app.opts.swaggerPath)
	require.Len(t, app.opts.reportStatuses, 1)
	require.NotNil(t, app.svc.Reorder)

	app.Close()
	require.Equal(t, 2, closed)
}

func TestNewClaimAPIApp_ReporterErrorClosesAPI(t *testing.T) {
	closed := false
	f := apiFactories{
		newCargoAPI: func(cfg *config.Config) (*cargo.API, func(), error) {
			return cargo.NewAPI(cargo.New("http://127.0.0.1:1", "", "t")), func() { closed = true }, nil
		},
		newReporter: func(ctx context.Context, cfg *config.Config) (outcome.Reporter, func(), error) {
			return nil, nil, errors.New("postgres is not ready")
		},
	}
	_, err := newClaimAPIApp(context.Background(), &config.Config{}, f)
	require.Error(t, err)
	require.True(t, closed)
}
