package cargo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL     = "https://b2b.taxi.yandex.net"
	DefaultRoutePrefix = "/b2b/cargo/integration/v2/"
)

// Limiter paces outbound calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Call describes one request to the claims API.
type Call struct {
	Method   string // POST if empty
	Endpoint string // relative to the route prefix, e.g. "claims/search"
	Query    url.Values
	Payload  any

	// ClaimID is the claim the call is issued for; it is copied into the result.
	ClaimID string
}

// Client talks to one endpoint family of the claims API. It never retries.
type Client struct {
	rc      *resty.Client
	limiter Limiter
}

func New(baseURL, routePrefix, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if routePrefix == "" {
		routePrefix = DefaultRoutePrefix
	}
	base := strings.TrimRight(baseURL, "/") + "/" + strings.Trim(routePrefix, "/")

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(10*time.Second).
		SetAuthToken(token).
		SetHeader("Accept-Language", "en").
		SetHeader("Content-Type", "application/json").
		SetLogger(restyLogger{})

	return &Client{rc: rc}
}

func (c *Client) WithLanguage(lang string) *Client {
	if lang != "" {
		c.rc.SetHeader("Accept-Language", lang)
	}
	return c
}

func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.rc.SetTimeout(d)
	}
	return c
}

func (c *Client) WithLimiter(l Limiter) *Client {
	c.limiter = l
	return c
}

func (c *Client) Do(ctx context.Context, call Call) (Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{ClaimID: call.ClaimID}, errors.Wrap(err, "rate limit wait")
		}
	}

	method := call.Method
	if method == "" {
		method = http.MethodPost
	}
	payload := call.Payload
	if payload == nil {
		payload = struct{}{}
	}

	req := c.rc.R().SetContext(ctx).SetBody(payload)
	if len(call.Query) > 0 {
		req.SetQueryParamsFromValues(call.Query)
	}

	resp, err := req.Execute(method, call.Endpoint)
	if err != nil {
		return Result{ClaimID: call.ClaimID}, errors.Wrap(err, "do request")
	}
	return newResult(call.ClaimID, resp.StatusCode(), resp.Body()), nil
}

// IsTransient reports whether err is a dropped connection worth one more try.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return strings.Contains(err.Error(), "server closed idle connection")
}

// restyLogger routes resty's own diagnostics into slog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) { slog.Debug("cargo", "error", fmt.Sprintf(format, v...)) }
func (restyLogger) Warnf(format string, v ...any)  { slog.Debug("cargo", "warn", fmt.Sprintf(format, v...)) }
func (restyLogger) Debugf(format string, v ...any) { slog.Debug("cargo", "debug", fmt.Sprintf(format, v...)) }
