package designmynight

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tablebook/internal/metrics"
)

const maxErrorBody = 512

// Request is a single call against the provider API.
type Request struct {
	Method string
	// Path is relative to the executor base URL, e.g. "/bookings".
	Path string
	// Endpoint is a short stable name used for logs and metric labels.
	Endpoint string
	Query    url.Values
	Body     any
}

// ExecutorConfig holds transport and retry settings for the executor.
type ExecutorConfig struct {
	BaseURL            string
	Timeout            time.Duration
	Retry              RetryPolicy
	InsecureSkipVerify bool
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Executor issues provider calls with a per-attempt timeout and retries.
// It is safe for concurrent use.
type Executor struct {
	baseURL    string
	timeout    time.Duration
	policy     RetryPolicy
	transport  *http.Transport
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewExecutor builds an executor with its own connection pool.
func NewExecutor(cfg ExecutorConfig, logger *zerolog.Logger) *Executor {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Executor{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		policy:     cfg.Retry,
		transport:  transport,
		httpClient: &http.Client{Transport: transport},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.With().Str("component", "dmn_executor").Logger(),
	}
}

// Close releases idle pooled connections.
func (e *Executor) Close() {
	e.transport.CloseIdleConnections()
}

// Do performs req under the retry policy and returns the raw 2xx response body.
// Once every attempt failed it returns a *RequestFailedError.
func (e *Executor) Do(ctx context.Context, req Request) ([]byte, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.Path
	}

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request body: %w", endpoint, err)
		}
	}

	l := e.log(ctx)
	started := time.Now()

	var body []byte
	attempts, err := Retry(ctx, e.policy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			metrics.IncProviderRetry(endpoint)
		}
		var attemptErr error
		body, attemptErr = e.attempt(ctx, req, endpoint, payload, attempt)
		return attemptErr
	})
	if err != nil {
		metrics.IncProviderRequest(endpoint, "failure")
		failed := &RequestFailedError{
			Method:   req.Method,
			Path:     req.Path,
			Attempts: attempts,
			Err:      err,
		}
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			failed.StatusCode = statusErr.StatusCode
		}
		l.Error().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempts", attempts).
			Dur("elapsed", time.Since(started)).
			Msg("provider request failed")
		return nil, failed
	}

	metrics.IncProviderRequest(endpoint, "success")
	l.Debug().
		Str("endpoint", endpoint).
		Int("attempts", attempts).
		Dur("elapsed", time.Since(started)).
		Msg("provider request completed")
	return body, nil
}

// doJSON performs req and decodes the response body into out.
func (e *Executor) doJSON(ctx context.Context, req Request, out any) error {
	body, err := e.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, req.Endpoint, err)
	}
	return nil
}

func (e *Executor) attempt(ctx context.Context, req Request, endpoint string, payload []byte, attempt int) ([]byte, error) {
	l := e.log(ctx)

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpReq, err := e.newRequest(attemptCtx, req, payload)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	elapsed := time.Since(started)
	metrics.ObserveProviderDuration(endpoint, elapsed.Seconds())
	if err != nil {
		l.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Str("failure", classify(err)).
			Dur("elapsed", elapsed).
			Msg("provider attempt failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		l.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Str("failure", classify(err)).
			Msg("provider response read failed")
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
		l.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("provider attempt returned error status")
		return nil, statusErr
	}

	l.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Int("attempt", attempt).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("provider attempt succeeded")
	return body, nil
}

func (e *Executor) newRequest(ctx context.Context, req Request, payload []byte) (*http.Request, error) {
	endpoint := e.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

// log prefers the request-scoped logger carried in ctx.
func (e *Executor) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.logger
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "transport"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
