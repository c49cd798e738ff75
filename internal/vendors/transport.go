package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	userAgent       = "chatforge/1.0"
	maxErrorBody    = 64 * 1024
	maxLoggedBody   = 300
	defaultTimeout  = 120 * time.Second
	dialTimeout     = 10 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 90 * time.Second
)

// APIError is a non-2xx answer from a vendor endpoint.
type APIError struct {
	Vendor     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Vendor, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Vendor, e.StatusCode, e.Message)
}

// Retryable reports whether the status is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Transport posts JSON to one vendor with retries on rate limiting, server
// errors and network failures.
type Transport struct {
	vendor     string
	baseURL    string
	client     *http.Client
	headers    map[string]string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewTransport(log *slog.Logger, vendor string, cfg Config, defaultBaseURL string) *Transport {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(defaultBaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Transport{
		vendor:     vendor,
		baseURL:    baseURL,
		client:     newHTTPClient(timeout),
		headers:    headers,
		maxRetries: retries,
		retryDelay: delay,
		logger:     log.With(slog.String("vendor", vendor)),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// SetDefaultHeader sets a header unless the configuration already overrides it.
func (t *Transport) SetDefaultHeader(key, value string) {
	for k := range t.headers {
		if strings.EqualFold(k, key) {
			return
		}
	}
	t.headers[key] = value
}

func (t *Transport) Vendor() string { return t.vendor }

// PostJSON sends payload to path and decodes a 2xx body into out.
func (t *Transport) PostJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", t.vendor, err)
	}
	url := t.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := t.retryDelay * time.Duration(1<<(attempt-1))
			t.logger.Debug("retrying vendor request",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.Any("error", lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		lastErr = t.post(ctx, url, body, out)
		if lastErr == nil || !shouldRetry(ctx, lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (t *Transport) post(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", t.vendor, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", t.vendor, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return t.apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", t.vendor, err)
	}
	return nil
}

func (t *Transport) apiError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	t.logger.Warn("vendor request failed",
		slog.Int("status", resp.StatusCode),
		slog.String("body", truncate(string(payload), maxLoggedBody)),
	)
	return &APIError{
		Vendor:     t.vendor,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(payload),
	}
}

// errorMessage extracts the human message from the error envelopes the
// vendors use: {"error":{"message":..}}, {"error":".."} or {"message":..}.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
				return strings.TrimSpace(v.String())
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxLoggedBody)
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
