package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RetryConfig configures retries with exponential backoff and jitter.
// Start from DefaultRetryConfig and adjust fields as needed.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retries.
	// Default: 3
	MaxRetries uint

	// InitialInterval is the first backoff interval.
	// Default: 500ms
	InitialInterval time.Duration

	// MaxInterval caps a single backoff interval, including intervals
	// requested by a Retry-After header.
	// Default: 30s
	MaxInterval time.Duration

	// MaxElapsedTime caps the whole retry sequence. Zero means only
	// MaxRetries applies.
	// Default: 2m
	MaxElapsedTime time.Duration

	// Multiplier grows the interval after each retry.
	// Default: 2.0
	Multiplier float64

	// JitterFactor randomizes each interval by ±JitterFactor.
	// Default: 0.5
	JitterFactor float64
}

// Default values for RetryConfig.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 30 * time.Second
	DefaultMaxElapsedTime  = 2 * time.Minute
	DefaultMultiplier      = 2.0
	DefaultJitterFactor    = 0.5
)

// DefaultRetryConfig returns 3 retries at 500ms, 1s and 2s (±50%) within
// a 2 minute budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxElapsedTime:  DefaultMaxElapsedTime,
		Multiplier:      DefaultMultiplier,
		JitterFactor:    DefaultJitterFactor,
	}
}

// ConservativeRetryConfig returns 2 retries starting at 1s within 30s, for
// rate-limited or expensive APIs.
func ConservativeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.5,
	}
}

// NoRetryConfig disables retries.
func NoRetryConfig() RetryConfig {
	return RetryConfig{}
}

// IsEnabled reports whether retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxRetries > 0
}

// exponentialBackOff builds the backoff strategy for one request.
func (c RetryConfig) exponentialBackOff() *backoff.ExponentialBackOff {
	jitter := c.JitterFactor
	if jitter <= 0 {
		jitter = DefaultJitterFactor
	}
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = DefaultMultiplier
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialInterval,
		RandomizationFactor: jitter,
		Multiplier:          multiplier,
		MaxInterval:         c.MaxInterval,
	}
	b.Reset()
	return b
}

// retryableStatusError marks a response the classifier wants retried. It
// unwraps to a backoff.RetryAfterError when the server asked for a delay.
type retryableStatusError struct {
	statusCode int
	retryAfter error
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("retryable status code %d", e.statusCode)
}

func (e *retryableStatusError) Unwrap() error {
	return e.retryAfter
}

// retryTransport retries round trips the classifier accepts. When retries
// run out on a retryable status, the last response is returned as is.
type retryTransport struct {
	base       http.RoundTripper
	cfg        *internalConfig
	classifier RetryClassifier
}

func newRetryTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if !cfg.RetryConfig.IsEnabled() {
		return base
	}

	classifier := cfg.RetryClassifier
	if classifier == nil {
		classifier = DefaultClassifier
	}

	return &retryTransport{
		base:       base,
		cfg:        cfg,
		classifier: classifier,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	rc := t.cfg.RetryConfig
	span := trace.SpanFromContext(ctx)
	attrs := t.cfg.baseAttributes()

	// Requests without GetBody are buffered once so every attempt can
	// resend the body.
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	var (
		lastResp *http.Response
		attempt  int
		start    = time.Now()
	)

	opts := []backoff.RetryOption{
		backoff.WithBackOff(rc.exponentialBackOff()),
		backoff.WithMaxTries(rc.MaxRetries + 1),
		backoff.WithNotify(func(err error, next time.Duration) {
			attempt++
			recordRetryEvent(span, attempt, err, next)
			t.cfg.Metrics.recordRetryAttempt(ctx, attrs, attempt)
		}),
	}
	if rc.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(rc.MaxElapsedTime))
	}

	resp, err := backoff.Retry(ctx, func() (*http.Response, error) {
		attemptReq, err := cloneRequest(req, bodyBytes)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := t.base.RoundTrip(attemptReq)
		lastResp = nil

		if !t.classifier(resp, err) {
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return resp, nil
		}
		if err != nil {
			return nil, err
		}

		// Keep the body so the response can be handed back if this turns
		// out to be the last attempt.
		buffered, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		resp.Body = io.NopCloser(bytes.NewReader(buffered))
		lastResp = resp
		return nil, &retryableStatusError{
			statusCode: resp.StatusCode,
			retryAfter: retryAfter(resp, rc.MaxInterval),
		}
	}, opts...)

	if attempt > 0 {
		span.SetAttributes(
			attribute.Int("http.retry_count", attempt),
			attribute.Bool("http.retry_success", err == nil),
		)
	}
	t.cfg.Metrics.recordRetryDuration(ctx, attrs, time.Since(start))

	var statusErr *retryableStatusError
	if errors.As(err, &statusErr) && lastResp != nil {
		t.cfg.Metrics.recordRetryExhausted(ctx, attrs)
		return lastResp, nil
	}
	if err != nil && attempt > 0 {
		t.cfg.Metrics.recordRetryExhausted(ctx, attrs)
	}
	return resp, err
}

// cloneRequest returns a copy of req with a fresh body.
func cloneRequest(req *http.Request, bodyBytes []byte) (*http.Request, error) {
	clone := req.Clone(req.Context())

	switch {
	case bodyBytes != nil:
		clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone.ContentLength = int64(len(bodyBytes))
	case req.GetBody != nil:
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

// retryAfter honours a Retry-After header given in seconds, capped at
// maxInterval.
func retryAfter(resp *http.Response, maxInterval time.Duration) error {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return nil
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return nil
	}
	if maxInterval > 0 && time.Duration(seconds)*time.Second > maxInterval {
		seconds = int(maxInterval / time.Second)
	}
	return backoff.RetryAfter(seconds)
}

// recordRetryEvent adds an "http.retry" event to the request span.
func recordRetryEvent(span trace.Span, attempt int, err error, next time.Duration) {
	if !span.IsRecording() {
		return
	}

	reason := "unknown"
	var statusErr *retryableStatusError
	switch {
	case errors.As(err, &statusErr):
		reason = strconv.Itoa(statusErr.statusCode)
	case isRetryableNetworkError(err):
		reason = "network_error"
	case err != nil:
		reason = classifyError(err)
	}

	span.AddEvent("http.retry", trace.WithAttributes(
		attribute.Int("retry.attempt", attempt),
		attribute.Int64("retry.delay_ms", next.Milliseconds()),
		attribute.String("retry.reason", reason),
	))
}
