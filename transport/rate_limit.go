package transport

import (
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the client-side limiter rejects a
// request.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures client-side rate limiting. Every attempt,
// retries included, takes a token.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the rate at once.
	// Values below 1 are treated as 1.
	Burst int

	// WaitOnLimit makes requests wait for a token, bounded by the request
	// context. When false they fail fast with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns 100 requests per second with a burst of
// 10, waiting for tokens.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
}

func newRateLimitTransport(next http.RoundTripper, cfg RateLimitConfig) http.RoundTripper {
	if cfg.RequestsPerSecond <= 0 {
		return next
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &rateLimitTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		wait:    cfg.WaitOnLimit,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.wait {
		if !t.limiter.Allow() {
			return nil, ErrRateLimited
		}
		return t.next.RoundTrip(req)
	}

	ctx := req.Context()
	if err := t.limiter.Wait(ctx); err != nil {
		// Wait also fails early when the deadline is too close for a token.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Join(ErrRateLimited, err)
	}
	return t.next.RoundTrip(req)
}
