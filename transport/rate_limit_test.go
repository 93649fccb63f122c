package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitTransport_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		cfg       RateLimitConfig
		timeout   time.Duration
		requests  int
		wantSent  int
		wantError error
	}{
		{
			name:     "given the burst is not exceeded, then all requests pass",
			cfg:      RateLimitConfig{RequestsPerSecond: 1, Burst: 3},
			requests: 3,
			wantSent: 3,
		},
		{
			name:      "given fail-fast and an exhausted burst, then returns ErrRateLimited",
			cfg:       RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1},
			requests:  2,
			wantSent:  1,
			wantError: ErrRateLimited,
		},
		{
			name:      "given waiting and a deadline shorter than the next token, then fails without sending",
			cfg:       RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, WaitOnLimit: true},
			timeout:   50 * time.Millisecond,
			requests:  2,
			wantSent:  1,
			wantError: ErrRateLimited,
		},
		{
			name:     "given a zero rate, then limiting is disabled",
			cfg:      RateLimitConfig{},
			requests: 5,
			wantSent: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubs := NewMockTransport().StubResponse(http.StatusOK, "ok")
			c := New(WithBaseTransport(stubs), WithRateLimit(tt.cfg))

			var lastErr error
			for range tt.requests {
				ctx := context.Background()
				if tt.timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, tt.timeout)
					defer cancel()
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.test/", nil)
				require.NoError(t, err)

				resp, err := c.Do(req)
				if err != nil {
					lastErr = err
					continue
				}
				resp.Body.Close()
			}

			assert.Equal(t, tt.wantSent, stubs.RequestCount())
			if tt.wantError != nil {
				assert.ErrorIs(t, lastErr, tt.wantError)
			} else {
				assert.NoError(t, lastErr)
			}
		})
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.InEpsilon(t, 100.0, cfg.RequestsPerSecond, 0.001)
	assert.Equal(t, 10, cfg.Burst)
	assert.True(t, cfg.WaitOnLimit)
}
