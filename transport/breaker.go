package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a request.
var ErrCircuitOpen = errors.New("circuit breaker open")

// NewRedisStore creates a SharedDataStore backed by Redis, so every
// instance calling the same API shares one breaker state.
//
// Example:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	store := transport.NewRedisStore(rdb)
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker is satisfied by both the local and the distributed
// gobreaker implementations.
type CircuitBreaker interface {
	Execute(req func() (*http.Response, error)) (*http.Response, error)
}

// BreakerClassifier reports whether an outcome counts as a failure for
// the breaker.
type BreakerClassifier func(resp *http.Response, err error) bool

// BreakerConfig configures the circuit breaker.
//
// The breaker is closed (requests pass), open (requests are rejected with
// ErrCircuitOpen) or half-open (a few probe requests pass).
type BreakerConfig struct {
	// MaxRequests is the number of probe requests allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval is the period after which counts are cleared while closed.
	// Zero never clears them.
	// Default: 10s
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	// Default: 10s
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests before the
	// breaker may trip.
	// Default: 20
	FailureThreshold uint32

	// FailureRatio trips the breaker once this share of requests failed.
	// Default: 0.5
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after this many failures in a
	// row. Zero disables the rule.
	// Default: 5
	ConsecutiveFailures uint32

	// Store shares breaker state between instances. Nil keeps it in memory.
	Store gobreaker.SharedDataStore

	// Classifier decides which outcomes are failures.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns an in-memory breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns DefaultBreakerConfig backed by store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts network errors and 5xx responses as
// failures. 429 is left to retries.
func DefaultBreakerClassifier(resp *http.Response, err error) bool {
	if err != nil {
		return isNetworkError(err)
	}
	return resp != nil && resp.StatusCode >= 500
}

// readyToTrip applies the threshold, consecutive and ratio rules.
func (c BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if c.FailureThreshold > 0 && counts.Requests < c.FailureThreshold {
		return false
	}
	if c.FailureRatio > 0 && counts.Requests > 0 {
		return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
	}
	return false
}

// breakerFailure marks an outcome the classifier counts as a failure. The
// breaker unwraps it before returning to the caller.
type breakerFailure struct {
	resp *http.Response
	err  error
}

func (f *breakerFailure) Error() string {
	if f.err != nil {
		return f.err.Error()
	}
	return fmt.Sprintf("failed response: %d", f.resp.StatusCode)
}

func (f *breakerFailure) Unwrap() error {
	return f.err
}

// isSuccessful lets errors the classifier ignored, such as cancellation,
// pass through without counting against the breaker.
func isSuccessful(err error) bool {
	var f *breakerFailure
	return !errors.As(err, &f)
}

// circuitBreakerTransport runs each round trip inside the breaker.
type circuitBreakerTransport struct {
	breaker    CircuitBreaker
	next       http.RoundTripper
	classifier BreakerClassifier
	cfg        *internalConfig
	name       string
}

func newCircuitBreakerTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if cfg.BreakerConfig == nil {
		return next
	}
	bc := *cfg.BreakerConfig
	name := cfg.breakerName()

	st := gobreaker.Settings{
		Name:         name,
		MaxRequests:  bc.MaxRequests,
		Interval:     bc.Interval,
		Timeout:      bc.Timeout,
		ReadyToTrip:  bc.readyToTrip,
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Metrics.recordBreakerState(context.Background(), name, to)
			if bc.OnStateChange != nil {
				bc.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker = gobreaker.NewCircuitBreaker[*http.Response](st)
	if bc.Store != nil {
		// A breaker that cannot be shared still protects this instance.
		if dcb, err := gobreaker.NewDistributedCircuitBreaker[*http.Response](bc.Store, st); err == nil {
			cb = dcb
		}
	}

	classifier := bc.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	return &circuitBreakerTransport{
		breaker:    cb,
		next:       next,
		classifier: classifier,
		cfg:        cfg,
		name:       name,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req) //nolint:bodyclose // returned to the caller
		if t.classifier(resp, err) {
			return nil, &breakerFailure{resp: resp, err: err}
		}
		return resp, err
	})

	var failure *breakerFailure
	switch {
	case err == nil:
		t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "success")
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "rejected")
		return nil, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, t.name, err)
	case errors.As(err, &failure):
		t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "failure")
		if failure.err != nil {
			return nil, failure.err
		}
		return failure.resp, nil
	default:
		t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "error")
		return resp, err
	}
}
