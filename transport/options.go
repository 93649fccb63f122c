// Package transport builds the *http.Client that apiclient sends calls
// through: a pooled http.Transport wrapped with rate limiting, retries, a
// circuit breaker and OpenTelemetry instrumentation.
//
// # Quick Start
//
//	httpClient := transport.New(
//	    transport.WithServiceName("user-api"),
//	)
//
//	client := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithHTTPClient(httpClient),
//	)
//
// # Resilience
//
// Retries and the circuit breaker are opt-in:
//
//	httpClient := transport.New(
//	    transport.WithRetryConfig(transport.DefaultRetryConfig()),
//	    transport.WithBreakerConfig(transport.DefaultBreakerConfig()),
//	    transport.WithRateLimit(transport.DefaultRateLimitConfig()),
//	)
//
// The layers wrap each other in this order, outermost first:
//
//	otel -> circuit breaker -> retry -> rate limit -> http.Transport
//
// so one traced request covers all retry attempts, and the breaker counts
// the outcome after retries are exhausted.
//
// # Pre-defined Configurations
//
//   - DefaultConfig: balanced pool and timeout settings
//   - LowLatencyConfig: short timeouts for latency-sensitive calls
//   - ConservativeConfig: small pool for constrained environments
package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// scope is the instrumentation scope name for OpenTelemetry.
const scope = "github.com/ozzy-ext/redcucumber-apiclient/transport"

// Config holds the connection pool and timeout settings of the underlying
// http.Transport. Start from DefaultConfig and adjust fields as needed.
//
// Example:
//
//	cfg := transport.DefaultConfig()
//	cfg.Timeout = 5 * time.Second
//
//	httpClient := transport.New(transport.WithConfig(cfg))
type Config struct {
	// Timeout limits the whole request, including all retry attempts and
	// reading the response body. Zero means no timeout.
	// Default: 15s
	Timeout time.Duration

	// MaxIdleConns caps idle keep-alive connections across all hosts.
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost caps idle connections per host. Calls made by one
	// apiclient.Client usually target a single host, so this matters most.
	// Default: 20
	MaxIdleConnsPerHost int

	// MaxConnsPerHost caps idle plus active connections per host.
	// Zero means unlimited.
	// Default: 100
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays in the pool.
	// Default: 90s
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is written. Zero leaves it to Timeout.
	// Default: 0
	ResponseHeaderTimeout time.Duration

	// ExpectContinueTimeout bounds the wait for "100 Continue".
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// DialTimeout bounds establishing the TCP connection.
	// Default: 5s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	// Default: 30s
	KeepAlive time.Duration

	// DisableCompression stops the transport from requesting gzip.
	// Default: true, so the bytes apiclient dumps are the bytes sent.
	DisableCompression bool

	// ForceHTTP2 attempts HTTP/2 even with a custom dialer or TLS config.
	// Default: false
	ForceHTTP2 bool
}

// DefaultConfig returns balanced settings for general use.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DialTimeout: 5 * time.Second,
		KeepAlive:   30 * time.Second,

		DisableCompression: true,
	}
}

// LowLatencyConfig returns short timeouts for latency-sensitive APIs.
func LowLatencyConfig() Config {
	return Config{
		Timeout: 5 * time.Second,

		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     60 * time.Second,

		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 500 * time.Millisecond,
		ResponseHeaderTimeout: 3 * time.Second,

		DialTimeout: 2 * time.Second,
		KeepAlive:   15 * time.Second,

		DisableCompression: true,
		ForceHTTP2:         true,
	}
}

// ConservativeConfig returns a small pool for resource-constrained
// environments.
func ConservativeConfig() Config {
	return Config{
		Timeout: 10 * time.Second,

		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DialTimeout: 5 * time.Second,
		KeepAlive:   30 * time.Second,

		DisableCompression: true,
	}
}

// internalConfig holds everything New needs, assembled from options.
type internalConfig struct {
	httpConfig Config

	// ServiceName names the remote API in spans, metrics and the breaker.
	ServiceName string

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Metrics        *metrics
	Propagators    propagation.TextMapPropagator

	// Base replaces the pooled http.Transport, mostly in tests.
	Base http.RoundTripper

	TLSConfig *tls.Config

	RetryConfig     RetryConfig
	RetryClassifier RetryClassifier

	// BreakerConfig enables the circuit breaker when non-nil.
	BreakerConfig *BreakerConfig

	RateLimit RateLimitConfig
}

func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:     DefaultConfig(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		RetryConfig:    NoRetryConfig(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Propagators == nil {
		cfg.Propagators = propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	// Metrics are optional; a failing meter leaves them nil.
	cfg.Metrics, _ = newMetrics(cfg.MeterProvider.Meter(scope))

	return cfg
}

// buildTransport creates the pooled http.Transport from httpConfig.
func (cfg *internalConfig) buildTransport() http.RoundTripper {
	if cfg.Base != nil {
		return cfg.Base
	}
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:   hc.DialTimeout,
		KeepAlive: hc.KeepAlive,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          hc.MaxIdleConns,
		MaxIdleConnsPerHost:   hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:       hc.MaxConnsPerHost,
		IdleConnTimeout:       hc.IdleConnTimeout,
		TLSHandshakeTimeout:   hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: hc.ResponseHeaderTimeout,
		ExpectContinueTimeout: hc.ExpectContinueTimeout,
		DisableCompression:    hc.DisableCompression,
		TLSClientConfig:       cfg.TLSConfig,
		ForceAttemptHTTP2:     hc.ForceHTTP2,
	}
}

// baseAttributes returns attributes shared by every span and metric.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// breakerName identifies the circuit breaker, and its shared state when a
// store is used.
func (cfg *internalConfig) breakerName() string {
	if cfg.ServiceName == "" {
		return "apiclient"
	}
	return cfg.ServiceName
}

// Option configures the client built by New.
type Option func(*internalConfig)

// WithConfig replaces the pool and timeout settings.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithServiceName names the remote API in spans, metrics and the circuit
// breaker.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		if tp != nil {
			cfg.TracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if mp != nil {
			cfg.MeterProvider = mp
		}
	}
}

// WithPropagators sets the propagator injecting trace context into
// outgoing headers. Default: W3C TraceContext and Baggage.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		cfg.Propagators = p
	}
}

// WithTLSConfig sets the TLS configuration of the pooled transport.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithBaseTransport replaces the pooled http.Transport. The resilience and
// instrumentation layers still wrap it.
//
// Example:
//
//	mock := transport.NewMockTransport().StubResponse(200, `{"id":1}`)
//	httpClient := transport.New(transport.WithBaseTransport(mock))
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.Base = rt
	}
}

// WithRetryConfig enables retries with the given configuration.
//
// Example:
//
//	httpClient := transport.New(
//	    transport.WithRetryConfig(transport.DefaultRetryConfig()),
//	)
func WithRetryConfig(rc RetryConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RetryConfig = rc
	}
}

// WithRetryClassifier replaces DefaultClassifier.
func WithRetryClassifier(c RetryClassifier) Option {
	return func(cfg *internalConfig) {
		cfg.RetryClassifier = c
	}
}

// WithBreakerConfig enables the circuit breaker.
//
// Example:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	httpClient := transport.New(
//	    transport.WithServiceName("user-api"),
//	    transport.WithBreakerConfig(
//	        transport.DistributedBreakerConfig(transport.NewRedisStore(rdb)),
//	    ),
//	)
func WithBreakerConfig(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &bc
	}
}

// WithRateLimit enables client-side rate limiting.
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RateLimit = rl
	}
}
