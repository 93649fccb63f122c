package apiclient

import (
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ozzy-ext/redcucumber-apiclient/transport"
)

// Doer sends an HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportProvider returns the transport used for one call. Returning nil
// fails the call with a TransportError whose Unavailable flag is set.
// Providers are called concurrently.
type TransportProvider func() Doer

// config holds the Client configuration assembled from options.
type config struct {
	// BaseURL is prepended to every resolved relative path.
	BaseURL string

	// Registry holds the declared methods. Default: empty registry.
	Registry *Registry

	// Provider supplies the transport. Default: a transport.New client.
	Provider TransportProvider

	// Codecs are extra codecs layered over the built-ins.
	Codecs []Codec

	// Modifiers are copied into every call created by the client.
	Modifiers []RequestModifier

	// Logger receives debug events. Default: zerolog.Nop().
	Logger zerolog.Logger

	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// ServiceName identifies the remote API in spans and metrics.
	ServiceName string
}

// Option configures a Client.
type Option func(*config)

func newConfig(opts ...Option) *config {
	cfg := &config{
		Logger:         zerolog.Nop(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Provider == nil {
		httpClient := transport.New(
			transport.WithServiceName(cfg.ServiceName),
			transport.WithTracerProvider(cfg.TracerProvider),
			transport.WithMeterProvider(cfg.MeterProvider),
		)
		cfg.Provider = func() Doer { return httpClient }
	}
	return cfg
}

// WithBaseURL sets the base address every relative path is joined to.
//
// Example:
//
//	client := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com/v1"),
//	)
func WithBaseURL(baseURL string) Option {
	return func(cfg *config) {
		cfg.BaseURL = baseURL
	}
}

// WithRegistry sets the registry of declared methods.
func WithRegistry(r *Registry) Option {
	return func(cfg *config) {
		cfg.Registry = r
	}
}

// WithHTTPClient sends every call through doer, typically an *http.Client
// built with transport.New.
//
// Example:
//
//	client := apiclient.New(
//	    apiclient.WithHTTPClient(transport.New(
//	        transport.WithRetryConfig(transport.DefaultRetryConfig()),
//	    )),
//	)
func WithHTTPClient(doer Doer) Option {
	return func(cfg *config) {
		cfg.Provider = func() Doer { return doer }
	}
}

// WithTransportProvider sets a provider consulted on every call.
func WithTransportProvider(p TransportProvider) Option {
	return func(cfg *config) {
		cfg.Provider = p
	}
}

// WithCodec adds a codec, replacing any built-in codec for the same media type.
func WithCodec(c Codec) Option {
	return func(cfg *config) {
		cfg.Codecs = append(cfg.Codecs, c)
	}
}

// WithModifier registers a modifier applied to every call of the client.
// Modifiers run in the order they are added, before call-level modifiers.
//
// Example:
//
//	client := apiclient.New(
//	    apiclient.WithModifier(apiclient.BearerToken(token)),
//	    apiclient.WithModifier(apiclient.UserAgent("billing/1.0")),
//	)
func WithModifier(m RequestModifier) Option {
	return func(cfg *config) {
		cfg.Modifiers = append(cfg.Modifiers, m)
	}
}

// WithLogger sets the zerolog logger for debug events.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = logger
	}
}

// WithDebug logs requests, responses and classification outcomes to stdout.
func WithDebug(enabled bool) Option {
	return func(cfg *config) {
		if enabled {
			cfg.Logger = debugLogger
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.MeterProvider = mp
	}
}

// WithServiceName names the remote API in spans and metrics
// ("apiclient.service" attribute).
func WithServiceName(name string) Option {
	return func(cfg *config) {
		cfg.ServiceName = name
	}
}
