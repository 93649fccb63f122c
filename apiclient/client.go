package apiclient

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client executes calls of declared methods against one base URL.
//
// A Client is read-only after New and safe for concurrent use. Create one
// per remote API:
//
//	client := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithRegistry(reg),
//	    apiclient.WithServiceName("user-api"),
//	)
//
//	user, err := apiclient.Invoke[User](ctx, client, "GetUser", 42)
type Client struct {
	baseURL     string
	registry    *Registry
	provider    TransportProvider
	codecs      *Codecs
	modifiers   []RequestModifier
	builder     *RequestBuilder
	logger      zerolog.Logger
	tracer      trace.Tracer
	metrics     *metrics
	serviceName string
}

// New creates a Client from options.
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	codecs := NewCodecs(cfg.Codecs...)

	// Metrics are optional; a failing meter leaves them nil.
	m, _ := newMetrics(cfg.MeterProvider.Meter(scope))

	return &Client{
		baseURL:     cfg.BaseURL,
		registry:    cfg.Registry,
		provider:    cfg.Provider,
		codecs:      codecs,
		modifiers:   append([]RequestModifier(nil), cfg.Modifiers...),
		builder:     NewRequestBuilder(cfg.BaseURL, codecs, cfg.Logger),
		logger:      cfg.Logger,
		tracer:      cfg.TracerProvider.Tracer(scope),
		metrics:     m,
		serviceName: cfg.ServiceName,
	}
}

// BaseURL returns the base address of the client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Registry returns the registry of declared methods.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Codecs returns the codecs used for request and response bodies.
func (c *Client) Codecs() *Codecs {
	return c.codecs
}

// transport asks the provider for the transport of one call.
func (c *Client) transport() Doer {
	if c.provider == nil {
		return nil
	}
	return c.provider()
}

// baseAttributes returns attributes shared by every span and metric.
func (c *Client) baseAttributes(m *compiledMethod) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if c.serviceName != "" {
		attrs = append(attrs, attribute.String("apiclient.service", c.serviceName))
	}
	attrs = append(attrs,
		attribute.String("apiclient.method_id", m.desc.ID),
		attribute.String("http.request.method", m.desc.Method),
	)
	return attrs
}
