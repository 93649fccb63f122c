package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// roundTripperMock is a testify mock for http.RoundTripper.
type roundTripperMock struct {
	mock.Mock
}

func (m *roundTripperMock) RoundTrip(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

// netError implements net.Error without being a timeout.
type netError struct {
	msg string
}

func (e *netError) Error() string   { return e.msg }
func (e *netError) Timeout() bool   { return false }
func (e *netError) Temporary() bool { return false }

type telemetry struct {
	exporter *tracetest.InMemoryExporter
	tp       *sdktrace.TracerProvider
	reader   *sdkmetric.ManualReader
	mp       *sdkmetric.MeterProvider
}

func newTelemetry(t *testing.T) *telemetry {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	tel := &telemetry{
		exporter: exporter,
		tp:       sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		reader:   reader,
		mp:       sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	t.Cleanup(func() {
		_ = tel.tp.Shutdown(context.Background())
		_ = tel.mp.Shutdown(context.Background())
	})
	return tel
}

func (tel *telemetry) options() []Option {
	return []Option{WithTracerProvider(tel.tp), WithMeterProvider(tel.mp)}
}

func (tel *telemetry) metric(t *testing.T, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tel.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		opts        []Option
		wantTimeout bool
	}{
		{
			name:        "given no options, then uses the default timeout",
			wantTimeout: true,
		},
		{
			name:        "given a zero timeout config, then the client has no timeout",
			opts:        []Option{WithConfig(Config{})},
			wantTimeout: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.opts...)

			require.NotNil(t, c)
			assert.IsType(t, &otelTransport{}, c.Transport)
			assert.Equal(t, tt.wantTimeout, c.Timeout > 0)
		})
	}
}

func TestOtelTransport_RoundTrip(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantSpanName string
		wantErrType  string
	}{
		{
			name:         "given a 200 response, then records a client span without error",
			status:       http.StatusOK,
			wantSpanName: "HTTP GET",
		},
		{
			name:         "given a 503 response, then marks the span with the status as error type",
			status:       http.StatusServiceUnavailable,
			wantSpanName: "HTTP GET",
			wantErrType:  "503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traceparent := make(chan string, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				traceparent <- r.Header.Get("traceparent")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			tel := newTelemetry(t)
			c := New(append(tel.options(), WithServiceName("user-api"))...)

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL+"/users", nil)
			require.NoError(t, err)

			resp, err := c.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, <-traceparent)
			assert.Empty(t, req.Header.Get("traceparent"), "caller's request must not be modified")

			spans := tel.exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantSpanName, spans[0].Name)

			attrs := map[string]string{}
			for _, kv := range spans[0].Attributes {
				attrs[string(kv.Key)] = kv.Value.Emit()
			}
			assert.Equal(t, "user-api", attrs["http.client.name"])
			assert.Equal(t, tt.wantErrType, attrs["error.type"])

			assert.NotNil(t, tel.metric(t, "http.client.request.duration"))
		})
	}
}

func TestOtelTransport_RoundTrip_Error(t *testing.T) {
	base := &roundTripperMock{}
	base.On("RoundTrip", mock.Anything).Return(nil, &netError{msg: "connection refused"}).Once()

	tel := newTelemetry(t)
	c := New(append(tel.options(), WithBaseTransport(base))...)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://api.test/users", nil)
	require.NoError(t, err)

	_, err = c.Do(req) //nolint:bodyclose // error path
	require.Error(t, err)

	spans := tel.exporter.GetSpans()
	require.Len(t, spans, 1)
	require.NotEmpty(t, spans[0].Events, "error is recorded as a span event")

	errs := tel.metric(t, "http.client.request.errors")
	require.NotNil(t, errs)
	sum, ok := errs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)

	base.AssertExpectations(t)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "given context cancellation, then cancelled",
			err:  context.Canceled,
			want: ErrorTypeCancelled,
		},
		{
			name: "given deadline expiry, then timeout",
			err:  context.DeadlineExceeded,
			want: ErrorTypeTimeout,
		},
		{
			name: "given an open breaker, then circuit_open",
			err:  errors.Join(ErrCircuitOpen, errors.New("open")),
			want: ErrorTypeCircuitOpen,
		},
		{
			name: "given the rate limiter, then rate_limited",
			err:  ErrRateLimited,
			want: ErrorTypeRateLimited,
		},
		{
			name: "given an opaque error, then unknown",
			err:  errors.New("boom"),
			want: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestConfigPresets(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "given DefaultConfig, then compression is disabled", cfg: DefaultConfig()},
		{name: "given LowLatencyConfig, then compression is disabled", cfg: LowLatencyConfig()},
		{name: "given ConservativeConfig, then compression is disabled", cfg: ConservativeConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.cfg.DisableCompression)
			assert.Positive(t, tt.cfg.Timeout)
			assert.LessOrEqual(t, tt.cfg.MaxIdleConnsPerHost, tt.cfg.MaxIdleConns)

			ic := newConfig(WithConfig(tt.cfg))
			rt, ok := ic.buildTransport().(*http.Transport)
			require.True(t, ok)
			assert.Equal(t, tt.cfg.MaxIdleConnsPerHost, rt.MaxIdleConnsPerHost)
		})
	}
}
