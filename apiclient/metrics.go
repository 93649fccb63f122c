package apiclient

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// scope is the instrumentation scope name for OpenTelemetry.
const scope = "github.com/ozzy-ext/redcucumber-apiclient/apiclient"

// metrics holds the metric instruments for calls.
type metrics struct {
	// callDuration measures build + send + decode time in seconds.
	callDuration metric.Float64Histogram

	// unexpectedStatus counts responses outside the expected set.
	unexpectedStatus metric.Int64Counter

	// callErrors counts failed calls by error kind.
	callErrors metric.Int64Counter
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.callDuration, err = meter.Float64Histogram(
		"apiclient.call.duration",
		metric.WithDescription("Duration of declared API calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.unexpectedStatus, err = meter.Int64Counter(
		"apiclient.call.unexpected_status",
		metric.WithDescription("Number of responses with a status code outside the expected set"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	m.callErrors, err = meter.Int64Counter(
		"apiclient.call.errors",
		metric.WithDescription("Number of failed API calls by error kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metrics) recordDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.callDuration == nil {
		return
	}
	m.callDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordUnexpected(ctx context.Context, status int, attrs []attribute.KeyValue) {
	if m == nil || m.unexpectedStatus == nil {
		return
	}
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, attribute.Int("http.response.status_code", status))
	m.unexpectedStatus.Add(ctx, 1, metric.WithAttributes(all...))
}

func (m *metrics) recordError(ctx context.Context, err error, attrs []attribute.KeyValue) {
	if m == nil || m.callErrors == nil {
		return
	}
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attrs...)
	all = append(all, attribute.String("error.type", errorKind(err)))
	m.callErrors.Add(ctx, 1, metric.WithAttributes(all...))
}

// errorKind maps an error to a low-cardinality label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrURIConstruction):
		return "uri_construction"
	case errors.Is(err, ErrModification):
		return "modification"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrUnexpectedStatus):
		return "unexpected_status"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "unknown"
	}
}
