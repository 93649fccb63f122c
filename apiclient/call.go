package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"reflect"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Call is one invocation of a declared method with its arguments bound.
// T is the type the response body is decoded into.
//
// A Call owns its modifier list and expected status codes; Clone gives an
// independent copy. GetResult and GetDetailed may be called repeatedly and,
// as long as the Call is not mutated meanwhile, concurrently. Each
// execution builds a fresh request and performs one round trip.
//
// Example:
//
//	call, err := apiclient.NewCall[User](client, "GetUser", 42)
//	if err != nil {
//	    return err
//	}
//	call.AddModifier(apiclient.BearerToken(token))
//
//	user, err := call.GetResult(ctx)
type Call[T any] struct {
	client    *Client
	method    *compiledMethod
	args      []any
	modifiers []RequestModifier
	expected  []int
}

// CallDetails is the diagnostic envelope returned by GetDetailed.
type CallDetails[T any] struct {
	// Value is the decoded body. It is populated on a best-effort basis
	// even when the status code was unexpected.
	Value T

	// Request is the request that was sent. Its body has been consumed;
	// RequestDump holds the body as sent.
	Request *http.Request

	// Response is the received response. Its Body has been replaced with an
	// in-memory reader over the same bytes, so it can be read again.
	Response *http.Response

	// RequestDump is the request in HTTP/1.1 wire format.
	RequestDump string

	// ResponseDump is the response in HTTP/1.1 wire format.
	ResponseDump string

	// CurlCommand is an equivalent cURL command line.
	CurlCommand string

	// StatusCode is the actual response status code.
	StatusCode int

	// IsUnexpectedStatusCode is true when StatusCode is outside the
	// expected set.
	IsUnexpectedStatusCode bool

	// Message is the diagnostic message for an unexpected status; empty
	// otherwise.
	Message string

	// DecodeErr holds a decode failure that was not returned because the
	// status code was unexpected.
	DecodeErr error
}

// NewCall binds args to the method registered under id.
//
// Construction fails with a ConfigurationError when id is unknown, the
// argument count does not match the declared parameters, or the method's
// ResultType is not assignable to T.
func NewCall[T any](c *Client, id string, args ...any) (*Call[T], error) {
	m, ok := c.registry.get(id)
	if !ok {
		return nil, newConfigError(id, "method not registered")
	}
	return newCall[T](c, m, args)
}

// NewCallFor compiles desc on the fly and binds args to it. Prefer
// registering descriptions once and using NewCall.
func NewCallFor[T any](c *Client, desc MethodDescription, args ...any) (*Call[T], error) {
	m, err := compile(desc)
	if err != nil {
		return nil, err
	}
	return newCall[T](c, m, args)
}

func newCall[T any](c *Client, m *compiledMethod, args []any) (*Call[T], error) {
	if len(args) != len(m.desc.Parameters) {
		return nil, newConfigError(m.desc.ID, "expected %d arguments, got %d", len(m.desc.Parameters), len(args))
	}
	if rt := m.desc.ResultType; rt != nil {
		if want := reflect.TypeFor[T](); !rt.AssignableTo(want) {
			return nil, newConfigError(m.desc.ID, "result type %s is not assignable to %s", rt, want)
		}
	}

	return &Call[T]{
		client:    c,
		method:    m,
		args:      slices.Clone(args),
		modifiers: slices.Clone(c.modifiers),
		expected:  slices.Clone(m.desc.ExpectedCodes),
	}, nil
}

// Method returns the description the call was built from.
func (c *Call[T]) Method() MethodDescription {
	return c.method.desc
}

// AddModifier appends a modifier to this call only.
func (c *Call[T]) AddModifier(m RequestModifier) *Call[T] {
	c.modifiers = append(c.modifiers, m)
	return c
}

// Modifiers returns a copy of the call's modifiers in execution order.
func (c *Call[T]) Modifiers() []RequestModifier {
	return slices.Clone(c.modifiers)
}

// ExpectStatus adds status codes to the call's expected set.
func (c *Call[T]) ExpectStatus(codes ...int) *Call[T] {
	for _, code := range codes {
		if !slices.Contains(c.expected, code) {
			c.expected = append(c.expected, code)
		}
	}
	return c
}

// ExpectedCodes returns a copy of the declared expected codes. 200 is
// expected whether or not it is listed.
func (c *Call[T]) ExpectedCodes() []int {
	return slices.Clone(c.expected)
}

// Clone returns a call sharing the client, method and arguments, with its
// own copies of the modifier list and expected codes.
func (c *Call[T]) Clone() *Call[T] {
	return &Call[T]{
		client:    c.client,
		method:    c.method,
		args:      c.args,
		modifiers: slices.Clone(c.modifiers),
		expected:  slices.Clone(c.expected),
	}
}

// GetResult executes the call and returns the decoded body.
//
// It fails with an UnexpectedStatusError, before decoding, when the status
// code is outside the expected set, and with ConfigurationError,
// URIConstructionError, ModificationError, TransportError or DecodeError
// for the other failure kinds.
func (c *Call[T]) GetResult(ctx context.Context) (T, error) {
	ctx, span := c.startSpan(ctx)
	defer span.End()

	start := time.Now()
	value, err := c.getResult(ctx, span)
	c.finish(ctx, span, start, err)
	return value, err
}

func (c *Call[T]) getResult(ctx context.Context, span trace.Span) (T, error) {
	var zero T

	ex, err := c.send(ctx)
	if err != nil {
		return zero, err
	}
	resp := ex.resp
	defer resp.Body.Close()

	cls := Classify(resp.StatusCode, c.expected)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if cls.Unexpected {
		// A failed read only shortens the message, unless the call was cancelled.
		prefix, readErr := readDiagnosticPrefix(resp.Body)
		if readErr != nil && ctx.Err() != nil {
			return zero, ex.transportError(ctx.Err())
		}
		msg := DiagnosticMessage(prefix, reasonPhrase(resp))
		c.reportUnexpected(ctx, span, resp.StatusCode, msg)
		return zero, &UnexpectedStatusError{
			Method:     ex.req.Method,
			URL:        ex.req.URL.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    msg,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, ex.transportError(err)
	}
	return c.decode(resp, body)
}

// GetDetailed executes the call and returns the decoded body together with
// request/response dumps and the classification outcome.
//
// It never fails because of the status code. Build, modifier and transport
// failures are returned as in GetResult. A decode failure is returned
// (alongside the details) only when the status code was expected;
// otherwise it is recorded in CallDetails.DecodeErr.
func (c *Call[T]) GetDetailed(ctx context.Context) (*CallDetails[T], error) {
	ctx, span := c.startSpan(ctx)
	defer span.End()

	start := time.Now()
	details, err := c.getDetailed(ctx, span)
	c.finish(ctx, span, start, err)
	return details, err
}

func (c *Call[T]) getDetailed(ctx context.Context, span trace.Span) (*CallDetails[T], error) {
	ex, err := c.send(ctx)
	if err != nil {
		return nil, err
	}
	resp := ex.resp

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, ex.transportError(err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	value, decodeErr := c.decode(resp, body)

	details := &CallDetails[T]{
		Value:        value,
		Request:      ex.req,
		Response:     resp,
		RequestDump:  dumpRequest(ex.req, ex.out.Body),
		ResponseDump: dumpResponse(resp, body),
		CurlCommand:  generateCurlCommand(ex.req, ex.out.Body),
		StatusCode:   resp.StatusCode,
	}

	cls := Classify(resp.StatusCode, c.expected)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if cls.Unexpected {
		details.IsUnexpectedStatusCode = true
		details.Message = DiagnosticMessage(body, reasonPhrase(resp))
		details.DecodeErr = decodeErr
		c.reportUnexpected(ctx, span, resp.StatusCode, details.Message)
		return details, nil
	}

	if decodeErr != nil {
		details.DecodeErr = decodeErr
		return details, decodeErr
	}
	return details, nil
}

// exchange is one request/response round trip. The request is kept for
// diagnostics even though the call built it internally.
type exchange struct {
	req  *http.Request
	out  *OutboundRequest
	resp *http.Response
}

func (ex *exchange) transportError(err error) error {
	return &TransportError{Method: ex.req.Method, URL: ex.req.URL.String(), Err: err}
}

// send builds the request and performs the round trip.
func (c *Call[T]) send(ctx context.Context) (*exchange, error) {
	id := c.method.desc.ID

	req, out, err := c.client.builder.Build(ctx, c.method, c.args, c.modifiers)
	if err != nil {
		return nil, err
	}
	ex := &exchange{req: req, out: out}

	doer := c.client.transport()
	if doer == nil {
		return nil, &TransportError{
			Method:      req.Method,
			URL:         req.URL.String(),
			Unavailable: true,
			Err:         ErrTransportUnavailable,
		}
	}

	logRequest(c.client.logger, id, req)
	start := time.Now()

	//nolint:bodyclose // closed by GetResult / GetDetailed
	resp, err := doer.Do(req)
	if err != nil {
		return nil, ex.transportError(err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		resp.Body.Close()
		return nil, ex.transportError(ctxErr)
	}

	logResponse(c.client.logger, id, resp, time.Since(start))
	ex.resp = resp
	return ex, nil
}

// decode turns body into T, going through ResultType when it is declared.
// An empty body yields the zero value.
func (c *Call[T]) decode(resp *http.Response, body []byte) (T, error) {
	var value T
	if len(body) == 0 {
		return value, nil
	}

	contentType := resp.Header.Get("Content-Type")
	rt := c.method.desc.ResultType
	if rt == nil || rt == reflect.TypeFor[T]() {
		if err := c.client.codecs.Decode(body, contentType, &value); err != nil {
			return value, &DecodeError{ContentType: contentType, Err: err}
		}
		return value, nil
	}

	target := reflect.New(rt)
	if err := c.client.codecs.Decode(body, contentType, target.Interface()); err != nil {
		return value, &DecodeError{ContentType: contentType, Err: err}
	}
	reflect.ValueOf(&value).Elem().Set(target.Elem())
	return value, nil
}

func (c *Call[T]) startSpan(ctx context.Context) (context.Context, trace.Span) {
	attrs := append(c.client.baseAttributes(c.method), attribute.String("url.template", c.method.desc.Path))
	return c.client.tracer.Start(ctx, "apiclient "+c.method.desc.ID, trace.WithAttributes(attrs...))
}

func (c *Call[T]) reportUnexpected(ctx context.Context, span trace.Span, status int, msg string) {
	span.SetAttributes(attribute.Bool("apiclient.unexpected_status", true))
	c.client.metrics.recordUnexpected(ctx, status, c.client.baseAttributes(c.method))
	logUnexpected(c.client.logger, c.method.desc.ID, status, msg)
}

func (c *Call[T]) finish(ctx context.Context, span trace.Span, start time.Time, err error) {
	attrs := c.client.baseAttributes(c.method)
	c.client.metrics.recordDuration(ctx, time.Since(start), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.client.metrics.recordError(ctx, err, attrs)
	}
}
