package apiclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// RequestBuilder turns a compiled method and its arguments into an
// *http.Request.
//
// Build runs in a fixed order:
//  1. path parameters are applied and the template is resolved
//  2. the relative path is joined with the base URL
//  3. the HTTP method is set
//  4. query, body and header parameters are applied in declaration order
//  5. request modifiers run in registration order
type RequestBuilder struct {
	baseURL string
	codecs  *Codecs
	logger  zerolog.Logger
}

// NewRequestBuilder creates a builder for requests against baseURL.
// A nil codecs uses NewCodecs().
func NewRequestBuilder(baseURL string, codecs *Codecs, logger zerolog.Logger) *RequestBuilder {
	if codecs == nil {
		codecs = NewCodecs()
	}
	return &RequestBuilder{baseURL: baseURL, codecs: codecs, logger: logger}
}

// Build constructs the request for one call. The returned OutboundRequest
// is the accumulator the request was built from; it keeps the serialized
// body for diagnostics.
func (b *RequestBuilder) Build(
	ctx context.Context,
	m *compiledMethod,
	args []any,
	modifiers []RequestModifier,
) (*http.Request, *OutboundRequest, error) {
	desc := &m.desc
	if len(args) != len(desc.Parameters) {
		return nil, nil, newConfigError(desc.ID, "expected %d arguments, got %d", len(desc.Parameters), len(args))
	}

	out := newOutboundRequest(desc.Method, desc.ContentType, b.codecs)

	for i, p := range desc.Parameters {
		if p.In != InPath {
			continue
		}
		if err := m.appliers[i].Apply(out, p, args[i]); err != nil {
			return nil, nil, withMethod(err, desc.ID)
		}
	}
	path, err := m.template.Resolve(out.PathValues)
	if err != nil {
		return nil, nil, withMethod(err, desc.ID)
	}
	out.Path = path

	for i, p := range desc.Parameters {
		if p.In == InPath {
			continue
		}
		if err := m.appliers[i].Apply(out, p, args[i]); err != nil {
			return nil, nil, withMethod(err, desc.ID)
		}
	}

	target := JoinURL(b.baseURL, out.Path)
	if q := out.RawQuery(); q != "" {
		target += "?" + q
	}
	u, err := url.Parse(target)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		err = errors.New("request URL is not absolute")
	}
	if err != nil {
		return nil, nil, b.uriError(desc, err)
	}

	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
	}
	req, err := http.NewRequestWithContext(ctx, desc.Method, target, body)
	if err != nil {
		return nil, nil, b.uriError(desc, err)
	}
	for k, v := range out.Header {
		req.Header[k] = v
	}

	if err := applyModifiers(req, modifiers); err != nil {
		return nil, nil, err
	}

	return req, out, nil
}

func (b *RequestBuilder) uriError(desc *MethodDescription, err error) error {
	uriErr := &URIConstructionError{BaseURL: b.baseURL, Template: desc.Path, Err: err}
	b.logger.Debug().
		Err(err).
		Str("method_id", desc.ID).
		Str("base_url", b.baseURL).
		Str("template", desc.Path).
		Msg("URI construction failed")
	return uriErr
}

// withMethod attaches the method ID to configuration errors raised by
// appliers and templates, which do not know it.
func withMethod(err error, id string) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Method == "" {
		cfgErr.Method = id
	}
	return err
}
