package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// OutboundRequest accumulates the parts of a request while parameters are
// applied. It is owned by a single build and never shared.
type OutboundRequest struct {
	// Method is the HTTP method.
	Method string

	// PathValues holds the values bound to template placeholders.
	PathValues map[string]string

	// Path is the resolved relative path, set once path parameters are applied.
	Path string

	// query holds encoded name=value pairs in declaration order.
	query []string

	// Header is the header bag.
	Header http.Header

	// Body is the serialized request body, nil when no body is bound.
	Body []byte

	// ContentType is the Content-Type of Body.
	ContentType string

	hasBody bool
	codecs  *Codecs
	// bodyType is the declared content type used to serialize the body.
	bodyType string
}

func newOutboundRequest(method, bodyType string, codecs *Codecs) *OutboundRequest {
	return &OutboundRequest{
		Method:     method,
		PathValues: make(map[string]string),
		Header:     make(http.Header),
		codecs:     codecs,
		bodyType:   bodyType,
	}
}

// RawQuery returns the query string built so far, without the leading "?".
func (r *OutboundRequest) RawQuery() string {
	return strings.Join(r.query, "&")
}

// AddQuery appends name=value to the query string.
func (r *OutboundRequest) AddQuery(name, value string) {
	r.query = append(r.query, url.QueryEscape(name)+"="+url.QueryEscape(value))
}

// RelativeURL returns the resolved path with its query string.
func (r *OutboundRequest) RelativeURL() string {
	if len(r.query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.RawQuery()
}

// ParameterApplier applies one declared parameter's runtime value to an
// in-progress request.
type ParameterApplier interface {
	Apply(r *OutboundRequest, p Parameter, value any) error
}

// PathApplier binds a value to the placeholder named after the parameter.
// It must run before the path template is resolved.
type PathApplier struct{}

func (PathApplier) Apply(r *OutboundRequest, p Parameter, value any) error {
	if isNil(value) {
		return newConfigError("", "path parameter %q is nil", p.Name)
	}
	if _, ok := elements(value); ok {
		return newConfigError("", "path parameter %q cannot bind a %T", p.Name, value)
	}
	r.PathValues[p.Name] = stringify(value)
	return nil
}

// QueryApplier appends name=value to the query string. Slice values add one
// pair per element; nil values are skipped.
type QueryApplier struct{}

func (QueryApplier) Apply(r *OutboundRequest, p Parameter, value any) error {
	if isNil(value) {
		return nil
	}

	if elems, ok := elements(value); ok {
		for _, elem := range elems {
			r.AddQuery(p.Name, stringify(elem))
		}
		return nil
	}

	r.AddQuery(p.Name, stringify(value))
	return nil
}

// BodyApplier serializes the value as the request body using the method's
// declared content type.
type BodyApplier struct{}

func (BodyApplier) Apply(r *OutboundRequest, p Parameter, value any) error {
	if r.hasBody {
		return newConfigError("", "body already set, cannot bind %q", p.Name)
	}
	r.hasBody = true
	if isNil(value) {
		return nil
	}

	data, contentType, err := r.codecs.Encode(value, r.bodyType)
	if err != nil {
		return fmt.Errorf("encode body parameter %q: %w", p.Name, err)
	}
	r.Body = data
	r.ContentType = contentType
	r.Header.Set("Content-Type", contentType)
	return nil
}

// HeaderApplier sets the header named after the parameter. Later appliers
// for the same name overwrite earlier ones; nil values are skipped. Slice
// values are joined into one comma-separated field value.
type HeaderApplier struct{}

func (HeaderApplier) Apply(r *OutboundRequest, p Parameter, value any) error {
	if isNil(value) {
		return nil
	}
	elems, ok := elements(value)
	if !ok {
		r.Header.Set(p.Name, stringify(value))
		return nil
	}
	if len(elems) == 0 {
		return nil
	}
	parts := make([]string, len(elems))
	for i, elem := range elems {
		parts[i] = stringify(elem)
	}
	r.Header.Set(p.Name, strings.Join(parts, ", "))
	return nil
}

func applierFor(in Placement) ParameterApplier {
	switch in {
	case InPath:
		return PathApplier{}
	case InQuery:
		return QueryApplier{}
	case InBody:
		return BodyApplier{}
	default:
		return HeaderApplier{}
	}
}

// stringify renders an argument for a path segment, query value or header.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// elements returns the non-nil elements of a slice or array value. Byte
// slices are scalars.
func elements(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	elems := make([]any, 0, rv.Len())
	for i := range rv.Len() {
		if elem := rv.Index(i).Interface(); !isNil(elem) {
			elems = append(elems, elem)
		}
	}
	return elems, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
