package apiclient

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userID int

func (u userID) String() string { return fmt.Sprintf("u-%03d", int(u)) }

func TestQueryApplier_Apply(t *testing.T) {
	name := "ada"

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "given a string, then appends one pair", value: "a b&c", want: "q=a+b%26c"},
		{name: "given an int, then formats it", value: 42, want: "q=42"},
		{name: "given a bool, then formats it", value: true, want: "q=true"},
		{name: "given a float, then uses the shortest form", value: 1.5, want: "q=1.5"},
		{name: "given a pointer, then uses the pointee", value: &name, want: "q=ada"},
		{name: "given a Stringer, then uses String", value: userID(7), want: "q=u-007"},
		{name: "given a slice, then repeats the key", value: []int{1, 2, 3}, want: "q=1&q=2&q=3"},
		{name: "given a slice with nil elements, then skips them", value: []*string{nil, &name}, want: "q=ada"},
		{name: "given nil, then skips the parameter", value: nil, want: ""},
		{name: "given a nil pointer, then skips the parameter", value: (*string)(nil), want: ""},
		{
			name:  "given a time, then formats RFC 3339",
			value: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			want:  "q=2024-05-01T12%3A00%3A00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newOutboundRequest("GET", ContentTypeJSON, NewCodecs())

			err := QueryApplier{}.Apply(r, Parameter{Name: "q", In: InQuery}, tt.value)

			require.NoError(t, err)
			assert.Equal(t, tt.want, r.RawQuery())
		})
	}
}

func TestOutboundRequest_RelativeURL(t *testing.T) {
	r := newOutboundRequest("GET", ContentTypeJSON, NewCodecs())
	r.Path = "search"
	assert.Equal(t, "search", r.RelativeURL())

	r.AddQuery("q", "go")
	r.AddQuery("page", "2")
	assert.Equal(t, "search?q=go&page=2", r.RelativeURL())
}

func TestPathApplier_Apply(t *testing.T) {
	t.Run("given a value, then binds it by name", func(t *testing.T) {
		r := newOutboundRequest("GET", ContentTypeJSON, NewCodecs())

		require.NoError(t, PathApplier{}.Apply(r, Parameter{Name: "id", In: InPath}, int64(9)))

		assert.Equal(t, map[string]string{"id": "9"}, r.PathValues)
	})

	t.Run("given nil, then fails with a configuration error", func(t *testing.T) {
		r := newOutboundRequest("GET", ContentTypeJSON, NewCodecs())

		err := PathApplier{}.Apply(r, Parameter{Name: "id", In: InPath}, nil)

		require.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), `"id"`)
	})

	t.Run("given a slice, then fails with a configuration error", func(t *testing.T) {
		r := newOutboundRequest("GET", ContentTypeJSON, NewCodecs())

		err := PathApplier{}.Apply(r, Parameter{Name: "id", In: InPath}, []string{"a", "b"})

		require.ErrorIs(t, err, ErrConfiguration)
		assert.Empty(t, r.PathValues)
	})
}

func TestHeaderApplier_Apply(t *testing.T) {
	r := newOutboundRequest("GET", ContentTypeJSON, NewCodecs())
	p := Parameter{Name: "X-Tenant", In: InHeader}

	require.NoError(t, HeaderApplier{}.Apply(r, p, "first"))
	require.NoError(t, HeaderApplier{}.Apply(r, p, "second"))
	require.NoError(t, HeaderApplier{}.Apply(r, Parameter{Name: "X-Skip", In: InHeader}, nil))

	assert.Equal(t, []string{"second"}, r.Header.Values("X-Tenant"))
	assert.Empty(t, r.Header.Get("X-Skip"))
}

func TestHeaderApplier_Apply_Slice(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{name: "given a slice, then joins the values", value: []string{"gzip", "br"}, want: []string{"gzip, br"}},
		{name: "given a slice with nil elements, then skips them", value: []any{nil, 1, 2}, want: []string{"1, 2"}},
		{name: "given an empty slice, then sets nothing", value: []string{}, want: nil},
		{name: "given bytes, then sends them as one value", value: []byte("raw"), want: []string{"raw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newOutboundRequest("GET", ContentTypeJSON, NewCodecs())

			require.NoError(t, HeaderApplier{}.Apply(r, Parameter{Name: "Accept-Encoding", In: InHeader}, tt.value))

			assert.Equal(t, tt.want, r.Header.Values("Accept-Encoding"))
		})
	}
}

func TestBodyApplier_Apply(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name     string
		bodyType string
		value    any
		wantBody string
		wantType string
	}{
		{
			name:     "given a struct, then encodes JSON",
			bodyType: ContentTypeJSON,
			value:    payload{Name: "ada"},
			wantBody: `{"name":"ada"}`,
			wantType: ContentTypeJSON,
		},
		{
			name:     "given a map and a form type, then encodes the form",
			bodyType: ContentTypeForm,
			value:    map[string]string{"a": "1", "b": "x y"},
			wantBody: "a=1&b=x+y",
			wantType: ContentTypeForm,
		},
		{
			name:     "given a string, then sends it as-is",
			bodyType: ContentTypeJSON,
			value:    `{"raw":true}`,
			wantBody: `{"raw":true}`,
			wantType: ContentTypeJSON,
		},
		{
			name:     "given a reader, then sends its content",
			bodyType: ContentTypeBinary,
			value:    strings.NewReader("bytes"),
			wantBody: "bytes",
			wantType: ContentTypeBinary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newOutboundRequest("POST", tt.bodyType, NewCodecs())

			err := BodyApplier{}.Apply(r, Parameter{Name: "body", In: InBody}, tt.value)

			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(r.Body))
			assert.Equal(t, tt.wantType, r.ContentType)
			assert.Equal(t, tt.wantType, r.Header.Get("Content-Type"))
		})
	}
}

func TestBodyApplier_Apply_Twice(t *testing.T) {
	r := newOutboundRequest("POST", ContentTypeJSON, NewCodecs())
	p := Parameter{Name: "body", In: InBody}

	require.NoError(t, BodyApplier{}.Apply(r, p, nil))
	assert.Nil(t, r.Body)

	err := BodyApplier{}.Apply(r, p, "again")
	require.ErrorIs(t, err, ErrConfiguration)
}
