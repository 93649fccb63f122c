package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, desc MethodDescription) *compiledMethod {
	t.Helper()
	m, err := compile(desc)
	require.NoError(t, err)
	return m
}

func searchMethod() MethodDescription {
	return MethodDescription{
		ID:     "SearchPosts",
		Method: http.MethodPost,
		Path:   "users/{user}/posts",
		Parameters: []Parameter{
			{Name: "tag", In: InQuery},
			{Name: "user", In: InPath},
			{Name: "filter", In: InBody},
			{Name: "X-Trace", In: InHeader},
			{Name: "page", In: InQuery},
		},
	}
}

func TestRequestBuilder_Build(t *testing.T) {
	b := NewRequestBuilder("https://api.example.com/v1/", nil, zerolog.Nop())
	m := mustCompile(t, searchMethod())

	req, out, err := b.Build(context.Background(), m,
		[]any{[]string{"go", "http"}, "ada lovelace", map[string]int{"limit": 5}, "abc", 2}, nil)

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.example.com/v1/users/ada%20lovelace/posts?tag=go&tag=http&page=2", req.URL.String())
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
	assert.Equal(t, ContentTypeJSON, req.Header.Get("Content-Type"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"limit":5}`, string(body))
	assert.Equal(t, body, out.Body)
	assert.Equal(t, "users/ada%20lovelace/posts", out.Path)
}

func TestRequestBuilder_Build_EmptyTemplate(t *testing.T) {
	b := NewRequestBuilder("http://api.test/users", nil, zerolog.Nop())

	tests := []struct {
		name string
		args []any
		want string
	}{
		{name: "given a query parameter, then keeps the base path", args: []any{10}, want: "http://api.test/users?index=10"},
		{name: "given no query value, then returns the base unchanged", args: []any{nil}, want: "http://api.test/users"},
	}

	m := mustCompile(t, MethodDescription{
		ID:         "ListUsers",
		Method:     http.MethodGet,
		Parameters: []Parameter{{Name: "index", In: InQuery}},
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _, err := b.Build(context.Background(), m, tt.args, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.want, req.URL.String())
		})
	}
}

func TestRequestBuilder_Build_BodyContentType(t *testing.T) {
	b := NewRequestBuilder("http://api.test", nil, zerolog.Nop())

	tests := []struct {
		name        string
		contentType string
		value       any
		wantBody    string
		wantType    string
	}{
		{
			name:     "given a string and no declared type, then sends plain text",
			value:    "hello",
			wantBody: "hello",
			wantType: "text/plain; charset=utf-8",
		},
		{
			name:     "given a map and no declared type, then marshals JSON",
			value:    map[string]string{"greeting": "hello"},
			wantBody: `{"greeting":"hello"}`,
			wantType: ContentTypeJSON,
		},
		{
			name:        "given a string and a declared type, then keeps the declared type",
			contentType: ContentTypeJSON,
			value:       `"hello"`,
			wantBody:    `"hello"`,
			wantType:    ContentTypeJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustCompile(t, MethodDescription{
				ID:          "Greet",
				Method:      http.MethodPost,
				Path:        "greetings",
				ContentType: tt.contentType,
				Parameters:  []Parameter{{Name: "message", In: InBody}},
			})

			req, _, err := b.Build(context.Background(), m, []any{tt.value}, nil)

			require.NoError(t, err)
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(body))
			assert.Equal(t, tt.wantType, req.Header.Get("Content-Type"))
		})
	}
}

func TestRequestBuilder_Build_Errors(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		desc    MethodDescription
		args    []any
		wantErr error
	}{
		{
			name:    "given too few arguments, then fails with a configuration error",
			baseURL: "http://api.test",
			desc:    getUserMethod(),
			args:    nil,
			wantErr: ErrConfiguration,
		},
		{
			name:    "given a nil path value, then fails with a configuration error",
			baseURL: "http://api.test",
			desc:    getUserMethod(),
			args:    []any{nil},
			wantErr: ErrConfiguration,
		},
		{
			name:    "given a relative base URL, then fails URI construction",
			baseURL: "api.test",
			desc:    getUserMethod(),
			args:    []any{1},
			wantErr: ErrURIConstruction,
		},
		{
			name:    "given an empty base URL, then fails URI construction",
			baseURL: "",
			desc:    getUserMethod(),
			args:    []any{1},
			wantErr: ErrURIConstruction,
		},
		{
			name:    "given a malformed base URL, then fails URI construction",
			baseURL: "http://api test:xx",
			desc:    getUserMethod(),
			args:    []any{1},
			wantErr: ErrURIConstruction,
		},
		{
			name:    "given a body that cannot be encoded, then fails",
			baseURL: "http://api.test",
			desc: MethodDescription{ID: "Upload", Method: http.MethodPost, ContentType: ContentTypeBinary,
				Parameters: []Parameter{{Name: "file", In: InBody}}},
			args: []any{struct{}{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewRequestBuilder(tt.baseURL, nil, zerolog.Nop())

			_, _, err := b.Build(context.Background(), mustCompile(t, tt.desc), tt.args, nil)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRequestBuilder_Build_URIErrorDetails(t *testing.T) {
	b := NewRequestBuilder("not-absolute", nil, zerolog.Nop())

	_, _, err := b.Build(context.Background(), mustCompile(t, getUserMethod()), []any{7}, nil)

	var uriErr *URIConstructionError
	require.ErrorAs(t, err, &uriErr)
	assert.Equal(t, "not-absolute", uriErr.BaseURL)
	assert.Equal(t, "users/{id}", uriErr.Template)
}

func TestRequestBuilder_Build_ConfigErrorNamesMethod(t *testing.T) {
	b := NewRequestBuilder("http://api.test", nil, zerolog.Nop())

	_, _, err := b.Build(context.Background(), mustCompile(t, getUserMethod()), []any{nil}, nil)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GetUser", cfgErr.Method)
}

func TestRequestBuilder_Build_Modifiers(t *testing.T) {
	b := NewRequestBuilder("http://api.test", nil, zerolog.Nop())
	m := mustCompile(t, MethodDescription{
		ID:         "Ping",
		Method:     http.MethodGet,
		Path:       "ping",
		Parameters: []Parameter{{Name: "X-Mode", In: InHeader}},
	})

	t.Run("given modifiers, then they run after parameters in order", func(t *testing.T) {
		var order []string
		modifiers := []RequestModifier{
			ModifierFunc(func(req *http.Request) error {
				order = append(order, "first:"+req.Header.Get("X-Mode"))
				req.Header.Set("X-Mode", "overridden")
				return nil
			}),
			ModifierFunc(func(req *http.Request) error {
				order = append(order, "second:"+req.Header.Get("X-Mode"))
				return nil
			}),
		}

		req, _, err := b.Build(context.Background(), m, []any{"param"}, modifiers)

		require.NoError(t, err)
		assert.Equal(t, []string{"first:param", "second:overridden"}, order)
		assert.Equal(t, "overridden", req.Header.Get("X-Mode"))
	})

	t.Run("given a failing modifier, then stops and reports its index", func(t *testing.T) {
		errDenied := errors.New("denied")
		called := false
		modifiers := []RequestModifier{
			UserAgent("test/1.0"),
			ModifierFunc(func(*http.Request) error { return errDenied }),
			ModifierFunc(func(*http.Request) error { called = true; return nil }),
		}

		_, _, err := b.Build(context.Background(), m, []any{nil}, modifiers)

		var modErr *ModificationError
		require.ErrorAs(t, err, &modErr)
		assert.Equal(t, 1, modErr.Index)
		assert.ErrorIs(t, err, errDenied)
		assert.ErrorIs(t, err, ErrModification)
		assert.False(t, called)
	})
}
