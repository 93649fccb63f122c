package apiclient

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestModifier mutates a fully built request before it is sent.
// Modifiers run after every parameter has been applied, in the order they
// were registered.
//
// Common use cases:
//   - Adding authentication headers (Bearer tokens, API keys)
//   - Injecting correlation IDs
//   - Setting a User-Agent
type RequestModifier interface {
	Modify(req *http.Request) error
}

// ModifierFunc adapts a function to RequestModifier.
type ModifierFunc func(req *http.Request) error

// Modify calls f(req).
func (f ModifierFunc) Modify(req *http.Request) error {
	return f(req)
}

// applyModifiers runs modifiers in order and wraps the first failure.
func applyModifiers(req *http.Request, modifiers []RequestModifier) error {
	for i, m := range modifiers {
		if err := m.Modify(req); err != nil {
			return &ModificationError{Index: i, Err: err}
		}
	}
	return nil
}

// BearerToken returns a modifier that adds a static Bearer token.
func BearerToken(token string) RequestModifier {
	return ModifierFunc(func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// BearerTokenFunc returns a modifier that adds a Bearer token obtained from
// tokenFunc on every request (useful for refreshable tokens). An error from
// tokenFunc fails the call with a ModificationError.
func BearerTokenFunc(tokenFunc func() (string, error)) RequestModifier {
	return ModifierFunc(func(req *http.Request) error {
		token, err := tokenFunc()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// APIKey returns a modifier that sets an API key header.
func APIKey(headerName, apiKey string) RequestModifier {
	return ModifierFunc(func(req *http.Request) error {
		req.Header.Set(headerName, apiKey)
		return nil
	})
}

// CorrelationID returns a modifier that sets a correlation ID header unless
// the request already carries one. A nil idFunc generates random UUIDs.
func CorrelationID(headerName string, idFunc func() string) RequestModifier {
	if idFunc == nil {
		idFunc = uuid.NewString
	}
	return ModifierFunc(func(req *http.Request) error {
		if req.Header.Get(headerName) == "" {
			req.Header.Set(headerName, idFunc())
		}
		return nil
	})
}

// UserAgent returns a modifier that sets the User-Agent header.
func UserAgent(userAgent string) RequestModifier {
	return ModifierFunc(func(req *http.Request) error {
		req.Header.Set("User-Agent", userAgent)
		return nil
	})
}

// StaticHeaders returns a modifier that sets every header in headers.
func StaticHeaders(headers map[string]string) RequestModifier {
	return ModifierFunc(func(req *http.Request) error {
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return nil
	})
}
