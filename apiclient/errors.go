package apiclient

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure kind. Every typed error below matches
// its sentinel with errors.Is.
var (
	// ErrConfiguration marks a declaration problem detected at registration
	// or call construction time (bad template, duplicate body parameter,
	// result type mismatch, missing path value).
	ErrConfiguration = errors.New("apiclient: configuration error")

	// ErrURIConstruction marks a base URL / template combination that does
	// not form a valid request URI.
	ErrURIConstruction = errors.New("apiclient: uri construction failed")

	// ErrModification marks a failure raised by a RequestModifier.
	ErrModification = errors.New("apiclient: request modification failed")

	// ErrTransport marks a failure raised while sending the request.
	ErrTransport = errors.New("apiclient: transport failed")

	// ErrTransportUnavailable is the cause of a TransportError when the
	// transport provider returned no transport.
	ErrTransportUnavailable = errors.New("apiclient: transport unavailable")

	// ErrUnexpectedStatus marks a response whose status code is outside the
	// expected set.
	ErrUnexpectedStatus = errors.New("apiclient: unexpected status code")

	// ErrDecode marks a response body that could not be decoded into the
	// declared result type.
	ErrDecode = errors.New("apiclient: decode failed")
)

// ConfigurationError reports an invalid method declaration or call setup.
type ConfigurationError struct {
	// Method is the method ID the problem belongs to, if known.
	Method string
	// Reason describes the problem.
	Reason string
}

func newConfigError(method, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Method: method, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Method, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// URIConstructionError reports a base URL and template that could not be
// combined into a request URI.
type URIConstructionError struct {
	BaseURL  string
	Template string
	Err      error
}

func (e *URIConstructionError) Error() string {
	return fmt.Sprintf("%s: base %q, template %q: %v", ErrURIConstruction, e.BaseURL, e.Template, e.Err)
}

func (e *URIConstructionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrURIConstruction.
func (e *URIConstructionError) Is(target error) bool { return target == ErrURIConstruction }

// ModificationError wraps an error returned by a RequestModifier.
type ModificationError struct {
	// Index is the position of the failing modifier in registration order.
	Index int
	Err   error
}

func (e *ModificationError) Error() string {
	return fmt.Sprintf("%s: modifier #%d: %v", ErrModification, e.Index, e.Err)
}

func (e *ModificationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrModification.
func (e *ModificationError) Is(target error) bool { return target == ErrModification }

// TransportError wraps a failure returned by the transport. Context
// cancellation and deadline errors stay reachable through errors.Is.
type TransportError struct {
	Method string
	URL    string
	// Unavailable is true when no transport could be obtained at all.
	Unavailable bool
	Err         error
}

func (e *TransportError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("%s: %s %s: %v", ErrTransport, e.Method, e.URL, ErrTransportUnavailable)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrTransport, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// UnexpectedStatusError is returned by GetResult when the response status
// is not in the expected set.
type UnexpectedStatusError struct {
	Method     string
	URL        string
	StatusCode int
	// Status is the reason phrase reported by the transport, e.g. "404 Not Found".
	Status string
	// Message is the first characters of the response body, or the reason
	// phrase when the body is blank.
	Message string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s: %s %s returned %d: %s", ErrUnexpectedStatus, e.Method, e.URL, e.StatusCode, e.Message)
}

// Is reports whether target is ErrUnexpectedStatus.
func (e *UnexpectedStatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// DecodeError wraps a codec failure while decoding a response body.
type DecodeError struct {
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: content type %q: %v", ErrDecode, e.ContentType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
