package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// RetryClassifier reports whether a round trip should be retried. It sees
// either a response or an error.
//
// Example that also retries 500:
//
//	transport.WithRetryClassifier(func(resp *http.Response, err error) bool {
//	    if resp != nil && resp.StatusCode == http.StatusInternalServerError {
//	        return true
//	    }
//	    return transport.DefaultClassifier(resp, err)
//	})
type RetryClassifier func(resp *http.Response, err error) bool

// DefaultClassifier retries transient failures only.
//
// Retries on:
//   - network errors (timeouts, refused or reset connections, EOF)
//   - 429 Too Many Requests
//   - 502 Bad Gateway, 503 Service Unavailable, 504 Gateway Timeout
//
// Never retries:
//   - context cancellation or deadline expiry
//   - ErrRateLimited from the client-side limiter
//   - TLS certificate errors and unknown hosts
//   - any other status code
func DefaultClassifier(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if errors.Is(err, ErrRateLimited) || isPermanentError(err) {
			return false
		}
		return true
	}

	if resp != nil {
		return isRetryableStatusCode(resp.StatusCode)
	}
	return false
}

// StatusCodeClassifier retries the given status codes and transient network
// errors.
//
// Example:
//
//	transport.WithRetryClassifier(transport.StatusCodeClassifier(500, 503))
func StatusCodeClassifier(codes ...int) RetryClassifier {
	codeSet := make(map[int]bool, len(codes))
	for _, code := range codes {
		codeSet[code] = true
	}

	return func(resp *http.Response, err error) bool {
		if err != nil {
			return isRetryableNetworkError(err) && !isPermanentError(err)
		}
		return resp != nil && codeSet[resp.StatusCode]
	}
}

// NeverRetryClassifier returns a classifier that never retries.
func NeverRetryClassifier() RetryClassifier {
	return func(_ *http.Response, _ error) bool {
		return false
	}
}

func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// isRetryableNetworkError reports network errors that usually go away on
// their own.
func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return containsAny(err, "connection refused", "connection reset", "i/o timeout", "broken pipe", "server closed")
}

// isPermanentError reports errors a retry cannot fix.
func isPermanentError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}

	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EHOSTDOWN) {
		return true
	}

	return containsAny(err, "x509:", "tls:", "no route to host", "permission denied")
}

// isNetworkError reports failures of the connection itself, which the
// circuit breaker counts.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// containsAny is a fallback for wrapped errors that lose their type.
func containsAny(err error, patterns ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
