package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugLogger is the logger selected by WithDebug(true).
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.DebugLevel)

// dumpRequest renders req in HTTP/1.1 wire format with body.
// The request body has already been consumed by the transport, so the
// serialized body kept by the builder is used instead.
func dumpRequest(req *http.Request, body []byte) string {
	clone := req.Clone(req.Context())
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
	} else {
		clone.Body = nil
	}

	dump, err := httputil.DumpRequestOut(clone, true)
	if err != nil {
		return fmt.Sprintf("%s %s\n(dump failed: %v)", req.Method, req.URL, err)
	}
	return string(dump)
}

// dumpResponse renders resp in wire format using the already read body.
func dumpResponse(resp *http.Response, body []byte) string {
	clone := *resp
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	clone.TransferEncoding = nil

	dump, err := httputil.DumpResponse(&clone, true)
	if err != nil {
		return fmt.Sprintf("%s\n(dump failed: %v)", resp.Status, err)
	}
	return string(dump)
}

// generateCurlCommand creates a cURL command equivalent for the given request.
//
// Example output:
//
//	curl -X POST 'https://api.example.com/users' -H 'Content-Type: application/json' -d '{"name":"John"}'
func generateCurlCommand(req *http.Request, body []byte) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}
	parts = append(parts, shellQuote(req.URL.String()))

	keys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range req.Header[k] {
			parts = append(parts, "-H", shellQuote(k+": "+v))
		}
	}

	if len(body) > 0 {
		parts = append(parts, "-d", shellQuote(string(body)))
	}

	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// logRequest logs the outbound request.
func logRequest(logger zerolog.Logger, id string, req *http.Request) {
	logger.Debug().
		Str("method_id", id).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("HTTP request")
}

// logResponse logs the received response.
func logResponse(logger zerolog.Logger, id string, resp *http.Response, duration time.Duration) {
	logger.Debug().
		Str("method_id", id).
		Int("status", resp.StatusCode).
		Str("status_text", resp.Status).
		Dur("duration_ms", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
}

// logUnexpected logs a status outside the expected set.
func logUnexpected(logger zerolog.Logger, id string, status int, message string) {
	logger.Debug().
		Str("method_id", id).
		Int("status", status).
		Str("message", message).
		Msg("unexpected status code")
}
