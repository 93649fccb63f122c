package apiclient

import (
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxDiagnosticChars is the number of body characters kept in the message
// of an unexpected status.
const MaxDiagnosticChars = 1024

// Classification is the outcome of comparing a status code with the
// expected set.
type Classification struct {
	StatusCode int
	// Unexpected is true when StatusCode is outside the expected set.
	Unexpected bool
}

// Classify compares status with the expected codes. http.StatusOK is
// always expected, whether listed or not.
func Classify(status int, expected []int) Classification {
	ok := status == http.StatusOK || slices.Contains(expected, status)
	return Classification{StatusCode: status, Unexpected: !ok}
}

// DiagnosticMessage derives the message reported for an unexpected status:
// the first MaxDiagnosticChars characters of body, or reasonPhrase when that
// prefix is blank. Truncation happens on rune boundaries; invalid UTF-8
// bytes count as one character each.
func DiagnosticMessage(body []byte, reasonPhrase string) string {
	prefix := truncateChars(body, MaxDiagnosticChars)
	if strings.TrimSpace(prefix) == "" {
		return reasonPhrase
	}
	return prefix
}

// readDiagnosticPrefix reads only as much of r as can hold
// MaxDiagnosticChars characters.
func readDiagnosticPrefix(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(r, MaxDiagnosticChars*utf8.UTFMax))
}

// reasonPhrase returns the transport's reason phrase for resp, falling
// back to the standard text for its status code.
func reasonPhrase(resp *http.Response) string {
	if resp.Status != "" {
		// "404 Not Found" -> "Not Found"
		if code, text, ok := strings.Cut(resp.Status, " "); ok && code == strconv.Itoa(resp.StatusCode) {
			return text
		}
		return resp.Status
	}
	return http.StatusText(resp.StatusCode)
}

func truncateChars(b []byte, n int) string {
	count := 0
	for i := 0; i < len(b); {
		if count == n {
			return string(b[:i])
		}
		_, size := utf8.DecodeRune(b[i:])
		i += size
		count++
	}
	return string(b)
}
