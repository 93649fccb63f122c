package apiclient

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected []int
		want     bool
	}{
		{name: "given 200 and nothing declared, then expected", status: 200, want: false},
		{name: "given 200 not listed among others, then still expected", status: 200, expected: []int{404}, want: false},
		{name: "given a declared 404, then expected", status: 404, expected: []int{404}, want: false},
		{name: "given 201 not declared, then unexpected", status: 201, want: true},
		{name: "given 500 not declared, then unexpected", status: 500, expected: []int{404}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.expected)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.want, got.Unexpected)
		})
	}
}

func TestDiagnosticMessage(t *testing.T) {
	long := strings.Repeat("a", MaxDiagnosticChars+10)
	wide := strings.Repeat("é", MaxDiagnosticChars+1)

	tests := []struct {
		name   string
		body   []byte
		reason string
		want   string
	}{
		{name: "given a short body, then returns it whole", body: []byte("user not found"), reason: "Not Found", want: "user not found"},
		{name: "given an empty body, then returns the reason phrase", body: nil, reason: "Not Found", want: "Not Found"},
		{name: "given a whitespace body, then returns the reason phrase", body: []byte(" \r\n\t"), reason: "Bad Gateway", want: "Bad Gateway"},
		{name: "given a long body, then keeps the first characters", body: []byte(long), reason: "x", want: long[:MaxDiagnosticChars]},
		{
			name:   "given multi-byte characters, then truncates on rune boundaries",
			body:   []byte(wide),
			reason: "x",
			want:   strings.Repeat("é", MaxDiagnosticChars),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiagnosticMessage(tt.body, tt.reason)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestReadDiagnosticPrefix(t *testing.T) {
	body := strings.Repeat("é", MaxDiagnosticChars*4)

	got, err := readDiagnosticPrefix(strings.NewReader(body))

	require.NoError(t, err)
	assert.Len(t, got, MaxDiagnosticChars*utf8.UTFMax)
	assert.Equal(t, strings.Repeat("é", MaxDiagnosticChars), DiagnosticMessage(got, ""))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("reset by peer") }

func TestReadDiagnosticPrefix_Error(t *testing.T) {
	_, err := readDiagnosticPrefix(failingReader{})
	require.Error(t, err)
}

func TestReasonPhrase(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		want string
	}{
		{name: "given a full status line, then strips the code", resp: &http.Response{StatusCode: 404, Status: "404 Not Found"}, want: "Not Found"},
		{name: "given a custom phrase, then keeps it", resp: &http.Response{StatusCode: 418, Status: "418 Short And Stout"}, want: "Short And Stout"},
		{name: "given no status text, then uses the standard phrase", resp: &http.Response{StatusCode: 503}, want: "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reasonPhrase(tt.resp))
		})
	}
}
