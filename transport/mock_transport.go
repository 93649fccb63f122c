package transport

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
)

// MockTransport is a stub http.RoundTripper for tests. Stubs are checked
// in the order they were added; the first match wins.
//
// Example:
//
//	mock := transport.NewMockTransport().
//	    StubPath("/users/42", http.StatusOK, `{"id":42}`).
//	    StubPath("/users/0", http.StatusNotFound, "no such user")
//
//	client := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithHTTPClient(&http.Client{Transport: mock}),
//	)
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []stub
	fallback    *stub
	requests    []*http.Request
	requestHook func(*http.Request)
}

type stub struct {
	matcher func(*http.Request) bool
	handler http.Handler
	err     error
}

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse answers every unmatched request with statusCode and body.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{handler: staticHandler(statusCode, body, nil)}
	return m
}

// StubError fails every unmatched request with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{err: err}
	return m
}

// StubPath answers requests for path.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubPathRegex answers requests whose path matches pattern.
func (m *MockTransport) StubPathRegex(pattern string, statusCode int, body string) *MockTransport {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool {
		return re.MatchString(req.URL.Path)
	}, statusCode, body)
}

// StubMethod answers requests with the given HTTP method.
func (m *MockTransport) StubMethod(method string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, statusCode, body)
}

// StubFunc answers requests matching the predicate.
func (m *MockTransport) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
) *MockTransport {
	return m.StubHandler(matcher, staticHandler(statusCode, body, nil))
}

// StubJSON answers requests for path with a JSON body.
func (m *MockTransport) StubJSON(path string, statusCode int, body string) *MockTransport {
	header := http.Header{"Content-Type": []string{"application/json"}}
	return m.StubHandler(func(req *http.Request) bool {
		return req.URL.Path == path
	}, staticHandler(statusCode, body, header))
}

// StubHandler answers requests matching the predicate with h, which can
// inspect the request and set any header.
func (m *MockTransport) StubHandler(matcher func(*http.Request) bool, h http.Handler) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, handler: h})
	return m
}

// StubFuncError fails requests matching the predicate with err.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, err: err})
	return m
}

// StubSequence answers successive unmatched requests with the given status
// codes, repeating the last one once the sequence is used up.
func (m *MockTransport) StubSequence(statusCodes ...int) *MockTransport {
	var (
		mu   sync.Mutex
		next int
	)
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		code := statusCodes[min(next, len(statusCodes)-1)]
		next++
		mu.Unlock()
		w.WriteHeader(code)
		_, _ = io.WriteString(w, http.StatusText(code))
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{handler: h}
	return m
}

// OnRequest sets a hook called for each request before it is answered.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	s := m.match(req)
	m.mu.RUnlock()

	if s == nil {
		return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
	}
	if s.err != nil {
		return nil, s.err
	}
	return serve(s.handler, req), nil
}

func (m *MockTransport) match(req *http.Request) *stub {
	for i := range m.stubs {
		if m.stubs[i].matcher(req) {
			return &m.stubs[i]
		}
	}
	return m.fallback
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears recorded requests, stubs and the hook.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.fallback = nil
	m.requestHook = nil
}

func staticHandler(statusCode int, body string, header http.Header) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for k, v := range header {
			w.Header()[k] = v
		}
		w.WriteHeader(statusCode)
		_, _ = io.WriteString(w, body)
	})
}

// serve runs h against req and turns the recording into a response whose
// body can be read once, like a real one.
func serve(h http.Handler, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := rec.Body.Bytes()
	header := rec.Header().Clone()
	header.Set("Content-Length", strconv.Itoa(len(body)))

	return &http.Response{
		Status:        strconv.Itoa(rec.Code) + " " + http.StatusText(rec.Code),
		StatusCode:    rec.Code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
