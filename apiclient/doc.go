// Package apiclient executes calls of declaratively described HTTP API
// methods.
//
// A method is described once by a MethodDescription: its verb, a relative
// URL template, where each positional argument goes (path, query, body or
// header) and which non-200 status codes are expected. At call time the
// description and the arguments are compiled into an *http.Request, sent
// through a pluggable transport, and the response is classified and decoded.
//
// # Quick Start
//
//	reg := apiclient.NewRegistry().MustRegister(
//	    apiclient.MethodDescription{
//	        ID:     "GetUser",
//	        Method: http.MethodGet,
//	        Path:   "users/{id}",
//	        Parameters: []apiclient.Parameter{
//	            {Name: "id", In: apiclient.InPath},
//	            {Name: "fields", In: apiclient.InQuery},
//	        },
//	    },
//	)
//
//	client := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com/v1"),
//	    apiclient.WithRegistry(reg),
//	)
//
//	user, err := apiclient.Invoke[User](ctx, client, "GetUser", 42, "name")
//
// # Registries From YAML
//
//	reg, err := apiclient.LoadRegistry("methods.yaml")
//
// # Call Modes
//
// GetResult fails with an UnexpectedStatusError when the status code is
// neither 200 nor declared as expected. The error message is the first 1024
// characters of the response body, or the reason phrase when the body is
// empty.
//
// GetDetailed never fails on the status code. It returns CallDetails with
// the decoded value, wire dumps of the request and response, an equivalent
// cURL command and the classification outcome.
//
// # Request Modifiers
//
// Modifiers run on the finished *http.Request just before it is sent.
// Client-level modifiers run first, then call-level ones:
//
//	call, _ := apiclient.NewCall[User](client, "GetUser", 42)
//	call.AddModifier(apiclient.BearerToken(token))
//	call.AddModifier(apiclient.CorrelationID("X-Request-ID", nil))
//
// # Error Handling
//
// Every failure matches one sentinel via errors.Is:
//
//	ErrConfiguration        - invalid description or arguments
//	ErrURIConstruction      - the request URL cannot be formed
//	ErrModification         - a modifier failed
//	ErrTransport            - the send failed, including cancellation
//	ErrTransportUnavailable - no transport was provided
//	ErrUnexpectedStatus     - undeclared status code (simple mode)
//	ErrDecode               - the body could not be decoded
//
// # Observability
//
// Each call gets an "apiclient <id>" span and records call duration,
// unexpected status and error counters through OpenTelemetry. The default
// transport comes from the transport package and adds retries, a circuit
// breaker and per-request client spans.
package apiclient
