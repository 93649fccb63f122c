package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ozzy-ext/redcucumber-apiclient/apiclient"
	"github.com/ozzy-ext/redcucumber-apiclient/transport"
)

type invokeOptions struct {
	baseURL     string
	detailed    bool
	headers     []string
	timeout     time.Duration
	retries     uint
	rateLimit   float64
	breaker     bool
	breakerAddr string
	repeat      int
	parallel    int
}

func newInvokeCmd(root *rootOptions) *cobra.Command {
	opts := &invokeOptions{}
	cmd := &cobra.Command{
		Use:   "invoke METHOD_ID [ARG...]",
		Short: "Invoke a declared method and print the result",
		Long: "Invoke a declared method. Positional arguments bind to the declared parameters in order\n" +
			"and are converted by their declared type (int, float, bool, json, list, string).\n" +
			"Pass null to bind no value.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, opts, args[0], args[1:])
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.baseURL, "base-url", "", "base URL of the remote API")
	fs.BoolVarP(&opts.detailed, "detailed", "d", false, "print request/response dumps and a cURL command")
	fs.StringArrayVarP(&opts.headers, "header", "H", nil, "extra request header, Name: value (repeatable)")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout per call")
	fs.UintVar(&opts.retries, "retries", 0, "retry transient failures up to N times")
	fs.Float64Var(&opts.rateLimit, "rate-limit", 0, "client-side requests per second (0 disables)")
	fs.BoolVar(&opts.breaker, "breaker", false, "enable the circuit breaker")
	fs.StringVar(&opts.breakerAddr, "breaker-redis", "", "share circuit breaker state through this Redis address")
	fs.IntVar(&opts.repeat, "repeat", 1, "number of times to invoke the method")
	fs.IntVar(&opts.parallel, "parallel", 1, "maximum concurrent invocations when repeating")
	_ = cmd.MarkFlagRequired("base-url")
	return cmd
}

func runInvoke(
	ctx context.Context,
	stdout, stderr io.Writer,
	root *rootOptions,
	opts *invokeOptions,
	id string,
	rawArgs []string,
) error {
	if opts.repeat < 1 || opts.parallel < 1 {
		return errors.New("--repeat and --parallel must be at least 1")
	}

	reg, err := root.loadRegistry()
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	desc, ok := reg.Lookup(id)
	if !ok {
		return fmt.Errorf("method %q is not declared in %s", id, root.registryPath)
	}
	args, err := convertArgs(desc, rawArgs)
	if err != nil {
		return err
	}
	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return err
	}

	httpClient, closeTransport := opts.httpClient()
	defer closeTransport()

	clientOpts := []apiclient.Option{
		apiclient.WithBaseURL(opts.baseURL),
		apiclient.WithRegistry(reg),
		apiclient.WithHTTPClient(httpClient),
		apiclient.WithLogger(root.logger(stderr)),
		apiclient.WithModifier(apiclient.UserAgent("apicall")),
	}
	if len(headers) > 0 {
		clientOpts = append(clientOpts, apiclient.WithModifier(apiclient.StaticHeaders(headers)))
	}
	client := apiclient.New(clientOpts...)

	outputs := make([]string, opts.repeat)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallel)
	for i := range opts.repeat {
		g.Go(func() error {
			out, err := invokeOnce(gctx, client, opts, id, args)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outputs {
		fmt.Fprintln(stdout, out)
	}
	return nil
}

func invokeOnce(ctx context.Context, client *apiclient.Client, opts *invokeOptions, id string, args []any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	if !opts.detailed {
		value, err := apiclient.Invoke[any](ctx, client, id, args...)
		if err != nil {
			return "", err
		}
		return formatValue(value)
	}

	details, err := apiclient.InvokeDetailed[any](ctx, client, id, args...)
	if details == nil {
		return "", err
	}
	return formatDetails(details, err), nil
}

func formatValue(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format result: %w", err)
	}
	return string(b), nil
}

func formatDetails(d *apiclient.CallDetails[any], decodeErr error) string {
	var sb strings.Builder
	sb.WriteString(d.RequestDump)
	sb.WriteString("\n\n")
	sb.WriteString(d.ResponseDump)
	sb.WriteString("\n\n# ")
	sb.WriteString(d.CurlCommand)
	sb.WriteString("\n")

	switch {
	case d.IsUnexpectedStatusCode:
		fmt.Fprintf(&sb, "# unexpected status %d: %s\n", d.StatusCode, d.Message)
	case decodeErr != nil:
		fmt.Fprintf(&sb, "# status %d, decode failed: %v\n", d.StatusCode, decodeErr)
	default:
		fmt.Fprintf(&sb, "# status %d\n", d.StatusCode)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// httpClient builds the transport chain selected by the flags. The returned
// func releases the Redis connection, if any.
func (o *invokeOptions) httpClient() (*http.Client, func()) {
	topts := []transport.Option{transport.WithServiceName("apicall")}
	closer := func() {}

	if o.retries > 0 {
		rc := transport.DefaultRetryConfig()
		rc.MaxRetries = o.retries
		topts = append(topts, transport.WithRetryConfig(rc))
	}
	if o.rateLimit > 0 {
		rl := transport.DefaultRateLimitConfig()
		rl.RequestsPerSecond = o.rateLimit
		topts = append(topts, transport.WithRateLimit(rl))
	}

	switch {
	case o.breakerAddr != "":
		rdb := redis.NewClient(&redis.Options{Addr: o.breakerAddr})
		closer = func() { _ = rdb.Close() }
		topts = append(topts, transport.WithBreakerConfig(transport.DistributedBreakerConfig(transport.NewRedisStore(rdb))))
	case o.breaker:
		topts = append(topts, transport.WithBreakerConfig(transport.DefaultBreakerConfig()))
	}

	return transport.New(topts...), closer
}
