package main

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ozzy-ext/redcucumber-apiclient/apiclient"
)

// convertArgs turns positional command-line values into call arguments
// using the declared parameter types. The literal "null" binds nil.
func convertArgs(desc apiclient.MethodDescription, raw []string) ([]any, error) {
	if len(raw) != len(desc.Parameters) {
		return nil, fmt.Errorf("%s takes %d arguments (%s), got %d",
			desc.ID, len(desc.Parameters), paramNames(desc.Parameters), len(raw))
	}

	args := make([]any, len(raw))
	for i, p := range desc.Parameters {
		v, err := convertArg(p, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

func convertArg(p apiclient.Parameter, raw string) (any, error) {
	if raw == "null" {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "", "string":
		return raw, nil
	case "int", "integer", "long":
		return strconv.ParseInt(raw, 10, 64)
	case "float", "double", "number":
		return strconv.ParseFloat(raw, 64)
	case "bool", "boolean":
		return strconv.ParseBool(raw)
	case "json", "object":
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return v, nil
	case "list", "array":
		if raw == "" {
			return []string{}, nil
		}
		return strings.Split(raw, ","), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", p.Type)
	}
}

func paramNames(params []apiclient.Parameter) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

// parseHeaders parses "Name: value" pairs given with --header.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, hv := range values {
		name, value, ok := strings.Cut(hv, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want Name: value", hv)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
