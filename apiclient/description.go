package apiclient

import (
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Placement is the part of a request a declared parameter is bound to.
type Placement string

const (
	// InPath binds the parameter to a {name} placeholder of the path template.
	InPath Placement = "path"
	// InQuery appends the parameter to the query string.
	InQuery Placement = "query"
	// InBody serializes the parameter as the request body.
	InBody Placement = "body"
	// InHeader sets the parameter as a request header.
	InHeader Placement = "header"
)

// Parameter is one declared parameter of a remote operation.
type Parameter struct {
	// Name is the placeholder, query key or header name. For body
	// parameters it is informational.
	Name string `yaml:"name" validate:"required"`

	// In is the placement of the parameter.
	In Placement `yaml:"in" validate:"required,oneof=path query body header"`

	// Type names the source type of the argument (e.g. "string", "int",
	// "json"). The core does not interpret it; tooling uses it to convert
	// textual arguments.
	Type string `yaml:"type"`
}

// MethodDescription declares one remote operation. It is immutable once
// registered and shared by every call of that operation.
type MethodDescription struct {
	// ID is the stable identifier the operation is registered under.
	ID string `yaml:"id" validate:"required"`

	// Method is the HTTP method, e.g. "GET".
	Method string `yaml:"method" validate:"required,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS TRACE CONNECT"`

	// Path is the relative path template, e.g. "users/{id}".
	Path string `yaml:"path"`

	// ContentType is the media type used to serialize the body parameter.
	// When empty, values are marshaled as JSON while string and []byte
	// bodies are sent as text/plain and application/octet-stream.
	ContentType string `yaml:"content_type"`

	// Parameters are the declared parameters in argument order.
	Parameters []Parameter `yaml:"parameters" validate:"dive"`

	// ExpectedCodes are the status codes the operation documents as
	// successful. 200 is always expected whether listed or not.
	ExpectedCodes []int `yaml:"expected" validate:"dive,min=100,max=599"`

	// ResultType is the type the response body is decoded into. When nil
	// the call's type parameter is used.
	ResultType reflect.Type `yaml:"-" validate:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// compiledMethod is a validated description with its template parsed and
// its appliers selected. It is built once per registration.
type compiledMethod struct {
	desc     MethodDescription
	template *URLTemplate
	appliers []ParameterApplier
}

// compile validates a description and prepares it for repeated use.
func compile(desc MethodDescription) (*compiledMethod, error) {
	desc.Method = strings.ToUpper(strings.TrimSpace(desc.Method))
	desc.Parameters = slices.Clone(desc.Parameters)
	desc.ExpectedCodes = slices.Clone(desc.ExpectedCodes)

	if err := validate.Struct(desc); err != nil {
		return nil, newConfigError(desc.ID, "%s", describeValidation(err))
	}

	tmpl, err := ParseTemplate(desc.Path)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Method = desc.ID
		}
		return nil, err
	}

	placeholders := make(map[string]bool)
	for _, name := range tmpl.Placeholders() {
		placeholders[name] = true
	}

	bound := make(map[string]bool)
	bodies := 0
	appliers := make([]ParameterApplier, len(desc.Parameters))
	for i, p := range desc.Parameters {
		switch p.In {
		case InPath:
			if !placeholders[p.Name] {
				return nil, newConfigError(desc.ID, "path parameter %q has no placeholder in %q", p.Name, desc.Path)
			}
			if bound[p.Name] {
				return nil, newConfigError(desc.ID, "path parameter %q declared more than once", p.Name)
			}
			bound[p.Name] = true
		case InBody:
			bodies++
			if bodies > 1 {
				return nil, newConfigError(desc.ID, "more than one body parameter (%q)", p.Name)
			}
		}
		appliers[i] = applierFor(p.In)
	}

	for name := range placeholders {
		if !bound[name] {
			return nil, newConfigError(desc.ID, "placeholder {%s} has no path parameter", name)
		}
	}

	return &compiledMethod{
		desc:     desc,
		template: tmpl,
		appliers: appliers,
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}
