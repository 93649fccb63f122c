package apiclient

import (
	"net/url"
	"strings"
)

// URLTemplate is a parsed relative path template such as "users/{id}/posts".
//
// Placeholders are written {name}. A template is parsed once when its method
// is registered and resolved on every call.
type URLTemplate struct {
	raw      string
	segments []templateSegment
	names    []string
}

// templateSegment is either literal text or a placeholder name.
type templateSegment struct {
	text        string
	placeholder bool
}

// ParseTemplate parses a relative path template.
//
// Unbalanced braces and empty placeholder names are configuration errors.
func ParseTemplate(raw string) (*URLTemplate, error) {
	t := &URLTemplate{raw: raw}
	seen := make(map[string]bool)

	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		closing := strings.IndexByte(rest, '}')

		if open < 0 {
			if closing >= 0 {
				return nil, newConfigError("", "template %q: unmatched '}'", raw)
			}
			t.segments = append(t.segments, templateSegment{text: rest})
			break
		}
		if closing >= 0 && closing < open {
			return nil, newConfigError("", "template %q: unmatched '}'", raw)
		}
		if open > 0 {
			t.segments = append(t.segments, templateSegment{text: rest[:open]})
		}

		rest = rest[open+1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, newConfigError("", "template %q: unterminated placeholder", raw)
		}
		name := strings.TrimSpace(rest[:end])
		if name == "" || strings.ContainsRune(name, '{') {
			return nil, newConfigError("", "template %q: invalid placeholder", raw)
		}
		t.segments = append(t.segments, templateSegment{text: name, placeholder: true})
		if !seen[name] {
			seen[name] = true
			t.names = append(t.names, name)
		}
		rest = rest[end+1:]
	}

	return t, nil
}

// Raw returns the template as declared.
func (t *URLTemplate) Raw() string {
	return t.raw
}

// Placeholders returns the distinct placeholder names in order of first use.
func (t *URLTemplate) Placeholders() []string {
	return append([]string(nil), t.names...)
}

// Resolve substitutes every placeholder with the path-escaped value bound to
// its name. A template without placeholders is returned unchanged.
func (t *URLTemplate) Resolve(values map[string]string) (string, error) {
	if len(t.names) == 0 {
		return t.raw, nil
	}

	var sb strings.Builder
	sb.Grow(len(t.raw))
	for _, seg := range t.segments {
		if !seg.placeholder {
			sb.WriteString(seg.text)
			continue
		}
		v, ok := values[seg.text]
		if !ok {
			return "", newConfigError("", "template %q: no value bound to {%s}", t.raw, seg.text)
		}
		sb.WriteString(url.PathEscape(v))
	}
	return sb.String(), nil
}

// JoinURL joins a base address and a relative path with exactly one "/".
// Trailing slashes on base are dropped; an empty relative path yields the
// trimmed base. A relative part that is only a query string is appended
// to base without a separator.
func JoinURL(base, relative string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case relative == "":
		return base
	case base == "":
		return relative
	case strings.HasPrefix(relative, "?"):
		return base + relative
	}
	return base + "/" + strings.TrimLeft(relative, "/")
}
