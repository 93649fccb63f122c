package apiclient

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/url"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/schema"
)

// Media types understood by the built-in codecs.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeXML    = "application/xml"
	ContentTypeForm   = "application/x-www-form-urlencoded"
	ContentTypeText   = "text/plain"
	ContentTypeBinary = "application/octet-stream"
)

// Codec serializes request bodies and deserializes response bodies for one
// media type.
type Codec interface {
	// ContentType is the media type the codec produces, used for the
	// Content-Type header of encoded bodies.
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Codecs selects a Codec by media type. The zero value is not usable; use
// NewCodecs.
type Codecs struct {
	byType   map[string]Codec
	fallback Codec
}

// NewCodecs returns the built-in codecs (JSON, XML, form, text, binary)
// plus any extra codecs, which replace built-ins for the same media type.
// JSON is the fallback for unknown response media types.
func NewCodecs(extra ...Codec) *Codecs {
	c := &Codecs{byType: make(map[string]Codec)}
	for _, codec := range []Codec{
		JSONCodec{},
		XMLCodec{ContentTypeXML},
		XMLCodec{"text/xml"},
		FormCodec{},
		TextCodec{},
		BinaryCodec{},
	} {
		c.register(codec)
	}
	for _, codec := range extra {
		c.register(codec)
	}
	c.fallback = c.byType[ContentTypeJSON]
	return c
}

func (c *Codecs) register(codec Codec) {
	c.byType[mediaType(codec.ContentType())] = codec
}

// Lookup returns the codec registered for contentType, ignoring media type
// parameters such as charset.
func (c *Codecs) Lookup(contentType string) (Codec, bool) {
	codec, ok := c.byType[mediaType(contentType)]
	if !ok && strings.HasSuffix(mediaType(contentType), "+json") {
		codec, ok = c.byType[ContentTypeJSON]
	}
	return codec, ok
}

// Encode serializes v for a request body with the declared content type.
//
// Encoding rules:
//   - string, []byte, io.Reader: passed through as-is, labeled text/plain
//     or application/octet-stream unless a content type was declared
//   - anything else: marshaled by the codec of contentType, JSON when none
//     was declared
//
// It returns the bytes and the Content-Type header value to send.
func (c *Codecs) Encode(v any, contentType string) ([]byte, string, error) {
	switch body := v.(type) {
	case string:
		return []byte(body), contentTypeOr(contentType, ContentTypeText+"; charset=utf-8"), nil
	case []byte:
		return body, contentTypeOr(contentType, ContentTypeBinary), nil
	case io.Reader:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, "", err
		}
		return data, contentTypeOr(contentType, ContentTypeBinary), nil
	}

	codec, ok := c.fallback, true
	if contentType != "" {
		codec, ok = c.Lookup(contentType)
	}
	if !ok {
		return nil, "", fmt.Errorf("no codec for content type %q", contentType)
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return data, contentTypeOr(contentType, codec.ContentType()), nil
}

// Decode deserializes data into target according to the response content
// type. Unknown or missing content types fall back to JSON.
func (c *Codecs) Decode(data []byte, contentType string, target any) error {
	codec, ok := c.Lookup(contentType)
	if !ok {
		codec = c.fallback
	}
	return codec.Unmarshal(data, target)
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func contentTypeOr(declared, fallback string) string {
	if declared != "" {
		return declared
	}
	return fallback
}

// JSONCodec encodes with goccy/go-json.
type JSONCodec struct{}

func (JSONCodec) ContentType() string { return ContentTypeJSON }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// XMLCodec encodes with encoding/xml under the given media type.
type XMLCodec struct {
	MediaType string
}

func (c XMLCodec) ContentType() string { return c.MediaType }

func (XMLCodec) Marshal(v any) ([]byte, error) { return xml.Marshal(v) }

func (XMLCodec) Unmarshal(data []byte, v any) error { return xml.Unmarshal(data, v) }

var (
	formEncoder = newFormEncoder()
	formDecoder = newFormDecoder()
)

func newFormEncoder() *schema.Encoder {
	enc := schema.NewEncoder()
	enc.SetAliasTag("form")
	return enc
}

func newFormDecoder() *schema.Decoder {
	dec := schema.NewDecoder()
	dec.SetAliasTag("form")
	dec.IgnoreUnknownKeys(true)
	return dec
}

// FormCodec encodes url.Values, map[string]string and structs (using the
// `form` struct tag) as application/x-www-form-urlencoded.
type FormCodec struct{}

func (FormCodec) ContentType() string { return ContentTypeForm }

func (FormCodec) Marshal(v any) ([]byte, error) {
	switch form := v.(type) {
	case url.Values:
		return []byte(form.Encode()), nil
	case map[string]string:
		values := make(url.Values, len(form))
		for k, val := range form {
			values.Set(k, val)
		}
		return []byte(values.Encode()), nil
	}

	values := make(url.Values)
	if err := formEncoder.Encode(v, values); err != nil {
		return nil, err
	}
	return []byte(values.Encode()), nil
}

func (FormCodec) Unmarshal(data []byte, v any) error {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return err
	}
	switch target := v.(type) {
	case *url.Values:
		*target = values
		return nil
	case *map[string]string:
		out := make(map[string]string, len(values))
		for k := range values {
			out[k] = values.Get(k)
		}
		*target = out
		return nil
	}
	return formDecoder.Decode(v, values)
}

// TextCodec handles text/plain bodies. It decodes into *string, *[]byte or
// *any, and encodes strings, byte slices and fmt.Stringer values.
type TextCodec struct{}

func (TextCodec) ContentType() string { return ContentTypeText + "; charset=utf-8" }

func (TextCodec) Marshal(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	case fmt.Stringer:
		return []byte(s.String()), nil
	}
	return []byte(fmt.Sprint(v)), nil
}

func (TextCodec) Unmarshal(data []byte, v any) error {
	return assignRaw(data, v, string(data))
}

// BinaryCodec handles application/octet-stream bodies as raw bytes.
type BinaryCodec struct{}

func (BinaryCodec) ContentType() string { return ContentTypeBinary }

func (BinaryCodec) Marshal(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return nil, fmt.Errorf("cannot encode %T as %s", v, ContentTypeBinary)
}

func (BinaryCodec) Unmarshal(data []byte, v any) error {
	return assignRaw(data, v, bytes.Clone(data))
}

// assignRaw stores a raw body into string, byte slice or interface targets.
func assignRaw(data []byte, v any, asAny any) error {
	switch target := v.(type) {
	case *string:
		*target = string(data)
	case *[]byte:
		*target = bytes.Clone(data)
	case *any:
		*target = asAny
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.String {
			rv.Elem().SetString(string(data))
			return nil
		}
		return fmt.Errorf("cannot decode raw body into %T", v)
	}
	return nil
}
