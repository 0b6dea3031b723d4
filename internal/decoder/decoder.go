// Package decoder turns raw response bodies into tree-shaped values.
package decoder

import (
	"fmt"
	"mime"
	"strings"

	"github.com/BartekS5/restsync/pkg/models"
)

// Formats understood by New.
const (
	FormatJSON   = "json"
	FormatJSONL  = "jsonl"
	FormatCSV    = "csv"
	FormatYAML   = "yaml"
	FormatBSON   = "bson"
	FormatBinary = "binary"
	FormatAuto   = "auto"
)

// snippetLen is how much of a bad body a DecodeError keeps.
const snippetLen = 256

// Decoder converts one response body into a structured value.
// A nil value with a nil error means the body carried nothing.
type Decoder interface {
	Decode(body []byte) (any, error)
	Format() string
}

// ContentTypeDecoder is implemented by decoders that pick a format per response.
type ContentTypeDecoder interface {
	Decoder
	DecodeContentType(body []byte, contentType string) (any, error)
}

// DecodeError reports a body that could not be parsed in the configured format.
type DecodeError struct {
	Format  string
	Snippet []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v (body starts %q)", e.Format, e.Err, e.Snippet)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newDecodeError(format string, body []byte, err error) *DecodeError {
	n := len(body)
	if n > snippetLen {
		n = snippetLen
	}
	snippet := make([]byte, n)
	copy(snippet, body[:n])
	return &DecodeError{Format: format, Snippet: snippet, Err: err}
}

// New returns the decoder for cfg. An empty type means JSON.
func New(cfg models.DecoderConfig) (Decoder, error) {
	switch strings.ToLower(cfg.Type) {
	case "", FormatJSON:
		return JSON{}, nil
	case FormatJSONL, "ndjson":
		return JSONLines{}, nil
	case FormatCSV:
		return NewCSV(cfg.Delimiter)
	case FormatYAML, "yml":
		return YAML{}, nil
	case FormatBSON:
		return BSON{}, nil
	case FormatBinary:
		return Binary{}, nil
	case FormatAuto:
		return Auto{}, nil
	default:
		return nil, fmt.Errorf("unsupported decoder type %q", cfg.Type)
	}
}

// ForContentType picks a decoder from a Content-Type header value, falling back to JSON.
func ForContentType(contentType string) Decoder {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return JSON{}
	}
	switch {
	case mt == "application/x-ndjson" || mt == "application/jsonl" || mt == "application/x-jsonlines":
		return JSONLines{}
	case mt == "text/csv":
		d, err := NewCSV(params["delimiter"])
		if err != nil {
			return CSV{comma: ','}
		}
		return d
	case mt == "application/yaml" || mt == "application/x-yaml" || mt == "text/yaml":
		return YAML{}
	case mt == "application/bson":
		return BSON{}
	case mt == "application/octet-stream" || strings.HasPrefix(mt, "image/"):
		return Binary{}
	default:
		return JSON{}
	}
}

// Auto decodes by the response Content-Type.
type Auto struct{}

func (Auto) Format() string { return FormatAuto }

// Decode without a content type treats the body as JSON.
func (Auto) Decode(body []byte) (any, error) { return JSON{}.Decode(body) }

func (Auto) DecodeContentType(body []byte, contentType string) (any, error) {
	return ForContentType(contentType).Decode(body)
}

func isBlank(body []byte) bool {
	return len(strings.TrimSpace(string(body))) == 0
}
