package decoder

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// YAML decodes a single YAML document.
type YAML struct{}

func (YAML) Format() string { return FormatYAML }

func (YAML) Decode(body []byte) (any, error) {
	if isBlank(body) {
		return nil, nil
	}
	var v any
	if err := yaml.Unmarshal(body, &v); err != nil {
		return nil, newDecodeError(FormatYAML, body, err)
	}
	return normalize(v), nil
}

// BSON decodes one BSON document.
type BSON struct{}

func (BSON) Format() string { return FormatBSON }

func (BSON) Decode(body []byte) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var doc bson.M
	if err := bson.Unmarshal(body, &doc); err != nil {
		return nil, newDecodeError(FormatBSON, body, err)
	}
	return normalize(doc), nil
}

// Binary passes the body through untouched.
type Binary struct{}

func (Binary) Format() string { return FormatBinary }

func (Binary) Decode(body []byte) (any, error) {
	content := make([]byte, len(body))
	copy(content, body)
	return map[string]any{"content": content, "size": len(body)}, nil
}

// normalize converts decoder-specific containers into map[string]any and []any
// so expressions see one tree shape whatever the format.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[fmt.Sprint(k)] = normalize(inner)
		}
		return m
	case bson.A:
		return normalizeList(t)
	case []any:
		return normalizeList(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	default:
		return v
	}
}

func normalizeMap(in map[string]any) map[string]any {
	m := make(map[string]any, len(in))
	for k, inner := range in {
		m[k] = normalize(inner)
	}
	return m
}

func normalizeList(in []any) []any {
	out := make([]any, len(in))
	for i, inner := range in {
		out[i] = normalize(inner)
	}
	return out
}
