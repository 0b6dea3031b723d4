package decoder

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BartekS5/restsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestJSONDecode(t *testing.T) {
	v, err := JSON{}.Decode([]byte(`{"automations":[{"id":"a1"}],"total_items":1}`))
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), m["total_items"])
	assert.Len(t, m["automations"], 1)

	_, err = JSON{}.Decode([]byte(`{"a": 1} {"b": 2}`))
	assert.Error(t, err)
}

func TestLargeIntegersKeepEveryDigit(t *testing.T) {
	v, err := JSON{}.Decode([]byte(`{"id": 9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), v.(map[string]any)["id"])

	v, err = JSONLines{}.Decode([]byte("{\"seq\": 9007199254740993}\n"))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), v.([]any)[0].(map[string]any)["seq"])
}

func TestEmptyBodyIsNoValue(t *testing.T) {
	for _, d := range []Decoder{JSON{}, YAML{}, BSON{}} {
		v, err := d.Decode(nil)
		assert.NoError(t, err, d.Format())
		assert.Nil(t, v, d.Format())
	}
}

func TestMalformedBodyCarriesSnippet(t *testing.T) {
	body := []byte("<html>" + strings.Repeat("x", 1000))
	_, err := JSON{}.Decode(body)
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, FormatJSON, de.Format)
	assert.Len(t, de.Snippet, snippetLen)
	assert.True(t, strings.HasPrefix(string(de.Snippet), "<html>"))
}

func TestJSONLines(t *testing.T) {
	body := "{\"id\":1}\n\n{\"id\":2}\n{\"id\":3}\n"
	v, err := JSONLines{}.Decode([]byte(body))
	require.NoError(t, err)
	assert.Len(t, v, 3)

	_, err = JSONLines{}.Decode([]byte("{\"id\":1}\n{broken\n"))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Error(), "line 2")
}

func TestCSV(t *testing.T) {
	d, err := NewCSV(";")
	require.NoError(t, err)
	v, err := d.Decode([]byte("id;name\n1;alpha\n2;beta\n"))
	require.NoError(t, err)
	rows := v.([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"id": "2", "name": "beta"}, rows[1])

	_, err = NewCSV("ab")
	assert.Error(t, err)
}

func TestYAML(t *testing.T) {
	v, err := YAML{}.Decode([]byte("data:\n  - id: 1\n    tags: [a, b]\n"))
	require.NoError(t, err)
	m := v.(map[string]any)
	items := m["data"].([]any)
	assert.Equal(t, []any{"a", "b"}, items[0].(map[string]any)["tags"])
}

func TestBSON(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"data": bson.A{bson.M{"id": int32(7)}}})
	require.NoError(t, err)
	v, err := BSON{}.Decode(raw)
	require.NoError(t, err)
	items := v.(map[string]any)["data"].([]any)
	assert.Equal(t, int64(7), items[0].(map[string]any)["id"])

	_, err = BSON{}.Decode([]byte{0x01, 0x02})
	var de *DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestBinary(t *testing.T) {
	v, err := Binary{}.Decode([]byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, 2, v.(map[string]any)["size"])
}

func TestNewAndContentType(t *testing.T) {
	d, err := New(models.DecoderConfig{})
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, d.Format())

	_, err = New(models.DecoderConfig{Type: "xml"})
	assert.Error(t, err)

	assert.Equal(t, FormatJSONL, ForContentType("application/x-ndjson").Format())
	assert.Equal(t, FormatCSV, ForContentType("text/csv; charset=utf-8").Format())
	assert.Equal(t, FormatJSON, ForContentType("application/json").Format())
	assert.Equal(t, FormatJSON, ForContentType("").Format())

	v, err := Auto{}.DecodeContentType([]byte("a,b\n1,2\n"), "text/csv")
	require.NoError(t, err)
	assert.Len(t, v, 1)
}
