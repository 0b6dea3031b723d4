package decoder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// JSON decodes a single JSON document.
type JSON struct{}

func (JSON) Format() string { return FormatJSON }

func (JSON) Decode(body []byte) (any, error) {
	if isBlank(body) {
		return nil, nil
	}
	v, err := unmarshal(body)
	if err != nil {
		return nil, newDecodeError(FormatJSON, body, err)
	}
	return v, nil
}

// unmarshal decodes exactly one JSON value, keeping numbers as json.Number so
// large integer ids and cursors keep every digit.
func unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return v, nil
}

// JSONLines decodes newline-delimited JSON into a list, one element per line.
type JSONLines struct{}

func (JSONLines) Format() string { return FormatJSONL }

func (JSONLines) Decode(body []byte) (any, error) {
	out := []any{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		v, err := unmarshal(raw)
		if err != nil {
			return nil, newDecodeError(FormatJSONL, body, fmt.Errorf("line %d: %w", line, err))
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, newDecodeError(FormatJSONL, body, err)
	}
	return out, nil
}
