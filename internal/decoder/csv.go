package decoder

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"
)

// CSV decodes delimiter-separated text. The first row holds the column names.
type CSV struct {
	comma rune
}

// NewCSV returns a CSV decoder for delimiter, defaulting to a comma.
func NewCSV(delimiter string) (CSV, error) {
	if delimiter == "" {
		return CSV{comma: ','}, nil
	}
	if delimiter == `\t` {
		delimiter = "\t"
	}
	r, size := utf8.DecodeRuneInString(delimiter)
	if size != len(delimiter) || r == '"' || r == '\n' || r == '\r' {
		return CSV{}, fmt.Errorf("invalid csv delimiter %q", delimiter)
	}
	return CSV{comma: r}, nil
}

func (CSV) Format() string { return FormatCSV }

func (d CSV) Decode(body []byte) (any, error) {
	out := []any{}
	if isBlank(body) {
		return out, nil
	}
	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = d.comma
	if r.Comma == 0 {
		r.Comma = ','
	}
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return nil, newDecodeError(FormatCSV, body, fmt.Errorf("reading headers: %w", err))
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newDecodeError(FormatCSV, body, err)
		}
		rec := make(map[string]any, len(headers))
		for j, h := range headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
