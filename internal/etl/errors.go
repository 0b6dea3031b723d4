package etl

import (
	"errors"
	"fmt"
)

// ErrStreamTerminal is returned when a stream that already reached Terminal is run again.
var ErrStreamTerminal = errors.New("stream already terminal")

// StreamError scopes a failure to one stream and the phase it happened in.
// The cause is a *transport.Error, *decoder.DecodeError, *ExtractionError or a context error.
type StreamError struct {
	Stream string
	Phase  Phase
	Page   int
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %s page %d: %v", e.Stream, e.Phase, e.Page, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ExitCode is the process exit status for a failed sync.
func (e *StreamError) ExitCode() int { return 1 }

// ExtractionError reports a record path that did not resolve to a sequence.
type ExtractionError struct {
	Path string
	Got  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("record path %q resolved to %s, want a list", e.Path, e.Got)
}
