package expr

import "fmt"

// ConfigError reports a malformed expression or a missing/invalid declarative key.
// It is raised while a connector is compiled, before any request is sent.
type ConfigError struct {
	Field string
	Pos   int
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Field == "" {
		return "config error: " + msg
	}
	if e.Pos > 0 {
		return fmt.Sprintf("config error: %s (at %d): %s", e.Field, e.Pos, msg)
	}
	return fmt.Sprintf("config error: %s: %s", e.Field, msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ExitCode lets the CLI tell configuration failures from stream failures.
func (e *ConfigError) ExitCode() int { return 2 }

// Errorf builds a ConfigError for a declarative key.
func Errorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// WithField returns a copy of err scoped to field when err is a ConfigError.
func WithField(err error, field string) error {
	ce, ok := err.(*ConfigError)
	if !ok {
		return &ConfigError{Field: field, Err: err}
	}
	cp := *ce
	if cp.Field == "" {
		cp.Field = field
	} else {
		cp.Field = field + " " + cp.Field
	}
	return &cp
}
