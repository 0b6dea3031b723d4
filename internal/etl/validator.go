package etl

import (
	"net/http"
	"strings"

	"github.com/BartekS5/restsync/internal/expr"
	"github.com/BartekS5/restsync/pkg/models"
)

type Validator struct {
	Stream *models.StreamConfig
}

func NewValidator(stream *models.StreamConfig) *Validator {
	return &Validator{Stream: stream}
}

// ValidateConfig checks the declarative keys that have no expression to parse.
func (v *Validator) ValidateConfig(conn *models.ConnectorConfig) error {
	s := v.Stream
	if strings.TrimSpace(s.Name) == "" {
		return expr.Errorf("streams.name", "required")
	}
	field := func(name string) string { return "streams." + s.Name + "." + name }

	if conn.URLBase == "" && !isAbsoluteURL(s.Path) {
		return expr.Errorf(field("path"), "url_base is empty and path %q is not an absolute url", s.Path)
	}
	switch strings.ToUpper(s.Method) {
	case "", http.MethodGet, http.MethodPost:
	default:
		return expr.Errorf(field("method"), "unsupported method %q", s.Method)
	}
	if s.PageSize < 0 {
		return expr.Errorf(field("page_size"), "must not be negative")
	}
	if s.PageSizeParam != "" && s.PageSize == 0 {
		return expr.Errorf(field("page_size"), "required when page_size_param is set")
	}
	if s.CheckpointInterval < 0 {
		return expr.Errorf(field("checkpoint_interval"), "must not be negative")
	}
	switch s.SyncMode {
	case "", models.SyncModeFullRefresh:
	case models.SyncModeIncremental:
		if s.Incremental == nil {
			return expr.Errorf(field("sync_mode"), "incremental requires an incremental section")
		}
	default:
		return expr.Errorf(field("sync_mode"), "unsupported sync mode %q", s.SyncMode)
	}
	if inc := s.Incremental; inc != nil {
		if inc.CursorField == "" {
			return expr.Errorf(field("incremental.cursor_field"), "required")
		}
		if expr.HasMarkers(inc.CursorField) && inc.StateKey == "" {
			return expr.Errorf(field("incremental.state_key"), "required when cursor_field is an expression")
		}
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
