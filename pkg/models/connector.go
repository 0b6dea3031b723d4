package models

// Sync modes a stream can run in.
const (
	SyncModeFullRefresh = "full_refresh"
	SyncModeIncremental = "incremental"
)

// ConnectorConfig represents the root of a declarative connector definition.
type ConnectorConfig struct {
	Version     string         `json:"version" yaml:"version"`
	URLBase     string         `json:"url_base" yaml:"url_base"`
	MaxRetries  *int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RetryFactor *float64       `json:"retry_factor,omitempty" yaml:"retry_factor,omitempty"`
	Headers     map[string]any `json:"headers,omitempty" yaml:"headers,omitempty"`
	Streams     []StreamConfig `json:"streams" yaml:"streams"`
}

// StreamConfig declares how one stream is requested, paginated and checkpointed.
type StreamConfig struct {
	Name               string             `json:"name" yaml:"name"`
	Path               string             `json:"path" yaml:"path"`
	Method             string             `json:"method,omitempty" yaml:"method,omitempty"`
	PrimaryKey         string             `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	RecordPath         string             `json:"record_path" yaml:"record_path"`
	Decoder            DecoderConfig      `json:"decoder,omitempty" yaml:"decoder,omitempty"`
	RequestParameters  map[string]any     `json:"request_parameters,omitempty" yaml:"request_parameters,omitempty"`
	Headers            map[string]any     `json:"headers,omitempty" yaml:"headers,omitempty"`
	PageSize           int                `json:"page_size,omitempty" yaml:"page_size,omitempty"`
	PageSizeParam      string             `json:"page_size_param,omitempty" yaml:"page_size_param,omitempty"`
	Pagination         PaginationConfig   `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	Incremental        *IncrementalConfig `json:"incremental,omitempty" yaml:"incremental,omitempty"`
	SyncMode           string             `json:"sync_mode,omitempty" yaml:"sync_mode,omitempty"`
	CheckpointInterval int                `json:"checkpoint_interval,omitempty" yaml:"checkpoint_interval,omitempty"`
}

// DecoderConfig selects the response decoder.
type DecoderConfig struct {
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
}

// PaginationConfig selects one pagination strategy variant.
type PaginationConfig struct {
	Type            string          `json:"type,omitempty" yaml:"type,omitempty"`
	CursorValue     string          `json:"cursor_value,omitempty" yaml:"cursor_value,omitempty"`
	StopCondition   string          `json:"stop_condition,omitempty" yaml:"stop_condition,omitempty"`
	StartFrom       int             `json:"start_from,omitempty" yaml:"start_from,omitempty"`
	PageTokenOption PageTokenOption `json:"page_token_option,omitempty" yaml:"page_token_option,omitempty"`
}

// PageTokenOption says where the next page token goes in the request.
type PageTokenOption struct {
	FieldName  string `json:"field_name,omitempty" yaml:"field_name,omitempty"`
	InjectInto string `json:"inject_into,omitempty" yaml:"inject_into,omitempty"`
}

// IncrementalConfig describes the cursor and the request window of an incremental stream.
type IncrementalConfig struct {
	CursorField    string `json:"cursor_field" yaml:"cursor_field"`
	StateKey       string `json:"state_key,omitempty" yaml:"state_key,omitempty"`
	StartField     string `json:"start_field,omitempty" yaml:"start_field,omitempty"`
	EndField       string `json:"end_field,omitempty" yaml:"end_field,omitempty"`
	StartValue     string `json:"start_value,omitempty" yaml:"start_value,omitempty"`
	DatetimeFormat string `json:"datetime_format,omitempty" yaml:"datetime_format,omitempty"`
}

// Stream returns the stream declaration with the given name.
func (c *ConnectorConfig) Stream(name string) (*StreamConfig, bool) {
	for i := range c.Streams {
		if c.Streams[i].Name == name {
			return &c.Streams[i], true
		}
	}
	return nil, false
}
