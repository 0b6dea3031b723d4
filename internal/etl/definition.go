package etl

import (
	"net/http"
	"strings"
	"time"

	"github.com/BartekS5/restsync/internal/decoder"
	"github.com/BartekS5/restsync/internal/expr"
	"github.com/BartekS5/restsync/internal/paginate"
	"github.com/BartekS5/restsync/pkg/models"
	"github.com/BartekS5/restsync/pkg/utils"
)

// StreamDefinition is a stream declaration with every expression parsed.
// Compile returns one per stream; it is immutable except for its Paginator,
// which NewStream resets.
type StreamDefinition struct {
	Name       string
	Method     string
	PrimaryKey string
	URL        *expr.Expression
	RecordPath *expr.Expression
	Decoder    decoder.Decoder
	Params     map[string]*expr.Expression
	Headers    map[string]*expr.Expression

	PageSize      int
	PageSizeParam string
	Paginator     *paginate.Paginator

	SyncMode        string
	Cursor          *expr.Expression
	StateKey        string
	StartField      string
	EndField        string
	StartValue      *expr.Expression
	DatetimeFormat  string
	CheckpointEvery int

	Config map[string]any

	// wholeResponse is set when record_path is empty; an object response is then one record.
	wholeResponse bool
}

// Incremental reports whether the stream tracks a cursor.
func (d *StreamDefinition) Incremental() bool { return d.Cursor != nil }

// Compile validates one stream declaration and parses its expressions.
// Every failure is an *expr.ConfigError, raised before any request is sent.
func Compile(conn *models.ConnectorConfig, sc *models.StreamConfig, config map[string]any) (*StreamDefinition, error) {
	if err := NewValidator(sc).ValidateConfig(conn); err != nil {
		return nil, err
	}
	if config == nil {
		config = map[string]any{}
	}
	field := func(name string) string { return "streams." + sc.Name + "." + name }

	def := &StreamDefinition{
		Name:            sc.Name,
		Method:          strings.ToUpper(sc.Method),
		PrimaryKey:      sc.PrimaryKey,
		PageSize:        sc.PageSize,
		PageSizeParam:   sc.PageSizeParam,
		CheckpointEvery: sc.CheckpointInterval,
		Config:          config,
		SyncMode:        sc.SyncMode,
	}
	if def.Method == "" {
		def.Method = http.MethodGet
	}

	var err error
	if def.URL, err = expr.Parse(joinURL(conn.URLBase, sc.Path)); err != nil {
		return nil, expr.WithField(err, field("path"))
	}

	if expr.HasMarkers(sc.RecordPath) {
		def.RecordPath, err = expr.Parse(sc.RecordPath)
	} else {
		def.RecordPath, err = expr.FieldPath(expr.CtxDecodedResponse, sc.RecordPath)
		def.wholeResponse = sc.RecordPath == ""
	}
	if err != nil {
		return nil, expr.WithField(err, field("record_path"))
	}

	if def.Decoder, err = decoder.New(sc.Decoder); err != nil {
		return nil, expr.WithField(err, field("decoder"))
	}

	if def.Params, err = parseMap(sc.RequestParameters, field("request_parameters")); err != nil {
		return nil, err
	}
	headers := make(map[string]any, len(conn.Headers)+len(sc.Headers))
	for k, v := range conn.Headers {
		headers[k] = v
	}
	for k, v := range sc.Headers {
		headers[k] = v
	}
	if def.Headers, err = parseMap(headers, field("headers")); err != nil {
		return nil, err
	}

	if def.Paginator, err = paginate.New(sc.Pagination, sc.PageSize, config); err != nil {
		return nil, expr.WithField(err, "streams."+sc.Name)
	}

	if inc := sc.Incremental; inc != nil {
		if expr.HasMarkers(inc.CursorField) {
			def.Cursor, err = expr.Parse(inc.CursorField)
			def.StateKey = inc.StateKey
		} else {
			def.Cursor, err = expr.FieldPath(expr.CtxRecord, inc.CursorField)
			def.StateKey = inc.CursorField
			if inc.StateKey != "" {
				def.StateKey = inc.StateKey
			}
		}
		if err != nil {
			return nil, expr.WithField(err, field("incremental.cursor_field"))
		}
		def.StartField = inc.StartField
		def.EndField = inc.EndField
		if inc.StartValue != "" {
			if def.StartValue, err = expr.Parse(inc.StartValue); err != nil {
				return nil, expr.WithField(err, field("incremental.start_value"))
			}
		}
		def.DatetimeFormat = inc.DatetimeFormat
		if def.DatetimeFormat == "" {
			def.DatetimeFormat = time.RFC3339
		}
		if def.SyncMode == "" {
			def.SyncMode = models.SyncModeIncremental
		}
	}
	if def.SyncMode == "" {
		def.SyncMode = models.SyncModeFullRefresh
	}
	return def, nil
}

// CompileAll compiles the named streams, or every stream when names is empty.
func CompileAll(conn *models.ConnectorConfig, config map[string]any, names []string) ([]*StreamDefinition, error) {
	var selected []*models.StreamConfig
	if len(names) == 0 {
		for i := range conn.Streams {
			selected = append(selected, &conn.Streams[i])
		}
	} else {
		for _, n := range names {
			sc, ok := conn.Stream(n)
			if !ok {
				return nil, expr.Errorf("streams", "unknown stream %q", n)
			}
			selected = append(selected, sc)
		}
	}
	if len(selected) == 0 {
		return nil, expr.Errorf("streams", "no streams declared")
	}

	seen := make(map[string]bool, len(selected))
	defs := make([]*StreamDefinition, 0, len(selected))
	for _, sc := range selected {
		if seen[sc.Name] {
			return nil, expr.Errorf("streams", "duplicate stream %q", sc.Name)
		}
		seen[sc.Name] = true
		def, err := Compile(conn, sc, config)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func parseMap(in map[string]any, field string) (map[string]*expr.Expression, error) {
	out := make(map[string]*expr.Expression, len(in))
	for k, v := range in {
		// numbers and booleans in YAML stay literal
		e, err := expr.Parse(utils.Stringify(v))
		if err != nil {
			return nil, expr.WithField(err, field+"."+k)
		}
		out[k] = e
	}
	return out, nil
}

func joinURL(base, path string) string {
	if base == "" || isAbsoluteURL(path) {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
