package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/BartekS5/restsync/internal/expr"
	"github.com/BartekS5/restsync/pkg/models"
)

// LoadConnector reads a connector definition. The format follows the file
// extension: .json, .yaml/.yml or .cue. Any failure is an *expr.ConfigError.
func LoadConnector(filePath string) (*models.ConnectorConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &expr.ConfigError{Field: filePath, Msg: "failed to read connector definition", Err: err}
	}
	conn, err := ParseConnector(data, filepath.Ext(filePath))
	if err != nil {
		return nil, expr.WithField(err, filePath)
	}
	return conn, nil
}

// ParseConnector decodes a connector definition in the format named by ext.
func ParseConnector(data []byte, ext string) (*models.ConnectorConfig, error) {
	var conn models.ConnectorConfig
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&conn); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&conn); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}
	case ".cue":
		v, err := compileCUE(data)
		if err != nil {
			return nil, err
		}
		if err := v.Decode(&conn); err != nil {
			return nil, fmt.Errorf("invalid config: %v", err)
		}
	default:
		return nil, fmt.Errorf("unsupported connector format %q: expected .json, .yaml or .cue", ext)
	}
	if len(conn.Streams) == 0 {
		return nil, expr.Errorf("streams", "no streams declared")
	}
	return &conn, nil
}

func compileCUE(data []byte) (cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("invalid config: %v", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, fmt.Errorf("invalid config: %v", err)
	}
	streams := v.LookupPath(cue.ParsePath("streams"))
	if !streams.Exists() {
		return cue.Value{}, fmt.Errorf("missing required field: streams")
	}
	if streams.Kind() != cue.ListKind {
		return cue.Value{}, fmt.Errorf("invalid type for field: streams (expected list)")
	}
	return v, nil
}

// LoadUserConfig reads the user configuration object (credentials, start dates)
// from a JSON or YAML file. An empty path yields an empty object.
func LoadUserConfig(filePath string) (map[string]any, error) {
	if filePath == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &expr.ConfigError{Field: filePath, Msg: "failed to read config", Err: err}
	}
	cfg := map[string]any{}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, &expr.ConfigError{Field: filePath, Msg: "failed to parse config", Err: err}
	}
	return cfg, nil
}
