package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/BartekS5/restsync/internal/etl"
	"github.com/BartekS5/restsync/internal/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definitionTmpl = `
version: "1"
url_base: %s
headers:
  Authorization: "apikey {{ config.apikey }}"
streams:
  - name: automations
    path: automations
    primary_key: id
    record_path: automations
    page_size: 1000
    page_size_param: count
    pagination:
      type: offset
    incremental:
      cursor_field: create_time
      start_field: since_create_time
`

type recorder struct {
	mu      sync.Mutex
	queries []url.Values
	auth    []string
	status  int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.queries = append(r.queries, req.URL.Query())
	r.auth = append(r.auth, req.Header.Get("Authorization"))
	status := r.status
	r.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"automations": [
		{"id": "a1", "create_time": "2023-01-15T10:00:00Z"},
		{"id": "a2", "create_time": "2023-02-01T00:00:00Z"}
	], "total_items": 2}`)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// isolate clears the settings LoadConfig reads so the host environment cannot leak in.
func isolate(t *testing.T) {
	for _, k := range []string{"STATE_BACKEND", "STATE_PATH", "SQL_CONNECTION_STRING", "MONGO_CONNECTION_STRING", "HTTP_TIMEOUT", "RETRY_FACTOR", "SYNC_WORKERS", "LOG_FILE"} {
		t.Setenv(k, "")
	}
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

type fixture struct {
	server     *httptest.Server
	api        *recorder
	definition string
	config     string
	state      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	isolate(t)
	api := &recorder{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	return &fixture{
		server:     srv,
		api:        api,
		definition: writeFile(t, dir, "connector.yaml", fmt.Sprintf(definitionTmpl, srv.URL)),
		config:     writeFile(t, dir, "config.json", `{"apikey": "secret-us10"}`),
		state:      filepath.Join(dir, "state.json"),
	}
}

func (f *fixture) sync(t *testing.T, extra ...string) (string, error) {
	args := append([]string{"sync", "-d", f.definition, "-c", f.config, "--state", f.state}, extra...)
	return execute(t, args...)
}

func messages(t *testing.T, out string) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		msgs = append(msgs, m)
	}
	return msgs
}

func TestCheckCommand(t *testing.T) {
	f := newFixture(t)

	out, err := execute(t, "check", "-d", f.definition, "-c", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "automations\tmode=incremental\tcursor=create_time")
	assert.Contains(t, out, "OK: 1 streams")
	assert.Empty(t, f.api.queries, "check must not send requests")
}

func TestCheckRejectsBadDefinition(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	def := writeFile(t, dir, "bad.yaml", `
url_base: https://api.example.com
streams:
  - name: events
    path: events
    record_path: items
    incremental:
      start_field: since
`)

	_, err := execute(t, "check", "-d", def)
	require.Error(t, err)

	var cfgErr *expr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 2, cfgErr.ExitCode())
}

func TestSyncWritesRecordsAndState(t *testing.T) {
	f := newFixture(t)

	out, err := f.sync(t)
	require.NoError(t, err)

	msgs := messages(t, out)
	require.Len(t, msgs, 3)
	assert.Equal(t, "RECORD", msgs[0]["type"])
	assert.Equal(t, "RECORD", msgs[1]["type"])
	assert.Equal(t, "STATE", msgs[2]["type"])

	require.Len(t, f.api.queries, 1)
	assert.Equal(t, "1000", f.api.queries[0].Get("count"))
	assert.Empty(t, f.api.queries[0].Get("since_create_time"))
	assert.Equal(t, "apikey secret-us10", f.api.auth[0])

	data, err := os.ReadFile(f.state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"automations": {"create_time": "2023-02-01T00:00:00Z"}}`, string(data))

	// the next run starts from the saved cursor
	_, err = f.sync(t)
	require.NoError(t, err)
	require.Len(t, f.api.queries, 2)
	assert.Equal(t, "2023-02-01T00:00:00Z", f.api.queries[1].Get("since_create_time"))
}

func TestSyncDryRunLeavesStateAlone(t *testing.T) {
	f := newFixture(t)

	out, err := f.sync(t, "--dry-run")
	require.NoError(t, err)
	assert.Empty(t, messages(t, out))
	assert.Len(t, f.api.queries, 1)

	_, err = os.Stat(f.state)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSyncStreamFailureExitCode(t *testing.T) {
	f := newFixture(t)
	f.api.status = http.StatusInternalServerError

	_, err := f.sync(t)
	require.Error(t, err)

	var streamErr *etl.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "automations", streamErr.Stream)
	assert.Equal(t, 1, streamErr.ExitCode())
}

func TestSyncUnknownStream(t *testing.T) {
	f := newFixture(t)

	_, err := f.sync(t, "--streams", "campaigns")
	var cfgErr *expr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, f.api.queries)
}

func TestStateShowAndReset(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	state := writeFile(t, dir, "state.json", `{"automations": {"create_time": "2023-02-01T00:00:00Z"}, "campaigns": {"create_time": "2220-11-23T05:42:11+00:00"}}`)

	out, err := execute(t, "state", "show", "--state", state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"automations": {"create_time": "2023-02-01T00:00:00Z"}, "campaigns": {"create_time": "2220-11-23T05:42:11+00:00"}}`, out)

	out, err = execute(t, "state", "reset", "--state", state, "--stream", "campaigns")
	require.NoError(t, err)
	assert.Contains(t, out, "campaigns")

	out, err = execute(t, "state", "show", "--state", state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"automations": {"create_time": "2023-02-01T00:00:00Z"}}`, out)
}
