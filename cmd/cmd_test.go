package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func keylessServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func primaryConfig(url string) string {
	return fmt.Sprintf("primary:\n  kind: http\n  base_url: %s\n  model: tiny\nfallback:\n  attempt_timeout: 5s\n", url)
}

func TestExecute_UnknownCommand(t *testing.T) {
	err := Execute(context.Background(), []string{"launch"})
	require.ErrorContains(t, err, `unknown command "launch"`)
}

func TestServe_RequiresConfig(t *testing.T) {
	err := serve(context.Background(), nil)
	require.ErrorContains(t, err, "--config")
}

func TestCall_PrintsExtractedJSON(t *testing.T) {
	t.Setenv("JSONRELAY_FALLBACK_KEY", "")
	content, err := json.Marshal("```json\n{\"name\":\"Alex\"}\n```")
	require.NoError(t, err)
	upstream := keylessServer(t, http.StatusOK, `{"message":{"content":`+string(content)+`}}`)
	cfgPath := writeFile(t, "config.yaml", primaryConfig(upstream.URL))

	var out bytes.Buffer
	err = call(context.Background(), []string{
		"--config", cfgPath,
		"--prompt", "give a name",
		"--schema", `{"type":"object","required":["name"]}`,
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"Alex\"}\n", out.String())
}

func TestCall_SchemaFile(t *testing.T) {
	t.Setenv("JSONRELAY_FALLBACK_KEY", "")
	upstream := keylessServer(t, http.StatusOK, `[1,2,3]`)
	cfgPath := writeFile(t, "config.yaml", primaryConfig(upstream.URL))
	schemaPath := writeFile(t, "schema.json", `{"type":"array"}`)

	var out bytes.Buffer
	err := call(context.Background(), []string{"--config", cfgPath, "--prompt", "count", "--schema-file", schemaPath}, &out)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]\n", out.String())
}

func TestCall_PrimaryFailureSuggestsFallbackKey(t *testing.T) {
	t.Setenv("JSONRELAY_FALLBACK_KEY", "")
	upstream := keylessServer(t, http.StatusInternalServerError, `boom`)
	cfgPath := writeFile(t, "config.yaml", primaryConfig(upstream.URL))

	var out bytes.Buffer
	err := call(context.Background(), []string{"--config", cfgPath, "--prompt", "x", "--schema", `{}`}, &out)
	require.ErrorContains(t, err, "JSONRELAY_FALLBACK_KEY")
	assert.Empty(t, out.String())
}

func TestCall_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no prompt", args: []string{"--schema", `{}`}, want: "--prompt"},
		{name: "no schema", args: []string{"--prompt", "x"}, want: "--schema"},
		{name: "both schemas", args: []string{"--prompt", "x", "--schema", `{}`, "--schema-file", "s.json"}, want: "not both"},
		{name: "invalid schema", args: []string{"--prompt", "x", "--schema", `{nope`}, want: "valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := call(context.Background(), tt.args, &bytes.Buffer{})
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCall_CancelledContextOmitsFallbackHint(t *testing.T) {
	t.Setenv("JSONRELAY_FALLBACK_KEY", "")
	upstream := keylessServer(t, http.StatusOK, `{"a":1}`)
	cfgPath := writeFile(t, "config.yaml", primaryConfig(upstream.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := call(ctx, []string{"--config", cfgPath, "--prompt", "x", "--schema", `{}`}, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "JSONRELAY_FALLBACK_KEY")
}
