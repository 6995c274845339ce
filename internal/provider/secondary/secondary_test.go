package secondary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"jsonrelay/internal/config"
	"jsonrelay/internal/models"
	"jsonrelay/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newAdapter(t *testing.T, url string) *Adapter {
	t.Helper()
	temp := 0.7
	a, err := New(config.SecondaryConfig{URL: url, Model: "openai", Temperature: &temp}, &http.Client{})
	require.NoError(t, err)
	return a
}

func serve(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestInvoke_Success(t *testing.T) {
	t.Parallel()
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "openai", body["model"])
		assert.InDelta(t, 0.7, body["temperature"], 1e-9)
		assert.Equal(t, []any{
			map[string]any{"role": "system", "content": "rules"},
			map[string]any{"role": "user", "content": "give a name"},
		}, body["messages"])

		_, _ = io.WriteString(w, `{"id":"x","choices":[{"message":{"role":"assistant","content":"{\"name\":\"Alex\"}"}}]}`)
	})

	got, err := newAdapter(t, url).Invoke(context.Background(), models.NewConversation("rules", "give a name"), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Alex"}`, got)
}

func TestInvoke_NoCredentialSkipsNetwork(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	for _, cred := range []string{"", "   "} {
		_, err := newAdapter(t, url).Invoke(context.Background(), models.NewConversation("s", "u"), cred)
		require.ErrorIs(t, err, provider.ErrNoCredential)
	}
	assert.Zero(t, hits.Load())
}

func TestInvoke_ErrorStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"error message body", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, "invalid api key"},
		{"non json body", http.StatusBadGateway, `<html>bad gateway</html>`, "Bad Gateway"},
		{"json without message", http.StatusTooManyRequests, `{"error":{"code":"rate"}}`, "Too Many Requests"},
		{"empty body", http.StatusInternalServerError, ``, "Internal Server Error"},
		{"blank message", http.StatusBadRequest, `{"error":{"message":"  "}}`, "Bad Request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			url := serve(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := newAdapter(t, url).Invoke(context.Background(), models.NewConversation("s", "u"), "sk")
			var se *provider.SecondaryError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, tt.wantMessage, se.Message)
		})
	}
}

func TestInvoke_MalformedSuccessBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"missing content", `{"choices":[{"message":{"role":"assistant"}}]}`},
		{"null content", `{"choices":[{"message":{"content":null}}]}`},
		{"non string content", `{"choices":[{"message":{"content":{"a":1}}}]}`},
		{"not json", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			url := serve(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := newAdapter(t, url).Invoke(context.Background(), models.NewConversation("s", "u"), "sk")
			var se *provider.SecondaryError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, http.StatusOK, se.Status)
			assert.NotEmpty(t, se.Message)
		})
	}
}

func TestInvoke_TransportFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newAdapter(t, url).Invoke(context.Background(), models.NewConversation("s", "u"), "sk")
	var se *provider.SecondaryError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, se.Status)
	assert.Error(t, se.Cause)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, err := New(config.SecondaryConfig{URL: "https://x"}, nil)
	require.Error(t, err)
	_, err = New(config.SecondaryConfig{}, &http.Client{})
	require.Error(t, err)

	a, err := New(config.SecondaryConfig{URL: "https://x", Model: "openai"}, &http.Client{})
	require.NoError(t, err)
	assert.InDelta(t, provider.DefaultTemperature, a.temperature, 1e-9)
}
