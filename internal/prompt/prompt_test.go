package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompile_EmbedsSchemaAndRules(t *testing.T) {
	t.Parallel()
	schema := map[string]any{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}

	out := Compile(schema)

	assert.Contains(t, out, "raw JSON only")
	assert.Contains(t, out, `"required": [`)
	assert.Contains(t, out, `"name"`)
	for i, rule := range Rules {
		assert.Contains(t, out, rule)
		assert.Contains(t, out, string(rune('1'+i))+". ")
	}
	assert.Contains(t, out, "start with { and end with }")
}

func TestCompile_Deterministic(t *testing.T) {
	t.Parallel()
	schema := map[string]any{"b": 1, "a": []any{"x", "y"}, "c": map[string]any{"z": true}}
	assert.Equal(t, Compile(schema), Compile(schema))
}

func TestCompile_Total(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		schema any
		want   string
	}{
		{"nil", nil, "null"},
		{"string verbatim", `{"type":"object"}`, `{"type":"object"}`},
		{"raw message", json.RawMessage(`{"type":"object"}`), `"type": "object"`},
		{"html not escaped", map[string]string{"pattern": "<a>&"}, "<a>&"},
		{"unmarshalable", map[string]any{"fn": func() {}}, "map[fn:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Compile(tt.schema)
			assert.Contains(t, out, tt.want)
			assert.True(t, strings.HasPrefix(out, directive))
		})
	}
}
