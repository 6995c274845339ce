// Package prompt renders a caller-supplied schema description into the
// instruction block that asks a model for raw JSON output.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const directive = "You are a JSON generator. Respond with raw JSON only: no markdown, no prose, no explanations."

// Rules are the hard output constraints appended to every compiled prompt.
var Rules = []string{
	"Do not wrap the output in code fences or backticks.",
	"Include every field the schema marks as required.",
	"Use standard JSON syntax: double-quoted keys and strings, no trailing commas, no comments.",
	"The output must start with { and end with }.",
}

// Compile renders schema into the instruction block. It never fails: a schema
// that cannot be marshaled is embedded using its Go string form.
func Compile(schema any) string {
	var b strings.Builder
	b.WriteString(directive)
	b.WriteString("\n\nThe JSON must conform to this schema:\n")
	b.WriteString(renderSchema(schema))
	b.WriteString("\n\nRules:\n")
	for i, rule := range Rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSchema(schema any) string {
	switch s := schema.(type) {
	case json.RawMessage:
		var out bytes.Buffer
		if json.Indent(&out, s, "", "  ") == nil {
			return out.String()
		}
		return string(s)
	case string:
		return s
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		return fmt.Sprintf("%v", schema)
	}
	return strings.TrimRight(buf.String(), "\n")
}
