// Package extract recovers a syntactically valid JSON document from free-form
// model output.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrMalformedResponse reports that no valid JSON could be recovered from model output.
var ErrMalformedResponse = errors.New("malformed model response")

// MalformedResponseError carries the cleaned text that failed extraction.
type MalformedResponseError struct {
	Text string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: no valid JSON object in %q", ErrMalformedResponse, preview(e.Text))
}

func (e *MalformedResponseError) Unwrap() error { return ErrMalformedResponse }

var (
	leadingFence  = regexp.MustCompile("(?i)^```[a-z0-9_+.-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?[ \t]*```$")
)

// JSON returns the JSON document contained in text. Text that already parses
// after fence stripping is returned unchanged; otherwise the span from the
// first '{' to the last '}' is tried.
func JSON(text string) (string, error) {
	cleaned := StripFences(text)
	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start >= 0 && end > start {
		candidate := cleaned[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", &MalformedResponseError{Text: cleaned}
}

// StripFences trims whitespace and removes a surrounding markdown code fence.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if loc := leadingFence.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func preview(s string) string {
	const max = 120
	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
