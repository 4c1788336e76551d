package character

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ExtractionKind says why no JSON object could be recovered.
type ExtractionKind int

const (
	// NoJSONBoundaries means the text has no '{' ... '}' span at all.
	NoJSONBoundaries ExtractionKind = iota + 1
	// UnrecoverableMalformed means the span was found but still does not
	// parse after repair.
	UnrecoverableMalformed
)

func (k ExtractionKind) String() string {
	switch k {
	case NoJSONBoundaries:
		return "no_json_boundaries"
	case UnrecoverableMalformed:
		return "unrecoverable_malformed"
	default:
		return "unknown"
	}
}

// ExtractionError is returned by Extract when raw text holds no recoverable
// JSON object.
type ExtractionError struct {
	Kind    ExtractionKind
	Detail  string // parser message, UnrecoverableMalformed only
	Size    int    // length of the raw text in bytes
	Snippet string // leading part of the raw text
	Cleaned string // repaired candidate, UnrecoverableMalformed only
}

func (e *ExtractionError) Error() string {
	if e.Kind == NoJSONBoundaries {
		return "no complete JSON object found in response"
	}
	return "failed to parse JSON content: " + e.Detail
}

const snippetLimit = 200

// repairs is applied in order to the sliced candidate. Each step only
// rewrites text outside well-formed JSON tokens in the common cases; see
// DESIGN.md for the known over-repair cases.
var repairs = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`,\s*\}`), "}"},
	{regexp.MustCompile(`,\s*\]`), "]"},
	{regexp.MustCompile(`\{\s*\}`), "{}"},
	{regexp.MustCompile(`\[\s*\]`), "[]"},
	{regexp.MustCompile(`"\s*:\s*undefined`), `": null`},
	{regexp.MustCompile(`"\s*:\s*,`), `": null,`},
	{regexp.MustCompile(`"\s*:\s*\}`), `": null}`},
	{regexp.MustCompile(`\s+`), " "},
}

// Extract recovers a single JSON object from model output. Valid JSON is
// returned as is; otherwise the text between the first '{' and the last '}'
// is repaired and parsed again.
func Extract(raw string) (map[string]any, error) {
	if obj, err := decodeObject([]byte(raw)); err == nil {
		return obj, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &ExtractionError{
			Kind:    NoJSONBoundaries,
			Size:    len(raw),
			Snippet: truncate(raw, snippetLimit),
		}
	}

	cleaned := Repair(raw[start : end+1])
	obj, err := decodeObject([]byte(cleaned))
	if err != nil {
		return nil, &ExtractionError{
			Kind:    UnrecoverableMalformed,
			Detail:  err.Error(),
			Size:    len(raw),
			Snippet: truncate(raw, snippetLimit),
			Cleaned: cleaned,
		}
	}
	return obj, nil
}

// Repair applies the textual fix-ups for trailing commas, empty containers,
// undefined and empty values, and collapses whitespace.
func Repair(candidate string) string {
	for _, r := range repairs {
		candidate = r.pattern.ReplaceAllLiteralString(candidate, r.replacement)
	}
	return strings.TrimSpace(candidate)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("... (%d bytes)", len(s))
}
