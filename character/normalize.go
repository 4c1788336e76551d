package character

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Mode selects between a fresh generation and a refinement of a baseline.
type Mode int

const (
	Generate Mode = iota
	Refine
)

func (m Mode) String() string {
	if m == Refine {
		return "refine"
	}
	return "generate"
}

// InvalidKnowledgeEntry replaces knowledge entries with no usable text.
const InvalidKnowledgeEntry = "Invalid knowledge entry."

// RequiredFields must be present in extracted model output before it is
// normalized.
var RequiredFields = []string{
	"bio",
	"lore",
	"topics",
	"style",
	"adjectives",
	"messageExamples",
	"postExamples",
}

// ValidationError lists the required fields missing from model output.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "invalid character data: missing " + strings.Join(e.MissingFields, ", ")
}

// Normalize turns an extracted object into a complete document.
//
// In Refine mode the baseline's knowledge wins whenever it is non-empty, and
// name, modelProvider, clients, plugins, settings and unknown keys fall back
// to the baseline when the model left them out. extracted and baseline are
// not modified.
func Normalize(extracted map[string]any, baseline *Document, mode Mode) (*Document, error) {
	if missing := MissingFields(extracted); len(missing) > 0 {
		return nil, &ValidationError{MissingFields: missing}
	}

	hasExistingKnowledge := mode == Refine && baseline != nil && len(baseline.Knowledge) > 0

	doc := FromObject(extracted)
	doc.Knowledge = CanonicalKnowledge(extracted["knowledge"])
	if hasExistingKnowledge {
		doc.Knowledge = slices.Clone(baseline.Knowledge)
	}

	if mode == Refine && baseline != nil {
		inherit(doc, extracted, baseline)
	}
	return doc, nil
}

// MissingFields reports which RequiredFields are absent or falsy in obj.
func MissingFields(obj map[string]any) []string {
	var missing []string
	for _, field := range RequiredFields {
		if !truthy(obj[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

func inherit(doc *Document, extracted map[string]any, baseline *Document) {
	if doc.Name == "" {
		doc.Name = baseline.Name
	}
	if doc.ModelProvider == "" {
		doc.ModelProvider = baseline.ModelProvider
	}
	if _, ok := extracted["clients"].([]any); !ok {
		doc.Clients = slices.Clone(orEmpty(baseline.Clients))
	}
	if _, ok := extracted["plugins"].([]any); !ok {
		doc.Plugins = slices.Clone(orEmpty(baseline.Plugins))
	}
	if _, ok := extracted["settings"].(map[string]any); !ok {
		doc.Settings = baseline.Settings.clone()
	}
	for key, value := range baseline.Extra {
		if _, ok := extracted[key]; ok {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]any)
		}
		doc.Extra[key] = value
	}
}

// CanonicalKnowledge converts a raw knowledge value into terminated
// sentences. A non-sequence yields an empty list.
func CanonicalKnowledge(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, classifyKnowledge(item).sentence())
	}
	return out
}

// storedKnowledge keeps string entries of an existing document verbatim.
func storedKnowledge(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, classifyKnowledge(item).sentence())
	}
	return out
}

// knowledgeEntry is one of plainText, structuredEntry or invalidEntry.
type knowledgeEntry interface {
	sentence() string
}

type plainText string

type structuredEntry map[string]any

type invalidEntry struct{}

var knowledgeTextKeys = []string{"text", "content", "value"}

func classifyKnowledge(v any) knowledgeEntry {
	switch entry := v.(type) {
	case string:
		return plainText(entry)
	case map[string]any:
		return structuredEntry(entry)
	default:
		return invalidEntry{}
	}
}

func (p plainText) sentence() string {
	return terminate(string(p))
}

func (s structuredEntry) sentence() string {
	for _, key := range knowledgeTextKeys {
		value := s[key]
		if !truthy(value) {
			continue
		}
		if text, ok := scalarString(value); ok {
			return terminate(text)
		}
		return InvalidKnowledgeEntry
	}
	return InvalidKnowledgeEntry
}

func (invalidEntry) sentence() string {
	return InvalidKnowledgeEntry
}

func terminate(s string) string {
	if strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

// truthy follows the loose truthiness the required-fields gate relies on:
// null, false, zero and the empty string count as absent.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case json.Number:
		f, err := value.Float64()
		return err != nil || f != 0
	case float64:
		return value != 0
	case int:
		return value != 0
	default:
		return true
	}
}

func scalarString(v any) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case json.Number:
		return value.String(), true
	case bool:
		return strconv.FormatBool(value), true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case int:
		return strconv.Itoa(value), true
	default:
		return "", false
	}
}
