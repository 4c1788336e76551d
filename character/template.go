package character

import "slices"

// NewTemplate is the empty document shape requested from the model on a
// fresh generation.
func NewTemplate(name string) *Document {
	return &Document{
		Name:            name,
		Clients:         []any{},
		Plugins:         []any{},
		Settings:        DefaultSettings(),
		Bio:             []any{},
		Lore:            []any{},
		Knowledge:       []string{},
		MessageExamples: []any{},
		PostExamples:    []any{},
		Topics:          []any{},
		Style:           Style{All: []any{}, Chat: []any{}, Post: []any{}},
		Adjectives:      []any{},
		People:          []any{},
	}
}

// RefineTemplate is the shape requested on refinement. It carries the
// baseline's integration settings, people and (when present) knowledge, and
// leaves the descriptive fields empty for the model to fill.
func RefineTemplate(baseline *Document, name string) *Document {
	t := NewTemplate(name)
	if baseline == nil {
		return t
	}
	t.ModelProvider = baseline.ModelProvider
	t.Clients = slices.Clone(orEmpty(baseline.Clients))
	t.Plugins = slices.Clone(orEmpty(baseline.Plugins))
	t.Settings = baseline.Settings.clone()
	t.People = slices.Clone(orEmpty(baseline.People))
	if len(baseline.Knowledge) > 0 {
		t.Knowledge = slices.Clone(baseline.Knowledge)
	}
	return t
}
