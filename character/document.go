// Package character models agent character documents and turns unreliable
// model output into complete, well-typed documents.
package character

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
)

// Document is a character configuration as consumed by the agent runtime.
// Every field is always emitted; sequences are never null.
type Document struct {
	Name            string
	ModelProvider   string
	Clients         []any
	Plugins         []any
	Settings        Settings
	Bio             []any
	Lore            []any
	Knowledge       []string
	MessageExamples []any
	PostExamples    []any
	Topics          []any
	Style           Style
	Adjectives      []any
	People          []any

	// Extra holds top-level keys that are not modelled above (id, username,
	// system, templates, ...). They are written back after the known fields.
	Extra map[string]any
}

// Settings is the nested runtime configuration of a character.
type Settings struct {
	Secrets map[string]string
	Voice   Voice
	Extra   map[string]any
}

// Voice selects the text-to-speech model.
type Voice struct {
	Model string `json:"model"`
}

// Style groups the writing-style directives of a character.
type Style struct {
	All  []any `json:"all"`
	Chat []any `json:"chat"`
	Post []any `json:"post"`
}

var documentKeys = map[string]bool{
	"name": true, "modelProvider": true, "clients": true, "plugins": true,
	"settings": true, "bio": true, "lore": true, "knowledge": true,
	"messageExamples": true, "postExamples": true, "topics": true,
	"style": true, "adjectives": true, "people": true,
}

var settingsKeys = map[string]bool{"secrets": true, "voice": true}

type documentJSON struct {
	Name            string   `json:"name"`
	ModelProvider   string   `json:"modelProvider"`
	Clients         []any    `json:"clients"`
	Plugins         []any    `json:"plugins"`
	Settings        Settings `json:"settings"`
	Bio             []any    `json:"bio"`
	Lore            []any    `json:"lore"`
	Knowledge       []string `json:"knowledge"`
	MessageExamples []any    `json:"messageExamples"`
	PostExamples    []any    `json:"postExamples"`
	Topics          []any    `json:"topics"`
	Style           Style    `json:"style"`
	Adjectives      []any    `json:"adjectives"`
	People          []any    `json:"people"`
}

// MarshalJSON writes the known fields in a fixed order followed by Extra.
func (d Document) MarshalJSON() ([]byte, error) {
	knowledge := d.Knowledge
	if knowledge == nil {
		knowledge = []string{}
	}
	known, err := json.Marshal(documentJSON{
		Name:            d.Name,
		ModelProvider:   d.ModelProvider,
		Clients:         orEmpty(d.Clients),
		Plugins:         orEmpty(d.Plugins),
		Settings:        d.Settings,
		Bio:             orEmpty(d.Bio),
		Lore:            orEmpty(d.Lore),
		Knowledge:       knowledge,
		MessageExamples: orEmpty(d.MessageExamples),
		PostExamples:    orEmpty(d.PostExamples),
		Topics:          orEmpty(d.Topics),
		Style:           d.Style,
		Adjectives:      orEmpty(d.Adjectives),
		People:          orEmpty(d.People),
	})
	if err != nil {
		return nil, err
	}
	return appendExtra(known, d.Extra, documentKeys)
}

// UnmarshalJSON decodes leniently: missing or mistyped fields take their
// defaults and no field is required.
func (d *Document) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}
	*d = *FromObject(obj)
	return nil
}

// MarshalJSON always writes secrets and voice, even when empty.
func (s Settings) MarshalJSON() ([]byte, error) {
	secrets := s.Secrets
	if secrets == nil {
		secrets = map[string]string{}
	}
	known, err := json.Marshal(struct {
		Secrets map[string]string `json:"secrets"`
		Voice   Voice             `json:"voice"`
	}{secrets, s.Voice})
	if err != nil {
		return nil, err
	}
	return appendExtra(known, s.Extra, settingsKeys)
}

// MarshalJSON keeps all three sequences present.
func (s Style) MarshalJSON() ([]byte, error) {
	type style Style
	return json.Marshal(style{All: orEmpty(s.All), Chat: orEmpty(s.Chat), Post: orEmpty(s.Post)})
}

// FromObject builds a document from a decoded JSON object, defaulting every
// field that is absent or has the wrong shape. Knowledge strings are kept
// verbatim; non-string entries are canonicalized.
func FromObject(obj map[string]any) *Document {
	d := &Document{
		Name:            stringField(obj, "name"),
		ModelProvider:   stringField(obj, "modelProvider"),
		Clients:         sequence(obj["clients"]),
		Plugins:         sequence(obj["plugins"]),
		Settings:        settingsFrom(obj["settings"]),
		Bio:             sequence(obj["bio"]),
		Lore:            sequence(obj["lore"]),
		Knowledge:       storedKnowledge(obj["knowledge"]),
		MessageExamples: sequence(obj["messageExamples"]),
		PostExamples:    sequence(obj["postExamples"]),
		Topics:          sequence(obj["topics"]),
		Style:           styleFrom(obj["style"]),
		Adjectives:      sequence(obj["adjectives"]),
		People:          sequence(obj["people"]),
	}
	for key, value := range obj {
		if documentKeys[key] {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[key] = value
	}
	return d
}

// Clone returns a copy that shares no slices or maps with d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Clients = slices.Clone(d.Clients)
	c.Plugins = slices.Clone(d.Plugins)
	c.Settings = d.Settings.clone()
	c.Bio = slices.Clone(d.Bio)
	c.Lore = slices.Clone(d.Lore)
	c.Knowledge = slices.Clone(d.Knowledge)
	c.MessageExamples = slices.Clone(d.MessageExamples)
	c.PostExamples = slices.Clone(d.PostExamples)
	c.Topics = slices.Clone(d.Topics)
	c.Style = Style{All: slices.Clone(d.Style.All), Chat: slices.Clone(d.Style.Chat), Post: slices.Clone(d.Style.Post)}
	c.Adjectives = slices.Clone(d.Adjectives)
	c.People = slices.Clone(d.People)
	c.Extra = maps.Clone(d.Extra)
	return &c
}

func (s Settings) clone() Settings {
	secrets := maps.Clone(s.Secrets)
	if secrets == nil {
		secrets = map[string]string{}
	}
	return Settings{Secrets: secrets, Voice: s.Voice, Extra: maps.Clone(s.Extra)}
}

// DefaultSettings is the minimal settings shape.
func DefaultSettings() Settings {
	return Settings{Secrets: map[string]string{}}
}

func settingsFrom(v any) Settings {
	obj, ok := v.(map[string]any)
	if !ok {
		return DefaultSettings()
	}
	s := DefaultSettings()
	if secrets, ok := obj["secrets"].(map[string]any); ok {
		for key, value := range secrets {
			if text, ok := scalarString(value); ok {
				s.Secrets[key] = text
			}
		}
	}
	if voice, ok := obj["voice"].(map[string]any); ok {
		s.Voice.Model, _ = scalarString(voice["model"])
	}
	for key, value := range obj {
		if settingsKeys[key] {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[key] = value
	}
	return s
}

func styleFrom(v any) Style {
	obj, ok := v.(map[string]any)
	if !ok {
		return Style{All: []any{}, Chat: []any{}, Post: []any{}}
	}
	return Style{
		All:  sequence(obj["all"]),
		Chat: sequence(obj["chat"]),
		Post: sequence(obj["post"]),
	}
}

// sequence is the single coerce-to-sequence-or-empty rule applied to every
// array-typed field.
func sequence(v any) []any {
	if items, ok := v.([]any); ok {
		return slices.Clone(items)
	}
	return []any{}
}

func orEmpty(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}

func stringField(obj map[string]any, key string) string {
	s, _ := scalarString(obj[key])
	return s
}

// decodeObject parses data as exactly one JSON object, keeping numbers as
// json.Number so they round-trip unchanged.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid character after top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return obj, nil
}

// appendExtra splices extra key/value pairs into the encoded object obj,
// skipping reserved keys. Keys are written in sorted order.
func appendExtra(obj []byte, extra map[string]any, reserved map[string]bool) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		if !reserved[key] {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return obj, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(obj[:len(obj)-1])
	for _, key := range keys {
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(extra[key])
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", key, err)
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
