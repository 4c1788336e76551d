// Package llm provides the chat completion backends used to draft
// characters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Name is the registry key, e.g. "openrouter".
	Name() string
	// Complete sends a single system + user exchange and returns the reply text.
	Complete(ctx context.Context, req Request) (string, error)
}

// Request configures a single completion.
type Request struct {
	APIKey           string // Caller's key; providers with a configured key fall back to it
	Model            string
	System           string
	User             string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
}

// DefaultRequest carries the sampling parameters used for character drafts.
func DefaultRequest() Request {
	return Request{
		Temperature: 0.7,
		MaxTokens:   4000,
		TopP:        0.95,
	}
}

// ErrUnknownProvider is returned by Registry.Get for an unregistered name.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrMissingAPIKey is returned when neither the request nor the provider has
// a key.
var ErrMissingAPIKey = errors.New("API key is required")

// APIError is a non-success answer from a provider API.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Message)
}

// keyHolder is implemented by providers that can run without a caller key.
type keyHolder interface {
	HasDefaultKey() bool
}

// NeedsAPIKey reports whether requests to p must carry their own key.
func NeedsAPIKey(p Provider) bool {
	if k, ok := p.(keyHolder); ok {
		return !k.HasDefaultKey()
	}
	return true
}

// Registry maps provider names to providers.
type Registry struct {
	providers map[string]Provider
	fallback  string
}

// NewRegistry registers providers under their names. fallback is used when a
// request names no provider.
func NewRegistry(fallback string, providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider), fallback: fallback}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

// Get returns the provider called name, or the fallback for "".
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
