// Package generator drafts and refines characters with a language model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"charsmith/character"
	"charsmith/llm"
	"charsmith/prompts"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMissingCharacter is returned by Refine without a current character.
var ErrMissingCharacter = errors.New("current character data is required")

// GenerateRequest asks for a new character from a free-text description.
type GenerateRequest struct {
	Prompt   string
	Model    string
	Provider string
	APIKey   string
}

// RefineRequest asks for changes to an existing character.
type RefineRequest struct {
	Prompt   string
	Model    string
	Provider string
	APIKey   string
	Current  *character.Document
}

// Result is one completed generation or refinement.
type Result struct {
	ID          string
	Mode        character.Mode
	Provider    string
	Model       string
	Character   *character.Document
	RawPrompt   string
	RawResponse string
	CreatedAt   time.Time
}

// ParseError reports model output that could not be turned into a character.
// RawResponse is the unmodified completion.
type ParseError struct {
	Mode        character.Mode
	RawResponse string
	Err         error
}

func (e *ParseError) Error() string {
	verb := "generated"
	if e.Mode == character.Refine {
		verb = "refined"
	}
	return fmt.Sprintf("Failed to parse %s content: %s", verb, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Service runs generations. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	providers *llm.Registry
	logger    *zap.Logger
	now       func() time.Time
}

func New(providers *llm.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{providers: providers, logger: logger, now: time.Now}
}

// Provider returns the provider a request naming name would use.
func (s *Service) Provider(name string) (llm.Provider, error) {
	return s.providers.Get(name)
}

// Generate drafts a new character from req.Prompt.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	provider, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	template := character.NewTemplate(character.ExtractName(req.Prompt))
	user, err := prompts.GenerationUserPrompt(template, req.Prompt)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, provider, req.Model, req.APIKey, req.Prompt, prompts.GenerationSystemPrompt, user, nil, character.Generate)
}

// Refine applies req.Prompt to req.Current. Existing knowledge is kept.
func (s *Service) Refine(ctx context.Context, req RefineRequest) (*Result, error) {
	if req.Current == nil {
		return nil, ErrMissingCharacter
	}
	provider, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	current := req.Current.Clone()
	name := character.ResolveName(req.Prompt, current.Name)
	template := character.RefineTemplate(current, name)
	user, err := prompts.RefinementUserPrompt(current, template, req.Prompt, len(current.Knowledge) > 0)
	if err != nil {
		return nil, err
	}

	// A name the model leaves out falls back to the resolved one.
	baseline := current.Clone()
	baseline.Name = name

	return s.run(ctx, provider, req.Model, req.APIKey, req.Prompt, prompts.RefinementSystemPrompt, user, baseline, character.Refine)
}

func (s *Service) run(ctx context.Context, provider llm.Provider, model, apiKey, rawPrompt, system, user string, baseline *character.Document, mode character.Mode) (*Result, error) {
	id := uuid.NewString()
	log := s.logger.With(
		zap.String("generation_id", id),
		zap.String("mode", mode.String()),
		zap.String("provider", provider.Name()),
		zap.String("model", model),
	)

	completion := llm.DefaultRequest()
	completion.APIKey = apiKey
	completion.Model = model
	completion.System = system
	completion.User = user

	start := s.now()
	raw, err := provider.Complete(ctx, completion)
	if err != nil {
		log.Error("Completion failed", zap.Error(err))
		return nil, err
	}
	log.Debug("Raw model response", zap.String("raw", raw), zap.Duration("elapsed", s.now().Sub(start)))

	extracted, err := character.Extract(raw)
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.String("raw", raw)}
		var extractionErr *character.ExtractionError
		if errors.As(err, &extractionErr) && extractionErr.Cleaned != "" {
			fields = append(fields, zap.String("cleaned", extractionErr.Cleaned))
		}
		log.Error("Could not extract JSON from model response", fields...)
		return nil, &ParseError{Mode: mode, RawResponse: raw, Err: err}
	}

	doc, err := character.Normalize(extracted, baseline, mode)
	if err != nil {
		log.Error("Model response failed validation", zap.Error(err), zap.String("raw", raw))
		return nil, &ParseError{Mode: mode, RawResponse: raw, Err: err}
	}

	log.Info("Character drafted",
		zap.String("name", doc.Name),
		zap.Int("knowledge", len(doc.Knowledge)))

	return &Result{
		ID:          id,
		Mode:        mode,
		Provider:    provider.Name(),
		Model:       model,
		Character:   doc,
		RawPrompt:   rawPrompt,
		RawResponse: raw,
		CreatedAt:   s.now().UTC(),
	}, nil
}
