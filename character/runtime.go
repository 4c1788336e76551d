package character

import (
	"errors"
	"fmt"
	"strings"
)

// Model provider identifiers understood by the agent runtime.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGrok       = "grok"
	ProviderGroq       = "groq"
	ProviderLlamaCloud = "llama_cloud"
	ProviderLlamaLocal = "llama_local"
	ProviderGoogle     = "google"
	ProviderRedpill    = "redpill"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderHeurist    = "heurist"
)

var knownProviders = map[string]bool{
	ProviderOpenAI: true, ProviderAnthropic: true, ProviderGrok: true,
	ProviderGroq: true, ProviderLlamaCloud: true, ProviderLlamaLocal: true,
	ProviderGoogle: true, ProviderRedpill: true, ProviderOpenRouter: true,
	ProviderOllama: true, ProviderHeurist: true,
}

// tokenSource is a single place to look for a provider token.
type tokenSource struct {
	secret bool
	key    string
}

func secret(key string) tokenSource { return tokenSource{secret: true, key: key} }
func env(key string) tokenSource    { return tokenSource{key: key} }

var tokenSources = map[string][]tokenSource{
	ProviderOpenAI: {secret("OPENAI_API_KEY"), env("OPENAI_API_KEY")},
	ProviderLlamaCloud: {
		secret("LLAMACLOUD_API_KEY"), env("LLAMACLOUD_API_KEY"),
		secret("TOGETHER_API_KEY"), env("TOGETHER_API_KEY"),
		secret("XAI_API_KEY"), env("XAI_API_KEY"),
		secret("OPENAI_API_KEY"), env("OPENAI_API_KEY"),
	},
	ProviderAnthropic: {
		secret("ANTHROPIC_API_KEY"), secret("CLAUDE_API_KEY"),
		env("ANTHROPIC_API_KEY"), env("CLAUDE_API_KEY"),
	},
	ProviderRedpill:    {secret("REDPILL_API_KEY"), env("REDPILL_API_KEY")},
	ProviderOpenRouter: {secret("OPENROUTER"), env("OPENROUTER_API_KEY")},
	ProviderGrok:       {secret("GROK_API_KEY"), env("GROK_API_KEY")},
	ProviderHeurist:    {secret("HEURIST_API_KEY"), env("HEURIST_API_KEY")},
	ProviderGroq:       {secret("GROQ_API_KEY"), env("GROQ_API_KEY")},
}

// TokenForProvider finds the model API token for doc's provider, checking
// the character's secrets before the environment. It returns "" for
// providers that need no token or when nothing is configured.
func TokenForProvider(doc *Document, getenv func(string) string) string {
	for _, source := range tokenSources[strings.ToLower(doc.ModelProvider)] {
		var value string
		if source.secret {
			value = doc.Settings.Secrets[source.key]
		} else if getenv != nil {
			value = getenv(source.key)
		}
		if value != "" {
			return value
		}
	}
	return ""
}

// NeedsToken reports whether provider expects an API token.
func NeedsToken(provider string) bool {
	return len(tokenSources[strings.ToLower(provider)]) > 0
}

// Validate checks that doc can boot an agent runtime.
func Validate(doc *Document) error {
	var errs []error
	if strings.TrimSpace(doc.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p := doc.ModelProvider; p != "" && !knownProviders[strings.ToLower(p)] {
		errs = append(errs, fmt.Errorf("unknown modelProvider %q", p))
	}
	return errors.Join(errs...)
}
