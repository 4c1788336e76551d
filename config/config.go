// Package config reads runtime settings from the environment.
package config

import (
	"os"
	"strings"
	"time"
)

// GetPort returns the HTTP listen port. Defaults to 4001.
func GetPort() string {
	return getOr("PORT", "4001")
}

// GetHost returns the HTTP listen host. Defaults to all interfaces.
func GetHost() string {
	return getOr("HOST", "0.0.0.0")
}

// GetAddr joins host and port into a listen address.
func GetAddr() string {
	return GetHost() + ":" + GetPort()
}

// GetGeminiModel returns the Gemini model to use from environment variable
// Defaults to "gemini-2.5-flash" if not set
func GetGeminiModel() string {
	return getOr("GEMINI_MODEL", "gemini-2.5-flash")
}

// GetGeminiAPIKey returns the Gemini API key from environment variable
func GetGeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func GetOpenRouterBaseURL() string {
	return getOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
}

// GetAppURL is sent to OpenRouter as the HTTP-Referer.
func GetAppURL() string {
	return getOr("APP_URL", "http://localhost:4000")
}

// GetMongoDBURI returns the MongoDB connection URI from environment variable.
// Empty selects the SQLite store.
func GetMongoDBURI() string {
	return os.Getenv("MONGODB_URI")
}

func GetMongoDBDatabase() string {
	return getOr("MONGODB_DATABASE", "charsmith")
}

func GetSQLiteFile() string {
	return getOr("SQLITE_FILE", "data/charsmith.db")
}

// GetAllowedOrigins returns the allowed CORS origins from environment
// variable, split on commas. Nil means any origin.
func GetAllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// GetCharacterDir is where character files are written and read by the
// agent runtime.
func GetCharacterDir() string {
	return getOr("CHARACTER_DIR", "eliza/characters")
}

func GetAgentSetupScript() string {
	return getOr("AGENT_SETUP_SCRIPT", "setup.sh")
}

func GetAgentStartScript() string {
	return getOr("AGENT_START_SCRIPT", "start_eliza.sh")
}

// GetAgentBaseURL is the HTTP address of the running agent runtime.
func GetAgentBaseURL() string {
	return getOr("AGENT_BASE_URL", "http://localhost:3000")
}

// GetAgentReadyTimeout bounds how long generate-character waits for the
// runtime to come up. Defaults to 20s.
func GetAgentReadyTimeout() time.Duration {
	return getDuration("AGENT_READY_TIMEOUT", 20*time.Second)
}

// GetGenerationTTL is how long generation results stay retrievable.
func GetGenerationTTL() time.Duration {
	return getDuration("GENERATION_TTL", time.Hour)
}

func GetLogLevel() string {
	return getOr("LOG_LEVEL", "info")
}

func getOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDuration falls back on unset, unparsable or non-positive values.
func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
