// Package config provides environment-driven configuration for the
// retrieval engine and its store adapters.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Secret wraps a sensitive string to prevent accidental logging or
// marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all retrieval configuration values.
type Config struct {
	DatabaseURL Secret

	QdrantAddr   string
	QdrantAPIKey Secret

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword Secret

	OpenAIKey     Secret
	OpenAIBaseURL string
	OllamaURL     string

	EmbeddingModel string
	RerankerURL    string

	LogLevel string

	TopK               int
	RelevanceThreshold float64
	MinQuality         float64
	MaxPerType         int
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    Secret(envOrDefault("DATABASE_URL", "")),
		QdrantAddr:     envOrDefault("QDRANT_ADDR", "localhost:6334"),
		QdrantAPIKey:   Secret(envOrDefault("QDRANT_API_KEY", "")),
		Neo4jURI:       envOrDefault("NEO4J_URI", ""),
		Neo4jUser:      envOrDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword:  Secret(envOrDefault("NEO4J_PASSWORD", "")),
		OpenAIKey:      Secret(envOrDefault("OPENAI_API_KEY", "")),
		OpenAIBaseURL:  envOrDefault("OPENAI_BASE_URL", ""),
		OllamaURL:      envOrDefault("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel: envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		RerankerURL:    envOrDefault("RERANKER_URL", ""),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
	}

	topK, err := strconv.Atoi(envOrDefault("RETRIEVAL_TOP_K", "10"))
	if err != nil || topK < 1 || topK > 1000 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K must be an integer between 1 and 1000")
	}
	cfg.TopK = topK

	threshold, err := strconv.ParseFloat(envOrDefault("RELEVANCE_THRESHOLD", "0.5"), 64)
	if err != nil || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("RELEVANCE_THRESHOLD must be a number between 0 and 1")
	}
	cfg.RelevanceThreshold = threshold

	minQuality, err := strconv.ParseFloat(envOrDefault("MIN_QUALITY", "0.6"), 64)
	if err != nil || minQuality < 0 || minQuality > 1 {
		return nil, fmt.Errorf("MIN_QUALITY must be a number between 0 and 1")
	}
	cfg.MinQuality = minQuality

	maxPerType, err := strconv.Atoi(envOrDefault("MAX_PER_TYPE", "2"))
	if err != nil || maxPerType < 1 || maxPerType > 100 {
		return nil, fmt.Errorf("MAX_PER_TYPE must be an integer between 1 and 100")
	}
	cfg.MaxPerType = maxPerType

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}

	if c.OpenAIKey.Value() == "" && c.OllamaURL == "" {
		return fmt.Errorf("either OPENAI_API_KEY or OLLAMA_URL must be set")
	}

	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
