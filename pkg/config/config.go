package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port    string
	AppName string

	// Database
	DatabaseURL string `validate:"required"`

	// AI service (OpenAI-compatible)
	AIAPIKey     string `validate:"required"`
	AIBaseURL    string
	AIEmbedModel string
	AIChatModel  string

	EmbeddingDimension int

	// CandidateWidth caps the nearest-neighbor retrieval before reranking.
	CandidateWidth int `validate:"gte=30,lte=50"`

	// Frontend
	FrontendURL string
}

// envName maps struct fields to the environment variables they come from,
// for readable startup errors.
var envName = map[string]string{
	"DatabaseURL":    "DATABASE_URL",
	"AIAPIKey":       "AI_API_KEY",
	"CandidateWidth": "CANDIDATE_WIDTH",
}

// Load reads configuration from environment variables with sensible defaults.
// Required values have no defaults; Validate reports them if absent.
func Load() *Config {
	return &Config{
		Port:    envOrDefault("PORT", "8080"),
		AppName: envOrDefault("APP_NAME", "LeadMatch"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AIAPIKey:     os.Getenv("AI_API_KEY"),
		AIBaseURL:    envOrDefault("AI_BASE_URL", "https://api.openai.com"),
		AIEmbedModel: envOrDefault("AI_EMBED_MODEL", "text-embedding-3-small"),
		AIChatModel:  envOrDefault("AI_CHAT_MODEL", "gpt-4o-mini"),

		EmbeddingDimension: envOrDefaultInt("EMBEDDING_DIMENSION", 1536),

		CandidateWidth: envOrDefaultInt("CANDIDATE_WIDTH", 40),

		FrontendURL: envOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}
}

// Validate fails fast on missing required configuration, before any
// request is handled.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		v := verrs[0]
		name := envName[v.StructField()]
		if name == "" {
			name = v.StructField()
		}
		if v.Tag() == "required" {
			return fmt.Errorf("missing required configuration: %s", name)
		}
		return fmt.Errorf("invalid configuration: %s must satisfy %s=%s", name, v.Tag(), v.Param())
	}
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}
