package model

import (
	"time"

	"github.com/Chative-core-poc-v1/researcher/internal/core"
	pkgredis "github.com/Chative-core-poc-v1/researcher/pkg/redis"
)

// ================ Config ================

// AppConfig defines the process-level settings, sourced from environment
// variables (loaded from .env for local runs). Research settings are resolved
// separately by the configuration package.
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	LLM      LLMConfig
	Search   SearchConfig
	Research ResearchConfig
	Thread   ThreadConfig
	Server   ServerConfig
}

// LLMConfig selects the chat model backend and per-step sampling temperatures.
// Model identifiers and the OpenAI-compatible endpoint live in configuration.Configuration.
type LLMConfig struct {
	Provider      string `envconfig:"LLM_PROVIDER" default:"openai"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
	MaxRetries    int    `envconfig:"LLM_MAX_RETRIES" default:"2"`
	MaxTokens     int    `envconfig:"LLM_MAX_TOKENS" default:"4096"`

	QueryTemperature      float32 `envconfig:"QUERY_TEMPERATURE" default:"1.0"`
	SearchTemperature     float32 `envconfig:"SEARCH_TEMPERATURE" default:"0"`
	ReflectionTemperature float32 `envconfig:"REFLECTION_TEMPERATURE" default:"1.0"`
	AnswerTemperature     float32 `envconfig:"ANSWER_TEMPERATURE" default:"0"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// SearchConfig selects the web search backend.
type SearchConfig struct {
	Provider    string        `envconfig:"SEARCH_PROVIDER" default:"duckduckgo"`
	APIKey      string        `envconfig:"SEARCH_API_KEY"`
	Timeout     time.Duration `envconfig:"SEARCH_TIMEOUT" default:"15s"`
	TavilyDepth string        `envconfig:"TAVILY_DEPTH" default:"basic"`
}

// ResearchConfig tunes the fan-out of a research round.
type ResearchConfig struct {
	// Concurrency bounds the number of web research tasks running at once.
	Concurrency int `envconfig:"RESEARCH_CONCURRENCY" default:"4"`
}

// ThreadConfig controls persisted conversation threads.
type ThreadConfig struct {
	TTL time.Duration `envconfig:"THREAD_TTL" default:"24h"`
	// MaxMessages bounds the history handed to a run; older messages stay stored.
	MaxMessages int `envconfig:"THREAD_MAX_MESSAGES" default:"20"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8123"`
}
