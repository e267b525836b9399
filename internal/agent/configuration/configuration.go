// Package configuration resolves the research agent settings from the
// environment, caller supplied overrides and built-in defaults.
package configuration

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"

	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
)

// APIKeyPlaceholder is the documented stand-in for "no API key". It is
// normalised to an absent key during resolution.
const APIKeyPlaceholder = "not_needed"

// Step names a model-backed stage of the research loop.
type Step string

const (
	StepQuery      Step = "query"
	StepSearch     Step = "search"
	StepReflection Step = "reflection"
	StepAnswer     Step = "answer"
)

// Steps lists every model-backed step in execution order.
var Steps = []Step{StepQuery, StepSearch, StepReflection, StepAnswer}

// Configuration holds the resolved research settings. Field tags name the
// environment variable for each field (the upper-cased field name). There are
// deliberately no envconfig defaults: an unset variable must leave the
// override or default already in place.
type Configuration struct {
	OpenAIAPIBase string `envconfig:"OPENAI_API_BASE" json:"openai_api_base"`
	// OpenAIAPIKey is empty when no key is configured.
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" json:"-"`

	QueryGeneratorModel string `envconfig:"QUERY_GENERATOR_MODEL" json:"query_generator_model"`
	SearchLLMModel      string `envconfig:"SEARCH_LLM_MODEL" json:"search_llm_model"`
	ReflectionModel     string `envconfig:"REFLECTION_MODEL" json:"reflection_model"`
	AnswerModel         string `envconfig:"ANSWER_MODEL" json:"answer_model"`

	NumberOfInitialQueries int `envconfig:"NUMBER_OF_INITIAL_QUERIES" json:"number_of_initial_queries"`
	MaxResearchLoops       int `envconfig:"MAX_RESEARCH_LOOPS" json:"max_research_loops"`
}

// Default returns the configuration used when neither the environment nor
// the caller provides a value.
func Default() *Configuration {
	return &Configuration{
		OpenAIAPIBase:          "http://localhost:1234/v1",
		OpenAIAPIKey:           APIKeyPlaceholder,
		QueryGeneratorModel:    "local-model",
		SearchLLMModel:         "local-model",
		ReflectionModel:        "local-model",
		AnswerModel:            "local-model",
		NumberOfInitialQueries: 3,
		MaxResearchLoops:       2,
	}
}

// Resolve builds a Configuration. For every field the environment variable
// wins over the override, and the override wins over the default. Override
// keys are the snake_case field names; nil values count as unset.
func Resolve(overrides map[string]any) (*Configuration, error) {
	cfg := Default()

	for name, apply := range cfg.fields() {
		v, ok := overrides[name]
		if !ok || v == nil {
			continue
		}
		if err := apply(v); err != nil {
			return nil, errx.WrapConfig(fmt.Errorf("override %q: %w", name, err))
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, errx.WrapConfig(fmt.Errorf("resolve environment: %w", err))
	}

	if cfg.OpenAIAPIKey == APIKeyPlaceholder {
		cfg.OpenAIAPIKey = ""
	}

	return cfg, nil
}

// ModelFor returns the model identifier configured for step.
func (c *Configuration) ModelFor(step Step) string {
	return c.models()[step]
}

func (c *Configuration) models() map[Step]string {
	return map[Step]string{
		StepQuery:      c.QueryGeneratorModel,
		StepSearch:     c.SearchLLMModel,
		StepReflection: c.ReflectionModel,
		StepAnswer:     c.AnswerModel,
	}
}

// HasAPIKey reports whether an API key was configured.
func (c *Configuration) HasAPIKey() bool {
	return c.OpenAIAPIKey != ""
}

// ClientAPIKey returns the key to hand to an OpenAI-compatible client, which
// requires a non-empty value even for local servers.
func (c *Configuration) ClientAPIKey() string {
	if c.HasAPIKey() {
		return c.OpenAIAPIKey
	}
	return APIKeyPlaceholder
}

// EffectiveInitialQueries returns override when set, else the configured count.
func (c *Configuration) EffectiveInitialQueries(override *int) int {
	if override != nil {
		return *override
	}
	return c.NumberOfInitialQueries
}

// EffectiveMaxLoops returns override when set, else the configured ceiling.
func (c *Configuration) EffectiveMaxLoops(override *int) int {
	if override != nil {
		return *override
	}
	return c.MaxResearchLoops
}

func (c *Configuration) fields() map[string]func(any) error {
	return map[string]func(any) error{
		"openai_api_base":           setString(&c.OpenAIAPIBase),
		"openai_api_key":            setString(&c.OpenAIAPIKey),
		"query_generator_model":     setString(&c.QueryGeneratorModel),
		"search_llm_model":          setString(&c.SearchLLMModel),
		"reflection_model":          setString(&c.ReflectionModel),
		"answer_model":              setString(&c.AnswerModel),
		"number_of_initial_queries": setInt(&c.NumberOfInitialQueries),
		"max_research_loops":        setInt(&c.MaxResearchLoops),
	}
}

func setString(dst *string) func(any) error {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		*dst = s
		return nil
	}
}

func setInt(dst *int) func(any) error {
	return func(v any) error {
		n, err := coerceInt(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func coerceInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, fmt.Errorf("expected integer, got %v", t)
		}
		return int(t), nil
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			return 0, fmt.Errorf("expected integer: %w", err)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("expected integer: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
