package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/configuration"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Research *configuration.Configuration
	LLM      model.LLMConfig
}

// StepModel is the chat model bound to one research step.
type StepModel struct {
	Step  configuration.Step
	Name  string
	Model einomodel.BaseChatModel
}

// ChatModels holds one chat model per research step
type ChatModels struct {
	Query      StepModel
	Search     StepModel
	Reflection StepModel
	Answer     StepModel
}

// NewChatModels creates the per-step chat models for the configured provider.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Research == nil {
		return nil, fmt.Errorf("research configuration is nil")
	}

	var build func(step configuration.Step, name string, temperature float32) (einomodel.BaseChatModel, error)

	switch config.LLM.Provider {
	case model.ProviderOpenAI, "":
		build = func(_ configuration.Step, name string, temperature float32) (einomodel.BaseChatModel, error) {
			return NewOpenAIChatModel(OpenAIChatModelConfig{
				BaseURL:     config.Research.OpenAIAPIBase,
				APIKey:      config.Research.ClientAPIKey(),
				Model:       name,
				Temperature: temperature,
				MaxTokens:   config.LLM.MaxTokens,
				MaxRetries:  config.LLM.MaxRetries,
			}), nil
		}

	case model.ProviderGemini:
		if config.LLM.GeminiAPIKey == "" {
			return nil, errx.WrapConfig(fmt.Errorf("GEMINI_API_KEY is required for provider %q", model.ProviderGemini))
		}
		clientCfg := &genai.ClientConfig{
			APIKey:  config.LLM.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if config.LLM.GeminiBaseURL != "" {
			clientCfg.HTTPOptions.BaseURL = config.LLM.GeminiBaseURL
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			logx.Error().Err(err).Msg("Error creating Gemini client")
			return nil, fmt.Errorf("error creating Gemini client: %w", err)
		}
		maxTokens := config.LLM.MaxTokens
		build = func(step configuration.Step, name string, temperature float32) (einomodel.BaseChatModel, error) {
			t := temperature
			cm, err := gemini.NewChatModel(ctx, &gemini.Config{
				Client:      client,
				Model:       name,
				Temperature: &t,
				MaxTokens:   &maxTokens,
			})
			if err != nil {
				logx.Error().Err(err).Str("step", string(step)).Msg("Error creating Gemini chat model")
				return nil, fmt.Errorf("error creating %s model: %w", step, err)
			}
			return cm, nil
		}

	default:
		return nil, errx.WrapConfig(fmt.Errorf("unknown LLM provider %q", config.LLM.Provider))
	}

	temperatures := map[configuration.Step]float32{
		configuration.StepQuery:      config.LLM.QueryTemperature,
		configuration.StepSearch:     config.LLM.SearchTemperature,
		configuration.StepReflection: config.LLM.ReflectionTemperature,
		configuration.StepAnswer:     config.LLM.AnswerTemperature,
	}

	models := make(map[configuration.Step]StepModel, len(configuration.Steps))
	for _, step := range configuration.Steps {
		name := config.Research.ModelFor(step)
		cm, err := build(step, name, temperatures[step])
		if err != nil {
			return nil, err
		}
		models[step] = StepModel{Step: step, Name: name, Model: cm}
	}

	logx.Debug().
		Str("provider", config.LLM.Provider).
		Str("query_model", models[configuration.StepQuery].Name).
		Str("answer_model", models[configuration.StepAnswer].Name).
		Msg("Chat models created")

	return &ChatModels{
		Query:      models[configuration.StepQuery],
		Search:     models[configuration.StepSearch],
		Reflection: models[configuration.StepReflection],
		Answer:     models[configuration.StepAnswer],
	}, nil
}
