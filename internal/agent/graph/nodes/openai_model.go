package nodes

import (
	"context"
	"fmt"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIModelType = "OpenAICompatible"

// OpenAIChatModelConfig configures a chat model served over the OpenAI chat
// completions API (OpenAI itself, LM Studio, vLLM, Ollama...).
type OpenAIChatModelConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
}

// OpenAIChatModel implements einomodel.BaseChatModel on top of openai-go.
type OpenAIChatModel struct {
	client *openai.Client
	conf   OpenAIChatModelConfig
}

var _ einomodel.BaseChatModel = (*OpenAIChatModel)(nil)

func NewOpenAIChatModel(conf OpenAIChatModelConfig) *OpenAIChatModel {
	opts := []option.RequestOption{
		option.WithAPIKey(conf.APIKey),
		option.WithMaxRetries(conf.MaxRetries),
	}
	if conf.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(conf.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIChatModel{client: &client, conf: conf}
}

func (m *OpenAIChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (out *schema.Message, err error) {
	options := einomodel.GetCommonOptions(&einomodel.Options{
		Model:       &m.conf.Model,
		Temperature: &m.conf.Temperature,
		MaxTokens:   &m.conf.MaxTokens,
	}, opts...)
	conf := &einomodel.Config{
		Model:       derefOr(options.Model, m.conf.Model),
		Temperature: derefOr(options.Temperature, m.conf.Temperature),
		MaxTokens:   derefOr(options.MaxTokens, m.conf.MaxTokens),
	}

	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
		Name:      conf.Model,
		Type:      openAIModelType,
		Component: components.ComponentOfChatModel,
	})
	ctx = einocb.OnStart(ctx, &einomodel.CallbackInput{Messages: in, Config: conf})
	defer func() {
		if err != nil {
			einocb.OnError(ctx, err)
		}
	}()

	params := openai.ChatCompletionNewParams{
		Model:       conf.Model,
		Messages:    toOpenAIMessages(in),
		Temperature: openai.Float(float64(conf.Temperature)),
	}
	if conf.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(conf.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion %q returned no choices", resp.ID)
	}

	usage := &schema.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	out = &schema.Message{
		Role:    schema.Assistant,
		Content: resp.Choices[0].Message.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(resp.Choices[0].FinishReason),
			Usage:        usage,
		},
	}

	einocb.OnEnd(ctx, &einomodel.CallbackOutput{
		Message: out,
		Config:  conf,
		TokenUsage: &einomodel.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	})
	return out, nil
}

// Stream emits the complete generation as a single chunk.
func (m *OpenAIChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *OpenAIChatModel) GetType() string {
	return openAIModelType
}

func (m *OpenAIChatModel) IsCallbacksEnabled() bool {
	return true
}

func toOpenAIMessages(in []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(in))
	for _, msg := range in {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			msgs = append(msgs, openai.SystemMessage(msg.Content))
		case schema.User:
			msgs = append(msgs, openai.UserMessage(msg.Content))
		case schema.Assistant:
			msgs = append(msgs, openai.AssistantMessage(msg.Content))
		case schema.Tool:
			msgs = append(msgs, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return msgs
}

func derefOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
