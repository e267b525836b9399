package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/parsers"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
	"github.com/Chative-core-poc-v1/researcher/internal/metrics"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// Invoke sends prompt as a single user message and returns the text answer
// together with its USD cost.
func (m StepModel) Invoke(ctx context.Context, prompt string) (string, float64, error) {
	msg, cost, err := m.generate(ctx, prompt)
	if err != nil {
		return "", 0, err
	}
	return parsers.StripThinking(msg.Content), cost, nil
}

// InvokeStructured sends prompt and decodes the JSON object of the answer into T.
func InvokeStructured[T any](ctx context.Context, m StepModel, prompt string) (*T, float64, error) {
	msg, cost, err := m.generate(ctx, prompt)
	if err != nil {
		return nil, 0, err
	}
	out, err := parsers.ParseStructured[T](msg.Content)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(string(m.Step), metrics.StatusFailed).Inc()
		return nil, cost, fmt.Errorf("%s model %q: %w", m.Step, m.Name, err)
	}
	return out, cost, nil
}

func (m StepModel) generate(ctx context.Context, prompt string) (*schema.Message, float64, error) {
	if m.Model == nil {
		return nil, 0, fmt.Errorf("%s model is not configured", m.Step)
	}

	msg, err := m.Model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err == nil && msg == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(string(m.Step), metrics.StatusError).Inc()
		return nil, 0, errx.WrapModel(fmt.Errorf("%s model %q: %w", m.Step, m.Name, err))
	}
	metrics.LLMCallsTotal.WithLabelValues(string(m.Step), metrics.StatusOK).Inc()

	cost := model.MessageCost(msg, m.Name)
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		usage := msg.ResponseMeta.Usage
		metrics.LLMCostUSD.WithLabelValues(m.Name).Add(cost)
		logx.Debug().
			Str("step", string(m.Step)).
			Str("model", m.Name).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("total_cost_usd", cost).
			Msg("LLM usage")
	}
	return msg, cost, nil
}
