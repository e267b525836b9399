package nodes_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/configuration"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "local-model",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hello there"}}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`

var _ = Describe("OpenAIChatModel", func() {
	var (
		server   *httptest.Server
		received map[string]any
		auth     string
	)

	BeforeEach(func() {
		received = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(HaveSuffix("/chat/completions"))
			auth = r.Header.Get("Authorization")
			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &received)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, completionBody)
		}))
		DeferCleanup(server.Close)
	})

	It("sends the conversation and reports token usage", func() {
		cm := nodes.NewOpenAIChatModel(nodes.OpenAIChatModelConfig{
			BaseURL:     server.URL,
			APIKey:      "not_needed",
			Model:       "local-model",
			Temperature: 0.7,
			MaxTokens:   256,
		})

		out, err := cm.Generate(context.Background(), []*schema.Message{
			schema.SystemMessage("be brief"),
			schema.UserMessage("hi"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Role).To(Equal(schema.Assistant))
		Expect(out.Content).To(Equal("hello there"))
		Expect(out.ResponseMeta.FinishReason).To(Equal("stop"))
		Expect(out.ResponseMeta.Usage).To(Equal(&schema.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}))

		Expect(auth).To(Equal("Bearer not_needed"))
		Expect(received["model"]).To(Equal("local-model"))
		Expect(received["temperature"]).To(BeNumerically("~", 0.7, 1e-6))
		Expect(received["max_tokens"]).To(BeNumerically("==", 256))
		Expect(received["messages"]).To(HaveLen(2))
	})

	It("streams the answer as one chunk", func() {
		cm := nodes.NewOpenAIChatModel(nodes.OpenAIChatModelConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})

		sr, err := cm.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
		Expect(err).NotTo(HaveOccurred())
		defer sr.Close()
		chunk, err := sr.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(chunk.Content).To(Equal("hello there"))
		_, err = sr.Recv()
		Expect(err).To(MatchError(io.EOF))
	})

	It("returns server errors", func() {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error": {"message": "model not loaded"}}`, http.StatusInternalServerError)
		}))
		defer failing.Close()

		cm := nodes.NewOpenAIChatModel(nodes.OpenAIChatModelConfig{BaseURL: failing.URL, APIKey: "k", Model: "m"})
		_, err := cm.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewChatModels", func() {
	research := func() *configuration.Configuration {
		cfg := configuration.Default()
		cfg.QueryGeneratorModel = "qwen-small"
		cfg.AnswerModel = "qwen-large"
		return cfg
	}

	It("binds each step to its configured OpenAI-compatible model", func() {
		models, err := nodes.NewChatModels(context.Background(), nodes.ChatModelConfig{
			Research: research(),
			LLM:      model.LLMConfig{Provider: model.ProviderOpenAI},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(models.Query.Step).To(Equal(configuration.StepQuery))
		Expect(models.Query.Name).To(Equal("qwen-small"))
		Expect(models.Search.Name).To(Equal("local-model"))
		Expect(models.Reflection.Step).To(Equal(configuration.StepReflection))
		Expect(models.Answer.Name).To(Equal("qwen-large"))
		Expect(models.Answer.Model).To(BeAssignableToTypeOf(&nodes.OpenAIChatModel{}))
	})

	It("rejects an unknown provider", func() {
		_, err := nodes.NewChatModels(context.Background(), nodes.ChatModelConfig{
			Research: research(),
			LLM:      model.LLMConfig{Provider: "anthropic"},
		})
		Expect(err).To(MatchError(ContainSubstring(`unknown LLM provider "anthropic"`)))
		Expect(errx.StatusOf(err)).To(Equal(http.StatusBadRequest))
	})

	It("requires a Gemini API key for the gemini provider", func() {
		_, err := nodes.NewChatModels(context.Background(), nodes.ChatModelConfig{
			Research: research(),
			LLM:      model.LLMConfig{Provider: model.ProviderGemini},
		})
		Expect(err).To(MatchError(ContainSubstring("GEMINI_API_KEY")))
	})

	It("requires a research configuration", func() {
		_, err := nodes.NewChatModels(context.Background(), nodes.ChatModelConfig{})
		Expect(err).To(HaveOccurred())
		Expect(strings.Contains(err.Error(), "nil")).To(BeTrue())
	})
})
