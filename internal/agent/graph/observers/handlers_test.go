package observers_test

import (
	"bytes"
	"context"
	"errors"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/observers"
)

var _ = Describe("NewAllCallbacks", func() {
	var (
		buf     *bytes.Buffer
		handler einocb.Handler
	)

	BeforeEach(func() {
		prev := log.Logger
		DeferCleanup(func() { log.Logger = prev })

		buf = &bytes.Buffer{}
		log.Logger = zerolog.New(buf).Level(zerolog.TraceLevel)
		handler = observers.NewAllCallbacks()
	})

	start := func(component components.Component, name string) context.Context {
		return einocb.InitCallbacks(context.Background(), &einocb.RunInfo{Name: name, Type: name, Component: component}, handler)
	}

	It("logs tool arguments and responses", func() {
		ctx := start(components.ComponentOfTool, "web_search")
		ctx = einocb.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: `{"query":"golang"}`})
		einocb.OnEnd(ctx, &tool.CallbackOutput{Response: "Title: Go"})

		out := buf.String()
		Expect(out).To(ContainSubstring(`"message":"Tool started"`))
		Expect(out).To(ContainSubstring(`"name":"web_search"`))
		Expect(out).To(ContainSubstring(`"component":"observer"`))
		Expect(out).To(ContainSubstring("Title: Go"))
	})

	It("logs model completions and failures", func() {
		ctx := start(components.ComponentOfChatModel, "local-model")
		ctx = einocb.OnStart(ctx, &model.CallbackInput{Messages: []*schema.Message{schema.UserMessage("what is eino?")}})
		einocb.OnEnd(ctx, &model.CallbackOutput{
			Message:    schema.AssistantMessage("a framework", nil),
			TokenUsage: &model.TokenUsage{TotalTokens: 42},
		})
		einocb.OnError(ctx, errors.New("context deadline exceeded"))

		out := buf.String()
		Expect(out).To(ContainSubstring(`"user":"what is eino?"`))
		Expect(out).To(ContainSubstring(`"assistant":"a framework"`))
		Expect(out).To(ContainSubstring(`"total_tokens":42`))
		Expect(out).To(ContainSubstring(`"message":"Model call failed"`))
	})

	It("truncates long rendered prompts", func() {
		ctx := start(components.ComponentOfPrompt, "query writer")
		einocb.OnEnd(ctx, &prompt.CallbackOutput{Result: []*schema.Message{schema.UserMessage(strings.Repeat("x", 2000))}})

		out := buf.String()
		Expect(out).To(ContainSubstring("...(truncated)"))
		Expect(out).NotTo(ContainSubstring(strings.Repeat("x", 501)))
	})

	It("times lambda nodes", func() {
		ctx := start(compose.ComponentOfLambda, "reflection")
		ctx = einocb.OnStart(ctx, "in")
		einocb.OnEnd(ctx, "out")

		out := buf.String()
		Expect(out).To(ContainSubstring(`"message":"Node finished"`))
		Expect(out).To(ContainSubstring(`"elapsed"`))
	})
})
