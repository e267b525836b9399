package graph_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/configuration"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/repo"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
)

const (
	sufficient   = `{"is_sufficient": true, "knowledge_gap": "", "follow_up_queries": []}`
	insufficient = `{"is_sufficient": false, "knowledge_gap": "numbers", "follow_up_queries": ["follow up %d"]}`
)

var _ = Describe("Research graph", func() {
	var (
		ctx      context.Context
		cm       *scriptedModel
		searcher *stubSearcher
		research *configuration.Configuration
		threads  *conversations.ThreadManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		research = configuration.Default()
		threads = nil
		searcher = &stubSearcher{}
		cm = &scriptedModel{
			query: func(string) (string, error) {
				return `{"rationale": "r", "query": ["alpha", "beta"]}`, nil
			},
			summarize: func(prompt string) (string, error) {
				topic := strings.SplitN(prompt, "\"", 3)[1]
				return "notes on " + topic + " https://example.com/" + strings.ReplaceAll(topic, " ", "-"), nil
			},
			reflection: func(int) (string, error) { return sufficient, nil },
			answer:     func(string) (string, error) { return "<think>plan</think>The answer.", nil },
		}
	})

	newRunner := func() graph.Runner {
		step := func(s configuration.Step) nodes.StepModel {
			return nodes.StepModel{Step: s, Name: "local-model", Model: cm}
		}
		runner, err := graph.NewRunner(ctx, &graph.GraphConfig{
			Research: research,
			ChatModels: &nodes.ChatModels{
				Query:      step(configuration.StepQuery),
				Search:     step(configuration.StepSearch),
				Reflection: step(configuration.StepReflection),
				Answer:     step(configuration.StepAnswer),
			},
			Searcher:      searcher,
			ThreadManager: threads,
			Concurrency:   2,
		})
		Expect(err).NotTo(HaveOccurred())
		return runner
	}

	ask := func(question string) model.ResearchRequest {
		return model.ResearchRequest{Messages: []*schema.Message{schema.UserMessage(question)}}
	}

	It("answers after one round when the first reflection is sufficient", func() {
		out, err := newRunner().Run(ctx, ask("What is eino?"))
		Expect(err).NotTo(HaveOccurred())

		Expect(out.RunID).NotTo(BeEmpty())
		Expect(out.ResearchLoopCount).To(Equal(1))
		Expect(out.SearchQueries).To(ConsistOf("alpha", "beta"))
		Expect(out.WebResearchResults).To(HaveLen(2))
		Expect(out.SourcesGathered).To(ConsistOf(
			model.SourceReference{Label: "example.com", ShortURL: "source-0-0", Value: "https://example.com/alpha"},
			model.SourceReference{Label: "example.com", ShortURL: "source-1-0", Value: "https://example.com/beta"},
		))
		Expect(out.Messages).To(HaveLen(2))
		Expect(out.Answer()).To(Equal("The answer."))
		Expect(out.TotalCostUSD).To(BeZero())

		Expect(cm.Prompts("reflection")).To(HaveLen(1))
		Expect(cm.Prompts("query")[0]).To(ContainSubstring("Do not write more than 3 queries."))
		Expect(cm.Prompts("answer")[0]).To(ContainSubstring("\n---\n\n"))
	})

	It("stops at the loop budget while reflection stays insufficient", func() {
		cm.reflection = func(call int) (string, error) { return fmt.Sprintf(insufficient, call), nil }

		out, err := newRunner().Run(ctx, ask("What is eino?"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.ResearchLoopCount).To(Equal(2))
		Expect(cm.Prompts("reflection")).To(HaveLen(2))
		Expect(searcher.Queries()).To(ConsistOf("alpha", "beta", "follow up 1"))
		Expect(out.SourcesGathered).To(ContainElement(
			model.SourceReference{Label: "example.com", ShortURL: "source-2-0", Value: "https://example.com/follow-up-1"},
		))
		Expect(cm.Prompts("answer")).To(HaveLen(1))
	})

	It("honours per-run overrides", func() {
		cm.reflection = func(call int) (string, error) { return fmt.Sprintf(insufficient, call), nil }
		one, three := 1, 3
		req := ask("What is eino?")
		req.InitialSearchQueryCount = &one
		req.MaxResearchLoops = &three

		out, err := newRunner().Run(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.ResearchLoopCount).To(Equal(3))
		Expect(searcher.Queries()).To(Equal([]string{"alpha", "follow up 1", "follow up 2"}))
		Expect(cm.Prompts("query")[0]).To(ContainSubstring("Do not write more than 1 queries."))
	})

	It("finishes with placeholders when every search fails", func() {
		searcher.fail = errors.New("search backend down")

		out, err := newRunner().Run(ctx, ask("What is eino?"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.SourcesGathered).To(BeEmpty())
		Expect(out.WebResearchResults).To(HaveLen(2))
		for _, p := range cm.Prompts("summarize") {
			Expect(p).To(ContainSubstring(nodes.SearchFailedText))
		}
		Expect(out.Answer()).To(Equal("The answer."))
	})

	It("aborts the run when a model call fails", func() {
		cm.answer = func(string) (string, error) { return "", errors.New("model crashed") }

		out, err := newRunner().Run(ctx, ask("What is eino?"))
		Expect(err).To(MatchError(ContainSubstring("model crashed")))
		Expect(errx.StatusOf(err)).To(Equal(http.StatusBadGateway))
		Expect(out).To(BeNil())
	})

	It("aborts the run when the query model returns no queries", func() {
		cm.query = func(string) (string, error) { return `{"rationale": "", "query": ["  "]}`, nil }

		_, err := newRunner().Run(ctx, ask("What is eino?"))
		Expect(err).To(MatchError(ContainSubstring("no usable queries")))
		Expect(searcher.Queries()).To(BeEmpty())
	})

	It("rejects requests without messages", func() {
		_, err := newRunner().Run(ctx, model.ResearchRequest{})
		Expect(errx.StatusOf(err)).To(Equal(http.StatusBadRequest))

		zero := 0
		_, err = newRunner().Run(ctx, model.ResearchRequest{
			Messages:                []*schema.Message{schema.UserMessage("q")},
			InitialSearchQueryCount: &zero,
		})
		Expect(errx.StatusOf(err)).To(Equal(http.StatusBadRequest))
	})

	Describe("with a thread", func() {
		var rdb *redis.Client

		BeforeEach(func() {
			mr := miniredis.RunT(GinkgoT())
			rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			DeferCleanup(rdb.Close)
			threads = conversations.NewThreadManager(repo.NewRedisThreadRepository(rdb, 0), model.ThreadConfig{MaxMessages: 20})
		})

		It("carries the previous exchange into the next run", func() {
			runner := newRunner()

			req := ask("What is eino?")
			req.ThreadID = "t-1"
			first, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.ThreadID).To(Equal("t-1"))

			req = ask("And how fast is it?")
			req.ThreadID = "t-1"
			second, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Messages).To(HaveLen(4))

			prompts := cm.Prompts("query")
			Expect(prompts[1]).To(ContainSubstring("User: What is eino?"))
			Expect(prompts[1]).To(ContainSubstring("Assistant: The answer."))
			Expect(prompts[1]).To(ContainSubstring("User: And how fast is it?"))

			history, err := threads.History(ctx, "t-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Messages).To(HaveLen(4))
			Expect(history.Messages[3].Role).To(Equal(schema.Assistant))
		})
	})
})
