package nodes_test

import (
	"time"

	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
)

var _ = Describe("GetResearchTopic", func() {
	It("uses a single message verbatim", func() {
		Expect(nodes.GetResearchTopic([]*schema.Message{schema.UserMessage("What is eino?")})).
			To(Equal("What is eino?"))
	})

	It("renders longer histories as a transcript", func() {
		topic := nodes.GetResearchTopic([]*schema.Message{
			schema.SystemMessage("ignored"),
			schema.UserMessage("What is eino?"),
			schema.AssistantMessage("A Go framework.", nil),
			schema.ToolMessage("ignored too", "call_1"),
			schema.UserMessage("Who maintains it?"),
		})
		Expect(topic).To(Equal("User: What is eino?\nAssistant: A Go framework.\nUser: Who maintains it?\n"))
	})

	It("returns an empty topic for no messages", func() {
		Expect(nodes.GetResearchTopic(nil)).To(BeEmpty())
	})
})

var _ = Describe("GetCurrentDate", func() {
	It("formats the date as Month D, YYYY", func() {
		_, err := time.Parse("January 2, 2006", nodes.GetCurrentDate())
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("ExtractSourceReferences", func() {
	It("labels unique URLs by host in order of appearance", func() {
		raw := rawResults("https://go.dev/doc", "http://example.com/a?b=1", "https://go.dev/doc") +
			"\nSee also https://pkg.go.dev/net/http."
		refs := nodes.ExtractSourceReferences(7, raw)
		Expect(refs).To(Equal([]model.SourceReference{
			{Label: "go.dev", ShortURL: "source-7-0", Value: "https://go.dev/doc"},
			{Label: "example.com", ShortURL: "source-7-1", Value: "http://example.com/a?b=1"},
			{Label: "pkg.go.dev", ShortURL: "source-7-2", Value: "https://pkg.go.dev/net/http"},
		}))
	})

	It("keeps at most five references", func() {
		raw := rawResults("https://a.io", "https://b.io", "https://c.io", "https://d.io", "https://e.io", "https://f.io")
		refs := nodes.ExtractSourceReferences(0, raw)
		Expect(refs).To(HaveLen(nodes.MaxSourcesPerTask))
		Expect(refs[4].ShortURL).To(Equal("source-0-4"))
	})

	It("counts a repeated URL once toward the cap", func() {
		raw := rawResults("https://a.io", "https://a.io", "https://b.io", "https://c.io", "https://d.io", "https://e.io", "https://f.io")
		refs := nodes.ExtractSourceReferences(2, raw)
		Expect(refs).To(HaveLen(nodes.MaxSourcesPerTask))

		values := make([]string, len(refs))
		for i, ref := range refs {
			values[i] = ref.Value
		}
		Expect(values).To(Equal([]string{"https://a.io", "https://b.io", "https://c.io", "https://d.io", "https://e.io"}))
		Expect(refs[4].ShortURL).To(Equal("source-2-4"))
	})

	It("finds nothing in the search failure placeholder", func() {
		Expect(nodes.ExtractSourceReferences(1, nodes.SearchFailedText)).To(BeEmpty())
	})
})
