package repo_test

import (
	"context"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/repo"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
)

var _ = Describe("RedisThreadRepository", func() {
	var (
		ctx context.Context
		mr  *miniredis.Miniredis
		rdb *redis.Client
		r   *repo.RedisThreadRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr = miniredis.RunT(GinkgoT())
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(rdb.Close)
		r = repo.NewRedisThreadRepository(rdb, time.Hour)
	})

	It("returns an empty history for an unknown thread", func() {
		h, err := r.LoadHistory(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(h.ThreadID).To(Equal("missing"))
		Expect(h.Messages).To(BeEmpty())

		n, err := r.GetMessageCount(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})

	It("appends messages in order and refreshes the TTL", func() {
		Expect(r.AddMessage(ctx, "t1", schema.UserMessage("what is eino?"))).To(Succeed())
		Expect(r.AddMessage(ctx, "t1", schema.AssistantMessage("a Go LLM framework", nil))).To(Succeed())

		h, err := r.LoadHistory(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Messages).To(HaveLen(2))
		Expect(h.Messages[0].Role).To(Equal(schema.User))
		Expect(h.Messages[1].Content).To(Equal("a Go LLM framework"))

		Expect(mr.TTL("research:thread:t1:messages")).To(Equal(time.Hour))

		n, err := r.GetMessageCount(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
	})

	It("clears a thread", func() {
		Expect(r.AddMessage(ctx, "t2", schema.UserMessage("hi"))).To(Succeed())
		Expect(r.ClearHistory(ctx, "t2")).To(Succeed())
		Expect(mr.Exists("research:thread:t2:messages")).To(BeFalse())
	})

	It("fails on corrupt entries", func() {
		_, err := mr.RPush("research:thread:t3:messages", "{not json")
		Expect(err).NotTo(HaveOccurred())
		_, err = r.LoadHistory(ctx, "t3")
		Expect(err).To(MatchError(ContainSubstring("unmarshal message at index 0")))
	})

	It("wraps connection failures as redis errors", func() {
		down, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		addr := down.Addr()
		down.Close()

		client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
		DeferCleanup(client.Close)
		err = repo.NewRedisThreadRepository(client, 0).AddMessage(ctx, "t4", schema.UserMessage("hi"))
		Expect(err).To(HaveOccurred())
		Expect(errx.StatusOf(err)).To(Equal(http.StatusBadGateway))
		Expect(errx.MessageOf(err)).To(Equal(errx.RedisErrorMessage))
	})
})
