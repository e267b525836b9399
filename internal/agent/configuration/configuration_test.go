package configuration_test

import (
	"encoding/json"
	"net/http"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/configuration"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
)

var _ = Describe("Resolve", func() {
	BeforeEach(func() {
		isolateEnv()
	})

	It("falls back to defaults when nothing is supplied", func() {
		cfg, err := configuration.Resolve(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.OpenAIAPIBase).To(Equal("http://localhost:1234/v1"))
		Expect(cfg.NumberOfInitialQueries).To(Equal(3))
		Expect(cfg.MaxResearchLoops).To(Equal(2))
		Expect(cfg.ModelFor(configuration.StepAnswer)).To(Equal("local-model"))
	})

	It("uses caller overrides when the environment is unset", func() {
		cfg, err := configuration.Resolve(map[string]any{
			"query_generator_model":     "qwen2.5-7b",
			"number_of_initial_queries": float64(5),
			"max_research_loops":        "4",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ModelFor(configuration.StepQuery)).To(Equal("qwen2.5-7b"))
		Expect(cfg.NumberOfInitialQueries).To(Equal(5))
		Expect(cfg.MaxResearchLoops).To(Equal(4))
	})

	It("lets the environment win over caller overrides", func() {
		Expect(os.Setenv("REFLECTION_MODEL", "env-model")).To(Succeed())
		Expect(os.Setenv("MAX_RESEARCH_LOOPS", "7")).To(Succeed())

		cfg, err := configuration.Resolve(map[string]any{
			"reflection_model":   "override-model",
			"max_research_loops": 1,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ModelFor(configuration.StepReflection)).To(Equal("env-model"))
		Expect(cfg.MaxResearchLoops).To(Equal(7))
	})

	It("ignores nil overrides and unknown keys", func() {
		cfg, err := configuration.Resolve(map[string]any{
			"answer_model": nil,
			"temperature":  0.3,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.AnswerModel).To(Equal("local-model"))
	})

	It("accepts json.Number overrides", func() {
		cfg, err := configuration.Resolve(map[string]any{
			"number_of_initial_queries": json.Number("2"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.NumberOfInitialQueries).To(Equal(2))
	})

	Describe("API key", func() {
		It("treats the default placeholder as absent", func() {
			cfg, err := configuration.Resolve(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.OpenAIAPIKey).To(BeEmpty())
			Expect(cfg.HasAPIKey()).To(BeFalse())
			Expect(cfg.ClientAPIKey()).To(Equal(configuration.APIKeyPlaceholder))
		})

		It("treats a placeholder from the environment as absent", func() {
			Expect(os.Setenv("OPENAI_API_KEY", "not_needed")).To(Succeed())
			cfg, err := configuration.Resolve(map[string]any{"openai_api_key": "sk-override"})
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.HasAPIKey()).To(BeFalse())
		})

		It("passes a real key through", func() {
			cfg, err := configuration.Resolve(map[string]any{"openai_api_key": "sk-123"})
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.OpenAIAPIKey).To(Equal("sk-123"))
			Expect(cfg.ClientAPIKey()).To(Equal("sk-123"))
		})
	})

	Describe("coercion failures", func() {
		It("rejects a non-integer count from the environment", func() {
			Expect(os.Setenv("NUMBER_OF_INITIAL_QUERIES", "three")).To(Succeed())
			_, err := configuration.Resolve(nil)
			Expect(err).To(HaveOccurred())
			Expect(errx.StatusOf(err)).To(Equal(http.StatusBadRequest))
			Expect(errx.MessageOf(err)).To(Equal(errx.ConfigErrorMessage))
		})

		It("rejects a fractional override", func() {
			_, err := configuration.Resolve(map[string]any{"max_research_loops": 1.5})
			Expect(err).To(MatchError(ContainSubstring("max_research_loops")))
		})

		It("rejects a non-string model override", func() {
			_, err := configuration.Resolve(map[string]any{"answer_model": 42})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("per-run overrides", func() {
		It("prefers the run override over the configured ceiling", func() {
			cfg := configuration.Default()
			five := 5
			Expect(cfg.EffectiveMaxLoops(&five)).To(Equal(5))
			Expect(cfg.EffectiveMaxLoops(nil)).To(Equal(2))
			Expect(cfg.EffectiveInitialQueries(nil)).To(Equal(3))
		})
	})
})
