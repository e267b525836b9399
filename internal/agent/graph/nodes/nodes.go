package nodes

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// Graph node keys
const (
	NodeGenerateQuery    = "generate_query"
	NodeWebResearch      = "web_research"
	NodeReflection       = "reflection"
	NodeEvaluateResearch = "evaluate_research"
	NodeFinalizeAnswer   = "finalize_answer"
)

// Separators used when handing accumulated summaries to a model.
const (
	reflectionSummarySep = "\n\n---\n\n"
	answerSummarySep     = "\n---\n\n"
)

// ===================================
// Step logic
// ===================================

// GenerateQueries asks the query model for up to count search queries on topic.
// The returned list is not cleaned or length checked.
func GenerateQueries(ctx context.Context, m StepModel, topic string, count int) (*model.SearchQueryList, float64, error) {
	prompt, err := prompts.RenderQueryWriter(ctx, GetCurrentDate(), topic, count)
	if err != nil {
		return nil, 0, err
	}
	return InvokeStructured[model.SearchQueryList](ctx, m, prompt)
}

// PlanInitialTasks turns the first generated queries into tasks with ids 0..n-1.
func PlanInitialTasks(queries []string) model.ResearchPlan {
	tasks := make([]model.WebSearchTask, len(queries))
	for i, q := range queries {
		tasks[i] = model.WebSearchTask{ID: i, Query: q}
	}
	return model.ResearchPlan{Tasks: tasks}
}

// Reflect increments the loop count, asks the reflection model whether the
// summaries gathered so far suffice and records its verdict on state.
func Reflect(ctx context.Context, m StepModel, state *model.ResearchState) (model.Reflection, error) {
	state.ResearchLoopCount++

	prompt, err := prompts.RenderReflection(ctx,
		GetCurrentDate(),
		GetResearchTopic(state.Messages),
		strings.Join(state.WebResearchResults, reflectionSummarySep),
	)
	if err != nil {
		return model.Reflection{}, err
	}

	out, cost, err := InvokeStructured[model.Reflection](ctx, m, prompt)
	state.TotalCostUSD += cost
	if err != nil {
		return model.Reflection{}, err
	}
	state.ApplyReflection(*out)
	return *out, nil
}

// Decide routes to the finalizer when the research is sufficient, the loop
// budget is spent or no follow-up query remains; otherwise it plans one task
// per follow-up query, numbered after the queries already run.
func Decide(state *model.ResearchState, defaultMaxLoops int) model.ResearchPlan {
	maxLoops := defaultMaxLoops
	if state.MaxResearchLoops != nil {
		maxLoops = *state.MaxResearchLoops
	}
	if state.IsSufficient || state.ResearchLoopCount >= maxLoops {
		return model.ResearchPlan{Terminate: true}
	}

	limit := 0
	if state.InitialSearchQueryCount != nil {
		limit = *state.InitialSearchQueryCount
	}
	followUps, dropped := model.QueryList(state.FollowUpQueries).Clean(limit)
	if dropped > 0 {
		logx.Warn().
			Str("run_id", state.RunID).
			Int("dropped", dropped).
			Int("limit", limit).
			Msg("Follow-up queries truncated")
	}
	if len(followUps) == 0 {
		return model.ResearchPlan{Terminate: true}
	}

	tasks := make([]model.WebSearchTask, len(followUps))
	for i, q := range followUps {
		tasks[i] = model.WebSearchTask{ID: state.NumberOfRanQueries + i, Query: q}
	}
	return model.ResearchPlan{Tasks: tasks}
}

// Finalize writes the answer from every summary and appends it to the history.
func Finalize(ctx context.Context, m StepModel, state *model.ResearchState) (*schema.Message, error) {
	prompt, err := prompts.RenderAnswer(ctx,
		GetCurrentDate(),
		GetResearchTopic(state.Messages),
		strings.Join(state.WebResearchResults, answerSummarySep),
	)
	if err != nil {
		return nil, err
	}

	answer, cost, err := m.Invoke(ctx, prompt)
	state.TotalCostUSD += cost
	if err != nil {
		return nil, err
	}

	msg := schema.AssistantMessage(answer, nil)
	state.Messages = append(state.Messages, msg)
	return msg, nil
}

// ResultFromState snapshots the run outputs.
func ResultFromState(state *model.ResearchState) *model.ResearchResult {
	return &model.ResearchResult{
		RunID:              state.RunID,
		ThreadID:           state.ThreadID,
		Messages:           append([]*schema.Message(nil), state.Messages...),
		SourcesGathered:    append([]model.SourceReference(nil), state.SourcesGathered...),
		ResearchLoopCount:  state.ResearchLoopCount,
		WebResearchResults: append([]string(nil), state.WebResearchResults...),
		SearchQueries:      append([]string(nil), state.SearchQueries...),
		TotalCostUSD:       state.TotalCostUSD,
	}
}

// ===================================
// Graph nodes
// ===================================

// NewGenerateQueryPreHandler seeds the run state from the request.
func NewGenerateQueryPreHandler(defaultInitialQueries int) func(context.Context, model.ResearchRequest, *model.ResearchState) (model.ResearchRequest, error) {
	return func(ctx context.Context, in model.ResearchRequest, s *model.ResearchState) (model.ResearchRequest, error) {
		if len(in.Messages) == 0 {
			return in, errx.New(fmt.Errorf("research request has no messages"), http.StatusBadRequest, errx.BadRequestMessage)
		}
		s.RunID = in.RunID
		s.ThreadID = in.ThreadID
		s.Messages = append([]*schema.Message(nil), in.Messages...)
		s.MaxResearchLoops = in.MaxResearchLoops
		s.InitialSearchQueryCount = in.InitialSearchQueryCount
		if s.InitialSearchQueryCount == nil {
			n := defaultInitialQueries
			s.InitialSearchQueryCount = &n
		}
		return in, nil
	}
}

// NewGenerateQueryNode loads the thread history, generates the first search
// queries and plans the first research round.
func NewGenerateQueryNode(m StepModel, tm *conversations.ThreadManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ResearchRequest) (model.ResearchPlan, error) {
		messages, err := tm.PrepareThread(ctx, in.ThreadID, in.Messages)
		if err != nil {
			return model.ResearchPlan{}, fmt.Errorf("prepare thread: %w", err)
		}

		var (
			count int
			runID string
		)
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.ResearchState) error {
			s.Messages = messages
			count = *s.InitialSearchQueryCount
			runID = s.RunID
			return nil
		})
		if err != nil {
			return model.ResearchPlan{}, fmt.Errorf("failed to access state: %w", err)
		}

		result, cost, err := GenerateQueries(ctx, m, GetResearchTopic(messages), count)
		if err != nil {
			return model.ResearchPlan{}, err
		}
		queries, dropped := result.Query.Clean(count)
		if dropped > 0 {
			logx.Warn().Str("run_id", runID).Int("dropped", dropped).Int("limit", count).Msg("Generated queries truncated")
		}
		if len(queries) == 0 {
			return model.ResearchPlan{}, errx.WrapModel(fmt.Errorf("%s model %q returned no usable queries", m.Step, m.Name))
		}

		logx.Debug().
			Str("run_id", runID).
			Strs("queries", queries).
			Str("rationale", result.Rationale).
			Msg("Search queries generated")

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.ResearchState) error {
			s.QueryList = queries
			s.TotalCostUSD += cost
			return nil
		})
		if err != nil {
			return model.ResearchPlan{}, fmt.Errorf("failed to access state: %w", err)
		}
		return PlanInitialTasks(queries), nil
	})
}

// NewWebResearchNode fans the plan's tasks out and merges every result into
// the run state. It returns once the whole round has finished.
func NewWebResearchNode(r *Researcher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, plan model.ResearchPlan) (model.RoundResult, error) {
		merge := func(res *model.WebResearchResult) error {
			return compose.ProcessState(ctx, func(_ context.Context, s *model.ResearchState) error {
				s.ApplyWebResearch(res)
				return nil
			})
		}

		round, err := r.RunRound(ctx, plan.Tasks, merge)
		if err != nil {
			return model.RoundResult{}, err
		}
		logx.Debug().
			Int("tasks", round.Tasks).
			Int("search_failures", round.SearchFailures).
			Msg("Research round completed")
		return round, nil
	})
}

// NewReflectionNode reviews the summaries after each round.
func NewReflectionNode(m StepModel) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.RoundResult) (model.Reflection, error) {
		var out model.Reflection
		err := compose.ProcessState(ctx, func(ctx context.Context, s *model.ResearchState) error {
			r, err := Reflect(ctx, m, s)
			if err != nil {
				return err
			}
			out = r
			logx.Debug().
				Str("run_id", s.RunID).
				Int("research_loop_count", s.ResearchLoopCount).
				Bool("is_sufficient", r.IsSufficient).
				Str("knowledge_gap", r.KnowledgeGap).
				Msg("Reflection completed")
			return nil
		})
		return out, err
	})
}

// NewEvaluateResearchNode decides whether to run another round.
func NewEvaluateResearchNode(defaultMaxLoops int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.Reflection) (model.ResearchPlan, error) {
		var plan model.ResearchPlan
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.ResearchState) error {
			plan = Decide(s, defaultMaxLoops)
			return nil
		})
		return plan, err
	})
}

// NewEvaluateResearchCondition routes a plan to another round or to the finalizer.
func NewEvaluateResearchCondition() func(context.Context, model.ResearchPlan) (string, error) {
	return func(ctx context.Context, plan model.ResearchPlan) (string, error) {
		if plan.Terminate {
			logx.Debug().Msg("Routing to finalize_answer")
			return NodeFinalizeAnswer, nil
		}
		logx.Debug().Int("tasks", len(plan.Tasks)).Msg("Routing to web_research for a follow-up round")
		return NodeWebResearch, nil
	}
}

// NewFinalizeAnswerNode writes the answer and returns the run result.
func NewFinalizeAnswerNode(m StepModel) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.ResearchPlan) (*model.ResearchResult, error) {
		var out *model.ResearchResult
		err := compose.ProcessState(ctx, func(ctx context.Context, s *model.ResearchState) error {
			if _, err := Finalize(ctx, m, s); err != nil {
				return err
			}
			out = ResultFromState(s)
			return nil
		})
		return out, err
	})
}

// NewFinalizeAnswerPostHandler stores the answer on the thread. Storage
// failures are logged; the answer is still returned.
func NewFinalizeAnswerPostHandler(tm *conversations.ThreadManager) func(context.Context, *model.ResearchResult, *model.ResearchState) (*model.ResearchResult, error) {
	return func(ctx context.Context, out *model.ResearchResult, state *model.ResearchState) (*model.ResearchResult, error) {
		logx.Debug().
			Str("run_id", state.RunID).
			Int("research_loop_count", state.ResearchLoopCount).
			Int("sources", len(state.SourcesGathered)).
			Float64("total_cost_usd", state.TotalCostUSD).
			Msg("Answer ready")

		if out == nil || state.ThreadID == "" {
			return out, nil
		}
		if err := tm.SaveResponse(ctx, state.ThreadID, out.Answer()); err != nil {
			logx.Error().
				Str("thread_id", state.ThreadID).
				Err(err).
				Msg("Error saving answer to thread")
		}
		return out, nil
	}
}
