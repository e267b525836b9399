package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/configuration"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/observers"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/tools"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
	"github.com/Chative-core-poc-v1/researcher/internal/metrics"
	"github.com/Chative-core-poc-v1/researcher/internal/search"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// Runner executes one research run on the compiled graph.
type Runner interface {
	Run(ctx context.Context, req model.ResearchRequest) (*model.ResearchResult, error)
}

// Config holds everything needed to compose the research graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the chat
// models, the web search tool and the thread manager.
type Config struct {
	Research *configuration.Configuration
	LLM      model.LLMConfig
	Search   model.SearchConfig
	Fanout   model.ResearchConfig
	Thread   model.ThreadConfig
	// ThreadRepo is optional; without it runs are not persisted.
	ThreadRepo model.ThreadRepository
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Research      *configuration.Configuration
	ChatModels    *nodes.ChatModels
	Searcher      nodes.Searcher
	ThreadManager *conversations.ThreadManager
	Concurrency   int
}

// GraphBuilder handles the construction of the research graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.ResearchRequest, *model.ResearchResult]
}

type graphRunner struct {
	runnable compose.Runnable[model.ResearchRequest, *model.ResearchResult]
	research *configuration.Configuration
}

func (r *graphRunner) Run(ctx context.Context, req model.ResearchRequest) (*model.ResearchResult, error) {
	if err := validateRequest(req); err != nil {
		metrics.RunsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	maxLoops := r.research.EffectiveMaxLoops(req.MaxResearchLoops)

	logx.Info().
		Str("run_id", req.RunID).
		Str("thread_id", req.ThreadID).
		Int("max_research_loops", maxLoops).
		Int("initial_search_query_count", r.research.EffectiveInitialQueries(req.InitialSearchQueryCount)).
		Msg("Research run started")

	start := time.Now()
	out, err := r.runnable.Invoke(ctx, req,
		compose.WithCallbacks(observers.NewAllCallbacks()),
		compose.WithRuntimeMaxSteps(maxRunSteps(maxLoops)),
	)
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues(metrics.StatusError).Inc()
		logx.Error().Str("run_id", req.RunID).Err(err).Msg("Research run failed")
		return nil, err
	}
	if out == nil {
		metrics.RunsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, fmt.Errorf("research run %s produced no result", req.RunID)
	}

	metrics.RunsTotal.WithLabelValues(metrics.StatusOK).Inc()
	logx.Info().
		Str("run_id", out.RunID).
		Int("research_loop_count", out.ResearchLoopCount).
		Int("sources", len(out.SourcesGathered)).
		Float64("total_cost_usd", out.TotalCostUSD).
		Dur("elapsed", time.Since(start)).
		Msg("Research run finished")
	return out, nil
}

func validateRequest(req model.ResearchRequest) error {
	if len(req.Messages) == 0 {
		return errx.New(fmt.Errorf("research request has no messages"), http.StatusBadRequest, errx.BadRequestMessage)
	}
	if n := req.InitialSearchQueryCount; n != nil && *n < 1 {
		return errx.New(fmt.Errorf("initial search query count must be positive, got %d", *n), http.StatusBadRequest, errx.BadRequestMessage)
	}
	if n := req.MaxResearchLoops; n != nil && *n < 0 {
		return errx.New(fmt.Errorf("max research loops must not be negative, got %d", *n), http.StatusBadRequest, errx.BadRequestMessage)
	}
	return nil
}

// maxRunSteps bounds the graph superstep count for a run: three nodes per
// round plus query generation, finalization and slack. The loop controller
// always terminates first; the bound only catches a broken branch.
func maxRunSteps(maxLoops int) int {
	if maxLoops < 1 {
		maxLoops = 1
	}
	return 3*maxLoops + 10
}

// BuildResearchGraph composes chat models, the web search tool and the thread
// manager, builds the graph, and returns a Runner.
func BuildResearchGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Research == nil {
		return nil, fmt.Errorf("research configuration is nil")
	}

	// Create chat models
	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		Research: cfg.Research,
		LLM:      cfg.LLM,
	})
	if err != nil {
		return nil, err
	}

	provider, err := search.New(cfg.Search)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(ctx, &GraphConfig{
		Research:      cfg.Research,
		ChatModels:    cms,
		Searcher:      tools.NewWebSearch(provider),
		ThreadManager: conversations.NewThreadManager(cfg.ThreadRepo, cfg.Thread),
		Concurrency:   cfg.Fanout.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().
		Str("search_provider", cfg.Search.Provider).
		Bool("threads", cfg.ThreadRepo != nil).
		Msg("Research graph built successfully")
	return runner, nil
}

// NewRunner compiles the graph from prepared components.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable, research: config.Research}, nil
}

// BuildGraph constructs and returns the compiled research graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.ResearchRequest, *model.ResearchResult], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Research == nil {
		return nil, fmt.Errorf("research configuration is nil")
	}
	if config.ChatModels == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Searcher == nil {
		return nil, fmt.Errorf("web searcher is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.ResearchRequest, *model.ResearchResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.ResearchState {
				return &model.ResearchState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cms := b.config.ChatModels
	research := b.config.Research
	researcher := nodes.NewResearcher(b.config.Searcher, cms.Search, b.config.Concurrency)

	adds := []struct {
		key  string
		node *compose.Lambda
		opts []compose.GraphAddNodeOpt
	}{
		{
			key:  nodes.NodeGenerateQuery,
			node: nodes.NewGenerateQueryNode(cms.Query, b.config.ThreadManager),
			opts: []compose.GraphAddNodeOpt{
				compose.WithStatePreHandler(nodes.NewGenerateQueryPreHandler(research.NumberOfInitialQueries)),
			},
		},
		{key: nodes.NodeWebResearch, node: nodes.NewWebResearchNode(researcher)},
		{key: nodes.NodeReflection, node: nodes.NewReflectionNode(cms.Reflection)},
		{key: nodes.NodeEvaluateResearch, node: nodes.NewEvaluateResearchNode(research.MaxResearchLoops)},
		{
			key:  nodes.NodeFinalizeAnswer,
			node: nodes.NewFinalizeAnswerNode(cms.Answer),
			opts: []compose.GraphAddNodeOpt{
				compose.WithStatePostHandler(nodes.NewFinalizeAnswerPostHandler(b.config.ThreadManager)),
			},
		},
	}

	for _, add := range adds {
		opts := append([]compose.GraphAddNodeOpt{compose.WithNodeName(add.key)}, add.opts...)
		if err := b.graph.AddLambdaNode(add.key, add.node, opts...); err != nil {
			logx.Error().Err(err).Str("node", add.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", add.key, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeGenerateQuery},
		{nodes.NodeGenerateQuery, nodes.NodeWebResearch},
		{nodes.NodeWebResearch, nodes.NodeReflection},
		{nodes.NodeReflection, nodes.NodeEvaluateResearch},
		{nodes.NodeFinalizeAnswer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	loopBranch := compose.NewGraphBranch(
		nodes.NewEvaluateResearchCondition(),
		map[string]bool{
			nodes.NodeWebResearch:    true,
			nodes.NodeFinalizeAnswer: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeEvaluateResearch, loopBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding research loop branch")
		return fmt.Errorf("error adding research loop branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.ResearchRequest, *model.ResearchResult], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("research"),
		compose.WithMaxRunSteps(maxRunSteps(b.config.Research.MaxResearchLoops)),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
