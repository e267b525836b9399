package nodes

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
	"github.com/Chative-core-poc-v1/researcher/internal/metrics"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// SearchFailedText replaces the raw search text when the search tool fails.
const SearchFailedText = "Error performing web search."

// Searcher returns the raw text of a web search. *tools.WebSearch satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Researcher runs web research tasks: search, summarize, collect sources.
type Researcher struct {
	searcher    Searcher
	summarizer  StepModel
	concurrency int
}

// NewResearcher builds a Researcher. concurrency <= 0 runs every task of a
// round at once.
func NewResearcher(searcher Searcher, summarizer StepModel, concurrency int) *Researcher {
	return &Researcher{
		searcher:    searcher,
		summarizer:  summarizer,
		concurrency: concurrency,
	}
}

// Research executes one task. Search failures degrade to SearchFailedText;
// summarization failures are returned.
func (r *Researcher) Research(ctx context.Context, task model.WebSearchTask) (*model.WebResearchResult, error) {
	log := logx.With("web_research").With().Int("task_id", task.ID).Str("query", task.Query).Logger()

	searchFailed := false
	raw, err := r.searcher.Search(ctx, task.Query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(errx.WrapSearch(err)).Msg("web search failed, continuing with placeholder")
		metrics.SearchesTotal.WithLabelValues(metrics.StatusFailed).Inc()
		raw = SearchFailedText
		searchFailed = true
	} else {
		metrics.SearchesTotal.WithLabelValues(metrics.StatusOK).Inc()
	}

	prompt, err := prompts.RenderWebSearcher(ctx, GetCurrentDate(), task.Query, raw)
	if err != nil {
		return nil, err
	}
	summary, cost, err := r.summarizer.Invoke(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("web research task %d: %w", task.ID, err)
	}

	sources := ExtractSourceReferences(task.ID, raw)
	log.Debug().Int("sources", len(sources)).Int("summary_len", len(summary)).Msg("web research completed")

	return &model.WebResearchResult{
		Summaries:       []string{summary},
		SourcesGathered: sources,
		SearchQuery:     []string{task.Query},
		CostUSD:         cost,
		SearchFailed:    searchFailed,
	}, nil
}

// RunRound researches all tasks concurrently and calls merge once per
// finished task. It returns after every task has finished; the first error
// cancels the remaining tasks and is returned.
func (r *Researcher) RunRound(ctx context.Context, tasks []model.WebSearchTask, merge func(*model.WebResearchResult) error) (model.RoundResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	var failures atomic.Int32
	for _, task := range tasks {
		g.Go(func() error {
			res, err := r.Research(gctx, task)
			if err != nil {
				return err
			}
			if res.SearchFailed {
				failures.Add(1)
			}
			return merge(res)
		})
	}
	if err := g.Wait(); err != nil {
		return model.RoundResult{}, err
	}

	metrics.RoundsTotal.Inc()
	return model.RoundResult{Tasks: len(tasks), SearchFailures: int(failures.Load())}, nil
}
