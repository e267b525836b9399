package model

import (
	"github.com/cloudwego/eino/schema"
)

// ResearchState stores per-run state for the research graph.
// Concurrency model:
//   - Registered as graph local state via compose.WithGenLocalState.
//   - Reads/writes happen inside state handlers or compose.ProcessState, which
//     serialise access. Web research tasks of one round run concurrently and
//     merge through ApplyWebResearch under that same lock.
type ResearchState struct {
	RunID    string
	ThreadID string

	Messages           []*schema.Message // append-only conversation history
	QueryList          []string          // replaced on each generation round
	SearchQueries      []string          // append-only log of executed queries
	WebResearchResults []string          // append-only, one summary per task
	SourcesGathered    []SourceReference // append-only

	ResearchLoopCount  int
	IsSufficient       bool
	KnowledgeGap       string
	FollowUpQueries    []string
	NumberOfRanQueries int

	// Per-run overrides; nil means use the configured value.
	InitialSearchQueryCount *int
	MaxResearchLoops        *int

	// Accumulated total LLM cost (USD) across model invocations for this run
	TotalCostUSD float64
}

// ApplyWebResearch appends one task's outputs to the shared accumulators.
func (s *ResearchState) ApplyWebResearch(r *WebResearchResult) {
	if r == nil {
		return
	}
	s.SearchQueries = append(s.SearchQueries, r.SearchQuery...)
	s.WebResearchResults = append(s.WebResearchResults, r.Summaries...)
	s.SourcesGathered = append(s.SourcesGathered, r.SourcesGathered...)
	s.TotalCostUSD += r.CostUSD
}

// ApplyReflection overwrites the reflection fields of the state.
func (s *ResearchState) ApplyReflection(r Reflection) {
	s.IsSufficient = r.IsSufficient
	s.KnowledgeGap = r.KnowledgeGap
	s.FollowUpQueries = r.FollowUpQueries
	s.NumberOfRanQueries = len(s.SearchQueries)
}

// SourceReference is a URL-derived citation record.
type SourceReference struct {
	Label    string `json:"label"`
	ShortURL string `json:"short_url"`
	Value    string `json:"value"`
}

// WebSearchTask is one query dispatched to the web researcher.
// ID is unique within a run and labels the task's source references.
type WebSearchTask struct {
	ID    int    `json:"id"`
	Query string `json:"search_query"`
}

// ResearchPlan is produced by query generation and the loop controller.
// Terminate routes to the finalizer; otherwise Tasks are fanned out.
type ResearchPlan struct {
	Tasks     []WebSearchTask
	Terminate bool
}

// WebResearchResult is the output of a single web research task.
type WebResearchResult struct {
	Summaries       []string
	SourcesGathered []SourceReference
	SearchQuery     []string
	CostUSD         float64
	SearchFailed    bool
}

// RoundResult describes a completed fan-out/fan-in round.
type RoundResult struct {
	Tasks          int
	SearchFailures int
}

// SearchQueryList is the structured output of the query generator.
type SearchQueryList struct {
	Query     QueryList `json:"query"`
	Rationale string    `json:"rationale"`
}

// Reflection is the structured output of the reflector.
type Reflection struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// ResearchRequest is the input of a research run.
type ResearchRequest struct {
	RunID string
	// ThreadID, when set, persists the exchange and prepends prior history.
	ThreadID string
	Messages []*schema.Message
	// Optional per-run overrides.
	InitialSearchQueryCount *int
	MaxResearchLoops        *int
}

// ResearchResult is the output of a research run.
type ResearchResult struct {
	RunID              string            `json:"run_id"`
	ThreadID           string            `json:"thread_id,omitempty"`
	Messages           []*schema.Message `json:"messages"`
	SourcesGathered    []SourceReference `json:"sources_gathered"`
	ResearchLoopCount  int               `json:"research_loop_count"`
	WebResearchResults []string          `json:"web_research_results"`
	SearchQueries      []string          `json:"search_queries"`
	TotalCostUSD       float64           `json:"total_cost_usd"`
}

// Answer returns the content of the last assistant message, if any.
func (r *ResearchResult) Answer() string {
	if r == nil {
		return ""
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if m := r.Messages[i]; m != nil && m.Role == schema.Assistant {
			return m.Content
		}
	}
	return ""
}
