package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/researcher/internal/search"
)

// ===================================
// Web Search Tool
// ===================================

const WebSearchToolName = "web_search"

type WebSearchInput struct {
	Query string `json:"query"`
}

// WebSearch exposes a search.Provider as an eino tool whose response is the
// raw result text handed to the summarization model.
type WebSearch struct {
	provider search.Provider
}

var _ tool.InvokableTool = (*WebSearch)(nil)

func NewWebSearch(provider search.Provider) *WebSearch {
	return &WebSearch{provider: provider}
}

func (w *WebSearch) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: WebSearchToolName,
		Desc: "Search the web and return the top results as plain text blocks of title, URL and snippet.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The search query.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun runs the search and fires tool callbacks itself.
func (w *WebSearch) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (out string, err error) {
	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
		Name:      WebSearchToolName,
		Type:      "WebSearch",
		Component: components.ComponentOfTool,
	})
	ctx = einocb.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: argumentsInJSON})
	defer func() {
		if err != nil {
			einocb.OnError(ctx, err)
			return
		}
		einocb.OnEnd(ctx, &tool.CallbackOutput{Response: out})
	}()

	var in WebSearchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "", fmt.Errorf("web_search: decode arguments: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("web_search: query is required")
	}

	results, err := w.provider.Search(ctx, in.Query)
	if err != nil {
		return "", err
	}
	return search.Render(results), nil
}

// IsCallbacksEnabled tells eino that this tool triggers its own callbacks.
func (w *WebSearch) IsCallbacksEnabled() bool {
	return true
}

// Search is a convenience wrapper that marshals query and invokes the tool.
func (w *WebSearch) Search(ctx context.Context, query string) (string, error) {
	args, err := json.Marshal(WebSearchInput{Query: query})
	if err != nil {
		return "", err
	}
	return w.InvokableRun(ctx, string(args))
}
