package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/query_writer.txt
var queryWriterPrompt string

//go:embed template/web_searcher.txt
var webSearcherPrompt string

//go:embed template/reflection.txt
var reflectionPrompt string

//go:embed template/answer.txt
var answerPrompt string

// RenderQueryWriter renders the query generation prompt.
func RenderQueryWriter(ctx context.Context, currentDate, topic string, numberQueries int) (string, error) {
	return render(ctx, "query writer", queryWriterPrompt, map[string]any{
		"CurrentDate":   currentDate,
		"ResearchTopic": topic,
		"NumberQueries": numberQueries,
	})
}

// RenderWebSearcher renders the summarization prompt for one search query and
// its raw result text.
func RenderWebSearcher(ctx context.Context, currentDate, query, searchResults string) (string, error) {
	return render(ctx, "web searcher", webSearcherPrompt, map[string]any{
		"CurrentDate":   currentDate,
		"ResearchTopic": query,
		"SearchResults": searchResults,
	})
}

// RenderReflection renders the sufficiency review prompt. summaries must
// already be joined.
func RenderReflection(ctx context.Context, currentDate, topic, summaries string) (string, error) {
	return render(ctx, "reflection", reflectionPrompt, map[string]any{
		"CurrentDate":   currentDate,
		"ResearchTopic": topic,
		"Summaries":     summaries,
	})
}

// RenderAnswer renders the final answer prompt.
func RenderAnswer(ctx context.Context, currentDate, topic, summaries string) (string, error) {
	return render(ctx, "answer", answerPrompt, map[string]any{
		"CurrentDate":   currentDate,
		"ResearchTopic": topic,
		"Summaries":     summaries,
	})
}

// render formats tpl through the Eino prompt component (Go template) so that
// prompt callbacks fire.
func render(ctx context.Context, name, tpl string, vars map[string]any) (string, error) {
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}
