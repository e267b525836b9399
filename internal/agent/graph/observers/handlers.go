// Package observers logs the lifecycle of prompts, chat models, tools and
// graph nodes through Eino callbacks.
package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
	"github.com/rs/zerolog"

	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// maxLoggedContent bounds prompt and completion text written to the log.
const maxLoggedContent = 500

// NewAllCallbacks aggregates all observer handlers into one callbacks.Handler.
// Attach it via compose.WithCallbacks(...) when invoking the graph.
func NewAllCallbacks() einocb.Handler {
	log := logx.With("observer")
	return callbackHelper.NewHandlerHelper().
		Prompt(newPromptHandler(log)).
		ChatModel(newModelHandler(log)).
		Tool(newToolHandler(log)).
		Lambda(newNodeHandler(log)).
		Graph(newGraphHandler(log)).
		Handler()
}

func clip(s string) string {
	if len(s) <= maxLoggedContent {
		return s
	}
	return s[:maxLoggedContent] + "...(truncated)"
}

func event(log zerolog.Logger, level zerolog.Level, info *einocb.RunInfo) *zerolog.Event {
	e := log.WithLevel(level)
	if info != nil {
		e = e.Str("name", info.Name).Str("type", info.Type).Str("component", string(info.Component))
	}
	return e
}
