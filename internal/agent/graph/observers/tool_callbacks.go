package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
	"github.com/rs/zerolog"
)

func newToolHandler(log zerolog.Logger) *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			e := event(log, zerolog.DebugLevel, info)
			if input != nil {
				e = e.Str("arguments", input.ArgumentsInJSON)
			}
			e.Msg("Tool started")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			e := event(log, zerolog.TraceLevel, info)
			if output != nil {
				e = e.Str("response", clip(output.Response))
			}
			e.Msg("Tool finished")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			event(log, zerolog.WarnLevel, info).Err(err).Msg("Tool execution failed")
			return ctx
		},
	}
}
