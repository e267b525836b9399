package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/rs/zerolog"
)

type startedAtKey struct{}

// newNodeHandler times each lambda node of the research graph.
func newNodeHandler(log zerolog.Logger) einocb.Handler {
	return timedHandler(log, zerolog.DebugLevel, "Node")
}

// newGraphHandler times the whole graph run.
func newGraphHandler(log zerolog.Logger) einocb.Handler {
	return timedHandler(log, zerolog.InfoLevel, "Graph")
}

func timedHandler(log zerolog.Logger, level zerolog.Level, kind string) einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			event(log, zerolog.TraceLevel, info).Msg(kind + " started")
			return context.WithValue(ctx, startedAtKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			e := event(log, level, info)
			if started, ok := ctx.Value(startedAtKey{}).(time.Time); ok {
				e = e.Dur("elapsed", time.Since(started))
			}
			e.Msg(kind + " finished")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			event(log, zerolog.ErrorLevel, info).Err(err).Msg(kind + " failed")
			return ctx
		}).
		Build()
}
