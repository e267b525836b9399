package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/configuration"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/repo"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// app bundles what both commands need to run research.
type app struct {
	config   model.AppConfig
	research *configuration.Configuration
	runner   graph.Runner
	threads  *conversations.ThreadManager
	rdb      *goredis.Client
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logx.Warn().Err(err).Msg("Error closing Redis client")
		}
	}
}

func newApp(ctx context.Context) (*app, error) {
	// Load .env file
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	// Load structured config from env
	var cfg model.AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Quiet: quietMode})

	research, err := configuration.Resolve(toOverrides(overrides))
	if err != nil {
		return nil, err
	}

	a := &app{config: cfg, research: research}

	var threadRepo model.ThreadRepository
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		a.rdb = rdb
		threadRepo = repo.NewRedisThreadRepository(rdb, cfg.Thread.TTL)
		logx.Debug().Msg("Connected to Redis successfully")
	}
	a.threads = conversations.NewThreadManager(threadRepo, cfg.Thread)

	runner, err := graph.BuildResearchGraph(ctx, graph.Config{
		Research:   research,
		LLM:        cfg.LLM,
		Search:     cfg.Search,
		Fanout:     cfg.Research,
		Thread:     cfg.Thread,
		ThreadRepo: threadRepo,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	a.runner = runner
	return a, nil
}

// toOverrides converts --set pairs into resolver overrides. Values stay
// strings; the resolver coerces numeric settings.
func toOverrides(pairs map[string]string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]any, len(pairs))
	for k, v := range pairs {
		out[k] = v
	}
	return out
}
