package main

import (
	"io/fs"
	"os"

	"github.com/j19015/blog-stack/internal/logging"
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"go.uber.org/zap"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		return run(ctx, os.DirFS("."))
	})
}

// run resolves the configured topology and creates the stack. Bootstrap
// scripts are read from payloads.
func run(ctx *pulumi.Context, payloads fs.FS) error {
	logConfig := logging.DefaultConfig()
	if level := os.Getenv("BLOG_STACK_LOG_LEVEL"); level != "" {
		logConfig.Level = level
	}
	logger, err := logging.NewLogger(logConfig)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String(logging.FieldStack, ctx.Stack()))

	cfg, err := loadStackConfig(ctx)
	if err != nil {
		return err
	}

	graph, err := topology.Resolve(cfg.Topology,
		topology.WithLogger(logger),
		topology.WithPayloadFS(payloads))
	if err != nil {
		return err
	}
	if err := ctx.Log.Info("resolved "+graph.Network.ID+" topology", nil); err != nil {
		return err
	}

	_, err = createStack(ctx, graph, cfg, logger)
	return err
}
