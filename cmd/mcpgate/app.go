package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mangohow/mcpgate/chat"
	"github.com/mangohow/mcpgate/config"
	"github.com/mangohow/mcpgate/gmcp"
	"github.com/mangohow/mcpgate/llog"
	"github.com/mangohow/mcpgate/resource"
	"github.com/mangohow/mcpgate/tools/workerpool"
	"github.com/mangohow/mcpgate/upstream"
)

// app 两种运行模式共用的组件
type app struct {
	cfg        *config.Config
	logger     *zap.SugaredLogger
	docker     *resource.DockerController
	dispatcher *gmcp.Dispatcher
	server     *gmcp.MCPServer
	syncLog    func()
}

// newApp stdio 为 true 时日志不能写 stdout, stdout 留给协议数据
func newApp(cmd *cobra.Command, stdio bool) (*app, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logOpts := []llog.LoggerOption{
		llog.WithLevel(cfg.Log.Level),
		llog.WithEncoding(cfg.Log.Encoding),
		llog.WithFilename(cfg.Log.Filename),
		llog.WithServiceName("mcpgate"),
	}
	if stdio {
		logOpts = append(logOpts, llog.WithOutput(os.Stderr))
	}
	logger, syncLog, err := llog.InitLogger(logOpts...)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, syncLog: syncLog}

	clientOpts := []upstream.Option{
		upstream.WithAPIKey(cfg.Upstream.APIKey),
		upstream.WithTimeout(cfg.Upstream.Timeout),
	}
	serverOpts := []gmcp.Option{
		gmcp.WithQueueSize(cfg.Server.QueueSize),
		gmcp.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
	}

	if id := cfg.Resource.ID; id != "" {
		a.docker, err = resource.NewDockerController()
		if err != nil {
			syncLog()
			return nil, err
		}

		manager := resource.NewManager(a.docker,
			resource.WithStartTimeout(cfg.Resource.StartTimeout),
			resource.WithPollInterval(cfg.Resource.PollInterval),
		)
		clientOpts = append(clientOpts, upstream.WithResource(manager, id))
		serverOpts = append(serverOpts, gmcp.WithPreflight(func(ctx context.Context) error {
			return manager.EnsureReady(ctx, id)
		}))
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, clientOpts...)

	registry := gmcp.NewRegistry()
	registry.MustRegister(chat.NewTool(client, chat.WithModels(cfg.Upstream.Models, cfg.Upstream.DefaultModel)))
	registry.Seal()

	pool := workerpool.NewWorkerPool(1, cfg.Server.MaxConcurrentCalls, cfg.Server.MaxConcurrentCalls,
		workerpool.WithRejectPolicy(workerpool.AbortPolicy()),
		workerpool.WithPanicHandler(func(r any, stack []byte) {
			logger.Errorw("worker panic", "panic", r, "stack", string(stack))
		}),
	)
	if err := pool.Start(); err != nil {
		a.close()
		return nil, err
	}

	a.dispatcher = gmcp.NewDispatcher(registry, gmcp.WithWorkerPool(pool))
	a.server = gmcp.NewMCPServer(serverOpts...)

	logger.Infow("gateway initialized",
		"upstream", cfg.Upstream.BaseURL,
		"resource", cfg.Resource.ID,
		"tools", registry.Len(),
	)

	return a, nil
}

// close 在会话全部结束之后调用
func (a *app) close() error {
	var err error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.docker != nil {
		err = multierr.Append(err, a.docker.Close())
	}
	a.syncLog()

	return err
}
