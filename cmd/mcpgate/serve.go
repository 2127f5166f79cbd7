package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mangohow/mcpgate/api"
	"github.com/mangohow/mcpgate/gmcp"
	"github.com/mangohow/mcpgate/llog"
	"github.com/mangohow/mcpgate/transport/binding"
	httpx "github.com/mangohow/mcpgate/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve tool calls over websocket and the http api",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 资源缺失时直接退出, 不开始监听
	if err := a.server.Start(ctx); err != nil {
		return err
	}

	ws := gmcp.NewWSTransport(gmcp.WithReadLimit(a.cfg.Server.MaxMessageBytes))
	hs := httpx.New(
		httpx.WithAddr(a.cfg.Server.Addr),
		httpx.WithLogger(newHTTPLogger(a.cfg.Log.Level, a.cfg.Log.Encoding)),
		httpx.WithBodyBinding(binding.JsonBinding{MaxBytes: a.cfg.Server.MaxMessageBytes}),
	)
	hs.Middleware(
		llog.LoggerInjectMiddleware(""),
		llog.RequestLoggingMiddleware(),
		httpx.Recovery(func(ctx context.Context, r any) {
			llog.FromContext(ctx).Errorw("handler panicked", "panic", r)
		}),
	)
	api.RegisterToolServiceHTTPServer(hs, api.NewToolService(a.dispatcher, a.server))
	hs.Handle(a.cfg.Server.WSPath, ws)

	// 任意一个退出出错时 gctx 结束, 触发关闭流程
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Serve(gctx, ws, gmcp.NewEnvelopeProtocol(a.dispatcher))
	})
	g.Go(hs.Start)
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Infow("shutting down", "timeout", a.cfg.Server.ShutdownTimeout)

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		return multierr.Append(a.server.Shutdown(sctx), hs.Stop(sctx))
	})

	err = g.Wait()
	if err != nil {
		a.logger.Errorw("server exited", "error", err)
	}

	return err
}

func newHTTPLogger(level, encoding string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	if encoding == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return l
}
