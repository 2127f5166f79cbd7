package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mangohow/mcpgate/gmcp"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "serve a single client over stdin/stdout using json-rpc",
	RunE:  runStdio,
}

func runStdio(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.server.Start(ctx); err != nil {
		return err
	}

	t := gmcp.NewStdioTransport(gmcp.WithMaxFrameSize(int(a.cfg.Server.MaxMessageBytes)))
	conn, err := t.Accept(ctx)
	if err != nil {
		return err
	}

	proto := gmcp.NewRPCProtocol(a.dispatcher, gmcp.ServerInfo{Name: "mcpgate", Version: version})
	sess, err := a.server.ServeConn(conn, proto)
	if err != nil {
		_ = conn.Close()
		return err
	}

	// stdin 关闭后会话自己结束
	select {
	case <-sess.Done():
	case <-ctx.Done():
		a.logger.Infow("interrupted, shutting down", "timeout", a.cfg.Server.ShutdownTimeout)
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	return a.server.Shutdown(sctx)
}
