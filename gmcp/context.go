package gmcp

import (
	"context"

	"go.uber.org/zap"

	"github.com/mangohow/mcpgate/tools/sync"
)

var (
	ctxPool = sync.NewPool[*Context](func() *Context {
		return &Context{}
	})
)

// Context 一次工具调用的上下文, 在handler返回后回收, handler不能持有它
type Context struct {
	ctx       context.Context
	sessionID string
	callID    string
	tool      string
	args      Arguments
	logger    *zap.SugaredLogger
}

func newContext(ctx context.Context, call *ToolCall, args Arguments, logger *zap.SugaredLogger) *Context {
	c := ctxPool.Get()
	c.ctx = ctx
	c.sessionID = call.SessionID
	c.callID = call.ID
	c.tool = call.Name
	c.args = args
	c.logger = logger.With("callId", call.ID, "tool", call.Name)

	return c
}

func putContext(c *Context) {
	*c = Context{}
	ctxPool.Put(c)
}

func (c *Context) Context() context.Context {
	return c.ctx
}

func (c *Context) SessionID() string {
	return c.sessionID
}

func (c *Context) CallID() string {
	return c.callID
}

func (c *Context) Tool() string {
	return c.tool
}

func (c *Context) Args() Arguments {
	return c.args
}

func (c *Context) Logger() *zap.SugaredLogger {
	return c.logger
}
