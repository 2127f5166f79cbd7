package gmcp

import (
	"context"

	"go.uber.org/zap"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/llog"
	"github.com/mangohow/mcpgate/tools/workerpool"
)

const RoleAssistant = "assistant"

type ToolHandler interface {
	Handle(c *Context) (*Content, error)
}

type HandlerFunc func(c *Context) (*Content, error)

func (f HandlerFunc) Handle(c *Context) (*Content, error) {
	return f(c)
}

// Content handler 的成功结果
type Content struct {
	Role string
	Text string
}

// ToolCall 由一条解码后的消息构造, 只被消费一次
type ToolCall struct {
	ID        string
	SessionID string
	Name      string
	Arguments map[string]any
}

type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ToolResult Error 非空表示失败
type ToolResult struct {
	Role    string
	Content string
	Error   *ToolError
}

func (r *ToolResult) IsError() bool {
	return r.Error != nil
}

func errorResult(kind, message string) *ToolResult {
	return &ToolResult{Error: &ToolError{Kind: kind, Message: message}}
}

// Dispatcher 查找工具, 校验参数, 执行handler, 所有失败都转换成 ToolResult
type Dispatcher struct {
	registry *Registry
	pool     workerpool.WorkerPool
	logger   *zap.SugaredLogger
}

type DispatcherOption func(d *Dispatcher)

// WithWorkerPool handler 在协程池中执行, 限制同时执行的调用数
func WithWorkerPool(pool workerpool.WorkerPool) DispatcherOption {
	return func(d *Dispatcher) {
		d.pool = pool
	}
}

func WithDispatcherLogger(logger *zap.SugaredLogger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = llog.Named("dispatcher")
	}

	return d
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) Dispatch(ctx context.Context, call *ToolCall) *ToolResult {
	logger := d.logger.With("sessionId", call.SessionID, "callId", call.ID, "tool", call.Name)

	desc, ok := d.registry.Lookup(call.Name)
	if !ok {
		logger.Warnw("unknown tool")
		return errorResult(errors.ReasonUnknownTool, "Unknown tool: "+call.Name)
	}

	args, err := Validate(desc.Schema, call.Arguments)
	if err != nil {
		e := errors.FromError(err)
		logger.Infow("invalid arguments", "reason", e.Reason(), "detail", e.Message())
		return errorResult(errors.ReasonInvalidArguments, "Invalid arguments: "+e.Message())
	}

	content, err := d.invoke(ctx, desc, call, args)
	if err != nil {
		e := errors.FromError(err)
		logger.Errorw("tool call failed", "reason", e.Reason(), "error", err)
		return errorResult(e.Reason(), e.Message())
	}

	if content == nil {
		content = &Content{}
	}
	role := content.Role
	if role == "" {
		role = RoleAssistant
	}

	return &ToolResult{Role: role, Content: content.Text}
}

type outcome struct {
	content *Content
	err     error
}

// invoke ctx 结束时不再等待handler, 它的结果被丢弃
func (d *Dispatcher) invoke(ctx context.Context, desc *ToolDescriptor, call *ToolCall, args Arguments) (*Content, error) {
	done := make(chan outcome, 1)
	task := func() {
		c := newContext(ctx, call, args, d.logger)
		defer putContext(c)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Errorw("tool handler panicked", "tool", call.Name, "panic", r)
				done <- outcome{err: errors.Newf(errors.KindInternal, errors.UnknownReason, "tool %s failed", call.Name)}
			}
		}()

		content, err := desc.Handler.Handle(c)
		done <- outcome{content: content, err: err}
	}

	if d.pool == nil {
		task()
	} else if err := d.pool.Submit(task); err != nil {
		if errors.Is(err, workerpool.ErrQueueFull) {
			return nil, errors.Wrap(errors.KindInternal, errors.ReasonResourceUnavailable, "too many concurrent tool calls", err)
		}
		return nil, errors.Wrap(errors.KindInternal, errors.ReasonClosed, "dispatcher is shutting down", err)
	}

	select {
	case o := <-done:
		return o.content, o.err
	case <-ctx.Done():
		return nil, errors.Wrap(errors.KindInternal, errors.ReasonCanceled, "call canceled", ctx.Err())
	}
}

// Close 等待已提交的调用执行完
func (d *Dispatcher) Close() {
	if d.pool != nil {
		d.pool.ShutdownWait(true)
	}
}
