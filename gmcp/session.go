package gmcp

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/llog"
	"github.com/mangohow/mcpgate/tools/collection"
)

type SessionState int32

const (
	StateActive SessionState = iota
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}

// Session 一个客户端连接
// 读协程把帧放进队列, 处理协程按到达顺序逐条处理, 同一个会话上不会并发处理多条消息
type Session struct {
	id        string
	conn      Conn
	proto     Protocol
	state     atomic.Int32
	inbox     collection.BlockingQueue[[]byte]
	limiter   *rate.Limiter
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.SugaredLogger
	createdAt time.Time
}

func newSession(parent context.Context, id string, conn Conn, proto Protocol, cfg *serverConfig) *Session {
	logger := cfg.logger.With("sessionId", id, "remote", conn.RemoteAddr(), "protocol", proto.Name())
	ctx, cancel := context.WithCancel(llog.WithLogger(parent, logger))

	s := &Session{
		id:        id,
		conn:      conn,
		proto:     proto,
		inbox:     collection.NewBlockingQueue[[]byte](cfg.queueSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logger,
		createdAt: time.Now(),
	}
	if cfg.rateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateBurst)
	}

	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Done 会话进入 Closed 后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close 不再读取新消息, 已收到的消息处理完后关闭连接
func (s *Session) Close() {
	s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
	s.inbox.Shutdown()
}

// abort 连接出错, 取消正在执行的调用并立即关闭连接
func (s *Session) abort(cause error) {
	if s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) && cause != nil {
		s.logger.Infow("session aborted", "error", cause)
	}
	s.cancel()
	s.inbox.Shutdown()
	s.closeConn()
}

func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Debugw("close connection", "error", err)
		}
	})
}

// run 阻塞直到会话关闭
// 读协程可能阻塞在无法中断的读操作上, 因此不等待它退出, 连接关闭后它写入的数据会被丢弃
func (s *Session) run() {
	s.logger.Infow("session opened")
	go s.readerLoop()

	s.processLoop()

	s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
	s.cancel()
	s.inbox.Shutdown()
	s.closeConn()
	s.state.Store(int32(StateClosed))
	close(s.done)
	s.logger.Infow("session closed", "duration", time.Since(s.createdAt))
}

func (s *Session) readerLoop() {
	for {
		frame, err := s.conn.Receive(s.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// 对端结束输入, 处理完剩余消息后关闭
				s.Close()
				return
			}
			if s.ctx.Err() != nil {
				return
			}
			s.abort(err)
			return
		}

		if len(bytes.TrimSpace(frame)) == 0 {
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(s.ctx); err != nil {
				return
			}
		}

		if !s.inbox.Push(frame) {
			return
		}
	}
}

func (s *Session) processLoop() {
	for {
		frame, shutdown := s.inbox.Pop()
		if shutdown || s.ctx.Err() != nil {
			return
		}

		reply, ok := s.proto.Handle(s.ctx, s.id, frame)
		if !ok {
			continue
		}

		// 连接已经关闭, 结果直接丢弃
		if s.ctx.Err() != nil {
			s.logger.Debugw("discard reply of closed session")
			return
		}

		if err := s.conn.Send(s.ctx, reply); err != nil {
			s.abort(err)
			return
		}
	}
}
