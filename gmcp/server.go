package gmcp

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/llog"
	"github.com/mangohow/mcpgate/tools/collection"
)

const defaultQueueSize = 64

// PreflightFunc 启动前的检查, 返回错误时不会接收任何连接
type PreflightFunc func(ctx context.Context) error

type MCPServer struct {
	sessions   collection.ConcurrentMap[string, *Session]
	cfg        serverConfig
	mu         sync.Mutex
	transports []Transport
	closed     atomic.Bool
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	preflightOnce sync.Once
	preflightErr  error
}

type serverConfig struct {
	logger    *zap.SugaredLogger
	preflight []PreflightFunc
	queueSize int
	rateLimit float64
	rateBurst int
}

type Option func(s *serverConfig)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *serverConfig) {
		s.logger = logger
	}
}

func WithPreflight(fn PreflightFunc) Option {
	return func(s *serverConfig) {
		s.preflight = append(s.preflight, fn)
	}
}

// WithQueueSize 每个会话最多缓存的未处理消息数, 超出后停止读取
func WithQueueSize(n int) Option {
	return func(s *serverConfig) {
		s.queueSize = n
	}
}

// WithRateLimit 每个会话每秒处理的消息数, perSecond <= 0 表示不限制
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *serverConfig) {
		s.rateLimit = perSecond
		s.rateBurst = burst
	}
}

func NewMCPServer(opts ...Option) *MCPServer {
	cfg := serverConfig{
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = llog.Named("gmcp")
	}
	if cfg.queueSize <= 0 {
		cfg.queueSize = defaultQueueSize
	}
	if cfg.rateLimit > 0 && cfg.rateBurst <= 0 {
		cfg.rateBurst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MCPServer{
		sessions: collection.NewConcurrentMap[string, *Session](),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 执行启动检查, 只执行一次, 之后返回相同的结果
func (s *MCPServer) Start(ctx context.Context) error {
	s.preflightOnce.Do(func() {
		for _, fn := range s.cfg.preflight {
			if err := fn(ctx); err != nil {
				s.preflightErr = err
				s.cfg.logger.Errorw("preflight failed", "error", err)
				return
			}
		}
	})

	return s.preflightErr
}

// Serve 在 transport 上接收连接, 每个连接一个会话
// transport 关闭或者 ctx 取消时返回 nil
func (s *MCPServer) Serve(ctx context.Context, t Transport, proto Protocol) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.transports = append(s.transports, t)
	s.mu.Unlock()

	for {
		conn, err := t.Accept(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || s.closed.Load() || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if _, err := s.ServeConn(conn, proto); err != nil {
			return nil
		}
	}
}

// ServeConn 为一个已经建立的连接创建会话, 会话在后台运行
func (s *MCPServer) ServeConn(conn Conn, proto Protocol) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		_ = conn.Close()
		return nil, ErrServerClosed
	}

	sess := newSession(s.ctx, uuid.NewString(), conn, proto, &s.cfg)
	s.sessions.Set(sess.ID(), sess)
	s.wg.Go(func() {
		defer s.sessions.Delete(sess.ID())
		sess.run()
	})

	return sess, nil
}

func (s *MCPServer) Session(id string) (*Session, bool) {
	return s.sessions.Get(id)
}

func (s *MCPServer) Sessions() []*Session {
	return s.sessions.Values()
}

func (s *MCPServer) SessionCount() int {
	return s.sessions.Len()
}

// Shutdown 停止接收连接, 等待所有会话处理完已收到的消息
// ctx 到期后强制关闭剩余会话
func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed.Store(true)
	transports := s.transports
	s.transports = nil
	s.mu.Unlock()

	var err error
	for _, t := range transports {
		err = multierr.Append(err, t.Close())
	}

	for _, sess := range s.sessions.Values() {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		for _, sess := range s.sessions.Values() {
			sess.abort(ctx.Err())
		}
		<-done
		err = multierr.Append(err, ctx.Err())
	}
	s.cancel()

	return err
}
