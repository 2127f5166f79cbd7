package resource

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/llog"
)

type State int

const (
	StateStopped State = iota
	StateRunning
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateNotFound:
		return "not_found"
	}

	return "unknown"
}

// Handle 某一时刻观察到的资源状态
type Handle struct {
	ID         string
	State      State
	ObservedAt time.Time
}

// Controller 资源的实际管理者, 例如 docker
// 资源不存在时 State 返回 StateNotFound 而不是错误
type Controller interface {
	State(ctx context.Context, id string) (State, error)
	Start(ctx context.Context, id string) error
}

const (
	defaultStartTimeout = 30 * time.Second
	defaultPollInterval = 500 * time.Millisecond
)

// Manager 保证资源在使用前处于运行状态
// 状态每次都重新查询, 不做缓存
type Manager struct {
	controller   Controller
	group        singleflight.Group
	startTimeout time.Duration
	pollInterval time.Duration
	logger       *zap.SugaredLogger
}

type Option func(m *Manager)

func WithStartTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.startTimeout = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.pollInterval = d
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(controller Controller, opts ...Option) *Manager {
	m := &Manager{
		controller:   controller,
		startTimeout: defaultStartTimeout,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.startTimeout <= 0 {
		m.startTimeout = defaultStartTimeout
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if m.logger == nil {
		m.logger = llog.Named("resource")
	}

	return m
}

func (m *Manager) Observe(ctx context.Context, id string) (Handle, error) {
	state, err := m.controller.State(ctx, id)
	if err != nil {
		return Handle{ID: id}, unavailable(id, err)
	}

	return Handle{ID: id, State: state, ObservedAt: time.Now()}, nil
}

// EnsureReady 运行中直接返回, 停止则启动并等待就绪, 不存在返回 NotFound
// 同一个资源的并发启动只会执行一次
func (m *Manager) EnsureReady(ctx context.Context, id string) error {
	h, err := m.Observe(ctx, id)
	if err != nil {
		return err
	}

	switch h.State {
	case StateRunning:
		return nil
	case StateNotFound:
		return notFound(id)
	}

	// 启动不跟随单个调用方取消, 其他调用方可能还在等待
	startCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(id, func() (any, error) {
		return nil, m.start(startCtx, id)
	})

	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return errors.Wrap(errors.KindResource, errors.ReasonCanceled, "wait for resource "+id, ctx.Err())
	}
}

func (m *Manager) start(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, m.startTimeout)
	defer cancel()

	logger := m.logger.With("resource", id)
	logger.Infow("starting resource")
	begin := time.Now()

	if err := m.controller.Start(ctx, id); err != nil {
		if errors.IsReason(err, errors.ReasonNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return m.timeout(id)
		}
		logger.Errorw("start resource failed", "error", err)
		return unavailable(id, err)
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		state, err := m.controller.State(ctx, id)
		lastErr = err
		if err == nil {
			switch state {
			case StateRunning:
				logger.Infow("resource is running", "elapsed", time.Since(begin))
				return nil
			case StateNotFound:
				return notFound(id)
			}
		}

		select {
		case <-ctx.Done():
			logger.Warnw("resource did not become ready", "timeout", m.startTimeout, "lastError", lastErr)
			return m.timeout(id)
		case <-ticker.C:
		}
	}
}

func (m *Manager) timeout(id string) error {
	return errors.Newf(errors.KindResource, errors.ReasonStartTimeout,
		"resource %s did not become ready within %s", id, m.startTimeout)
}

func notFound(id string) error {
	return errors.Newf(errors.KindResource, errors.ReasonNotFound, "resource %s not found", id)
}

func unavailable(id string, cause error) error {
	return errors.Wrap(errors.KindResource, errors.ReasonResourceUnavailable, "resource "+id+" is unavailable", cause)
}
