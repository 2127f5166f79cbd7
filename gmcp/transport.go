package gmcp

import (
	"context"

	"github.com/mangohow/mcpgate/errors"
)

var (
	ErrClosed       = errors.New(errors.KindTransport, errors.ReasonClosed, "transport has been closed")
	ErrServerClosed = errors.New(errors.KindTransport, errors.ReasonClosed, "server has been closed")
)

// Conn 一个连接或数据流, 每次 Receive 返回完整的一帧
// Close 必须可以重复调用, 并且能让阻塞中的 Receive 返回
type Conn interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, frame []byte) error
	Close() error
	RemoteAddr() string
}

// Transport 接收新连接, Close 之后 Accept 返回 ErrClosed
type Transport interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
}
