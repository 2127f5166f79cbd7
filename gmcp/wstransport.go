package gmcp

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mangohow/mcpgate/errors"
)

const (
	defaultReadLimit    = 4 << 20
	defaultWriteTimeout = 10 * time.Second
)

// WSTransport 作为 http.Handler 挂载到路由上, 每个升级成功的请求是一个连接
type WSTransport struct {
	upgrader     websocket.Upgrader
	conns        chan *wsConn
	closed       chan struct{}
	closeOnce    sync.Once
	readLimit    int64
	writeTimeout time.Duration
}

type WSOption func(t *WSTransport)

func WithReadLimit(n int64) WSOption {
	return func(t *WSTransport) {
		t.readLimit = n
	}
}

func WithWriteTimeout(d time.Duration) WSOption {
	return func(t *WSTransport) {
		t.writeTimeout = d
	}
}

func WithCheckOrigin(fn func(r *http.Request) bool) WSOption {
	return func(t *WSTransport) {
		t.upgrader.CheckOrigin = fn
	}
}

func NewWSTransport(opts ...WSOption) *WSTransport {
	t := &WSTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns:        make(chan *wsConn),
		closed:       make(chan struct{}),
		readLimit:    defaultReadLimit,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *WSTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-t.closed:
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	// 升级失败时 upgrader 已经写好了错误响应
	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(t.readLimit)

	c := &wsConn{
		ws:           ws,
		writeTimeout: t.writeTimeout,
		remote:       r.RemoteAddr,
	}

	select {
	case t.conns <- c:
	case <-t.closed:
		_ = c.Close()
	case <-r.Context().Done():
		_ = c.Close()
	}
}

func (t *WSTransport) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-t.conns:
		return c, nil
	case <-t.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 停止接收新连接, 已建立的连接由各自的会话关闭
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})

	return nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	remote       string
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func (c *wsConn) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, errors.Wrap(errors.KindTransport, errors.ReasonClosed, "peer closed connection", err)
			}
			return nil, errors.Wrap(errors.KindTransport, errors.ReasonClosed, "read message", err)
		}

		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.Wrap(errors.KindTransport, errors.ReasonClosed, "write message", err)
	}

	return nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})

	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
