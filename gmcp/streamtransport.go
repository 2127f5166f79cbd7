package gmcp

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mangohow/mcpgate/errors"
)

const defaultMaxFrameSize = 4 << 20

// StreamTransport 单连接的字节流, 每行一帧, 用于 stdio
// 连接关闭后 transport 也随之关闭
type StreamTransport struct {
	conn      *streamConn
	accepted  atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
}

type StreamOption func(c *streamConn)

// WithMaxFrameSize 单行的最大长度, 超出后连接被关闭
func WithMaxFrameSize(n int) StreamOption {
	return func(c *streamConn) {
		c.maxFrame = n
	}
}

// WithStreamName RemoteAddr 返回的名字
func WithStreamName(name string) StreamOption {
	return func(c *streamConn) {
		c.name = name
	}
}

func NewStreamTransport(r io.Reader, w io.Writer, opts ...StreamOption) *StreamTransport {
	t := &StreamTransport{
		closed: make(chan struct{}),
	}

	c := &streamConn{
		transport: t,
		r:         r,
		w:         w,
		maxFrame:  defaultMaxFrameSize,
		name:      "stream",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.scanner = bufio.NewScanner(r)
	c.scanner.Buffer(make([]byte, 0, 64<<10), c.maxFrame)
	t.conn = c

	return t
}

func NewStdioTransport(opts ...StreamOption) *StreamTransport {
	return NewStreamTransport(os.Stdin, os.Stdout, append([]StreamOption{WithStreamName("stdio")}, opts...)...)
}

// Accept 第一次调用返回唯一的连接, 之后阻塞到 transport 关闭
func (t *StreamTransport) Accept(ctx context.Context) (Conn, error) {
	select {
	case <-t.closed:
		return nil, ErrClosed
	default:
	}

	if t.accepted.CompareAndSwap(false, true) {
		return t.conn, nil
	}

	select {
	case <-t.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *StreamTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})

	return nil
}

type streamConn struct {
	transport *StreamTransport
	r         io.Reader
	w         io.Writer
	scanner   *bufio.Scanner
	maxFrame  int
	name      string
	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Receive 返回下一行, 输入结束时返回 io.EOF
func (c *streamConn) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			if c.closed.Load() {
				return nil, ErrClosed
			}
			return nil, errors.Wrap(errors.KindTransport, errors.ReasonMalformedSyntax, "read frame", err)
		}
		return nil, io.EOF
	}

	// Scanner 会复用缓冲区
	line := c.scanner.Bytes()
	frame := make([]byte, len(line))
	copy(frame, line)

	return frame, nil
}

func (c *streamConn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	if _, err := c.w.Write(buf); err != nil {
		return errors.Wrap(errors.KindTransport, errors.ReasonClosed, "write frame", err)
	}

	return nil
}

// Close 关闭可关闭的读写端, 阻塞中的 Receive 可能在读到下一行后才返回
func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if closer, ok := c.r.(io.Closer); ok {
			c.closeErr = closer.Close()
		}
		if closer, ok := c.w.(io.Closer); ok && any(closer) != any(c.r) {
			if err := closer.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
		_ = c.transport.Close()
	})

	return c.closeErr
}

func (c *streamConn) RemoteAddr() string {
	return c.name
}
