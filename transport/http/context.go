package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/mangohow/mcpgate/tools/sync"
)

var (
	pool = sync.NewPool[*Context](func() *Context {
		return &Context{}
	})
)

type Context struct {
	w   http.ResponseWriter
	req *http.Request
	s   *Server
}

func newContext(w http.ResponseWriter, r *http.Request, s *Server) *Context {
	c := pool.Get()
	c.w = w
	c.req = r
	c.s = s

	return c
}

func putContext(c *Context) {
	c.req = nil
	c.w = nil
	c.s = nil
	pool.Put(c)
}

func (c *Context) Request() *http.Request {
	return c.req
}

func (c *Context) ResponseWriter() http.ResponseWriter {
	return c.w
}

func (c *Context) SetHeader(key string, value string) {
	c.w.Header().Set(key, value)
}

func (c *Context) WriteContentType(contentType string) {
	c.w.Header().Set("Content-Type", contentType)
}

func (c *Context) GetContentType() string {
	return c.req.Header.Get("Content-Type")
}

// 绑定路径中的查询参数 /api/xxx?key1=aaa&key2=bbb
func (c *Context) BindQuery(obj any) error {
	return c.s.queryBinding.Bind(c.req, obj)
}

// 绑定body中的JSON参数
func (c *Context) BindJSON(obj any) error {
	return c.s.bodyBinding.Bind(c.req, obj)
}

// 绑定路径参数 /api/tools/{name}
func (c *Context) BindPathVar(obj any) error {
	return c.s.pathVarBinding.Bind(c.req, obj)
}

func (c *Context) String(status int, content string) error {
	c.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.w.WriteHeader(status)
	_, err := io.WriteString(c.w, content)

	return err
}

// JSON 必须先设置头部再写状态码
func (c *Context) JSON(status int, obj any) error {
	c.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.w.WriteHeader(status)
	return json.NewEncoder(c.w).Encode(obj)
}

func (c *Context) WriteStatus(status int) {
	c.w.WriteHeader(status)
}

// FromContext 只能在通过 Server 注册的 handler 和中间件中调用
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(ctxKey{}).(*Context)
	return c
}
