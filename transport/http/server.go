package http

import (
	"context"
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/serialize"
	"github.com/mangohow/mcpgate/transport/binding"
)

type ctxKey struct{}

type Server struct {
	server *http.Server
	router *routeWrapper
	addr   string

	log            *logrus.Logger
	errorEncoder   EncodeErrorFunc
	resultEncoder  EncodeResultFunc
	queryBinding   binding.Binding
	pathVarBinding binding.Binding
	bodyBinding    binding.Binding

	readHeaderTimeout time.Duration

	middlewares []Middleware
}

// EncodeErrorFunc 错误处理函数
type EncodeErrorFunc func(ctx *Context, err error)

// DefaultEncodeErrorFunc 默认错误处理函数, 状态码由错误原因决定
func DefaultEncodeErrorFunc(ctx *Context, err error) {
	e := errors.FromError(err)
	if err := ctx.JSON(int(e.HttpStatus()), serialize.Response{Error: e}); err != nil {
		ctx.WriteStatus(http.StatusInternalServerError)
	}
}

type EncodeResultFunc func(ctx *Context, resp any)

// DefaultEncodeResultFunc 结果放在 data 字段中返回
func DefaultEncodeResultFunc(ctx *Context, resp any) {
	if err := ctx.JSON(http.StatusOK, serialize.Response{Data: resp}); err != nil {
		ctx.WriteStatus(http.StatusInternalServerError)
	}
}

type Option func(s *Server)

func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

func WithEncodeErrorFunc(fn EncodeErrorFunc) Option {
	return func(s *Server) {
		s.errorEncoder = fn
	}
}

func WithEncodeResultFunc(fn EncodeResultFunc) Option {
	return func(s *Server) {
		s.resultEncoder = fn
	}
}

func WithQueryBinding(bind binding.Binding) Option {
	return func(s *Server) {
		s.queryBinding = bind
	}
}

func WithPathVarBinding(bind binding.Binding) Option {
	return func(s *Server) {
		s.pathVarBinding = bind
	}
}

func WithBodyBinding(bind binding.Binding) Option {
	return func(s *Server) {
		s.bodyBinding = bind
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

func New(opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	if s.queryBinding == nil {
		s.queryBinding = binding.QueryBinding{Tag: "json"}
	}
	if s.pathVarBinding == nil {
		s.pathVarBinding = binding.PathVarBinding{Tag: "json"}
	}
	if s.bodyBinding == nil {
		s.bodyBinding = binding.JsonBinding{}
	}
	if s.errorEncoder == nil {
		s.errorEncoder = DefaultEncodeErrorFunc
	}
	if s.resultEncoder == nil {
		s.resultEncoder = DefaultEncodeResultFunc
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.addr == "" {
		s.addr = ":8000"
	}
	if s.readHeaderTimeout <= 0 {
		s.readHeaderTimeout = 10 * time.Second
	}

	s.router = newRouterWrapper(s.errorEncoder, s)
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	return s
}

func (s *Server) HttpServer() *http.Server {
	return s.server
}

// Handler 用于测试或者挂载到其他服务上
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) RegisterService(sd *ServiceDesc, srv any) {
	if srv != nil {
		ht := reflect.TypeOf(sd.HandlerType).Elem()
		st := reflect.TypeOf(srv)
		if !st.Implements(ht) {
			s.log.Fatalf("handler type %v not implement %v", st, ht)
		}
	}

	s.register(sd, srv)
}

func (s *Server) register(sd *ServiceDesc, srv any) {
	for _, d := range sd.Methods {
		handler := d.Handler
		s.handle(d.Method, d.Path, func(ctx context.Context, req any) (resp any, err error) {
			return handler(ctx, srv, chainHandler(s.middlewares))
		})
	}
}

// Handle 注册原始的 http.Handler, 不经过中间件和编码, 用于 websocket 升级
func (s *Server) Handle(path string, handler http.Handler) {
	s.router.Handle(path, handler)
}

func chainHandler(middlewares []Middleware) Middleware {
	if len(middlewares) == 0 {
		return func(ctx context.Context, req any, handler Handler) (any, error) {
			return handler(ctx, req)
		}
	}

	return func(ctx context.Context, req any, handler Handler) (any, error) {
		return middlewares[0](ctx, req, getChainMiddleware(middlewares, 0, handler))
	}
}

func getChainMiddleware(middlewares []Middleware, cur int, handler Handler) Handler {
	if cur >= len(middlewares)-1 {
		return handler
	}

	return func(ctx context.Context, req any) (any, error) {
		return middlewares[cur+1](ctx, req, getChainMiddleware(middlewares, cur+1, handler))
	}
}

func (s *Server) handle(method, relativePath string, handler Handler) {
	s.router.HandleFunc(method, relativePath, s.handlerConvert(handler))
}

func (s *Server) handlerConvert(handler Handler) HandlerFunc {
	return func(c *Context) error {
		ctx := context.WithValue(c.req.Context(), ctxKey{}, c)
		resp, err := handler(ctx, nil)
		if err != nil {
			return err
		}

		s.resultEncoder(c, resp)

		return nil
	}
}

func (s *Server) Middleware(middleware ...Middleware) {
	s.middlewares = append(s.middlewares, middleware...)
}

func (s *Server) Start() error {
	s.log.Info("server listen at ", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

// Serve 在已有的 listener 上提供服务
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("server listen at ", l.Addr().String())
	err := s.server.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
