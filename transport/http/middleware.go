package http

import (
	"context"

	"github.com/mangohow/mcpgate/errors"
)

type Handler func(ctx context.Context, req any) (resp any, err error)

type Middleware func(ctx context.Context, req any, handler Handler) (any, error)

type methodHandler func(ctx context.Context, srv any, middleware Middleware) (any, error)

type ServiceDesc struct {
	HandlerType any
	Methods     []MethodDesc
}

type MethodDesc struct {
	Method  string
	Path    string
	Handler methodHandler
}

// Recovery handler panic 时返回 internal 错误, 不中断服务
func Recovery(onPanic func(ctx context.Context, r any)) Middleware {
	return func(ctx context.Context, req any, handler Handler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				if onPanic != nil {
					onPanic(ctx, r)
				}
				resp, err = nil, errors.New(errors.KindInternal, errors.UnknownReason, errors.UnknownMessage)
			}
		}()

		return handler(ctx, req)
	}
}
