package llog

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/transport/http"
)

type loggerKey struct{}

const (
	requestIdKeyName = "X-Request-ID"
)

// WithLogger 将 logger 注入 context
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext 从 context 获取 logger（不存在则返回默认 logger）
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return log
}

// LoggerInjectMiddleware 为每个请求注入带 requestId 的 logger, 请求头没有时生成一个
func LoggerInjectMiddleware(requestIdKey string) http.Middleware {
	if requestIdKey == "" {
		requestIdKey = requestIdKeyName
	}

	return func(ctx context.Context, req any, handler http.Handler) (any, error) {
		c := http.FromContext(ctx)
		rid := c.Request().Header.Get(requestIdKey)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.ResponseWriter().Header().Set(requestIdKey, rid)

		return handler(WithLogger(ctx, log.With("requestId", rid)), req)
	}
}

// RequestLoggingMiddleware 每个请求记一条日志, 4xx 记 warn, 5xx 记 error
func RequestLoggingMiddleware() http.Middleware {
	return func(ctx context.Context, req any, handler http.Handler) (any, error) {
		logger := FromContext(ctx)
		request := http.FromContext(ctx).Request()

		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []any{
			"method", request.Method,
			"path", request.URL.Path,
			"query", request.URL.RawQuery,
			"ip", clientIP(request),
			"latency", time.Since(start),
		}
		if err == nil {
			logger.Infow("request", fields...)
			return resp, nil
		}

		e := errors.FromError(err)
		fields = append(fields, "status", e.HttpStatus(), "reason", e.Reason(), "errMsg", e.Message())
		if e.Reason() == errors.UnknownReason {
			fields = append(fields, "error", err.Error())
		}

		if e.HttpStatus() < 500 {
			logger.Warnw("request failed", fields...)
		} else {
			logger.Errorw("server error", fields...)
		}

		return resp, err
	}
}

func clientIP(r *nethttp.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}

	return r.RemoteAddr
}
