package llog

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// InitLogger 调用前使用空日志, 测试和库代码无需初始化
	log      = zap.NewNop().Sugar()
	logLevel = zap.NewAtomicLevel()
)

const (
	logTimeFormat = "2006-01-02 15:04:05.000"
)

// config 日志配置
type config struct {
	// 日志级别 (debug, info, warn, error)
	level string
	// 日志输出类型 (console, json)
	encoding string
	// 文件输出路径（为空则不写文件）
	filename string
	// 控制台输出, stdio 模式下必须是 stderr
	output io.Writer
	// 是否启用 caller（记录调用位置）
	enableCaller bool

	serviceName string

	timeEncoder zapcore.TimeEncoder
}

func (c *config) init() {
	if c.level == "" {
		c.level = "info"
	}

	if c.encoding == "" {
		c.encoding = "json"
	}

	if c.output == nil {
		c.output = os.Stdout
	}

	if c.timeEncoder == nil {
		c.timeEncoder = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			type appendTimeEncoder interface {
				AppendTimeLayout(time.Time, string)
			}

			if enc, ok := enc.(appendTimeEncoder); ok {
				enc.AppendTimeLayout(t, logTimeFormat)
				return
			}

			enc.AppendString(t.Format(logTimeFormat))
		}
	}
}

func SetLevel(level string) error {
	return logLevel.UnmarshalText([]byte(level))
}

type LoggerOption func(cfg *config)

func WithLevel(level string) LoggerOption {
	return func(cfg *config) {
		cfg.level = level
	}
}

func WithEncoding(encoding string) LoggerOption {
	return func(cfg *config) {
		cfg.encoding = encoding
	}
}

func WithFilename(filename string) LoggerOption {
	return func(cfg *config) {
		cfg.filename = filename
	}
}

func WithOutput(w io.Writer) LoggerOption {
	return func(cfg *config) {
		cfg.output = w
	}
}

func WithEnableCaller(enableCaller bool) LoggerOption {
	return func(cfg *config) {
		cfg.enableCaller = enableCaller
	}
}

func WithServiceName(serviceName string) LoggerOption {
	return func(cfg *config) {
		cfg.serviceName = serviceName
	}
}

// InitLogger 初始化全局日志实例, 返回的函数用于退出前刷盘
func InitLogger(opts ...LoggerOption) (*zap.SugaredLogger, func(), error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.init()

	if err := logLevel.UnmarshalText([]byte(cfg.level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = cfg.timeEncoder
	encoderConfig.StacktraceKey = ""

	var cores []zapcore.Core
	if cfg.filename != "" {
		// 文件输出（带轮转）
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.filename,
				MaxSize:    10, // MB
				MaxBackups: 7,
				MaxAge:     30, // days
				Compress:   true,
			}),
			logLevel,
		))
	}

	var encoder zapcore.Encoder
	switch cfg.encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, nil, fmt.Errorf("invalid log encoding %q", cfg.encoding)
	}
	cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(cfg.output), logLevel))

	zapLogger := zap.New(zapcore.NewTee(cores...))
	if cfg.enableCaller {
		zapLogger = zapLogger.WithOptions(zap.AddCaller())
	}
	if cfg.serviceName != "" {
		zapLogger = zapLogger.With(zap.String("service", cfg.serviceName))
	}

	log = zapLogger.Sugar()

	return log, func() {
		_ = log.Sync()
	}, nil
}

func GetLogger() *zap.SugaredLogger {
	return log
}

// Named 返回带组件名的子日志
func Named(component string) *zap.SugaredLogger {
	return log.Named(component)
}
