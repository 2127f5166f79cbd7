package config

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mangohow/mcpgate/errors"
)

const envPrefix = "MCPGATE"

type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Resource ResourceConfig `mapstructure:"resource"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type UpstreamConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultModel string        `mapstructure:"default_model"`
	Models       []string      `mapstructure:"models"`
}

// ResourceConfig ID 为空时不管理后端资源
type ResourceConfig struct {
	ID           string        `mapstructure:"id"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type ServerConfig struct {
	Addr               string        `mapstructure:"addr"`
	WSPath             string        `mapstructure:"ws_path"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes"`
	QueueSize          int           `mapstructure:"queue_size"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	RateBurst          int           `mapstructure:"rate_burst"`
	MaxConcurrentCalls int           `mapstructure:"max_concurrent_calls"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
	Filename string `mapstructure:"filename"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstream.base_url", "http://localhost:8000")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.timeout", 60*time.Second)
	v.SetDefault("upstream.default_model", "deepseek-coder")
	v.SetDefault("upstream.models", []string{"deepseek-coder", "deepseek-chat"})

	v.SetDefault("resource.id", "")
	v.SetDefault("resource.start_timeout", 30*time.Second)
	v.SetDefault("resource.poll_interval", 500*time.Millisecond)

	v.SetDefault("server.addr", ":8765")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.max_message_bytes", 4<<20)
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.max_concurrent_calls", 64)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.filename", "")
}

// flagKeys 命令行参数名到配置项的映射
var flagKeys = map[string]string{
	"upstream-base-url": "upstream.base_url",
	"upstream-api-key":  "upstream.api_key",
	"upstream-timeout":  "upstream.timeout",
	"model":             "upstream.default_model",
	"resource-id":       "resource.id",
	"addr":              "server.addr",
	"ws-path":           "server.ws_path",
	"log-level":         "log.level",
	"log-encoding":      "log.encoding",
	"log-file":          "log.filename",
}

// AddFlags 注册可以覆盖配置文件和环境变量的参数
func AddFlags(fs *pflag.FlagSet) {
	fs.String("upstream-base-url", "", "upstream chat completions base url")
	fs.String("upstream-api-key", "", "upstream api key")
	fs.Duration("upstream-timeout", 0, "upstream request timeout")
	fs.String("model", "", "default model")
	fs.String("resource-id", "", "container backing the upstream, empty to disable")
	fs.String("addr", "", "listen address")
	fs.String("ws-path", "", "websocket path")
	fs.String("log-level", "", "log level")
	fs.String("log-encoding", "", "log encoding, json or console")
	fs.String("log-file", "", "log file, empty to log to the console")
}

// Load 优先级: 命令行参数 > 环境变量 > 配置文件 > 默认值
// 环境变量为 MCPGATE_<SECTION>_<KEY>, 上游地址和密钥也接受 DEEPSEEK_BASE_URL DEEPSEEK_API_KEY
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("upstream.base_url", envPrefix+"_UPSTREAM_BASE_URL", "DEEPSEEK_BASE_URL")
	_ = v.BindEnv("upstream.api_key", envPrefix+"_UPSTREAM_API_KEY", "DEEPSEEK_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.KindInternal, errors.UnknownReason, "read config file "+path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			// 只绑定被修改过的参数, 未设置的参数不覆盖其他来源
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrap(errors.KindInternal, errors.UnknownReason, "bind flag "+name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.KindInternal, errors.UnknownReason, "decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("upstream.base_url must be an http(s) url, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return invalid("upstream.timeout must be positive")
	}
	if len(c.Upstream.Models) == 0 {
		return invalid("upstream.models must not be empty")
	}
	if !slices.Contains(c.Upstream.Models, c.Upstream.DefaultModel) {
		return invalid("upstream.default_model %q is not in upstream.models", c.Upstream.DefaultModel)
	}
	if c.Resource.ID != "" && (c.Resource.StartTimeout <= 0 || c.Resource.PollInterval <= 0) {
		return invalid("resource.start_timeout and resource.poll_interval must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout must be positive")
	}
	if c.Server.MaxMessageBytes <= 0 {
		return invalid("server.max_message_bytes must be positive")
	}
	if c.Server.MaxConcurrentCalls <= 0 {
		return invalid("server.max_concurrent_calls must be positive")
	}
	if c.Server.QueueSize <= 0 {
		return invalid("server.queue_size must be positive")
	}
	if c.Server.RateLimit < 0 {
		return invalid("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		return invalid("server.rate_burst must be positive when rate_limit is set")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return invalid("server.ws_path must start with /")
	}

	return nil
}

func invalid(format string, args ...any) error {
	return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange, "invalid config: "+format, args...)
}
