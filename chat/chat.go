package chat

import (
	"context"
	"slices"

	"github.com/mangohow/mcpgate/gmcp"
	"github.com/mangohow/mcpgate/upstream"
)

const (
	ToolName    = "chat"
	description = "Send a conversation to the upstream model and return its reply"

	DefaultModel     = "deepseek-coder"
	defaultMaxTokens = 500
	defaultTopP      = 1.0
)

var DefaultModels = []string{"deepseek-coder", "deepseek-chat"}

type Generator interface {
	Generate(ctx context.Context, req *upstream.GenerationRequest) (*upstream.GenerationResult, error)
}

type config struct {
	models       []string
	defaultModel string
}

type Option func(c *config)

// WithModels 可选的模型列表, def 必须在列表中
func WithModels(models []string, def string) Option {
	return func(c *config) {
		if len(models) > 0 {
			c.models = slices.Clone(models)
		}
		if def != "" {
			c.defaultModel = def
		}
	}
}

func Schema(models []string, defaultModel string) *gmcp.Schema {
	enum := make([]any, 0, len(models))
	for _, m := range models {
		enum = append(enum, m)
	}

	return &gmcp.Schema{
		Type: gmcp.TypeObject,
		Properties: map[string]*gmcp.Schema{
			"messages": {
				Type:        gmcp.TypeArray,
				Description: "Conversation in chronological order",
				Items: &gmcp.Schema{
					Type: gmcp.TypeObject,
					Properties: map[string]*gmcp.Schema{
						"role": {
							Type: gmcp.TypeString,
							Enum: []any{upstream.RoleUser, upstream.RoleAssistant, upstream.RoleSystem},
						},
						"content": {Type: gmcp.TypeString},
					},
					Required: []string{"role", "content"},
				},
			},
			"model": {
				Type:    gmcp.TypeString,
				Enum:    enum,
				Default: defaultModel,
			},
			"temperature": {
				Type:        gmcp.TypeNumber,
				Description: "Sampling temperature",
				Minimum:     gmcp.Bound(0),
				Maximum:     gmcp.Bound(2),
				Default:     upstream.DefaultTemperature,
			},
			"max_tokens": {
				Type:    gmcp.TypeInteger,
				Minimum: gmcp.Bound(1),
				Maximum: gmcp.Bound(4000),
				Default: int64(defaultMaxTokens),
			},
			"top_p": {
				Type:    gmcp.TypeNumber,
				Minimum: gmcp.Bound(0),
				Maximum: gmcp.Bound(1),
				Default: defaultTopP,
			},
			"stream": {
				Type:        gmcp.TypeBoolean,
				Description: "Accepted for compatibility, replies are never streamed",
				Default:     false,
			},
		},
		Required: []string{"messages"},
	}
}

func NewTool(gen Generator, opts ...Option) *gmcp.ToolDescriptor {
	cfg := config{
		models:       DefaultModels,
		defaultModel: DefaultModel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &gmcp.ToolDescriptor{
		Name:        ToolName,
		Description: description,
		Schema:      Schema(cfg.models, cfg.defaultModel),
		Handler:     &handler{gen: gen},
	}
}

type params struct {
	Messages    []upstream.ChatMessage
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stream      bool
}

// parseParams 参数已经过校验并填充了缺省值
func parseParams(args gmcp.Arguments) params {
	p := params{
		Model:       args.String("model"),
		Temperature: args.Float("temperature"),
		MaxTokens:   int(args.Int("max_tokens")),
		TopP:        args.Float("top_p"),
		Stream:      args.Bool("stream"),
	}

	items := args.Slice("messages")
	p.Messages = make([]upstream.ChatMessage, 0, len(items))
	for _, item := range items {
		m, _ := item.(map[string]any)
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		p.Messages = append(p.Messages, upstream.ChatMessage{Role: role, Content: content})
	}

	return p
}

type handler struct {
	gen Generator
}

func (h *handler) Handle(c *gmcp.Context) (*gmcp.Content, error) {
	p := parseParams(c.Args())
	if p.Stream {
		c.Logger().Infow("streaming requested, replying with a single message")
	}

	res, err := h.gen.Generate(c.Context(), &upstream.GenerationRequest{
		Model:       p.Model,
		Messages:    p.Messages,
		Temperature: p.Temperature,
		MaxTokens:   &p.MaxTokens,
		TopP:        &p.TopP,
	})
	if err != nil {
		return nil, err
	}

	// 工具结果的角色固定为 assistant, 上游返回的角色只记录日志
	if res.Role != upstream.RoleAssistant {
		c.Logger().Warnw("upstream replied with unexpected role", "role", res.Role)
	}

	return &gmcp.Content{Role: gmcp.RoleAssistant, Text: res.Content}, nil
}
