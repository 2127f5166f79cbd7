package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/llog"
)

const (
	completionsPath = "/v1/chat/completions"

	defaultTimeout = 60 * time.Second
	// 错误信息中最多保留的响应体长度
	maxErrorBody    = 4 << 10
	maxResponseBody = 16 << 20
)

// Readiness 调用上游前确认后端资源可用
type Readiness interface {
	EnsureReady(ctx context.Context, id string) error
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	readiness  Readiness
	resourceID string
	logger     *zap.SugaredLogger
}

type Option func(c *Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithResource 每次调用前检查资源状态
func WithResource(r Readiness, id string) Option {
	return func(c *Client) {
		c.readiness = r
		c.resourceID = id
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = llog.Named("upstream")
	}

	return c
}

// Generate 发送一次补全请求, 不做重试
func (c *Client) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if c.readiness != nil && c.resourceID != "" {
		if err := c.readiness.EnsureReady(ctx, c.resourceID); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, errors.UnknownReason, "encode generation request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + completionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(errors.KindUpstream, errors.ReasonUnreachable, "build upstream request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logger := c.logger.With("model", req.Model, "messages", len(req.Messages))
	begin := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warnw("upstream request failed", "error", err)
		return nil, errors.Wrap(errors.KindUpstream, errors.ReasonUnreachable, "upstream is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(errors.KindUpstream, errors.ReasonUnreachable, "read upstream response", err)
	}
	logger.Debugw("upstream responded", "status", resp.StatusCode, "latency", time.Since(begin))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(body)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		rerr := &ResponseError{Status: resp.StatusCode, Body: strings.TrimSpace(text)}
		logger.Warnw("upstream returned error status", "status", resp.StatusCode)
		return nil, errors.Wrap(errors.KindUpstream, errors.ReasonBadResponse, rerr.Error(), rerr)
	}

	return parseCompletion(body)
}

func parseCompletion(body []byte) (*GenerationResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New(errors.KindUpstream, errors.ReasonMalformedResponse, "upstream response is not valid JSON")
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String {
		return nil, errors.New(errors.KindUpstream, errors.ReasonMalformedResponse,
			"upstream response has no choices[0].message.content")
	}

	role := gjson.GetBytes(body, "choices.0.message.role").String()
	if role == "" {
		role = RoleAssistant
	}

	return &GenerationResult{
		Content:      content.String(),
		Role:         role,
		Model:        gjson.GetBytes(body, "model").String(),
		FinishReason: gjson.GetBytes(body, "choices.0.finish_reason").String(),
	}, nil
}
