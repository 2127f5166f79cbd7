package upstream

import (
	"fmt"
	"net/http"

	"github.com/mangohow/mcpgate/errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	DefaultTemperature = 0.7
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest 每次调用构造一次, 消息顺序即对话顺序
type GenerationRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

func (r *GenerationRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New(errors.KindValidation, errors.ReasonMissingField, "messages must not be empty")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange, "messages[%d].role is invalid: %q", i, m.Role)
		}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange, "temperature must be in [0, 2], got %v", r.Temperature)
	}
	if r.MaxTokens != nil && *r.MaxTokens < 1 {
		return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange, "max_tokens must be >= 1, got %d", *r.MaxTokens)
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange, "top_p must be in [0, 1], got %v", *r.TopP)
	}

	return nil
}

type GenerationResult struct {
	Content      string
	Role         string
	Model        string
	FinishReason string
}

// ResponseError 上游返回了非 2xx 状态码
type ResponseError struct {
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("upstream returned %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
}
