package gmcp

import (
	"bytes"
	"encoding/json"

	"github.com/mangohow/mcpgate/errors"
)

type MessageType string

const (
	TypeToolCall   MessageType = "tool_call"
	TypeToolResult MessageType = "tool_result"
	TypeError      MessageType = "error"
)

func (t MessageType) valid() bool {
	switch t {
	case TypeToolCall, TypeToolResult, TypeError:
		return true
	}

	return false
}

// Envelope 双工连接上的消息, 只有与 Type 对应的 payload 非空
type Envelope struct {
	Type MessageType
	// ID 可选的关联ID, 回复时原样带回
	ID     string
	Call   *CallPayload
	Result *ResultPayload
	Error  *ErrorPayload
}

type CallPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ResultPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ErrorPayload struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type wireEnvelope struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewCallEnvelope(id, name string, args map[string]any) *Envelope {
	return &Envelope{Type: TypeToolCall, ID: id, Call: &CallPayload{Name: name, Arguments: args}}
}

func NewResultEnvelope(id, role, content string) *Envelope {
	return &Envelope{Type: TypeToolResult, ID: id, Result: &ResultPayload{Role: role, Content: content}}
}

func NewErrorEnvelope(id, kind, message string) *Envelope {
	return &Envelope{Type: TypeError, ID: id, Error: &ErrorPayload{Kind: kind, Message: message}}
}

// ResultEnvelope 将工具结果转换成回复消息
func ResultEnvelope(id string, r *ToolResult) *Envelope {
	if r.Error != nil {
		return NewErrorEnvelope(id, r.Error.Kind, r.Error.Message)
	}

	return NewResultEnvelope(id, r.Role, r.Content)
}

// DecodeEnvelope 解析一帧数据
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(errors.KindDecode, errors.ReasonMalformedSyntax, "Invalid JSON message", err)
	}

	if w.Type == "" {
		return nil, errors.New(errors.KindDecode, errors.ReasonUnknownKind, "missing message type")
	}
	if !w.Type.valid() {
		return nil, errors.Newf(errors.KindDecode, errors.ReasonUnknownKind, "Unknown message type: %s", w.Type)
	}

	env := &Envelope{Type: w.Type, ID: w.ID}
	var target any
	switch w.Type {
	case TypeToolCall:
		env.Call = &CallPayload{}
		target = env.Call
	case TypeToolResult:
		env.Result = &ResultPayload{}
		target = env.Result
	case TypeError:
		env.Error = &ErrorPayload{}
		target = env.Error
	}

	payload := bytes.TrimSpace(w.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, errors.Newf(errors.KindDecode, errors.ReasonMalformedSyntax, "missing payload for %s", w.Type)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return nil, errors.Wrap(errors.KindDecode, errors.ReasonMalformedSyntax,
			"invalid payload for "+string(w.Type), err)
	}

	return env, nil
}

// internalErrorFrame 编码失败时的兜底回复
var internalErrorFrame = []byte(`{"type":"error","payload":{"kind":"Unknown","message":"internal error"}}`)

// EncodeEnvelope 编码不会失败, 内部值都已校验过
func EncodeEnvelope(e *Envelope) []byte {
	var payload any
	switch e.Type {
	case TypeToolCall:
		payload = e.Call
	case TypeToolResult:
		payload = e.Result
	case TypeError:
		payload = e.Error
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return internalErrorFrame
	}

	data, err := json.Marshal(wireEnvelope{Type: e.Type, ID: e.ID, Payload: raw})
	if err != nil {
		return internalErrorFrame
	}

	return data
}
