package gmcp

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/llog"
)

// Protocol 把一帧输入转换成最多一帧输出, ok为false表示不需要回复
type Protocol interface {
	Name() string
	Handle(ctx context.Context, sessionID string, frame []byte) (reply []byte, ok bool)
}

// EnvelopeProtocol 双工连接上的 {type, payload} 消息
type EnvelopeProtocol struct {
	dispatcher *Dispatcher
}

func NewEnvelopeProtocol(d *Dispatcher) *EnvelopeProtocol {
	return &EnvelopeProtocol{dispatcher: d}
}

func (p *EnvelopeProtocol) Name() string {
	return "envelope"
}

func (p *EnvelopeProtocol) Handle(ctx context.Context, sessionID string, frame []byte) ([]byte, bool) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		e := errors.FromError(err)
		return EncodeEnvelope(NewErrorEnvelope("", e.Reason(), e.Message())), true
	}

	if env.Type != TypeToolCall {
		return EncodeEnvelope(NewErrorEnvelope(env.ID, errors.ReasonUnknownKind,
			"Unsupported message type: "+string(env.Type))), true
	}

	callID := env.ID
	if callID == "" {
		callID = uuid.NewString()
	}

	result := p.dispatcher.Dispatch(ctx, &ToolCall{
		ID:        callID,
		SessionID: sessionID,
		Name:      env.Call.Name,
		Arguments: env.Call.Arguments,
	})

	return EncodeEnvelope(ResultEnvelope(env.ID, result)), true
}

// RPCProtocol 流模式下的 JSON-RPC 2.0 (MCP) 协议
type RPCProtocol struct {
	dispatcher *Dispatcher
	info       ServerInfo
	logger     *zap.SugaredLogger
}

func NewRPCProtocol(d *Dispatcher, info ServerInfo) *RPCProtocol {
	return &RPCProtocol{
		dispatcher: d,
		info:       info,
		logger:     llog.Named("jsonrpc"),
	}
}

func (p *RPCProtocol) Name() string {
	return "jsonrpc"
}

func (p *RPCProtocol) Handle(ctx context.Context, sessionID string, frame []byte) ([]byte, bool) {
	var req JSONRPCRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return p.errorReply(nullID, errors.CodeParseError, "Parse error"), true
	}

	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		if req.IsNotification() {
			return nil, false
		}
		return p.errorReply(req.ID, errors.CodeInvalidRequest, "Invalid Request"), true
	}

	var result any
	switch req.Method {
	case "initialize":
		result = InitializeResult{
			ProtocolVersion: MCPProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      p.info,
		}
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = ListToolsResult{Tools: ListTools(p.dispatcher.Registry())}
	case "tools/call":
		var params CallToolParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return p.errorReply(req.ID, errors.CodeInvalidParams, "Invalid params: "+err.Error()), !req.IsNotification()
			}
		}

		r := p.dispatcher.Dispatch(ctx, &ToolCall{
			ID:        rpcCallID(req.ID),
			SessionID: sessionID,
			Name:      params.Name,
			Arguments: params.Arguments,
		})
		if r.IsError() {
			p.logger.Infow("tool call returned error", "sessionId", sessionID, "tool", params.Name, "kind", r.Error.Kind)
		}
		result = TextResult(r)
	default:
		if req.IsNotification() {
			// notifications/initialized 等通知不回复
			return nil, false
		}
		return p.errorReply(req.ID, errors.CodeMethodNotFound, "Method not found: "+req.Method), true
	}

	if req.IsNotification() {
		return nil, false
	}

	return p.reply(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}), true
}

func (p *RPCProtocol) errorReply(id json.RawMessage, code int32, message string) []byte {
	return p.reply(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

func (p *RPCProtocol) reply(resp JSONRPCResponse) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		p.logger.Errorw("encode response failed", "error", err)
		data, _ = json.Marshal(JSONRPCResponse{
			JSONRPC: JSONRPCVersion,
			ID:      resp.ID,
			Error:   &ErrorInfo{Code: errors.CodeInternalError, Message: errors.UnknownMessage},
		})
	}

	return data
}

// rpcCallID 字符串id去掉引号, 数字id原样使用, 没有id时生成一个
func rpcCallID(id json.RawMessage) string {
	var s string
	if err := json.Unmarshal(id, &s); err == nil && s != "" {
		return s
	}

	raw := string(bytes.TrimSpace(id))
	if raw == "" || raw == "null" || raw == `""` {
		return uuid.NewString()
	}

	return raw
}
