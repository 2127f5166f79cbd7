package gmcp

import (
	"encoding/json"
)

const (
	JSONRPCVersion = "2.0"
	// MCPProtocolVersion initialize 时回复的协议版本
	MCPProtocolVersion = "2024-11-05"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      json.RawMessage `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification 没有id的请求不需要回复
func (r *JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0
}

type ErrorInfo struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

var nullID = json.RawMessage("null")

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ToolInfo tools/list 中的一项
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ListTools 按注册顺序生成工具列表
func ListTools(r *Registry) []ToolInfo {
	descs := r.List()
	out := make([]ToolInfo, 0, len(descs))
	for _, d := range descs {
		schema := map[string]any{"type": "object"}
		if d.Schema != nil {
			schema = d.Schema.JSONSchema()
		}
		out = append(out, ToolInfo{Name: d.Name, Description: d.Description, InputSchema: schema})
	}

	return out
}

// TextResult 工具错误作为普通文本返回, 以 "Error: " 开头
func TextResult(r *ToolResult) *CallToolResult {
	if r.Error != nil {
		return &CallToolResult{
			Content: []TextContent{{Type: "text", Text: "Error: " + r.Error.Message}},
			IsError: true,
		}
	}

	return &CallToolResult{Content: []TextContent{{Type: "text", Text: r.Content}}}
}
