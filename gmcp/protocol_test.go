package gmcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangohow/mcpgate/errors"
)

func newEchoDispatcher() *Dispatcher {
	r := NewRegistry()
	r.MustRegister(&ToolDescriptor{
		Name: "echo",
		Schema: &Schema{
			Type:       TypeObject,
			Properties: map[string]*Schema{"text": {Type: TypeString}},
			Required:   []string{"text"},
		},
		Handler: echoHandler(),
	})
	r.Seal()

	return NewDispatcher(r)
}

func decodeReply(t *testing.T, data []byte) *Envelope {
	t.Helper()
	env, err := DecodeEnvelope(data)
	require.NoError(t, err)
	return env
}

func TestEnvelopeProtocol(t *testing.T) {
	p := NewEnvelopeProtocol(newEchoDispatcher())
	ctx := context.Background()

	reply, ok := p.Handle(ctx, "s", []byte(`{"type":"tool_call","id":"1","payload":{"name":"echo","arguments":{"text":"hi"}}}`))
	require.True(t, ok)
	env := decodeReply(t, reply)
	assert.Equal(t, TypeToolResult, env.Type)
	assert.Equal(t, "1", env.ID)
	assert.Equal(t, "hi", env.Result.Content)
	assert.Equal(t, RoleAssistant, env.Result.Role)

	reply, ok = p.Handle(ctx, "s", []byte(`not json`))
	require.True(t, ok)
	env = decodeReply(t, reply)
	assert.Equal(t, TypeError, env.Type)
	assert.Equal(t, errors.ReasonMalformedSyntax, env.Error.Kind)
	assert.Equal(t, "Invalid JSON message", env.Error.Message)

	reply, ok = p.Handle(ctx, "s", []byte(`{"type":"tool_result","id":"2","payload":{"role":"user","content":"x"}}`))
	require.True(t, ok)
	env = decodeReply(t, reply)
	assert.Equal(t, TypeError, env.Type)
	assert.Equal(t, "2", env.ID)
	assert.Equal(t, "Unsupported message type: tool_result", env.Error.Message)

	reply, ok = p.Handle(ctx, "s", []byte(`{"type":"tool_call","payload":{"name":"missing","arguments":{}}}`))
	require.True(t, ok)
	env = decodeReply(t, reply)
	assert.Equal(t, errors.ReasonUnknownTool, env.Error.Kind)
	assert.Equal(t, "Unknown tool: missing", env.Error.Message)
}

func rpc(t *testing.T, p *RPCProtocol, frame string) map[string]any {
	t.Helper()
	reply, ok := p.Handle(context.Background(), "s", []byte(frame))
	require.True(t, ok)

	var out map[string]any
	require.NoError(t, json.Unmarshal(reply, &out))
	assert.Equal(t, "2.0", out["jsonrpc"])
	return out
}

func TestRPCProtocol(t *testing.T) {
	p := NewRPCProtocol(newEchoDispatcher(), ServerInfo{Name: "mcpgate", Version: "test"})

	out := rpc(t, p, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	result := out["result"].(map[string]any)
	assert.Equal(t, MCPProtocolVersion, result["protocolVersion"])
	assert.Equal(t, "mcpgate", result["serverInfo"].(map[string]any)["name"])

	out = rpc(t, p, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	tools := out["result"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].(map[string]any)["name"])

	out = rpc(t, p, `{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}`)
	assert.Equal(t, "a", out["id"])
	content := out["result"].(map[string]any)["content"].([]any)
	assert.Equal(t, "hello", content[0].(map[string]any)["text"])

	out = rpc(t, p, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)
	res := out["result"].(map[string]any)
	assert.Equal(t, true, res["isError"])
	assert.Equal(t, "Error: Invalid arguments: No arguments provided", res["content"].([]any)[0].(map[string]any)["text"])

	out = rpc(t, p, `{"jsonrpc":"2.0","id":5,"method":"ping"}`)
	assert.Equal(t, map[string]any{}, out["result"])
}

func TestRPCProtocolCallIDs(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ToolDescriptor{Name: "whoami", Handler: HandlerFunc(func(c *Context) (*Content, error) {
		return &Content{Text: c.CallID()}, nil
	})})
	r.Seal()
	p := NewRPCProtocol(NewDispatcher(r), ServerInfo{Name: "mcpgate", Version: "test"})

	callID := func(id string) string {
		out := rpc(t, p, `{"jsonrpc":"2.0","id":`+id+`,"method":"tools/call","params":{"name":"whoami"}}`)
		return out["result"].(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	}

	assert.Equal(t, "abc", callID(`"abc"`))
	assert.Equal(t, "7", callID(`7`))
	assert.Len(t, callID(`""`), 36)

	assert.Len(t, rpcCallID(nil), 36)
	assert.Len(t, rpcCallID(json.RawMessage("null")), 36)
}

func TestRPCProtocolErrors(t *testing.T) {
	p := NewRPCProtocol(newEchoDispatcher(), ServerInfo{Name: "mcpgate"})

	cases := []struct {
		name  string
		frame string
		code  float64
	}{
		{"parse error", `{"jsonrpc":`, float64(errors.CodeParseError)},
		{"bad version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, float64(errors.CodeInvalidRequest)},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, float64(errors.CodeMethodNotFound)},
		{"bad params", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":[1]}`, float64(errors.CodeInvalidParams)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := rpc(t, p, c.frame)
			e := out["error"].(map[string]any)
			assert.Equal(t, c.code, e["code"])
		})
	}
}

func TestRPCProtocolNotifications(t *testing.T) {
	p := NewRPCProtocol(newEchoDispatcher(), ServerInfo{Name: "mcpgate"})

	_, ok := p.Handle(context.Background(), "s", []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.False(t, ok)

	_, ok = p.Handle(context.Background(), "s", []byte(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo","arguments":{"text":"x"}}}`))
	assert.False(t, ok)
}
