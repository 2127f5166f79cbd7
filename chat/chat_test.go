package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangohow/mcpgate/errors"
	"github.com/mangohow/mcpgate/gmcp"
	"github.com/mangohow/mcpgate/upstream"
)

type fakeUpstream struct {
	status int
	body   string
	mu     sync.Mutex
	last   map[string]any
}

func (f *fakeUpstream) lastBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeUpstream) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
}

func (f *fakeUpstream) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		f.mu.Lock()
		f.last = body
		f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProtocol(t *testing.T, up *fakeUpstream) *gmcp.EnvelopeProtocol {
	srv := up.server(t)
	registry := gmcp.NewRegistry()
	registry.MustRegister(NewTool(upstream.NewClient(srv.URL)))
	registry.Seal()

	return gmcp.NewEnvelopeProtocol(gmcp.NewDispatcher(registry))
}

func call(t *testing.T, p *gmcp.EnvelopeProtocol, frame string) *gmcp.Envelope {
	t.Helper()
	reply, ok := p.Handle(context.Background(), "session", []byte(frame))
	require.True(t, ok)
	env, err := gmcp.DecodeEnvelope(reply)
	require.NoError(t, err)
	return env
}

func TestChatCallSucceeds(t *testing.T) {
	up := &fakeUpstream{body: `{"choices":[{"message":{"role":"assistant","content":"Test response"}}]}`}
	p := newProtocol(t, up)

	env := call(t, p, `{"type":"tool_call","payload":{"name":"chat","arguments":{"messages":[{"role":"user","content":"Hello"}],"temperature":0.7,"max_tokens":500}}}`)
	require.Equal(t, gmcp.TypeToolResult, env.Type)
	assert.Equal(t, "assistant", env.Result.Role)
	assert.Equal(t, "Test response", env.Result.Content)

	assert.Equal(t, DefaultModel, up.lastBody()["model"])
	assert.Equal(t, float64(500), up.lastBody()["max_tokens"])
	assert.Equal(t, 1.0, up.lastBody()["top_p"])
	assert.Equal(t, false, up.lastBody()["stream"])
}

func TestChatResultRoleIsAlwaysAssistant(t *testing.T) {
	up := &fakeUpstream{body: `{"choices":[{"message":{"role":"user","content":"Test response"}}]}`}
	p := newProtocol(t, up)

	env := call(t, p, `{"type":"tool_call","payload":{"name":"chat","arguments":{"messages":[{"role":"user","content":"Hello"}]}}}`)
	require.Equal(t, gmcp.TypeToolResult, env.Type)
	assert.Equal(t, gmcp.RoleAssistant, env.Result.Role)
	assert.Equal(t, "Test response", env.Result.Content)
}

func TestChatPreservesMessageOrderAndIgnoresStream(t *testing.T) {
	up := &fakeUpstream{body: `{"choices":[{"message":{"content":"ok"}}]}`}
	p := newProtocol(t, up)

	env := call(t, p, `{"type":"tool_call","payload":{"name":"chat","arguments":{"model":"deepseek-chat","stream":true,"messages":[
		{"role":"system","content":"one"},{"role":"user","content":"two"},{"role":"assistant","content":"three"},{"role":"user","content":"four"}]}}}`)
	require.Equal(t, gmcp.TypeToolResult, env.Type)

	assert.Equal(t, "deepseek-chat", up.lastBody()["model"])
	assert.Equal(t, false, up.lastBody()["stream"])
	msgs := up.lastBody()["messages"].([]any)
	require.Len(t, msgs, 4)
	for i, want := range []string{"one", "two", "three", "four"} {
		assert.Equal(t, want, msgs[i].(map[string]any)["content"])
	}
}

func TestChatUpstreamBadRequest(t *testing.T) {
	up := &fakeUpstream{status: http.StatusBadRequest, body: `{"error":"bad"}`}
	p := newProtocol(t, up)

	env := call(t, p, `{"type":"tool_call","payload":{"name":"chat","arguments":{"messages":[{"role":"user","content":"Hello"}]}}}`)
	require.Equal(t, gmcp.TypeError, env.Type)
	assert.Equal(t, errors.ReasonBadResponse, env.Error.Kind)
	assert.Contains(t, env.Error.Message, "Bad Request")
}

func TestChatRejectsBadArgumentsWithoutUpstreamCall(t *testing.T) {
	up := &fakeUpstream{body: `{"choices":[{"message":{"content":"ok"}}]}`}
	p := newProtocol(t, up)

	cases := map[string]string{
		"empty":       `{}`,
		"model":       `{"messages":[{"role":"user","content":"x"}],"model":"gpt-4"}`,
		"temperature": `{"messages":[{"role":"user","content":"x"}],"temperature":3}`,
		"max tokens":  `{"messages":[{"role":"user","content":"x"}],"max_tokens":4001}`,
		"role":        `{"messages":[{"role":"tool","content":"x"}]}`,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			up.reset()
			env := call(t, p, `{"type":"tool_call","payload":{"name":"chat","arguments":`+args+`}}`)
			require.Equal(t, gmcp.TypeError, env.Type)
			assert.Equal(t, errors.ReasonInvalidArguments, env.Error.Kind)
			assert.Nil(t, up.lastBody())
		})
	}
}

func TestSchemaCompiles(t *testing.T) {
	r := gmcp.NewRegistry()
	require.NoError(t, r.Register(NewTool(upstream.NewClient("http://localhost"), WithModels([]string{"m1"}, "m1"))))

	desc, ok := r.Lookup(ToolName)
	require.True(t, ok)
	assert.Equal(t, []any{"m1"}, desc.Schema.Properties["model"].Enum)
	assert.Equal(t, "m1", desc.Schema.Properties["model"].Default)
}
