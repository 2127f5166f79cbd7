package gmcp

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangohow/mcpgate/errors"
)

func TestDecodeEnvelope(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		reason  string
		message string
	}{
		{"bad json", `{"type":`, errors.ReasonMalformedSyntax, "Invalid JSON message"},
		{"not an object", `[1,2]`, errors.ReasonMalformedSyntax, "Invalid JSON message"},
		{"missing type", `{"payload":{}}`, errors.ReasonUnknownKind, "missing message type"},
		{"unknown type", `{"type":"subscribe","payload":{}}`, errors.ReasonUnknownKind, "Unknown message type: subscribe"},
		{"missing payload", `{"type":"tool_call"}`, errors.ReasonMalformedSyntax, "missing payload for tool_call"},
		{"null payload", `{"type":"tool_call","payload":null}`, errors.ReasonMalformedSyntax, "missing payload for tool_call"},
		{"bad payload", `{"type":"tool_call","payload":{"name":3}}`, errors.ReasonMalformedSyntax, "invalid payload for tool_call"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(c.input))
			require.Error(t, err)
			assert.Nil(t, env)

			e := errors.FromError(err)
			assert.Equal(t, errors.KindDecode, e.Kind())
			assert.Equal(t, c.reason, e.Reason())
			assert.Equal(t, c.message, e.Message())
		})
	}
}

func TestDecodeToolCall(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"tool_call","id":"c-1","payload":{"name":"chat","arguments":{"messages":[{"role":"user","content":"hi"}]}}}`))
	require.NoError(t, err)

	assert.Equal(t, TypeToolCall, env.Type)
	assert.Equal(t, "c-1", env.ID)
	require.NotNil(t, env.Call)
	assert.Equal(t, "chat", env.Call.Name)
	assert.Len(t, env.Call.Arguments["messages"], 1)
	assert.Nil(t, env.Result)
	assert.Nil(t, env.Error)
}

func TestEncodeEnvelope(t *testing.T) {
	data := EncodeEnvelope(NewResultEnvelope("", RoleAssistant, "Test response"))
	assert.JSONEq(t, `{"type":"tool_result","payload":{"role":"assistant","content":"Test response"}}`, string(data))

	data = EncodeEnvelope(NewErrorEnvelope("7", errors.ReasonUnknownTool, "Unknown tool: nope"))
	assert.JSONEq(t, `{"type":"error","id":"7","payload":{"kind":"UnknownTool","message":"Unknown tool: nope"}}`, string(data))

	data = EncodeEnvelope(ResultEnvelope("9", errorResult(errors.ReasonBadResponse, "boom")))
	assert.JSONEq(t, `{"type":"error","id":"9","payload":{"kind":"BadResponse","message":"boom"}}`, string(data))
}

func TestEncodeFallsBackToInternalError(t *testing.T) {
	env := NewCallEnvelope("1", "chat", map[string]any{"bad": make(chan int)})
	assert.Equal(t, internalErrorFrame, EncodeEnvelope(env))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	argsGen := gen.MapOf(gen.Identifier(), gen.AlphaString()).Map(func(m map[string]string) map[string]any {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	})

	properties.Property("tool_call survives encode and decode", prop.ForAll(
		func(id, name string, args map[string]any) bool {
			env, err := DecodeEnvelope(EncodeEnvelope(NewCallEnvelope(id, name, args)))
			if err != nil {
				return false
			}
			return env.Type == TypeToolCall && env.ID == id && env.Call.Name == name &&
				reflect.DeepEqual(env.Call.Arguments, args)
		},
		gen.Identifier(), gen.Identifier(), argsGen,
	))

	properties.Property("tool_result survives encode and decode", prop.ForAll(
		func(id, content string) bool {
			env, err := DecodeEnvelope(EncodeEnvelope(NewResultEnvelope(id, RoleAssistant, content)))
			if err != nil {
				return false
			}
			return env.ID == id && env.Result.Role == RoleAssistant && env.Result.Content == content
		},
		gen.AlphaString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}
