package gmcp

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangohow/mcpgate/errors"
)

func echoHandler() ToolHandler {
	return HandlerFunc(func(c *Context) (*Content, error) {
		return &Content{Text: c.Args().String("text")}, nil
	})
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDescriptor{Name: "b", Handler: echoHandler()}))
	require.NoError(t, r.Register(&ToolDescriptor{Name: "a", Schema: testSchema(), Handler: echoHandler()}))

	desc, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", desc.Name)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	names := make([]string, 0)
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"b", "a"}, names)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryRejects(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDescriptor{Name: "chat", Handler: echoHandler()}))

	err := r.Register(&ToolDescriptor{Name: "chat", Handler: echoHandler()})
	assert.True(t, errors.IsReason(err, errors.ReasonDuplicateTool))

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&ToolDescriptor{Name: "nohandler"}))
	assert.Error(t, r.Register(&ToolDescriptor{Handler: echoHandler()}))

	err = r.Register(&ToolDescriptor{
		Name:    "badschema",
		Schema:  &Schema{Type: SchemaType("strnig")},
		Handler: echoHandler(),
	})
	assert.True(t, errors.IsReason(err, errors.ReasonInvalidArguments))

	r.Seal()
	assert.Error(t, r.Register(&ToolDescriptor{Name: "late", Handler: echoHandler()}))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryMustRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ToolDescriptor{Name: "chat", Handler: echoHandler()})
	assert.Panics(t, func() {
		r.MustRegister(&ToolDescriptor{Name: "chat", Handler: echoHandler()})
	})
}

func TestListToolsExposesSchema(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ToolDescriptor{Name: "chat", Description: "talk", Schema: testSchema(), Handler: echoHandler()})

	tools := ListTools(r)
	require.Len(t, tools, 1)
	assert.Equal(t, "chat", tools[0].Name)
	assert.Equal(t, "talk", tools[0].Description)
	assert.Equal(t, "object", tools[0].InputSchema["type"])
}

// 名字取自一个小集合, 保证重复注册会出现
var toolNames = []string{"chat", "search", "shell", "read_file", "write_file"}

func TestRegistryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every registered name is found and listed in order", prop.ForAll(
		func(names []string) bool {
			r := NewRegistry()
			var want []string
			for _, name := range names {
				err := r.Register(&ToolDescriptor{Name: name, Handler: echoHandler()})
				if slices.Contains(want, name) {
					if !errors.IsReason(err, errors.ReasonDuplicateTool) {
						return false
					}
					continue
				}
				if err != nil {
					return false
				}
				want = append(want, name)
			}
			r.Seal()

			var got []string
			for _, desc := range r.List() {
				got = append(got, desc.Name)
			}
			for _, name := range want {
				if _, ok := r.Lookup(name); !ok {
					return false
				}
			}

			return slices.Equal(want, got) && r.Len() == len(want)
		},
		gen.SliceOf(gen.IntRange(0, len(toolNames)-1).Map(func(i int) string { return toolNames[i] })),
	))

	properties.TestingRun(t)
}
