package gmcp

import (
	"encoding/json"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mangohow/mcpgate/errors"
)

// ToolDescriptor 工具描述, 启动时注册, 之后只读
type ToolDescriptor struct {
	Name        string
	Description string
	Schema      *Schema
	Handler     ToolHandler
}

// Registry 工具名到描述的映射
// 注册只发生在启动阶段, Seal 之后只有读操作, 因此查询不需要加锁
type Registry struct {
	tools  map[string]*ToolDescriptor
	order  []string
	sealed atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*ToolDescriptor),
	}
}

func (r *Registry) Register(desc *ToolDescriptor) error {
	if desc == nil || desc.Name == "" || desc.Handler == nil {
		return errors.New(errors.KindTool, errors.ReasonInvalidArguments, "tool descriptor requires a name and a handler")
	}
	if r.sealed.Load() {
		return errors.Newf(errors.KindTool, errors.ReasonInvalidArguments, "registry is sealed, cannot register %s", desc.Name)
	}
	if _, ok := r.tools[desc.Name]; ok {
		return errors.Newf(errors.KindTool, errors.ReasonDuplicateTool, "tool %s already registered", desc.Name)
	}

	if desc.Schema != nil {
		if err := compileSchema(desc.Name, desc.Schema); err != nil {
			return errors.Wrap(errors.KindTool, errors.ReasonInvalidArguments, "invalid input schema for tool "+desc.Name, err)
		}
	}

	r.tools[desc.Name] = desc
	r.order = append(r.order, desc.Name)

	return nil
}

// MustRegister 启动阶段使用, 注册失败直接panic
func (r *Registry) MustRegister(desc *ToolDescriptor) {
	if err := r.Register(desc); err != nil {
		panic(err)
	}
}

// Seal 禁止后续注册
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

func (r *Registry) Lookup(name string) (*ToolDescriptor, bool) {
	desc, ok := r.tools[name]
	return desc, ok
}

// List 按注册顺序返回
func (r *Registry) List() []*ToolDescriptor {
	out := make([]*ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}

	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}

// compileSchema 确认生成的 inputSchema 是合法的 JSON Schema
func compileSchema(name string, s *Schema) error {
	raw, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return err
	}
	_, err = c.Compile(url)

	return err
}
