package binding

import (
	"net/http"
	"slices"
	"sync"
)

// Binding 把请求的一部分解析到结构体中
type Binding interface {
	Name() string
	Bind(r *http.Request, obj any) error
}

const (
	NameJSON    = "json"
	NameQuery   = "query"
	NamePathVar = "pathvar"
)

var (
	mu       sync.RWMutex
	bindings = map[string]Binding{
		NameJSON:    JsonBinding{},
		NameQuery:   QueryBinding{Tag: "json"},
		NamePathVar: PathVarBinding{Tag: "json"},
	}
)

// RegisterBinding 同名的 binding 会被替换
func RegisterBinding(b Binding) {
	if b == nil {
		panic("binding: nil binding")
	}

	mu.Lock()
	defer mu.Unlock()
	bindings[b.Name()] = b
}

func GetBinding(name string) Binding {
	mu.RLock()
	defer mu.RUnlock()
	return bindings[name]
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
