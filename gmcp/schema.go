package gmcp

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"

	"github.com/mangohow/mcpgate/errors"
)

type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeArray   SchemaType = "array"
	TypeObject  SchemaType = "object"
)

// Schema 工具参数的约束描述, 是 JSON Schema 的一个子集
type Schema struct {
	Type        SchemaType
	Description string
	// Properties Required 仅对 object 有效
	Properties map[string]*Schema
	Required   []string
	// Items 仅对 array 有效
	Items *Schema
	Enum  []any
	// Minimum Maximum 仅对 number/integer 有效, 闭区间
	Minimum *float64
	Maximum *float64
	Default any
}

func Bound(v float64) *float64 {
	return &v
}

// Arguments 校验通过的参数, 缺省值已填充
// integer 统一为 int64, number 统一为 float64
type Arguments map[string]any

func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Arguments) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}

	return 0
}

func (a Arguments) Int(name string) int64 {
	switch v := a[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}

	return 0
}

func (a Arguments) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Arguments) Slice(name string) []any {
	s, _ := a[name].([]any)
	return s
}

// Validate 按 schema 校验参数, 纯函数, 相同输入得到相同结果
func Validate(schema *Schema, args map[string]any) (Arguments, error) {
	if schema == nil {
		return Arguments(args), nil
	}

	if len(args) == 0 && len(schema.Required) > 0 {
		return nil, errors.New(errors.KindValidation, errors.ReasonMissingField, "No arguments provided")
	}

	out, err := validateObject(schema, args, "")
	if err != nil {
		return nil, err
	}

	return Arguments(out), nil
}

func validateValue(s *Schema, v any, path string) (any, error) {
	out, err := validateType(s, v, path)
	if err != nil {
		return nil, err
	}

	if err := checkEnum(s, out, path); err != nil {
		return nil, err
	}

	return out, nil
}

func validateType(s *Schema, v any, path string) (any, error) {
	switch s.Type {
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return nil, typeMismatch(path, s.Type, v)
		}
		return str, nil
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(path, s.Type, v)
		}
		return b, nil
	case TypeNumber:
		f, ok := toFloat(v)
		if !ok {
			return nil, typeMismatch(path, s.Type, v)
		}
		if err := checkBounds(s, f, path); err != nil {
			return nil, err
		}
		return f, nil
	case TypeInteger:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, typeMismatch(path, s.Type, v)
		}
		if err := checkBounds(s, f, path); err != nil {
			return nil, err
		}
		// float64(math.MaxInt64) 等于 2^63, 已经超出 int64
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, errors.Newf(errors.KindValidation, errors.ReasonOutOfRange,
				"%s must fit in a 64-bit integer, got %v", path, f)
		}
		return int64(f), nil
	case TypeArray:
		items, ok := v.([]any)
		if !ok {
			return nil, typeMismatch(path, s.Type, v)
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			if s.Items == nil {
				out = append(out, item)
				continue
			}
			iv, err := validateValue(s.Items, item, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out = append(out, iv)
		}
		return out, nil
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, typeMismatch(path, s.Type, v)
		}
		return validateObject(s, obj, path)
	}

	// 未声明类型, 不做约束
	return v, nil
}

func validateObject(s *Schema, obj map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(s.Properties))
	// 未声明的字段原样保留, 不报错
	for k, v := range obj {
		if _, declared := s.Properties[k]; !declared {
			out[k] = v
		}
	}

	for _, name := range s.Required {
		if v, ok := obj[name]; !ok || v == nil {
			return nil, errors.Newf(errors.KindValidation, errors.ReasonMissingField,
				"missing required field %s", join(path, name))
		}
	}

	// 按名字排序遍历, 保证多个字段出错时报告的错误确定
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		prop := s.Properties[name]
		v, ok := obj[name]
		if !ok || v == nil {
			if prop.Default != nil {
				out[name] = prop.Default
			}
			continue
		}

		cv, err := validateValue(prop, v, join(path, name))
		if err != nil {
			return nil, err
		}
		out[name] = cv
	}

	return out, nil
}

func checkEnum(s *Schema, v any, path string) error {
	if len(s.Enum) == 0 {
		return nil
	}

	for _, e := range s.Enum {
		if equalValue(e, v) {
			return nil
		}
	}

	return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange,
		"%s must be one of %v, got %v", path, s.Enum, v)
}

func checkBounds(s *Schema, f float64, path string) error {
	if s.Minimum != nil && f < *s.Minimum {
		return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange,
			"%s must be >= %v, got %v", path, *s.Minimum, f)
	}
	if s.Maximum != nil && f > *s.Maximum {
		return errors.Newf(errors.KindValidation, errors.ReasonOutOfRange,
			"%s must be <= %v, got %v", path, *s.Maximum, f)
	}

	return nil
}

func typeMismatch(path string, want SchemaType, got any) error {
	return errors.Newf(errors.KindValidation, errors.ReasonTypeMismatch,
		"%s must be %s, got %s", path, want, typeName(got))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}

	return 0, false
}

func equalValue(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}

	return reflect.DeepEqual(a, b)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}

	return fmt.Sprintf("%T", v)
}

func join(path, name string) string {
	if path == "" {
		return name
	}

	return path + "." + name
}

// JSONSchema 生成 tools/list 中的 inputSchema
func (s *Schema) JSONSchema() map[string]any {
	doc := map[string]any{}
	if s.Type != "" {
		doc["type"] = string(s.Type)
	}
	if s.Description != "" {
		doc["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		doc["enum"] = s.Enum
	}
	if s.Minimum != nil {
		doc["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		doc["maximum"] = *s.Maximum
	}
	if s.Default != nil {
		doc["default"] = s.Default
	}
	if s.Items != nil {
		doc["items"] = s.Items.JSONSchema()
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		doc["properties"] = props
		if len(s.Required) > 0 {
			doc["required"] = slices.Clone(s.Required)
		}
	}

	return doc
}
