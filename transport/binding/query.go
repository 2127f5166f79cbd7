package binding

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

type QueryBinding struct {
	Tag string
}

func (q QueryBinding) Bind(r *http.Request, obj any) error {
	return reflectMapToObj(r.URL.Query(), q.Tag, obj)
}

func (q QueryBinding) Name() string {
	return NameQuery
}

// reflectMapToObj 按结构体标签把参数映射到结构体字段, 不处理嵌套结构体
func reflectMapToObj(values url.Values, tag string, obj any) error {
	if len(values) == 0 {
		return nil
	}
	if tag == "" {
		return errors.New("bind failed: empty tag provided")
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.New("bind failed: obj must be a pointer of struct")
	}

	elemType := rv.Elem().Type()
	elemValue := rv.Elem()
	for i := 0; i < elemType.NumField(); i++ {
		field := elemType.Field(i)
		fieldValue := elemValue.Field(i)
		if !fieldValue.CanSet() || fieldValue.Kind() == reflect.Struct {
			continue
		}

		key := field.Tag.Get(tag)
		if key == "-" {
			continue
		}
		// 标签可能带有 omitempty 等选项
		if idx := strings.IndexByte(key, ','); idx >= 0 {
			key = key[:idx]
		}
		if key == "" {
			key = field.Name
		}

		params := values[key]
		if len(params) == 0 {
			continue
		}

		if err := setField(fieldValue, params); err != nil {
			return fmt.Errorf("bind failed: field %s: %w", field.Name, err)
		}
	}

	return nil
}

func setField(v reflect.Value, params []string) error {
	raw := params[0]
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int value %q", raw)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid uint value %q", raw)
		}
		v.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool value %q", raw)
		}
		v.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid float value %q", raw)
		}
		v.SetFloat(f)
	case reflect.Slice:
		// 只支持字符串切片, 对应重复的参数
		if v.Type().Elem().Kind() != reflect.String {
			return errors.New("unsupported slice type")
		}
		v.Set(reflect.ValueOf(append([]string(nil), params...)).Convert(v.Type()))
	default:
		return fmt.Errorf("unsupported field type %s", v.Kind())
	}

	return nil
}
