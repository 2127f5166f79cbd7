package serialize

import "github.com/mangohow/mcpgate/errors"

// Response HTTP 接口统一的返回结构, Data 和 Error 只有一个非空
type Response struct {
	Data  any          `json:"data,omitempty"`
	Error errors.Error `json:"error,omitempty"`
}
