package binding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var ErrBodyTooLarge = errors.New("request body too large")

// JsonBinding MaxBytes <= 0 时不限制请求体大小
type JsonBinding struct {
	MaxBytes int64
}

func (j JsonBinding) Bind(r *http.Request, obj any) error {
	if r == nil || r.Body == nil {
		return errors.New("bind json: nil request body")
	}
	if obj == nil {
		return errors.New("bind json: nil target")
	}
	defer r.Body.Close()

	var body io.Reader = r.Body
	if j.MaxBytes > 0 {
		body = io.LimitReader(r.Body, j.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("bind json: read body: %w", err)
	}
	if j.MaxBytes > 0 && int64(len(data)) > j.MaxBytes {
		return ErrBodyTooLarge
	}

	// 空 body 视为没有参数
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("bind json: %w", err)
	}

	return nil
}

func (j JsonBinding) Name() string {
	return NameJSON
}
