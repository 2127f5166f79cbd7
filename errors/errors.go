package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind 错误大类, 对应网关内部的各层
type Kind string

const (
	KindDecode     Kind = "decode"
	KindValidation Kind = "validation"
	KindTool       Kind = "tool"
	KindResource   Kind = "resource"
	KindUpstream   Kind = "upstream"
	KindTransport  Kind = "transport"
	KindInternal   Kind = "internal"
)

// 错误原因, 作为错误的标签返回给客户端
const (
	ReasonMalformedSyntax     = "MalformedSyntax"
	ReasonUnknownKind         = "UnknownKind"
	ReasonMissingField        = "MissingField"
	ReasonTypeMismatch        = "TypeMismatch"
	ReasonOutOfRange          = "OutOfRange"
	ReasonUnknownTool         = "UnknownTool"
	ReasonInvalidArguments    = "InvalidArguments"
	ReasonDuplicateTool       = "DuplicateTool"
	ReasonNotFound            = "NotFound"
	ReasonStartTimeout        = "StartTimeout"
	ReasonResourceUnavailable = "ResourceUnavailable"
	ReasonUnreachable         = "Unreachable"
	ReasonBadResponse         = "BadResponse"
	ReasonMalformedResponse   = "MalformedResponse"
	ReasonClosed              = "Closed"
	ReasonCanceled            = "Canceled"
	UnknownReason             = "Unknown"
)

// JSON-RPC 错误码
const (
	CodeParseError     int32 = -32700
	CodeInvalidRequest int32 = -32600
	CodeMethodNotFound int32 = -32601
	CodeInvalidParams  int32 = -32602
	CodeInternalError  int32 = -32603

	UnknownCode   = CodeInternalError
	DefaultStatus = http.StatusInternalServerError

	UnknownMessage = "internal error"
)

type Error interface {
	error
	Kind() Kind
	Reason() string
	Code() int32
	HttpStatus() int32
	Message() string
	Retriable() bool
	Unwrap() error
}

type gatewayError struct {
	kind    Kind
	reason  string
	code    int32
	status  int32
	message string
	cause   error
}

func (e *gatewayError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.reason, e.message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.reason, e.message)
}

func (e *gatewayError) Kind() Kind {
	return e.kind
}

func (e *gatewayError) Reason() string {
	return e.reason
}

func (e *gatewayError) Code() int32 {
	return e.code
}

func (e *gatewayError) HttpStatus() int32 {
	return e.status
}

func (e *gatewayError) Message() string {
	return e.message
}

func (e *gatewayError) Unwrap() error {
	return e.cause
}

func (e *gatewayError) Retriable() bool {
	switch e.reason {
	case ReasonStartTimeout, ReasonUnreachable, ReasonResourceUnavailable:
		return true
	}

	return false
}

// MarshalJSON 序列化时只暴露 reason 和 message, 不泄露内部原因
func (e *gatewayError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    int32  `json:"code"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}{e.code, e.reason, e.message})
}

func New(kind Kind, reason, message string) Error {
	return &gatewayError{
		kind:    kind,
		reason:  reason,
		code:    codeOf(reason),
		status:  statusOf(reason),
		message: message,
	}
}

func Newf(kind Kind, reason, format string, args ...any) Error {
	return New(kind, reason, fmt.Sprintf(format, args...))
}

func Wrap(kind Kind, reason, message string, cause error) Error {
	e := New(kind, reason, message).(*gatewayError)
	e.cause = cause

	return e
}

// FromError 将任意错误转换为 Error, 无法识别的错误归为 internal
func FromError(err error) Error {
	if err == nil {
		return nil
	}

	var e Error
	if stderrors.As(err, &e) {
		return e
	}

	return Wrap(KindInternal, UnknownReason, UnknownMessage, err)
}

// FromReason 根据 reason 重建错误, 用于已经被翻译成字符串的工具错误
func FromReason(reason, message string) Error {
	return New(kindOf(reason), reason, message)
}

func ReasonOf(err error) string {
	var e Error
	if stderrors.As(err, &e) {
		return e.Reason()
	}

	return UnknownReason
}

func IsReason(err error, reason string) bool {
	var e Error
	if !stderrors.As(err, &e) {
		return false
	}

	return e.Reason() == reason
}

// Is As 透传标准库, 避免调用方同时导入两个 errors 包
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func codeOf(reason string) int32 {
	switch reason {
	case ReasonMalformedSyntax:
		return CodeParseError
	case ReasonUnknownKind:
		return CodeInvalidRequest
	case ReasonUnknownTool:
		return CodeMethodNotFound
	case ReasonMissingField, ReasonTypeMismatch, ReasonOutOfRange, ReasonInvalidArguments:
		return CodeInvalidParams
	}

	return CodeInternalError
}

func statusOf(reason string) int32 {
	switch reason {
	case ReasonMalformedSyntax, ReasonUnknownKind, ReasonMissingField,
		ReasonTypeMismatch, ReasonOutOfRange, ReasonInvalidArguments:
		return http.StatusBadRequest
	case ReasonUnknownTool:
		return http.StatusNotFound
	case ReasonDuplicateTool:
		return http.StatusConflict
	case ReasonStartTimeout, ReasonResourceUnavailable:
		return http.StatusServiceUnavailable
	case ReasonUnreachable, ReasonBadResponse, ReasonMalformedResponse:
		return http.StatusBadGateway
	case ReasonCanceled:
		return 499
	}

	return DefaultStatus
}

func kindOf(reason string) Kind {
	switch reason {
	case ReasonMalformedSyntax, ReasonUnknownKind:
		return KindDecode
	case ReasonMissingField, ReasonTypeMismatch, ReasonOutOfRange:
		return KindValidation
	case ReasonUnknownTool, ReasonInvalidArguments, ReasonDuplicateTool:
		return KindTool
	case ReasonNotFound, ReasonStartTimeout, ReasonResourceUnavailable:
		return KindResource
	case ReasonUnreachable, ReasonBadResponse, ReasonMalformedResponse:
		return KindUpstream
	case ReasonClosed:
		return KindTransport
	}

	return KindInternal
}
