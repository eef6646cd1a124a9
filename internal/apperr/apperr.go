// Package apperr 定义业务错误类型，并在请求边界统一映射为 HTTP 状态码与消息
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind uint8

const (
	Unknown Kind = iota
	Invalid
	Conflict
	NotFound
	Unauthorized
	Unavailable
	Internal
)

// 对外固定文案
const (
	MsgNotFound = "resource not found"
	MsgInternal = "server is busy, we are working on it"
)

// 未携带 Msg 时按类型给出的默认文案
var defaultMessages = map[Kind]string{
	Invalid:      "invalid request",
	Conflict:     "resource already exists",
	Unauthorized: "authentication required",
	Unavailable:  "service temporarily unavailable, try again later",
}

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "Invalid"
	case Conflict:
		return "Conflict"
	case NotFound:
		return "NotFound"
	case Unauthorized:
		return "Unauthorized"
	case Unavailable:
		return "Unavailable"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error 携带操作名、错误类型以及可以展示给调用方的消息
type Error struct {
	Op   string
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Op == "":
		return e.Msg
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Op == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E 包装一个底层错误
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// New 创建一个带对外消息的错误
func New(op string, kind Kind, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// KindOf 返回错误链上第一个 *Error 的类型
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Message 返回可以安全展示的消息，底层错误文本一律不外泄
func Message(err error) string {
	kind := KindOf(err)
	switch kind {
	case NotFound:
		return MsgNotFound
	case Unknown, Internal:
		return MsgInternal
	}

	var e *Error
	for target := err; errors.As(target, &e); target = e.Err {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err == nil {
			break
		}
	}
	return defaultMessages[kind]
}

// HTTPStatus 将错误类型映射为状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Invalid:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
