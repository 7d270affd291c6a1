// Package atomerr 定义 atom 的错误码、错误描述以及到通用 POSIX 错误条件的映射。
//
// 所有可能失败的操作都返回 *Error（成功时返回 nil），
// 调用方可以直接比较错误码，也可以用 errors.Is 与 unix.EIO 等通用条件比较：
//
//	reply, err := conn.XAdd("cam", "msgpack", payload)
//	if errors.Is(err, unix.EIO) { ... }
package atomerr

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Code atom 错误码
type Code int

const (
	NoError Code = iota
	InternalError
	StoreError // 服务端返回的错误回复，附带详细信息
	NoResponse
	InvalidCommand
	UnsupportedCommand
	CallbackFailed
)

const category = "atom error"

// Error 由错误码和（仅 StoreError 使用的）服务端错误信息组成。
// 零值表示没有错误。
type Error struct {
	code     Code
	storeMsg string
}

func New(code Code) *Error {
	e := &Error{}
	e.SetErrorCode(code)
	return e
}

func NewStoreError(msg string) *Error {
	e := &Error{}
	e.SetStoreError(msg)
	return e
}

// SetErrorCode 设置错误码，同时清除之前的服务端错误信息
func (e *Error) SetErrorCode(code Code) {
	e.code = code
	e.storeMsg = ""
}

// SetStoreError 记录服务端返回的错误回复，原样保存错误文本
func (e *Error) SetStoreError(msg string) {
	e.code = StoreError
	e.storeMsg = msg
}

func (e *Error) Code() Code {
	if e == nil {
		return NoError
	}
	return e.code
}

func (e *Error) Ok() bool {
	return e.Code() == NoError
}

func (e *Error) Category() string {
	return category
}

// StoreErrorMessage 返回服务端错误的详细文本
func (e *Error) StoreErrorMessage() string {
	if e == nil {
		return ""
	}
	return e.storeMsg
}

// Message 返回错误码对应的固定描述，不包含服务端错误详情
func (e *Error) Message() string {
	return e.Code().String()
}

func (e *Error) Error() string {
	if e.Code() == StoreError && e.storeMsg != "" {
		return e.Message() + ": " + e.storeMsg
	}
	return e.Message()
}

func (c Code) String() string {
	switch c {
	case NoError:
		return "Success"
	case InternalError:
		return "atom has encountered an internal error"
	case StoreError:
		return "atom has encountered a redis error"
	case NoResponse:
		return "atom was unable to get a response"
	case InvalidCommand, UnsupportedCommand:
		return "atom does not support this command"
	case CallbackFailed:
		return "atom callback has failed"
	default:
		return "unknown"
	}
}

// DefaultCondition 将 atom 错误码映射为通用错误条件。
// StoreError 和 CallbackFailed 没有对应的通用条件，返回错误本身。
func (e *Error) DefaultCondition() error {
	switch e.Code() {
	case NoError:
		return unix.Errno(0)
	case InternalError:
		return unix.EIO
	case NoResponse:
		return unix.ENOMSG
	case InvalidCommand, UnsupportedCommand:
		return unix.ENOTSUP
	default:
		return e
	}
}

// Is 使 errors.Is 可以把 atom 错误与通用错误条件比较
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code() == t.Code()
	}
	errno, ok := e.DefaultCondition().(unix.Errno)
	if !ok {
		return false
	}
	return error(errno) == target || errno.Is(target)
}

// CodeOf 取出 err 中的 atom 错误码，非 atom 错误视为 InternalError
func CodeOf(err error) Code {
	if err == nil {
		return NoError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return InternalError
}
