package lifecycle

import (
	"errors"
	"fmt"
)

// Kind 领域错误类别
type Kind int

const (
	// KindUnknown 未分类错误
	KindUnknown Kind = iota
	// KindValidation 输入校验失败,拒绝于任何写入之前
	KindValidation
	// KindNotFound 许可单或审批记录不存在
	KindNotFound
	// KindInvalidState 状态机前置条件不满足
	KindInvalidState
	// KindConflict 并发冲突(如序号分配竞争),内部重试后才对外暴露
	KindConflict
	// KindPersistence 存储层失败,整个事务回滚
	KindPersistence
)

// Error 携带类别的领域错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation 创建校验错误
func NewValidation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound 创建未找到错误
func NewNotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidState 创建非法状态转换错误
func NewInvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// NewConflict 创建并发冲突错误
func NewConflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// NewPersistence 包装存储层错误
func NewPersistence(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf 返回错误的类别,未知错误返回 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
