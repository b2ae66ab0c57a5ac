package errors

import "fmt"

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
	CodeDependency   = 503
	// CodeIndeterminate 多步操作部分完成，结果不确定：
	// 调用方不能当作失败重试，由对账任务负责修复
	CodeIndeterminate = 520
)

// AppError 业务错误，携带错误码供响应层映射
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建业务错误
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap 包装底层错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ========== 快捷构造方法 ==========

// NewValidation 参数错误，调用方可修正后重试
func NewValidation(message string) *AppError {
	return New(CodeInvalidParam, message)
}

// NewUnauthorized 未认证
func NewUnauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

// NewForbidden 无权限，直接拒绝不返回部分结果
func NewForbidden(message string) *AppError {
	return New(CodeForbidden, message)
}

// NewNotFound 资源不存在
func NewNotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

// NewConflict 状态冲突：重复邀请、邀请已处理、配额超限等
func NewConflict(message string) *AppError {
	return New(CodeConflict, message)
}

// NewDependency 依赖不可用，可重试
func NewDependency(message string, err error) *AppError {
	return Wrap(CodeDependency, message, err)
}

// NewIndeterminate 多步操作结果不确定，需要对账修复
func NewIndeterminate(message string, err error) *AppError {
	return Wrap(CodeIndeterminate, message, err)
}
