// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"

	// 值班表生成相关
	CodeRepositoryUnavailable Code = "REPOSITORY_UNAVAILABLE" // 存储不可达，生成中止
	CodeConfigInvalid         Code = "CONFIG_INVALID"         // 配置键无效，回退默认值
	CodeLockedCell            Code = "LOCKED_CELL"            // 单元格被锁定，拒绝写入
	CodeNoCandidate           Code = "NO_CANDIDATE"           // 某轮无存活候选人
	CodeUnderStaffed          Code = "UNDER_STAFFED"          // 四轮后仍未达最低配员
	CodeCancelled             Code = "CANCELLED"              // 协作式取消
	CodeInvariantBroken       Code = "INVARIANT_BROKEN"       // 事后不变量检查失败，致命
	CodeAlreadyRunning        Code = "ALREADY_RUNNING"        // 同月已有生成在运行
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsFatal 检查错误是否致命（致命错误中止整次生成）
func (e *AppError) IsFatal() bool {
	return e.Code == CodeRepositoryUnavailable || e.Code == CodeInvariantBroken
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeConfigInvalid:
		return http.StatusBadRequest
	case CodeForbidden, CodeLockedCell:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyRunning:
		return http.StatusConflict
	case CodeRepositoryUnavailable:
		return http.StatusServiceUnavailable
	case CodeUnderStaffed, CodeNoCandidate:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// 预定义错误
var (
	ErrNotFound              = New(CodeNotFound, "资源不存在")
	ErrInvalidInput          = New(CodeInvalidInput, "输入参数无效")
	ErrInternal              = New(CodeInternal, "内部错误")
	ErrRepositoryUnavailable = New(CodeRepositoryUnavailable, "值班表存储不可达，请稍后重试")
	ErrAlreadyRunning        = New(CodeAlreadyRunning, "该月份已有生成任务在运行")
	ErrCancelled             = New(CodeCancelled, "生成已取消")
)

// RepositoryUnavailable 创建存储不可达错误
func RepositoryUnavailable(err error) *AppError {
	return Wrap(err, CodeRepositoryUnavailable, "值班表存储不可达，请稍后重试")
}

// ConfigInvalid 创建配置无效错误，附带违规键名
func ConfigInvalid(key string) *AppError {
	return New(CodeConfigInvalid, fmt.Sprintf("配置键 '%s' 无效，已回退默认值", key)).
		WithField("key", key)
}

// LockedCell 创建锁定单元格错误
func LockedCell(empID int64, date string, locked string) *AppError {
	return New(CodeLockedCell, fmt.Sprintf("员工 %d 在 %s 的单元格已锁定为 %s", empID, date, locked)).
		WithField("employee_id", empID).
		WithField("date", date)
}

// InvariantBroken 创建不变量破坏错误
func InvariantBroken(details string) *AppError {
	return New(CodeInvariantBroken, "生成结果违反不变量").WithDetails(details)
}

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}
