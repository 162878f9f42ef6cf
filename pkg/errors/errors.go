// Package errors 提供统一的错误定义
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 认证授权错误 (2xxx)
	CodeTokenExpired     ErrorCode = "2001"
	CodeTokenInvalid     ErrorCode = "2002"
	CodeTokenMissing     ErrorCode = "2003"
	CodePermissionDenied ErrorCode = "2004"

	// 配置错误 (3xxx)：会话/凭证/券缺失或未激活，不可重试
	CodeSessionNotFound    ErrorCode = "3001"
	CodeSessionInactive    ErrorCode = "3002"
	CodeCredentialNotFound ErrorCode = "3003"
	CodeVoucherNotFound    ErrorCode = "3004"
	CodeSettingNotFound    ErrorCode = "3005"

	// 业务/权益错误 (4xxx)
	CodeInsufficientCredits  ErrorCode = "4001"
	CodeInsufficientBalance  ErrorCode = "4002"
	CodeNoCredential         ErrorCode = "4003"
	CodeExchangeBelowRate    ErrorCode = "4004"
	CodeVoucherInactive      ErrorCode = "4005"
	CodeVoucherExpired       ErrorCode = "4006"
	CodeVoucherTypeMismatch  ErrorCode = "4007"
	CodeVoucherBelowMinimum  ErrorCode = "4008"
	CodeVoucherExhausted     ErrorCode = "4009"
	CodeVoucherAlreadyUsed   ErrorCode = "4010"
	CodeVoucherNotRedeemable ErrorCode = "4011"
	CodeLedgerInconsistent   ErrorCode = "4012"
	CodeDuplicateCredential  ErrorCode = "4013"

	// 外部服务错误 (5xxx)
	CodeDatabaseError        ErrorCode = "5001"
	CodeCacheError           ErrorCode = "5002"
	CodeUpstreamInvalidKey   ErrorCode = "5003"
	CodeUpstreamRateLimited  ErrorCode = "5004"
	CodeUpstreamQuota        ErrorCode = "5005"
	CodeUpstreamError        ErrorCode = "5006"
	CodeKnowledgeUnavailable ErrorCode = "5007"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		Detail:     detail,
		HTTPStatus: e.HTTPStatus,
		Err:        e.Err,
	}
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		Detail:     e.Detail,
		HTTPStatus: e.HTTPStatus,
		Err:        err,
	}
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeExchangeBelowRate:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid, CodeTokenMissing:
		return http.StatusUnauthorized
	case CodeForbidden, CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound, CodeSessionNotFound, CodeCredentialNotFound,
		CodeVoucherNotFound, CodeSettingNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateCredential, CodeVoucherAlreadyUsed:
		return http.StatusConflict
	case CodeTooManyRequests, CodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	case CodeInsufficientCredits, CodeInsufficientBalance, CodeNoCredential,
		CodeVoucherInactive, CodeVoucherExpired, CodeVoucherTypeMismatch,
		CodeVoucherBelowMinimum, CodeVoucherExhausted, CodeVoucherNotRedeemable,
		CodeSessionInactive:
		return http.StatusUnprocessableEntity
	case CodeServiceUnavailable, CodeUpstreamQuota, CodeUpstreamError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing = New(CodeTokenMissing, "token missing")

	ErrSessionNotFound = New(CodeSessionNotFound, "session not found")
	ErrSessionInactive = New(CodeSessionInactive, "session is not active")

	ErrInsufficientCredits = New(CodeInsufficientCredits, "not enough credits")
	ErrInsufficientBalance = New(CodeInsufficientBalance, "not enough balance")
	ErrNoCredential        = New(CodeNoCredential, "no API key available")
	ErrLedgerInconsistent  = New(CodeLedgerInconsistent, "operation would make a counter negative")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 返回错误的错误码，非 AppError 返回 CodeUnknown
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeUnknown
}
