// Package dto 定义 HTTP 请求与响应结构
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/pkg/errors"
)

// Response 统一响应结构
type Response[T any] struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    T         `json:"data,omitempty"`
	Page    *PageMeta `json:"page,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// PageMeta 分页元信息
type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, Response[T]{
		Code:    string(errors.CodeSuccess),
		Message: "ok",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// SuccessWithPage 返回带分页的成功响应
func SuccessWithPage[T any](c *gin.Context, data T, page, pageSize int, total int64) {
	c.JSON(http.StatusOK, Response[T]{
		Code:    string(errors.CodeSuccess),
		Message: "ok",
		Data:    data,
		Page:    &PageMeta{Page: page, PageSize: pageSize, Total: total},
		TraceID: c.GetString("trace_id"),
	})
}

// Created 返回创建成功响应
func Created[T any](c *gin.Context, data T) {
	c.JSON(http.StatusCreated, Response[T]{
		Code:    string(errors.CodeSuccess),
		Message: "created",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Error 按 HTTP 状态码返回错误响应
func Error(c *gin.Context, status int, code errors.ErrorCode, message string) {
	c.JSON(status, Response[any]{
		Code:    string(code),
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// BadRequest 返回参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, errors.CodeInvalidParam, message)
}

// Unauthorized 返回未认证响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, errors.CodeUnauthorized, message)
}

// InternalError 返回内部错误响应
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, errors.CodeInternalError, "internal server error")
}

// FromError 按 AppError 的状态码与错误码返回，非 AppError 统一为内部错误
func FromError(c *gin.Context, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		InternalError(c)
		return
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	Error(c, status, appErr.Code, appErr.Message)
}
