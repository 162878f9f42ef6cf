// Package handler 实现 HTTP 请求处理
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// currentUserID 从认证中间件注入的上下文取用户 ID
func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// pageParams 解析分页查询参数
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
