package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/postgres"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查接口
type HealthHandler struct {
	pg  *postgres.Client
	rdb *redis.Client
}

// NewHealthHandler 创建健康检查接口
func NewHealthHandler(pg *postgres.Client, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{pg: pg, rdb: rdb}
}

// Live 存活检查
// GET /live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 就绪检查，验证依赖可用
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK

	if err := h.pg.HealthCheck(c.Request.Context()); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["postgres"] = "ok"
	}

	if h.rdb != nil {
		if err := h.rdb.HealthCheck(c.Request.Context()); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(status, gin.H{"status": statusText(status), "checks": checks})
}

// Health 综合健康检查
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	h.Ready(c)
}

func statusText(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}
