package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/application/pool"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/dto"
)

// CredentialHandler 用户凭证接口
type CredentialHandler struct {
	pool *pool.Manager
}

// NewCredentialHandler 创建凭证接口
func NewCredentialHandler(poolMgr *pool.Manager) *CredentialHandler {
	return &CredentialHandler{pool: poolMgr}
}

// Add 新增自备凭证
// POST /v1/credentials
func (h *CredentialHandler) Add(c *gin.Context) {
	var req dto.AddCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	cred, err := h.pool.AddUserApiKey(c.Request.Context(), currentUserID(c), req.Provider, req.KeyValue)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Created(c, dto.NewCredentialResponse(cred))
}

// List 列出自备凭证
// GET /v1/credentials
func (h *CredentialHandler) List(c *gin.Context) {
	creds, err := h.pool.ListUserKeys(c.Request.Context(), currentUserID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewCredentialResponses(creds))
}

// Delete 删除自备凭证
// DELETE /v1/credentials/:id
func (h *CredentialHandler) Delete(c *gin.Context) {
	if err := h.pool.DeleteUserKey(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, gin.H{"deleted": true})
}
