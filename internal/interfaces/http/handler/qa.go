package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/application/gateway"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/dto"
)

// QAHandler 问答与会话接口
type QAHandler struct {
	router *gateway.Router
}

// NewQAHandler 创建问答接口
func NewQAHandler(router *gateway.Router) *QAHandler {
	return &QAHandler{router: router}
}

// Ask 发起一次问答
// POST /v1/qa/ask
func (h *QAHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.router.ProcessRequest(c.Request.Context(), &gateway.Request{
		UserID:       currentUserID(c),
		SessionID:    req.SessionID,
		Question:     req.Question,
		Examples:     req.ToExamples(),
		OutputFormat: req.OutputFormat,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, &dto.AskResponse{
		Answer:           result.Answer,
		Mode:             string(result.Mode),
		Model:            result.Model,
		TokensPrompt:     result.TokensPrompt,
		TokensCompletion: result.TokensCompletion,
		CreditsDeducted:  result.CreditsDeducted,
		Cached:           result.Cached,
		Attempts:         result.Attempts,
	})
}

// CreateSession 创建会话配置
// POST /v1/qa/sessions
func (h *QAHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	session, err := h.router.CreateSession(c.Request.Context(), currentUserID(c),
		entity.RequestMode(req.Mode), entity.VerbosityLevel(req.Verbosity))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Created(c, dto.NewSessionResponse(session))
}

// GetSession 获取会话配置
// GET /v1/qa/sessions/:id
func (h *QAHandler) GetSession(c *gin.Context) {
	session, err := h.router.GetSession(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewSessionResponse(session))
}

// ListSessions 列出会话
// GET /v1/qa/sessions
func (h *QAHandler) ListSessions(c *gin.Context) {
	sessions, err := h.router.ListSessions(c.Request.Context(), currentUserID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewSessionResponses(sessions))
}

// UpdateSession 更新会话配置
// PUT /v1/qa/sessions/:id
func (h *QAHandler) UpdateSession(c *gin.Context) {
	var req dto.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	update := &gateway.SessionUpdate{
		Provider:           req.Provider,
		Model:              req.Model,
		UseCustomPrompt:    req.UseCustomPrompt,
		CustomSystemPrompt: req.CustomSystemPrompt,
		ManualContext:      req.ManualContext,
		KnowledgeFileIDs:   req.KnowledgeFileIDs,
		Active:             req.Active,
	}
	if req.Mode != nil {
		mode := entity.RequestMode(*req.Mode)
		update.Mode = &mode
	}
	if req.Verbosity != nil {
		verbosity := entity.VerbosityLevel(*req.Verbosity)
		update.Verbosity = &verbosity
	}

	session, err := h.router.UpdateSession(c.Request.Context(), currentUserID(c), c.Param("id"), update)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewSessionResponse(session))
}

// GetHistory 获取会话的问答历史
// GET /v1/qa/sessions/:id/history
func (h *QAHandler) GetHistory(c *gin.Context) {
	page, pageSize := pageParams(c)
	turns, total, err := h.router.GetSessionHistory(c.Request.Context(), currentUserID(c), c.Param("id"), page, pageSize)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.NewChatTurnResponses(turns), page, pageSize, total)
}
