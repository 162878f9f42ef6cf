// Package gateway 实现问答请求路由
package gateway

import (
	"context"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
)

// SessionUpdate 会话配置变更，nil 字段保持不变
type SessionUpdate struct {
	Mode               *entity.RequestMode
	Provider           *string
	Model              *string
	Verbosity          *entity.VerbosityLevel
	UseCustomPrompt    *bool
	CustomSystemPrompt *string
	ManualContext      *string
	KnowledgeFileIDs   *[]string
	Active             *bool
}

// CreateSession 创建会话配置
func (r *Router) CreateSession(ctx context.Context, userID string, mode entity.RequestMode, verbosity entity.VerbosityLevel) (*entity.QASession, error) {
	ctx, span := tracer.Start(ctx, "gateway.Router.CreateSession")
	defer span.End()

	session := entity.NewQASession(userID, mode, verbosity)
	if err := r.sessions.Create(ctx, session); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create session")
	}
	return session, nil
}

// GetSession 获取用户名下的会话
func (r *Router) GetSession(ctx context.Context, userID, sessionID string) (*entity.QASession, error) {
	ctx, span := tracer.Start(ctx, "gateway.Router.GetSession")
	defer span.End()

	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load session")
	}
	if session == nil {
		return nil, errors.ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, errors.New(errors.CodePermissionDenied, "session belongs to another user")
	}
	return session, nil
}

// ListSessions 列出用户会话
func (r *Router) ListSessions(ctx context.Context, userID string) ([]*entity.QASession, error) {
	ctx, span := tracer.Start(ctx, "gateway.Router.ListSessions")
	defer span.End()

	sessions, err := r.sessions.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list sessions")
	}
	return sessions, nil
}

// UpdateSession 更新会话配置
func (r *Router) UpdateSession(ctx context.Context, userID, sessionID string, update *SessionUpdate) (*entity.QASession, error) {
	ctx, span := tracer.Start(ctx, "gateway.Router.UpdateSession")
	defer span.End()

	session, err := r.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if update.Mode != nil {
		if !update.Mode.Valid() {
			return nil, errors.New(errors.CodeInvalidParam, "unknown request mode")
		}
		session.Mode = *update.Mode
	}
	if update.Verbosity != nil {
		if !update.Verbosity.Valid() {
			return nil, errors.New(errors.CodeInvalidParam, "unknown verbosity level")
		}
		session.Verbosity = *update.Verbosity
	}
	if update.Provider != nil {
		session.Provider = *update.Provider
	}
	if update.Model != nil {
		session.Model = *update.Model
	}
	if update.UseCustomPrompt != nil {
		session.UseCustomPrompt = *update.UseCustomPrompt
	}
	if update.CustomSystemPrompt != nil {
		session.CustomSystemPrompt = *update.CustomSystemPrompt
	}
	if update.ManualContext != nil {
		session.ManualContext = *update.ManualContext
	}
	if update.KnowledgeFileIDs != nil {
		session.KnowledgeFileIDs = *update.KnowledgeFileIDs
	}
	if update.Active != nil {
		session.Active = *update.Active
	}

	if err := r.sessions.Update(ctx, session); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to update session")
	}
	return session, nil
}

// GetSessionHistory 按时间正序分页列出会话的问答轮次
func (r *Router) GetSessionHistory(ctx context.Context, userID, sessionID string, page, pageSize int) ([]*entity.ChatTurn, int64, error) {
	ctx, span := tracer.Start(ctx, "gateway.Router.GetSessionHistory")
	defer span.End()

	if _, err := r.GetSession(ctx, userID, sessionID); err != nil {
		return nil, 0, err
	}

	result, err := r.records.ListBySession(ctx, sessionID, repository.NewPagination(page, pageSize))
	if err != nil {
		span.RecordError(err)
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to load history")
	}
	return result.Items, result.Total, nil
}
