// Package pool 实现上游凭证池管理
package pool

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/llm"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
	"github.com/mygads/genovaai-server-sub000/pkg/metrics"
)

var tracer = otel.Tracer("pool")

// Manager 凭证池管理器。
// 凭证选取、用量记录与失败归类都在这里收口，路由层只感知尝试成败。
type Manager struct {
	creds      repository.CredentialRepository
	upstream   service.UpstreamClient
	dailyLimit int
}

// NewManager 创建凭证池管理器
func NewManager(creds repository.CredentialRepository, upstream service.UpstreamClient, cfg *config.PoolConfig) *Manager {
	return &Manager{
		creds:      creds,
		upstream:   upstream,
		dailyLimit: cfg.DailyLimit,
	}
}

// today 当日零点时间戳，凭证用量按此对齐
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// GetNextAvailableKey 按优先序选取一个可用凭证：
// 用户自备、共享池、复活过期限流凭证后重选，全部落空返回无凭证错误。
func (m *Manager) GetNextAvailableKey(ctx context.Context, userID string, excludeIDs []string) (*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "pool.Manager.GetNextAvailableKey")
	defer span.End()

	day := today()

	cred, err := m.creds.SelectBestOwned(ctx, userID, day, m.dailyLimit, excludeIDs)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to select credential")
	}
	if cred != nil {
		span.SetAttributes(attribute.String("pool.source", "owned"))
		return cred, nil
	}

	cred, err = m.creds.SelectBestShared(ctx, day, m.dailyLimit, excludeIDs)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to select credential")
	}
	if cred != nil {
		span.SetAttributes(attribute.String("pool.source", "shared"))
		return cred, nil
	}

	// 跨天后的限流凭证原地复活再重选一次
	reactivated, err := m.creds.ReactivateStale(ctx, day)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to reactivate credentials")
	}
	if reactivated > 0 {
		metrics.CredentialReactivations.Add(float64(reactivated))
		logger.Info(ctx, "reactivated rate-limited credentials", "count", reactivated)

		cred, err = m.creds.SelectBestOwned(ctx, userID, day, m.dailyLimit, excludeIDs)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to select credential")
		}
		if cred == nil {
			cred, err = m.creds.SelectBestShared(ctx, day, m.dailyLimit, excludeIDs)
			if err != nil {
				span.RecordError(err)
				return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to select credential")
			}
		}
		if cred != nil {
			span.SetAttributes(attribute.String("pool.source", "reactivated"))
			return cred, nil
		}
	}

	span.SetAttributes(attribute.String("pool.source", "none"))
	return nil, errors.ErrNoCredential
}

// GetBestUserCredential 仅在用户自备凭证中选取，free_user_key 模式专用
func (m *Manager) GetBestUserCredential(ctx context.Context, userID string) (*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "pool.Manager.GetBestUserCredential")
	defer span.End()

	cred, err := m.creds.SelectBestOwned(ctx, userID, today(), m.dailyLimit, nil)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to select credential")
	}
	if cred == nil {
		return nil, errors.ErrNoCredential
	}
	return cred, nil
}

// RecordUsage 记录一次成功用量
func (m *Manager) RecordUsage(ctx context.Context, credID string) error {
	ctx, span := tracer.Start(ctx, "pool.Manager.RecordUsage")
	defer span.End()

	if err := m.creds.RecordUsage(ctx, credID, today()); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to record usage")
	}
	return nil
}

// MarkKeyAsFailed 按失败类别迁移凭证状态：
// 认证拒绝为终态 dead，限流与配额转 rate_limited，瞬时故障只记错误。
func (m *Manager) MarkKeyAsFailed(ctx context.Context, cred *entity.ApiCredential, callErr error) {
	ctx, span := tracer.Start(ctx, "pool.Manager.MarkKeyAsFailed")
	defer span.End()

	kind := llm.KindOf(callErr)
	metrics.CredentialFailuresTotal.WithLabelValues(string(kind)).Inc()

	reason := callErr.Error()
	if len(reason) > 250 {
		reason = reason[:250]
	}

	var status entity.CredentialStatus
	switch kind {
	case llm.FailureInvalidKey:
		status = entity.CredentialStatusDead
	case llm.FailureRateLimited, llm.FailureQuota:
		status = entity.CredentialStatusRateLimited
	default:
		// 瞬时故障不改变状态
		status = cred.Status
	}

	if err := m.creds.UpdateStatus(ctx, cred.ID, status, reason); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "failed to update credential status", err, "credential_id", cred.ID)
		return
	}

	if status != cred.Status {
		logger.Warn(ctx, "credential state changed after upstream failure",
			"credential_id", cred.ID, "from", cred.Status, "to", status, "kind", kind)
	}
	cred.Status = status
}

// AddUserApiKey 新增用户自备凭证：格式校验、去重，并对上游做一次真实探活
func (m *Manager) AddUserApiKey(ctx context.Context, userID, provider, keyValue string) (*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "pool.Manager.AddUserApiKey")
	defer span.End()

	keyValue = strings.TrimSpace(keyValue)
	if err := validateKeyFormat(keyValue); err != nil {
		return nil, err
	}
	if provider == "" {
		provider = "gemini"
	}

	exists, err := m.creds.ExistsByKeyValue(ctx, &userID, keyValue)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to check credential")
	}
	if exists {
		return nil, errors.New(errors.CodeDuplicateCredential, "API key already registered")
	}

	if err := m.upstream.ValidateKey(ctx, keyValue); err != nil {
		span.RecordError(err)
		switch llm.KindOf(err) {
		case llm.FailureInvalidKey:
			return nil, errors.Wrap(err, errors.CodeUpstreamInvalidKey, "API key rejected by provider")
		case llm.FailureRateLimited, llm.FailureQuota:
			return nil, errors.Wrap(err, errors.CodeUpstreamRateLimited, "provider is rate limiting, try again later")
		default:
			return nil, errors.Wrap(err, errors.CodeUpstreamError, "could not verify API key")
		}
	}

	cred := entity.NewApiCredential(userID, provider, keyValue)
	if err := m.creds.Create(ctx, cred); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to save credential")
	}

	logger.Info(ctx, "user credential added", "credential_id", cred.ID, "provider", provider)
	return cred, nil
}

// ListUserKeys 列出用户自备凭证，展示层只应使用脱敏后的密钥
func (m *Manager) ListUserKeys(ctx context.Context, userID string) ([]*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "pool.Manager.ListUserKeys")
	defer span.End()

	creds, err := m.creds.ListByOwner(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list credentials")
	}
	return creds, nil
}

// DeleteUserKey 删除用户自备凭证，校验归属
func (m *Manager) DeleteUserKey(ctx context.Context, userID, credID string) error {
	ctx, span := tracer.Start(ctx, "pool.Manager.DeleteUserKey")
	defer span.End()

	cred, err := m.creds.GetByID(ctx, credID)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to get credential")
	}
	if cred == nil {
		return errors.New(errors.CodeCredentialNotFound, "API key not found")
	}
	if cred.OwnerUserID == nil || *cred.OwnerUserID != userID {
		return errors.New(errors.CodePermissionDenied, "API key belongs to another user")
	}

	if err := m.creds.Delete(ctx, credID); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete credential")
	}
	return nil
}

// validateKeyFormat 密钥格式粗校验，真实有效性由探活调用决定
func validateKeyFormat(keyValue string) error {
	if keyValue == "" {
		return errors.New(errors.CodeInvalidParam, "API key is required")
	}
	if len(keyValue) < 20 || len(keyValue) > 255 {
		return errors.New(errors.CodeInvalidParam, "API key length is invalid")
	}
	if strings.ContainsAny(keyValue, " \t\n") {
		return errors.New(errors.CodeInvalidParam, "API key must not contain whitespace")
	}
	return nil
}
