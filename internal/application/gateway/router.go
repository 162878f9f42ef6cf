// Package gateway 实现问答请求路由
package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/application/pool"
	"github.com/mygads/genovaai-server-sub000/internal/application/prompt"
	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/llm"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
	"github.com/mygads/genovaai-server-sub000/pkg/metrics"
)

var tracer = otel.Tracer("gateway")

// Request 一次问答请求
type Request struct {
	UserID       string
	SessionID    string
	Question     string
	Examples     []prompt.Example
	OutputFormat string
}

// Result 一次问答结果
type Result struct {
	Answer           string             `json:"answer"`
	Mode             entity.RequestMode `json:"mode"`
	Model            string             `json:"model"`
	TokensPrompt     int                `json:"tokens_prompt"`
	TokensCompletion int                `json:"tokens_completion"`
	CreditsDeducted  int                `json:"credits_deducted"`
	Cached           bool               `json:"cached"`
	Attempts         int                `json:"attempts"`
}

// Router 请求路由器，按会话模式调度上游并记录审计与账务后果
type Router struct {
	sessions repository.SessionRepository
	records  repository.RequestRecordRepository
	pool     *pool.Manager
	ledger   *ledger.Service
	composer *prompt.Composer
	free     service.UpstreamClient
	premium  service.PremiumClient
	cfg      *config.GatewayConfig
}

// NewRouter 创建请求路由器
func NewRouter(
	sessions repository.SessionRepository,
	records repository.RequestRecordRepository,
	poolMgr *pool.Manager,
	ledgerSvc *ledger.Service,
	composer *prompt.Composer,
	free service.UpstreamClient,
	premium service.PremiumClient,
	cfg *config.GatewayConfig,
) *Router {
	return &Router{
		sessions: sessions,
		records:  records,
		pool:     poolMgr,
		ledger:   ledgerSvc,
		composer: composer,
		free:     free,
		premium:  premium,
		cfg:      cfg,
	}
}

// ProcessRequest 处理一次问答。
// 配置与权益失败在触碰任何资源前返回；一旦进入调度，无论成败都落审计记录。
func (r *Router) ProcessRequest(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "gateway.Router.ProcessRequest")
	defer span.End()

	ctx = logger.WithContext(ctx, logger.SessionIDKey, req.SessionID)

	// 配置加载，缺失或停用立即失败且无副作用
	session, err := r.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load session")
	}
	if session == nil {
		return nil, errors.ErrSessionNotFound
	}
	if session.UserID != req.UserID {
		return nil, errors.New(errors.CodePermissionDenied, "session belongs to another user")
	}
	if !session.Active {
		return nil, errors.ErrSessionInactive
	}

	ctx = logger.WithContext(ctx, logger.ModeKey, string(session.Mode))
	span.SetAttributes(attribute.String("qa.mode", string(session.Mode)))

	// 最近使用时间仅用于观测，失败不阻断
	if err := r.sessions.TouchLastUsed(ctx, session.ID, time.Now()); err != nil {
		logger.Warn(ctx, "failed to touch session", "error", err)
	}

	composed, err := r.composer.Compose(ctx, &prompt.ComposeInput{
		Session:      session,
		Question:     req.Question,
		Examples:     req.Examples,
		OutputFormat: req.OutputFormat,
	})
	if err != nil {
		span.RecordError(err)
		return nil, r.sanitize(err)
	}

	// 权益检查失败是终态，不落审计记录
	if err := r.ledger.CanMakeRequest(ctx, req.UserID, session.Mode); err != nil {
		metrics.QARequestsTotal.WithLabelValues(string(session.Mode), "denied").Inc()
		return nil, err
	}

	record := entity.NewRequestRecord(req.UserID, session.ID, session.Mode)
	record.Model = session.Model
	record.Provider = providerForMode(session.Mode)
	record.SystemPrompt = composed.SystemPrompt
	record.UserPrompt = composed.UserPrompt

	start := time.Now()
	result, dispatchErr := r.dispatch(ctx, session, composed, record)
	record.DurationMs = int(time.Since(start).Milliseconds())

	metrics.QARequestDuration.WithLabelValues(string(session.Mode)).Observe(time.Since(start).Seconds())
	metrics.QAUpstreamAttempts.WithLabelValues(string(session.Mode)).Observe(float64(record.Attempts))

	if dispatchErr != nil {
		record.Status = entity.RequestStatusFailed
		record.ErrorReason = errors.AsAppError(r.sanitize(dispatchErr)).Message
		metrics.QARequestsTotal.WithLabelValues(string(session.Mode), "failed").Inc()
	} else {
		record.Status = entity.RequestStatusSucceeded
		record.Model = result.Model
		record.TokensPrompt = result.TokensPrompt
		record.TokensCompletion = result.TokensCompletion
		record.CreditsDeducted = result.CreditsDeducted
		record.Cached = result.Cached
		metrics.QARequestsTotal.WithLabelValues(string(session.Mode), "succeeded").Inc()
	}

	// 审计记录无论成败都要写，写失败只记日志
	if err := r.records.Create(ctx, record); err != nil {
		logger.Error(ctx, "failed to persist request record", err)
	}

	if dispatchErr != nil {
		span.RecordError(dispatchErr)
		return nil, r.sanitize(dispatchErr)
	}

	turn := entity.NewChatTurn(session.ID, record.ID, req.Question, result.Answer, session.Verbosity)
	turn.SystemPrompt = composed.SystemPrompt
	turn.UserPrompt = composed.UserPrompt
	if err := r.records.CreateChatTurn(ctx, turn); err != nil {
		logger.Error(ctx, "failed to persist chat turn", err)
	}

	result.Mode = session.Mode
	result.Attempts = record.Attempts
	return result, nil
}

// dispatch 按模式调度上游
func (r *Router) dispatch(ctx context.Context, session *entity.QASession, composed *prompt.ComposeResult, record *entity.RequestRecord) (*Result, error) {
	switch session.Mode {
	case entity.RequestModeFreeUserKey:
		return r.dispatchFreeUserKey(ctx, session, composed, record)
	case entity.RequestModeFreePool:
		return r.dispatchFreePool(ctx, session, composed, record)
	case entity.RequestModePremium:
		return r.dispatchPremium(ctx, session, composed, record)
	default:
		return nil, errors.New(errors.CodeInvalidParam, "unknown request mode")
	}
}

// dispatchFreeUserKey 用户自备凭证，单次尝试，不跨凭证重试
func (r *Router) dispatchFreeUserKey(ctx context.Context, session *entity.QASession, composed *prompt.ComposeResult, record *entity.RequestRecord) (*Result, error) {
	cred, err := r.pool.GetBestUserCredential(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	record.Attempts = 1
	gen, err := r.callFree(ctx, cred, session, composed)
	if err != nil {
		r.pool.MarkKeyAsFailed(ctx, cred, err)
		return nil, upstreamFailure(err)
	}

	if err := r.pool.RecordUsage(ctx, cred.ID); err != nil {
		logger.Warn(ctx, "failed to record credential usage", "credential_id", cred.ID, "error", err)
	}

	return resultFrom(gen, 0), nil
}

// dispatchFreePool 共享池模式，跨凭证重试至配置上限
func (r *Router) dispatchFreePool(ctx context.Context, session *entity.QASession, composed *prompt.ComposeResult, record *entity.RequestRecord) (*Result, error) {
	maxAttempts := r.cfg.FreePoolMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	tried := make([]string, 0, maxAttempts)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cred, err := r.pool.GetNextAvailableKey(ctx, session.UserID, tried)
		if err != nil {
			if errors.CodeOf(err) == errors.CodeNoCredential && attempt > 1 {
				break
			}
			return nil, err
		}

		record.Attempts = attempt
		gen, err := r.callFree(ctx, cred, session, composed)
		if err != nil {
			r.pool.MarkKeyAsFailed(ctx, cred, err)
			tried = append(tried, cred.ID)
			logger.Warn(ctx, "pool attempt failed",
				"attempt", attempt, "credential_id", cred.ID, "error", err)
			continue
		}

		if err := r.pool.RecordUsage(ctx, cred.ID); err != nil {
			logger.Warn(ctx, "failed to record credential usage", "credential_id", cred.ID, "error", err)
		}
		return resultFrom(gen, 0), nil
	}

	return nil, errors.New(errors.CodeUpstreamError,
		"shared pool is unavailable right now, consider premium mode")
}

// dispatchPremium 付费模式：先扣积分，上游失败以新条目退款，绝不回改扣账
func (r *Router) dispatchPremium(ctx context.Context, session *entity.QASession, composed *prompt.ComposeResult, record *entity.RequestRecord) (*Result, error) {
	cost := r.cfg.PremiumCostCredits
	if cost <= 0 {
		cost = 1
	}

	if err := r.ledger.DeductCredits(ctx, session.UserID, cost, "premium request"); err != nil {
		return nil, err
	}

	record.Attempts = 1
	callCtx, cancel := r.upstreamContext(ctx)
	defer cancel()

	gen, err := r.premium.Generate(callCtx, &service.GenerateRequest{
		Model:           session.Model,
		SystemPrompt:    composed.SystemPrompt,
		UserPrompt:      composed.UserPrompt,
		ReasoningEffort: composed.Hints.ReasoningEffort,
		CachePreferred:  composed.Hints.CacheEligible,
		CacheTTL:        composed.Hints.CacheTTL,
	})
	if err != nil {
		if refundErr := r.ledger.AddCredits(ctx, session.UserID, cost,
			entity.LedgerEntryTypeRefund, "refund for failed premium request", nil); refundErr != nil {
			// 退款失败必须醒目告警，用户被多扣了钱
			logger.Error(ctx, "refund after premium failure did not apply", refundErr,
				"user_id", session.UserID, "credits", cost)
		}
		return nil, upstreamFailure(err)
	}

	return resultFrom(gen, cost), nil
}

// callFree 带超时调用免费层上游
func (r *Router) callFree(ctx context.Context, cred *entity.ApiCredential, session *entity.QASession, composed *prompt.ComposeResult) (*service.GenerateResult, error) {
	callCtx, cancel := r.upstreamContext(ctx)
	defer cancel()

	return r.free.Generate(callCtx, cred.KeyValue, &service.GenerateRequest{
		Model:           session.Model,
		SystemPrompt:    composed.SystemPrompt,
		UserPrompt:      composed.UserPrompt,
		ReasoningEffort: composed.Hints.ReasoningEffort,
		CachePreferred:  composed.Hints.CacheEligible,
		CacheTTL:        composed.Hints.CacheTTL,
	})
}

func (r *Router) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

// sanitize 内部错误一律转为通用失败，不向用户暴露内部细节
func (r *Router) sanitize(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.Wrap(err, errors.CodeInternalError, "request failed, please try again")
}

// upstreamFailure 上游错误转为用户可读的失败原因
func upstreamFailure(err error) error {
	switch llm.KindOf(err) {
	case llm.FailureInvalidKey:
		return errors.Wrap(err, errors.CodeUpstreamInvalidKey, "the API key was rejected by the provider")
	case llm.FailureRateLimited:
		return errors.Wrap(err, errors.CodeUpstreamRateLimited, "the provider is rate limiting, try again shortly")
	case llm.FailureQuota:
		return errors.Wrap(err, errors.CodeUpstreamQuota, "the daily quota for this key is exhausted")
	default:
		return errors.Wrap(err, errors.CodeUpstreamError, "the AI provider did not answer, try again")
	}
}

func providerForMode(mode entity.RequestMode) string {
	if mode == entity.RequestModePremium {
		return "openrouter"
	}
	return "gemini"
}

func resultFrom(gen *service.GenerateResult, creditsDeducted int) *Result {
	return &Result{
		Answer:           gen.Answer,
		Model:            gen.Model,
		TokensPrompt:     gen.TokensPrompt,
		TokensCompletion: gen.TokensCompletion,
		CreditsDeducted:  creditsDeducted,
		Cached:           gen.Cached,
	}
}
