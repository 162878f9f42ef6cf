package gateway

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/application/pool"
	"github.com/mygads/genovaai-server-sub000/internal/application/prompt"
	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/llm"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/postgres"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
)

// scriptedFree 免费层上游替身，按调用序消费预置错误
type scriptedFree struct {
	failures []error
	calls    int
	keysSeen []string
	lastReq  *service.GenerateRequest
}

func (s *scriptedFree) Generate(_ context.Context, apiKey string, req *service.GenerateRequest) (*service.GenerateResult, error) {
	idx := s.calls
	s.calls++
	s.keysSeen = append(s.keysSeen, apiKey)
	s.lastReq = req
	if idx < len(s.failures) && s.failures[idx] != nil {
		return nil, s.failures[idx]
	}
	return &service.GenerateResult{
		Answer:           "42",
		Model:            "gemini-2.0-flash",
		TokensPrompt:     10,
		TokensCompletion: 5,
	}, nil
}

func (s *scriptedFree) ValidateKey(_ context.Context, _ string) error { return nil }

// scriptedPremium 付费层上游替身
type scriptedPremium struct {
	err     error
	calls   int
	lastReq *service.GenerateRequest
}

func (s *scriptedPremium) Generate(_ context.Context, req *service.GenerateRequest) (*service.GenerateResult, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &service.GenerateResult{
		Answer:           "premium answer",
		Model:            "openai/gpt-4o-mini",
		TokensPrompt:     20,
		TokensCompletion: 8,
	}, nil
}

// stubKnowledge 固定返回预置知识块
type stubKnowledge struct {
	blocks []service.KnowledgeBlock
}

func (s *stubKnowledge) Load(_ context.Context, _ string, _ []string) ([]service.KnowledgeBlock, error) {
	return s.blocks, nil
}

type routerEnv struct {
	router    *Router
	client    *postgres.Client
	ledger    *ledger.Service
	free      *scriptedFree
	premium   *scriptedPremium
	knowledge *stubKnowledge
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client := postgres.NewClientFromDB(db)
	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	free := &scriptedFree{}
	premium := &scriptedPremium{}
	knowledge := &stubKnowledge{}
	credRepo := postgres.NewCredentialRepository(client)
	poolMgr := pool.NewManager(credRepo, free, &config.PoolConfig{DailyLimit: 100})
	ledgerSvc := ledger.NewService(
		postgres.NewUserRepository(client),
		postgres.NewLedgerRepository(client),
		credRepo,
		postgres.NewSettingRepository(client),
		postgres.NewTxManager(client),
		nil,
		&config.LedgerConfig{DefaultExchangeRate: "500"},
	)

	router := NewRouter(
		postgres.NewSessionRepository(client),
		postgres.NewRequestRecordRepository(client),
		poolMgr,
		ledgerSvc,
		prompt.NewComposer(knowledge),
		free,
		premium,
		&config.GatewayConfig{
			FreePoolMaxAttempts: 5,
			UpstreamTimeout:     5 * time.Second,
			PremiumCostCredits:  1,
		},
	)

	return &routerEnv{router: router, client: client, ledger: ledgerSvc, free: free, premium: premium, knowledge: knowledge}
}

func (e *routerEnv) seedUser(t *testing.T, credits int) *entity.User {
	t.Helper()
	user := entity.NewUser("user@example.com", "tester")
	user.Credits = credits
	user.Balance = decimal.Zero
	if err := e.client.DB().Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *routerEnv) seedSession(t *testing.T, userID string, mode entity.RequestMode) *entity.QASession {
	t.Helper()
	session := entity.NewQASession(userID, mode, entity.VerbosityMedium)
	if mode == entity.RequestModePremium {
		session.Model = "openai/gpt-4o-mini"
	} else {
		session.Model = "gemini-2.0-flash"
	}
	if err := e.client.DB().Create(session).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session
}

func (e *routerEnv) seedSharedCred(t *testing.T, priority int) *entity.ApiCredential {
	t.Helper()
	cred := entity.NewApiCredential("", "gemini", fmt.Sprintf("AIzaSyPoolKeyPriority%03d0", priority))
	cred.Priority = priority
	if err := e.client.DB().Create(cred).Error; err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	return cred
}

func (e *routerEnv) loadRecords(t *testing.T, userID string) []*entity.RequestRecord {
	t.Helper()
	var records []*entity.RequestRecord
	if err := e.client.DB().Where("user_id = ?", userID).Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	return records
}

func rateLimitedErr() error {
	return &llm.UpstreamError{
		Kind:       llm.FailureRateLimited,
		Provider:   "gemini",
		StatusCode: 429,
		Err:        fmt.Errorf("resource exhausted"),
	}
}

func TestFreePoolRetriesAcrossCredentials(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 0)
	session := env.seedSession(t, user.ID, entity.RequestModeFreePool)
	env.seedSharedCred(t, 1)
	env.seedSharedCred(t, 2)
	env.seedSharedCred(t, 3)

	// 前两个凭证被限流，第三个成功
	env.free.failures = []error{rateLimitedErr(), rateLimitedErr()}

	// free_pool 需要正余额
	if err := env.ledger.AddBalance(context.Background(), user.ID, decimal.RequireFromString("10"),
		entity.LedgerEntryTypePurchase, "topup", nil); err != nil {
		t.Fatalf("topup: %v", err)
	}

	result, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "what is the answer?",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Answer != "42" || result.Attempts != 3 {
		t.Errorf("answer = %q attempts = %d, want 42 after 3 attempts", result.Answer, result.Attempts)
	}
	if result.Mode != entity.RequestModeFreePool {
		t.Errorf("mode = %s, want free_pool", result.Mode)
	}

	var limited int64
	env.client.DB().Model(&entity.ApiCredential{}).
		Where("status = ?", entity.CredentialStatusRateLimited).Count(&limited)
	if limited != 2 {
		t.Errorf("rate-limited credentials = %d, want 2", limited)
	}

	records := env.loadRecords(t, user.ID)
	if len(records) != 1 || records[0].Status != entity.RequestStatusSucceeded || records[0].Attempts != 3 {
		t.Fatalf("records = %+v, want one succeeded record with 3 attempts", records)
	}

	var turns int64
	env.client.DB().Model(&entity.ChatTurn{}).Where("session_id = ?", session.ID).Count(&turns)
	if turns != 1 {
		t.Errorf("chat turns = %d, want 1", turns)
	}
}

func TestFreePoolExhaustionStillAudited(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 0)
	session := env.seedSession(t, user.ID, entity.RequestModeFreePool)
	env.seedSharedCred(t, 1)
	env.free.failures = []error{rateLimitedErr(), rateLimitedErr(), rateLimitedErr()}

	if err := env.ledger.AddBalance(context.Background(), user.ID, decimal.RequireFromString("10"),
		entity.LedgerEntryTypePurchase, "topup", nil); err != nil {
		t.Fatalf("topup: %v", err)
	}

	_, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "q",
	})
	if errors.CodeOf(err) != errors.CodeUpstreamError {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeUpstreamError)
	}

	records := env.loadRecords(t, user.ID)
	if len(records) != 1 || records[0].Status != entity.RequestStatusFailed {
		t.Fatalf("records = %+v, want one failed record", records)
	}
	if records[0].ErrorReason == "" {
		t.Errorf("failed record must carry an error reason")
	}

	var turns int64
	env.client.DB().Model(&entity.ChatTurn{}).Count(&turns)
	if turns != 0 {
		t.Errorf("failed request must not produce a chat turn")
	}
}

func TestFreeUserKeySingleAttempt(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 0)
	session := env.seedSession(t, user.ID, entity.RequestModeFreeUserKey)

	owned := entity.NewApiCredential(user.ID, "gemini", "AIzaSyOwnedKeyValue00001")
	if err := env.client.DB().Create(owned).Error; err != nil {
		t.Fatalf("seed owned credential: %v", err)
	}
	// 自备凭证失败不跨凭证重试
	env.seedSharedCred(t, 1)
	env.free.failures = []error{rateLimitedErr()}

	_, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "q",
	})
	if errors.CodeOf(err) != errors.CodeUpstreamRateLimited {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeUpstreamRateLimited)
	}
	if env.free.calls != 1 {
		t.Errorf("upstream calls = %d, want exactly 1", env.free.calls)
	}

	records := env.loadRecords(t, user.ID)
	if len(records) != 1 || records[0].Attempts != 1 {
		t.Fatalf("records = %+v, want one record with a single attempt", records)
	}
}

func TestPremiumRefundsOnUpstreamFailure(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 5)
	session := env.seedSession(t, user.ID, entity.RequestModePremium)
	env.premium.err = &llm.UpstreamError{
		Kind:     llm.FailureTransient,
		Provider: "openrouter",
		Err:      fmt.Errorf("bad gateway"),
	}

	_, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "q",
	})
	if errors.CodeOf(err) != errors.CodeUpstreamError {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeUpstreamError)
	}

	var after entity.User
	env.client.DB().First(&after, "id = ?", user.ID)
	if after.Credits != 5 {
		t.Errorf("credits = %d, want 5 after refund", after.Credits)
	}

	// 扣账与退款各留一条，绝不回改历史
	var entries []*entity.LedgerEntry
	env.client.DB().Where("user_id = ?", user.ID).Order("created_at ASC").Find(&entries)
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(entries))
	}
	if entries[0].Type != entity.LedgerEntryTypeConsumption || entries[1].Type != entity.LedgerEntryTypeRefund {
		t.Errorf("entry types = %s, %s, want consumption then refund", entries[0].Type, entries[1].Type)
	}

	records := env.loadRecords(t, user.ID)
	if len(records) != 1 || records[0].Status != entity.RequestStatusFailed {
		t.Fatalf("records = %+v, want one failed record", records)
	}
}

func TestPremiumSuccessDeductsOneCredit(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 5)
	session := env.seedSession(t, user.ID, entity.RequestModePremium)

	result, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "q",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.CreditsDeducted != 1 || result.Mode != entity.RequestModePremium {
		t.Errorf("deducted = %d mode = %s, want 1 credit in premium mode", result.CreditsDeducted, result.Mode)
	}
	if result.Model != "openai/gpt-4o-mini" {
		t.Errorf("model = %s, want the premium upstream model", result.Model)
	}

	var after entity.User
	env.client.DB().First(&after, "id = ?", user.ID)
	if after.Credits != 4 {
		t.Errorf("credits = %d, want 4", after.Credits)
	}
}

func TestRouterForwardsGenerationHints(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 5)
	session := env.seedSession(t, user.ID, entity.RequestModePremium)

	// 大知识块越过 gpt 家族的缓存门槛
	env.knowledge.blocks = []service.KnowledgeBlock{
		{Name: "corpus.txt", FileType: "text", Content: strings.Repeat("x", 8000)},
	}
	session.KnowledgeFileIDs = entity.StringArray{"file-1"}
	if err := env.client.DB().Save(session).Error; err != nil {
		t.Fatalf("update session: %v", err)
	}

	if _, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "q",
	}); err != nil {
		t.Fatalf("process: %v", err)
	}

	req := env.premium.lastReq
	if req == nil {
		t.Fatal("upstream request not captured")
	}
	if !req.CachePreferred {
		t.Errorf("cache preference must be forwarded for large knowledge blocks")
	}
	if req.CacheTTL <= 0 {
		t.Errorf("cache ttl = %v, want positive", req.CacheTTL)
	}
	if req.ReasoningEffort != "medium" {
		t.Errorf("reasoning effort = %q, want medium", req.ReasoningEffort)
	}

	// 无知识块时不下发缓存偏好
	env.knowledge.blocks = nil
	if _, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "q",
	}); err != nil {
		t.Fatalf("process without knowledge: %v", err)
	}
	if env.premium.lastReq.CachePreferred {
		t.Errorf("cache preference must be off below the threshold")
	}
}

func TestEntitlementDeniedLeavesNoRecord(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 0)
	session := env.seedSession(t, user.ID, entity.RequestModePremium)

	_, err := env.router.ProcessRequest(context.Background(), &Request{
		UserID:    user.ID,
		SessionID: session.ID,
		Question:  "q",
	})
	if errors.CodeOf(err) != errors.CodeInsufficientCredits {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeInsufficientCredits)
	}
	if env.premium.calls != 0 {
		t.Errorf("upstream must not be called when entitlement fails")
	}
	if records := env.loadRecords(t, user.ID); len(records) != 0 {
		t.Errorf("records = %d, want none before dispatch", len(records))
	}
}

func TestSessionGuards(t *testing.T) {
	env := newRouterEnv(t)
	user := env.seedUser(t, 5)
	session := env.seedSession(t, user.ID, entity.RequestModePremium)

	t.Run("unknown session", func(t *testing.T) {
		_, err := env.router.ProcessRequest(context.Background(), &Request{
			UserID:    user.ID,
			SessionID: "00000000-0000-0000-0000-000000000000",
			Question:  "q",
		})
		if errors.CodeOf(err) != errors.CodeSessionNotFound {
			t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeSessionNotFound)
		}
	})

	t.Run("foreign session", func(t *testing.T) {
		_, err := env.router.ProcessRequest(context.Background(), &Request{
			UserID:    "someone-else",
			SessionID: session.ID,
			Question:  "q",
		})
		if errors.CodeOf(err) != errors.CodePermissionDenied {
			t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodePermissionDenied)
		}
	})

	t.Run("inactive session", func(t *testing.T) {
		env.client.DB().Model(&entity.QASession{}).Where("id = ?", session.ID).Update("active", false)
		_, err := env.router.ProcessRequest(context.Background(), &Request{
			UserID:    user.ID,
			SessionID: session.ID,
			Question:  "q",
		})
		if errors.CodeOf(err) != errors.CodeSessionInactive {
			t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeSessionInactive)
		}
	})
}
