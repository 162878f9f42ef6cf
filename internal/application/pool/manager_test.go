package pool

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/llm"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/postgres"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
)

// fakeUpstream 可脚本化的上游客户端
type fakeUpstream struct {
	validateErr error
	validated   []string
}

func (f *fakeUpstream) Generate(_ context.Context, _ string, _ *service.GenerateRequest) (*service.GenerateResult, error) {
	return &service.GenerateResult{Answer: "ok"}, nil
}

func (f *fakeUpstream) ValidateKey(_ context.Context, apiKey string) error {
	f.validated = append(f.validated, apiKey)
	return f.validateErr
}

func newTestManager(t *testing.T, upstream service.UpstreamClient) (*Manager, *postgres.Client) {
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
	if upstream == nil {
		upstream = &fakeUpstream{}
	}
	return NewManager(postgres.NewCredentialRepository(client), upstream, &config.PoolConfig{DailyLimit: 5}), client
}

func seedCred(t *testing.T, client *postgres.Client, owner string, mutate func(*entity.ApiCredential)) *entity.ApiCredential {
	t.Helper()
	cred := entity.NewApiCredential(owner, "gemini", fmt.Sprintf("AIzaSyTestKeyValue%d%d", time.Now().UnixNano(), len(owner)))
	if mutate != nil {
		mutate(cred)
	}
	if err := client.DB().Create(cred).Error; err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	return cred
}

func reloadCred(t *testing.T, client *postgres.Client, id string) *entity.ApiCredential {
	t.Helper()
	var cred entity.ApiCredential
	if err := client.DB().First(&cred, "id = ?", id).Error; err != nil {
		t.Fatalf("reload credential: %v", err)
	}
	return &cred
}

func TestGetNextAvailableKeyPrefersOwned(t *testing.T) {
	m, client := newTestManager(t, nil)
	seedCred(t, client, "", nil)
	owned := seedCred(t, client, "user-1", nil)

	cred, err := m.GetNextAvailableKey(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if cred.ID != owned.ID {
		t.Errorf("selected %s, want owned credential %s", cred.ID, owned.ID)
	}
}

func TestGetNextAvailableKeyFallsBackToShared(t *testing.T) {
	m, client := newTestManager(t, nil)
	shared := seedCred(t, client, "", nil)
	seedCred(t, client, "someone-else", nil)

	cred, err := m.GetNextAvailableKey(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if cred.ID != shared.ID {
		t.Errorf("selected %s, want shared credential %s", cred.ID, shared.ID)
	}
}

func TestGetNextAvailableKeyNeverSelectsDead(t *testing.T) {
	m, client := newTestManager(t, nil)
	seedCred(t, client, "", func(c *entity.ApiCredential) {
		c.Status = entity.CredentialStatusDead
	})

	_, err := m.GetNextAvailableKey(context.Background(), "user-1", nil)
	if errors.CodeOf(err) != errors.CodeNoCredential {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeNoCredential)
	}
}

func TestGetNextAvailableKeyHonorsExclusions(t *testing.T) {
	m, client := newTestManager(t, nil)
	first := seedCred(t, client, "", func(c *entity.ApiCredential) { c.Priority = 1 })
	second := seedCred(t, client, "", func(c *entity.ApiCredential) { c.Priority = 2 })

	cred, err := m.GetNextAvailableKey(context.Background(), "user-1", []string{first.ID})
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if cred.ID != second.ID {
		t.Errorf("selected %s, want %s after excluding %s", cred.ID, second.ID, first.ID)
	}
}

func TestGetNextAvailableKeySkipsAtDailyLimit(t *testing.T) {
	m, client := newTestManager(t, nil)
	day := today()
	seedCred(t, client, "", func(c *entity.ApiCredential) {
		c.Priority = 1
		c.UsageDate = &day
		c.DailyUsage = 5
	})
	fresh := seedCred(t, client, "", func(c *entity.ApiCredential) { c.Priority = 2 })

	cred, err := m.GetNextAvailableKey(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if cred.ID != fresh.ID {
		t.Errorf("selected %s, want %s below the daily limit", cred.ID, fresh.ID)
	}
}

func TestGetNextAvailableKeyReactivatesStale(t *testing.T) {
	m, client := newTestManager(t, nil)
	yesterday := today().Add(-24 * time.Hour)
	limited := seedCred(t, client, "", func(c *entity.ApiCredential) {
		c.Status = entity.CredentialStatusRateLimited
		c.UsageDate = &yesterday
		c.DailyUsage = 5
		c.LastError = "rate limited"
	})

	cred, err := m.GetNextAvailableKey(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if cred.ID != limited.ID {
		t.Fatalf("selected %s, want reactivated credential %s", cred.ID, limited.ID)
	}

	after := reloadCred(t, client, limited.ID)
	if after.Status != entity.CredentialStatusActive {
		t.Errorf("status = %s, want active", after.Status)
	}
	if after.DailyUsage != 0 || after.LastError != "" {
		t.Errorf("usage = %d lastError = %q, want reset", after.DailyUsage, after.LastError)
	}
}

func TestGetBestUserCredentialIgnoresShared(t *testing.T) {
	m, client := newTestManager(t, nil)
	seedCred(t, client, "", nil)

	_, err := m.GetBestUserCredential(context.Background(), "user-1")
	if errors.CodeOf(err) != errors.CodeNoCredential {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeNoCredential)
	}
}

func TestMarkKeyAsFailedTransitions(t *testing.T) {
	cases := []struct {
		name string
		kind llm.FailureKind
		want entity.CredentialStatus
	}{
		{"invalid key is terminal", llm.FailureInvalidKey, entity.CredentialStatusDead},
		{"rate limited parks the key", llm.FailureRateLimited, entity.CredentialStatusRateLimited},
		{"quota treated as rate limit", llm.FailureQuota, entity.CredentialStatusRateLimited},
		{"transient keeps status", llm.FailureTransient, entity.CredentialStatusActive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, client := newTestManager(t, nil)
			cred := seedCred(t, client, "user-1", nil)

			callErr := &llm.UpstreamError{
				Kind:     tc.kind,
				Provider: "gemini",
				Err:      fmt.Errorf("boom"),
			}
			m.MarkKeyAsFailed(context.Background(), cred, callErr)

			after := reloadCred(t, client, cred.ID)
			if after.Status != tc.want {
				t.Errorf("status = %s, want %s", after.Status, tc.want)
			}
			if after.LastError == "" {
				t.Errorf("last error should be recorded")
			}
		})
	}
}

func TestAddUserApiKeyValidatesAgainstProvider(t *testing.T) {
	upstream := &fakeUpstream{}
	m, client := newTestManager(t, upstream)

	cred, err := m.AddUserApiKey(context.Background(), "user-1", "", "AIzaSyBrandNewKeyValue01")
	if err != nil {
		t.Fatalf("add key: %v", err)
	}
	if cred.Provider != "gemini" {
		t.Errorf("provider = %s, want gemini default", cred.Provider)
	}
	if len(upstream.validated) != 1 {
		t.Errorf("validate calls = %d, want 1", len(upstream.validated))
	}

	stored := reloadCred(t, client, cred.ID)
	if stored.OwnerUserID == nil || *stored.OwnerUserID != "user-1" {
		t.Errorf("owner = %v, want user-1", stored.OwnerUserID)
	}
}

func TestAddUserApiKeyRejectsDuplicate(t *testing.T) {
	m, _ := newTestManager(t, nil)

	if _, err := m.AddUserApiKey(context.Background(), "user-1", "gemini", "AIzaSyBrandNewKeyValue01"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := m.AddUserApiKey(context.Background(), "user-1", "gemini", "AIzaSyBrandNewKeyValue01")
	if errors.CodeOf(err) != errors.CodeDuplicateCredential {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeDuplicateCredential)
	}
}

func TestAddUserApiKeyRejectsBadFormat(t *testing.T) {
	m, _ := newTestManager(t, nil)

	for _, key := range []string{"", "short", "AIzaSy has spaces inside 0123"} {
		_, err := m.AddUserApiKey(context.Background(), "user-1", "gemini", key)
		if errors.CodeOf(err) != errors.CodeInvalidParam {
			t.Errorf("key %q: error code = %v, want %v", key, errors.CodeOf(err), errors.CodeInvalidParam)
		}
	}
}

func TestAddUserApiKeyRejectedByUpstream(t *testing.T) {
	upstream := &fakeUpstream{validateErr: &llm.UpstreamError{
		Kind:       llm.FailureInvalidKey,
		Provider:   "gemini",
		StatusCode: 400,
		Err:        fmt.Errorf("api key not valid"),
	}}
	m, client := newTestManager(t, upstream)

	_, err := m.AddUserApiKey(context.Background(), "user-1", "gemini", "AIzaSyBrandNewKeyValue01")
	if errors.CodeOf(err) != errors.CodeUpstreamInvalidKey {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeUpstreamInvalidKey)
	}

	// 探活失败的密钥不得入库
	var count int64
	client.DB().Model(&entity.ApiCredential{}).Count(&count)
	if count != 0 {
		t.Errorf("credentials stored = %d, want 0", count)
	}
}

func TestDeleteUserKeyChecksOwnership(t *testing.T) {
	m, client := newTestManager(t, nil)
	cred := seedCred(t, client, "user-1", nil)

	if err := m.DeleteUserKey(context.Background(), "user-2", cred.ID); errors.CodeOf(err) != errors.CodePermissionDenied {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodePermissionDenied)
	}
	if err := m.DeleteUserKey(context.Background(), "user-1", "missing-id"); errors.CodeOf(err) != errors.CodeCredentialNotFound {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeCredentialNotFound)
	}
	if err := m.DeleteUserKey(context.Background(), "user-1", cred.ID); err != nil {
		t.Fatalf("delete own key: %v", err)
	}

	var count int64
	client.DB().Model(&entity.ApiCredential{}).Count(&count)
	if count != 0 {
		t.Errorf("credentials left = %d, want 0", count)
	}
}

func TestRecordUsageIncrementsAndRollsOver(t *testing.T) {
	m, client := newTestManager(t, nil)
	yesterday := today().Add(-24 * time.Hour)
	cred := seedCred(t, client, "", func(c *entity.ApiCredential) {
		c.UsageDate = &yesterday
		c.DailyUsage = 4
	})

	if err := m.RecordUsage(context.Background(), cred.ID); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	after := reloadCred(t, client, cred.ID)
	if after.DailyUsage != 1 {
		t.Errorf("usage = %d, want 1 after day rollover", after.DailyUsage)
	}

	if err := m.RecordUsage(context.Background(), cred.ID); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	if got := reloadCred(t, client, cred.ID).DailyUsage; got != 2 {
		t.Errorf("usage = %d, want 2", got)
	}
}

func TestRecordUsageConcurrentSameDay(t *testing.T) {
	m, client := newTestManager(t, nil)
	cred := seedCred(t, client, "", nil)

	// 当日重置与递增并发交错时计数不得丢失
	const calls = 10
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.RecordUsage(context.Background(), cred.ID); err != nil {
				t.Errorf("record usage: %v", err)
			}
		}()
	}
	wg.Wait()

	after := reloadCred(t, client, cred.ID)
	if after.DailyUsage != calls {
		t.Errorf("usage = %d, want %d", after.DailyUsage, calls)
	}
	if after.UsageDate == nil {
		t.Errorf("usage date must be stamped")
	}
}
