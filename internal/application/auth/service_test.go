package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/postgres"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
	"github.com/mygads/genovaai-server-sub000/pkg/utils"
)

func newTestService(t *testing.T) *Service {
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

	return NewService(
		postgres.NewUserRepository(client),
		utils.NewJWTManager("test-secret-at-least-32-bytes-long", "test"),
		&config.JWTConfig{
			Secret:            "test-secret-at-least-32-bytes-long",
			Issuer:            "test",
			Expiration:        time.Hour,
			RefreshExpiration: 24 * time.Hour,
		},
	)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Register(context.Background(), " User@Example.com ", "hunter2hunter2", "Tester")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "user@example.com" {
		t.Errorf("email = %q, want normalized lowercase", user.Email)
	}
	if user.PasswordHash == "hunter2hunter2" || user.PasswordHash == "" {
		t.Errorf("password must be stored hashed")
	}

	loggedIn, tokens, err := svc.Login(context.Background(), "user@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("login returned user %s, want %s", loggedIn.ID, user.ID)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Errorf("token pair must be populated")
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"missing email", "", "hunter2hunter2"},
		{"not an email", "nope", "hunter2hunter2"},
		{"short password", "a@example.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.email, tc.password, "n")
			if errors.CodeOf(err) != errors.CodeInvalidParam {
				t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeInvalidParam)
			}
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Register(context.Background(), "a@example.com", "hunter2hunter2", "n"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), "A@Example.com", "hunter2hunter2", "n")
	if errors.CodeOf(err) != errors.CodeConflict {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeConflict)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Register(context.Background(), "a@example.com", "hunter2hunter2", "n"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "a@example.com", "wrong-password"); errors.CodeOf(err) != errors.CodeUnauthorized {
		t.Fatalf("wrong password: error code = %v, want %v", errors.CodeOf(err), errors.CodeUnauthorized)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2"); errors.CodeOf(err) != errors.CodeUnauthorized {
		t.Fatalf("unknown email: error code = %v, want %v", errors.CodeOf(err), errors.CodeUnauthorized)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Register(context.Background(), "a@example.com", "hunter2hunter2", "n"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, tokens, err := svc.Login(context.Background(), "a@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	fresh, err := svc.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.AccessToken == "" || fresh.RefreshToken == "" {
		t.Errorf("refresh must issue a full token pair")
	}

	// 访问令牌不能用于刷新
	if _, err := svc.Refresh(context.Background(), tokens.AccessToken); errors.CodeOf(err) != errors.CodeTokenInvalid {
		t.Fatalf("access token refresh: error code = %v, want %v", errors.CodeOf(err), errors.CodeTokenInvalid)
	}
	if _, err := svc.Refresh(context.Background(), "not-a-token"); errors.CodeOf(err) != errors.CodeTokenInvalid {
		t.Fatalf("garbage refresh: error code = %v, want %v", errors.CodeOf(err), errors.CodeTokenInvalid)
	}
}
