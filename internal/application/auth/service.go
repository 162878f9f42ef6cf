// Package auth 实现注册登录
package auth

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
	"github.com/mygads/genovaai-server-sub000/pkg/utils"
)

var tracer = otel.Tracer("auth")

// Service 认证服务
type Service struct {
	users repository.UserRepository
	jwt   *utils.JWTManager
	cfg   *config.JWTConfig
}

// NewService 创建认证服务
func NewService(users repository.UserRepository, jwt *utils.JWTManager, cfg *config.JWTConfig) *Service {
	return &Service{users: users, jwt: jwt, cfg: cfg}
}

// Register 注册新用户
func (s *Service) Register(ctx context.Context, email, password, name string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Service.Register")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New(errors.CodeInvalidParam, "a valid email is required")
	}
	if len(password) < 8 {
		return nil, errors.New(errors.CodeInvalidParam, "password must be at least 8 characters")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to check email")
	}
	if existing != nil {
		return nil, errors.New(errors.CodeConflict, "email already registered")
	}

	user := entity.NewUser(email, name)
	if err := user.SetPassword(password); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to hash password")
	}

	if err := s.users.Create(ctx, user); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create user")
	}

	logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login 校验密码并签发令牌
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, *utils.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "auth.Service.Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load user")
	}
	if user == nil || !user.CheckPassword(password) {
		return nil, nil, errors.New(errors.CodeUnauthorized, "invalid email or password")
	}

	tokens, err := s.jwt.GenerateTokenPair(user.ID, string(user.Role), s.cfg.Expiration, s.cfg.RefreshExpiration)
	if err != nil {
		span.RecordError(err)
		return nil, nil, errors.Wrap(err, errors.CodeInternalError, "failed to issue tokens")
	}

	return user, tokens, nil
}

// Refresh 用刷新令牌换取新的令牌对
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*utils.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "auth.Service.Refresh")
	defer span.End()

	claims, err := s.jwt.ParseToken(refreshToken)
	if err != nil || claims.Type != "refresh" {
		return nil, errors.ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load user")
	}
	if user == nil {
		return nil, errors.ErrTokenInvalid
	}

	tokens, err := s.jwt.GenerateTokenPair(user.ID, string(user.Role), s.cfg.Expiration, s.cfg.RefreshExpiration)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to issue tokens")
	}
	return tokens, nil
}
