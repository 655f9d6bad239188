package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/postboard/internal/cache"
	"github.com/d60-Lab/postboard/internal/model"
	"github.com/d60-Lab/postboard/internal/repository"
	"github.com/d60-Lab/postboard/pkg/apperr"
	"github.com/d60-Lab/postboard/pkg/logger"
	"github.com/d60-Lab/postboard/pkg/token"
)

const (
	DefaultResetTTL = time.Hour
	resetSecretSize = 32
	// bcrypt 只接受 72 字节以内的密码
	MaxPasswordBytes = 72
)

var (
	ErrUserExists         = apperr.Conflict("Email or username already exists")
	ErrInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
	ErrNoUserWithEmail    = apperr.NotFound("No user with that email")
	ErrResetTokenInvalid  = apperr.New(apperr.KindInvalidOrExpiredToken, "Token is invalid or expired")
	ErrPasswordTooLong    = apperr.Newf(apperr.KindInvalidArgument, "password must be at most %d bytes", MaxPasswordBytes)
)

// ResetReceipt 重置请求的结果
type ResetReceipt struct {
	Link      string
	ExpiresAt time.Time
}

// AuthService 身份存储：注册、登录、密码重置
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*UserView, error)
	Authenticate(ctx context.Context, username, password string) (*AuthResult, error)
	// IssuePasswordResetToken 返回明文一次性密钥，库中只存其哈希
	IssuePasswordResetToken(ctx context.Context, email string) (string, error)
	// RequestPasswordReset 签发密钥并交给 ResetDelivery
	RequestPasswordReset(ctx context.Context, email string) (*ResetReceipt, error)
	ConsumePasswordResetToken(ctx context.Context, secret, newPassword string) error
}

type AuthOption func(*authService)

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *authService) { s.now = now }
}

func WithBcryptCost(cost int) AuthOption {
	return func(s *authService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func WithResetTTL(ttl time.Duration) AuthOption {
	return func(s *authService) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

type authService struct {
	users      repository.UserRepository
	tokens     *token.Manager
	cache      *cache.UserCache
	delivery   ResetDelivery
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *token.Manager, userCache *cache.UserCache, delivery ResetDelivery, opts ...AuthOption) AuthService {
	s := &authService{
		users:      users,
		tokens:     tokens,
		cache:      userCache,
		delivery:   delivery,
		bcryptCost: bcrypt.DefaultCost,
		resetTTL:   DefaultResetTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*UserView, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, apperr.InvalidArgument("username, email and password are required")
	}
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: check existing user: %w", err))
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: hash password: %w", err))
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, apperr.Internal(fmt.Errorf("auth: create user: %w", err))
	}
	logger.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return toUserView(u), nil
}

func (s *authService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: load user: %w", err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	signed, err := s.tokens.Generate(u.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.cache.Set(ctx, snapshotOf(u)); err != nil {
		logger.Warn("cache user failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return &AuthResult{Token: signed, User: *toUserView(u)}, nil
}

func (s *authService) IssuePasswordResetToken(ctx context.Context, email string) (string, error) {
	_, secret, err := s.issue(ctx, email)
	return secret, err
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) (*ResetReceipt, error) {
	u, secret, err := s.issue(ctx, email)
	if err != nil {
		return nil, err
	}
	receipt := &ResetReceipt{ExpiresAt: *u.ResetTokenExpiresAt}
	if s.delivery == nil {
		return receipt, nil
	}
	link, err := s.delivery.Deliver(ctx, u, secret)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: deliver reset secret: %w", err))
	}
	receipt.Link = link
	return receipt, nil
}

func (s *authService) issue(ctx context.Context, email string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", apperr.InvalidArgument("email is required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrNoUserWithEmail
	}
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("auth: load user: %w", err))
	}

	secret, err := newResetSecret()
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	hash := hashSecret(secret)
	expiresAt := s.now().UTC().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, u.ID, hash, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrNoUserWithEmail
		}
		return nil, "", apperr.Internal(fmt.Errorf("auth: store reset token: %w", err))
	}
	u.ResetToken = &hash
	u.ResetTokenExpiresAt = &expiresAt
	return u, secret, nil
}

func (s *authService) ConsumePasswordResetToken(ctx context.Context, secret, newPassword string) error {
	if secret == "" {
		return ErrResetTokenInvalid
	}
	if newPassword == "" {
		return apperr.InvalidArgument("password is required")
	}
	if len(newPassword) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth: hash password: %w", err))
	}
	u, err := s.users.ConsumeResetToken(ctx, hashSecret(secret), s.now().UTC(), string(hash))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth: consume reset token: %w", err))
	}
	// 账号凭据变更后让会话校验回到数据库
	if err := s.cache.Delete(ctx, u.ID); err != nil {
		logger.Warn("user cache invalidate failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	logger.Info("password reset", zap.String("user_id", u.ID))
	return nil
}

func newResetSecret() (string, error) {
	buf := make([]byte, resetSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate reset secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
