package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/postboard/internal/cache"
	"github.com/d60-Lab/postboard/internal/repository"
	"github.com/d60-Lab/postboard/pkg/apperr"
	"github.com/d60-Lab/postboard/pkg/logger"
	"github.com/d60-Lab/postboard/pkg/token"
)

var (
	ErrNoCredential      = apperr.Unauthenticated("No token provided")
	ErrInvalidCredential = apperr.Unauthenticated("Authentication failed")
	ErrUnknownUser       = apperr.Unauthenticated("Invalid token")
)

// SessionService 校验 bearer 凭证并解析出用户；只读、无副作用
type SessionService interface {
	Verify(ctx context.Context, credential string) (*UserView, error)
}

type sessionService struct {
	tokens *token.Manager
	users  repository.UserRepository
	cache  *cache.UserCache
}

func NewSessionService(tokens *token.Manager, users repository.UserRepository, userCache *cache.UserCache) SessionService {
	return &sessionService{tokens: tokens, users: users, cache: userCache}
}

func (s *sessionService) Verify(ctx context.Context, credential string) (*UserView, error) {
	if credential == "" {
		return nil, ErrNoCredential
	}
	claims, err := s.tokens.Parse(credential)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	snap, err := s.cache.Get(ctx, claims.UserID)
	if err != nil {
		logger.Warn("user cache read failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	if snap != nil {
		return &UserView{ID: snap.ID, Username: snap.Username, Email: snap.Email}, nil
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("session: load user: %w", err))
	}
	return toUserView(u), nil
}
