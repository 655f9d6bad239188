package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/d60-Lab/postboard/internal/model"
	"github.com/d60-Lab/postboard/pkg/logger"
)

// ResetDelivery 负责把一次性重置密钥交给用户。
// 返回的 link 非空时由 API 直接回传给调用方（当前没有邮件通道）。
type ResetDelivery interface {
	Deliver(ctx context.Context, user *model.User, secret string) (link string, err error)
}

// LinkDelivery 只生成前端重置链接并原样返回
type LinkDelivery struct {
	frontendURL string
}

func NewLinkDelivery(frontendURL string) *LinkDelivery {
	return &LinkDelivery{frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (d *LinkDelivery) Deliver(_ context.Context, user *model.User, secret string) (string, error) {
	logger.Info("password reset link issued", zap.String("user_id", user.ID))
	return d.frontendURL + "/reset-password/" + secret, nil
}
