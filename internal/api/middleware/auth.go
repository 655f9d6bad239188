package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/postboard/internal/service"
	"github.com/d60-Lab/postboard/pkg/response"
)

const ctxUserKey = "currentUser"

// Auth 校验 Authorization: Bearer <token>，并把用户放入上下文
func Auth(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := sessions.Verify(c.Request.Context(), bearer(c.GetHeader("Authorization")))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// CurrentUser 取出 Auth 中间件放入的用户
func CurrentUser(c *gin.Context) *service.UserView {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*service.UserView)
	return u
}
