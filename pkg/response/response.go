package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/d60-Lab/postboard/pkg/apperr"
	"github.com/d60-Lab/postboard/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindInvalidArgument:       http.StatusBadRequest,
	apperr.KindConflict:              http.StatusConflict,
	apperr.KindInvalidCredentials:    http.StatusUnauthorized,
	apperr.KindUnauthenticated:       http.StatusUnauthorized,
	apperr.KindForbidden:             http.StatusForbidden,
	apperr.KindNotFound:              http.StatusNotFound,
	apperr.KindInvalidOrExpiredToken: http.StatusBadRequest,
	apperr.KindInternal:              http.StatusInternalServerError,
}

// StatusOf 返回错误类型对应的 HTTP 状态码
func StatusOf(kind apperr.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

// Message 仅返回提示信息
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: msg})
}

// BadRequest 参数错误，msg 可以是 binding 的校验错误
func BadRequest(c *gin.Context, msg string) {
	abort(c, apperr.KindInvalidArgument, msg)
}

// BindError 把 gin binding 的错误转换为可读信息
func BindError(c *gin.Context, err error) {
	BadRequest(c, ValidationMessage(err))
}

// InternalError 内部错误：记录日志并上报 sentry，不向调用方暴露原因
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
		hub.CaptureException(err)
	}
	abort(c, apperr.KindInternal, apperr.MessageOf(err))
}

// Error 按 apperr.Kind 映射状态码
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		InternalError(c, err)
		return
	}
	abort(c, kind, apperr.MessageOf(err))
}

func abort(c *gin.Context, kind apperr.Kind, msg string) {
	status := StatusOf(kind)
	c.AbortWithStatusJSON(status, Response{Code: status, Kind: string(kind), Message: msg})
}

// ValidationMessage 把 validator 的字段错误拼成一句话
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(parts, "; ")
}
