package handler

import (
	"github.com/d60-Lab/postboard/internal/media"
	"github.com/d60-Lab/postboard/internal/service"
)

// Handler 聚合所有 HTTP 处理函数的依赖
type Handler struct {
	authService service.AuthService
	postService service.PostService
	storage     *media.Storage
}

func NewHandler(authService service.AuthService, postService service.PostService, storage *media.Storage) *Handler {
	return &Handler{authService: authService, postService: postService, storage: storage}
}
