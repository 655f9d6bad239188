package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/postboard/internal/api/middleware"
	"github.com/d60-Lab/postboard/internal/media"
	"github.com/d60-Lab/postboard/internal/service"
	"github.com/d60-Lab/postboard/pkg/apperr"
	"github.com/d60-Lab/postboard/pkg/logger"
	"github.com/d60-Lab/postboard/pkg/response"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
)

// postRequest 创建/更新帖子；multipart 时 media 为文件字段
type postRequest struct {
	Content     *string  `json:"content"`
	MediaURL    string   `json:"mediaUrl"`
	Image       string   `json:"image"`
	RemoveMedia flexBool `json:"removeMedia"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// flexBool 兼容 true 与 "true"
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	*b = flexBool(strings.EqualFold(s, "true"))
	return nil
}

// ListPosts 帖子列表（新的在前）
// @Summary 帖子列表
// @Tags 帖子
// @Produce json
// @Success 200 {object} response.Response{data=[]service.PostView}
// @Failure 500 {object} response.Response
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.postService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, posts)
}

// GetPost 帖子详情
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=service.PostView}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.postService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, post)
}

// CreatePost 发帖，支持 JSON 或 multipart 上传
// @Summary 发帖
// @Tags 帖子
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body postRequest false "帖子内容（JSON）"
// @Param media formData file false "图片或视频文件"
// @Success 201 {object} response.Response{data=service.PostView}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	req, upload, err := h.bindPost(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var content string
	if req.Content != nil {
		content = *req.Content
	}
	post, err := h.postService.Create(c.Request.Context(), user.ID, service.CreatePostInput{
		Content: content,
		Media:   media.Pick(upload, req.MediaURL, req.Image),
	})
	if err != nil {
		h.discard(upload)
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

// UpdatePost 修改帖子（仅作者）
// @Summary 修改帖子
// @Tags 帖子
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param request body postRequest false "修改内容（JSON）"
// @Param media formData file false "图片或视频文件"
// @Success 200 {object} response.Response{data=service.PostView}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	req, upload, err := h.bindPost(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	post, err := h.postService.Update(c.Request.Context(), c.Param("id"), user.ID, service.UpdatePostInput{
		Content:     req.Content,
		Media:       media.Pick(upload, req.MediaURL, req.Image),
		RemoveMedia: bool(req.RemoveMedia),
	})
	if err != nil {
		h.discard(upload)
		response.Error(c, err)
		return
	}
	if req.RemoveMedia {
		// removeMedia 优先，新上传的文件不会被引用
		h.discard(upload)
	}
	response.Success(c, post)
}

// DeletePost 删除帖子（仅作者）
// @Summary 删除帖子
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.postService.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Post deleted")
}

// LikePost 点赞/取消点赞
// @Summary 切换点赞
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=service.LikeResult}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/like [post]
func (h *Handler) LikePost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	result, err := h.postService.ToggleLike(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CommentPost 评论
// @Summary 发表评论
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param request body commentRequest true "评论内容"
// @Success 201 {object} response.Response{data=service.CommentView}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/comment [post]
func (h *Handler) CommentPost(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	comment, err := h.postService.AddComment(c.Request.Context(), c.Param("id"), user.ID, req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// PostStats 当前用户帖子的互动统计
// @Summary 互动统计
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=service.StatsView}
// @Failure 401 {object} response.Response
// @Router /api/v1/posts/stats [get]
func (h *Handler) PostStats(c *gin.Context) {
	user := middleware.CurrentUser(c)
	stats, err := h.postService.Stats(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// bindPost 解析 JSON 或 multipart；上传文件在这里落盘
func (h *Handler) bindPost(c *gin.Context) (postRequest, *media.Upload, error) {
	var req postRequest
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, apperr.InvalidArgument(response.ValidationMessage(err))
		}
		return req, nil, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.storage.MaxBytes()+multipartOverhead)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, nil, media.ErrTooLarge
		}
		return req, nil, apperr.InvalidArgument("invalid multipart form")
	}
	if v, ok := c.GetPostForm("content"); ok {
		req.Content = &v
	}
	req.MediaURL = c.PostForm("mediaUrl")
	req.Image = c.PostForm("image")
	req.RemoveMedia = flexBool(strings.EqualFold(strings.TrimSpace(c.PostForm("removeMedia")), "true"))

	fh, err := c.FormFile("media")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, apperr.InvalidArgument("invalid media file")
	}
	upload, err := h.storage.Save(fh)
	if err != nil {
		return req, nil, err
	}
	return req, upload, nil
}

func (h *Handler) discard(upload *media.Upload) {
	if upload == nil {
		return
	}
	if err := h.storage.Remove(upload.Name); err != nil {
		logger.Warn("remove unused upload failed", zap.String("file", upload.Name), zap.Error(err))
	}
}
