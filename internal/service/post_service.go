package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/postboard/internal/cache"
	"github.com/d60-Lab/postboard/internal/media"
	"github.com/d60-Lab/postboard/internal/model"
	"github.com/d60-Lab/postboard/internal/repository"
	"github.com/d60-Lab/postboard/pkg/apperr"
	"github.com/d60-Lab/postboard/pkg/logger"
)

var (
	ErrContentRequired = apperr.InvalidArgument("Content is required")
	ErrTextRequired    = apperr.InvalidArgument("Text is required")
	ErrPostNotFound    = apperr.NotFound("Post not found")
	ErrNotPostAuthor   = apperr.Forbidden("Not authorized")
)

type CreatePostInput struct {
	Content string
	Media   media.Source
}

// UpdatePostInput Content 为 nil 表示不修改；RemoveMedia 优先于 Media
type UpdatePostInput struct {
	Content     *string
	Media       media.Source
	RemoveMedia bool
}

// PostService 帖子存储：所有权校验、点赞翻转、评论追加、媒体规范化
type PostService interface {
	Create(ctx context.Context, authorID string, in CreatePostInput) (*PostView, error)
	List(ctx context.Context) ([]*PostView, error)
	Get(ctx context.Context, id string) (*PostView, error)
	Update(ctx context.Context, id, actorID string, in UpdatePostInput) (*PostView, error)
	Delete(ctx context.Context, id, actorID string) error
	ToggleLike(ctx context.Context, id, actorID string) (*LikeResult, error)
	AddComment(ctx context.Context, id, actorID, text string) (*CommentView, error)
	Stats(ctx context.Context, authorID string) (*StatsView, error)
}

type postService struct {
	posts    repository.PostRepository
	users    repository.UserRepository
	cache    *cache.UserCache
	resolver *media.Resolver
	janitor  *MediaJanitor
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, userCache *cache.UserCache, resolver *media.Resolver, janitor *MediaJanitor) PostService {
	return &postService{posts: posts, users: users, cache: userCache, resolver: resolver, janitor: janitor}
}

// mediaFields 媒体字段整体替换；image 仅在媒体为图片时镜像 url
func mediaFields(desc *media.Descriptor) map[string]any {
	if desc == nil {
		return map[string]any{"media_url": "", "media_type": "", "image": ""}
	}
	image := ""
	if desc.Type == model.MediaTypeImage {
		image = desc.URL
	}
	return map[string]any{"media_url": desc.URL, "media_type": desc.Type, "image": image}
}

func (s *postService) Create(ctx context.Context, authorID string, in CreatePostInput) (*PostView, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrContentRequired
	}
	author, err := s.resolveUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	p := &model.Post{ID: uuid.New().String(), AuthorID: authorID, Content: in.Content}
	if desc := s.resolver.Resolve(in.Media); desc != nil {
		p.MediaURL = desc.URL
		p.MediaType = desc.Type
		if desc.Type == model.MediaTypeImage {
			p.Image = desc.URL
		}
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: create: %w", err))
	}
	p.Author = model.User{ID: author.ID, Username: author.Username}
	return toPostView(p, nil, nil), nil
}

func (s *postService) List(ctx context.Context) ([]*PostView, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: list: %w", err))
	}
	return s.assemble(ctx, posts)
}

func (s *postService) Get(ctx context.Context, id string) (*PostView, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.assemble(ctx, []*model.Post{p})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *postService) Update(ctx context.Context, id, actorID string, in UpdatePostInput) (*PostView, error) {
	p, err := s.loadOwned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, ErrContentRequired
		}
		fields["content"] = *in.Content
	}
	mediaChanged := false
	switch {
	case in.RemoveMedia:
		for k, v := range mediaFields(nil) {
			fields[k] = v
		}
		mediaChanged = true
	case in.Media != nil:
		for k, v := range mediaFields(s.resolver.Resolve(in.Media)) {
			fields[k] = v
		}
		mediaChanged = true
	}

	if len(fields) > 0 {
		ok, err := s.posts.UpdateOwned(ctx, id, actorID, fields)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("post: update: %w", err))
		}
		if !ok {
			// 读取之后被删除
			return nil, ErrPostNotFound
		}
	}
	if mediaChanged {
		newURL, _ := fields["media_url"].(string)
		if newURL != p.MediaURL {
			s.discardUpload(p.MediaURL)
		}
	}
	return s.Get(ctx, id)
}

func (s *postService) Delete(ctx context.Context, id, actorID string) error {
	p, err := s.loadOwned(ctx, id, actorID)
	if err != nil {
		return err
	}
	ok, err := s.posts.DeleteOwned(ctx, id, actorID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("post: delete: %w", err))
	}
	if !ok {
		return ErrPostNotFound
	}
	s.discardUpload(p.MediaURL)
	logger.Info("post deleted", zap.String("post_id", id), zap.String("user_id", actorID))
	return nil
}

func (s *postService) ToggleLike(ctx context.Context, id, actorID string) (*LikeResult, error) {
	liked, count, err := s.posts.ToggleLike(ctx, id, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: toggle like: %w", err))
	}
	return &LikeResult{LikesCount: count, Liked: liked}, nil
}

func (s *postService) AddComment(ctx context.Context, id, actorID, text string) (*CommentView, error) {
	if strings.TrimSpace(text) == "" {
		if _, err := s.load(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrTextRequired
	}
	author, err := s.resolveUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		ID:       uuid.New().String(),
		PostID:   id,
		AuthorID: actorID,
		Text:     text,
	}
	if err := s.posts.AppendComment(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, apperr.Internal(fmt.Errorf("post: add comment: %w", err))
	}
	v := toCommentView(c, author.Username)
	return &v, nil
}

func (s *postService) Stats(ctx context.Context, authorID string) (*StatsView, error) {
	rows, err := s.posts.StatsByAuthor(ctx, authorID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: stats: %w", err))
	}
	out := &StatsView{Posts: make([]PostStatsView, 0, len(rows))}
	for _, r := range rows {
		out.Posts = append(out.Posts, PostStatsView{ID: r.ID, Content: r.Content, Likes: r.Likes, Comments: r.Comments})
		out.TotalLikes += r.Likes
		out.TotalComments += r.Comments
	}
	return out, nil
}

func (s *postService) load(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: load: %w", err))
	}
	return p, nil
}

func (s *postService) loadOwned(ctx context.Context, id, actorID string) (*model.Post, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actorID {
		return nil, ErrNotPostAuthor
	}
	return p, nil
}

// assemble 批量补齐点赞、评论与作者名
func (s *postService) assemble(ctx context.Context, posts []*model.Post) ([]*PostView, error) {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	likes, err := s.posts.LikesOf(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: load likes: %w", err))
	}
	comments, err := s.posts.CommentsOf(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: load comments: %w", err))
	}

	seen := make(map[string]struct{})
	var authorIDs []string
	addAuthor := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			authorIDs = append(authorIDs, id)
		}
	}
	for _, p := range posts {
		addAuthor(p.AuthorID)
		for _, c := range comments[p.ID] {
			addAuthor(c.AuthorID)
		}
	}
	authors, err := s.resolveUsers(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*PostView, len(posts))
	for i, p := range posts {
		p.Author = model.User{ID: p.AuthorID, Username: authors[p.AuthorID].Username}
		for _, c := range comments[p.ID] {
			c.Author = model.User{ID: c.AuthorID, Username: authors[c.AuthorID].Username}
		}
		views[i] = toPostView(p, likes[p.ID], comments[p.ID])
	}
	return views, nil
}

// resolveUsers 先 MGET 缓存，未命中的一次查库并回填；已删除的用户不在结果中
func (s *postService) resolveUsers(ctx context.Context, ids []string) (map[string]cache.UserSnapshot, error) {
	out, err := s.cache.GetMany(ctx, ids)
	if err != nil {
		logger.Warn("user cache mget failed", zap.Int("ids", len(ids)), zap.Error(err))
		out = make(map[string]cache.UserSnapshot, len(ids))
	}
	var missing []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	users, err := s.users.ListByIDs(ctx, missing)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: load authors: %w", err))
	}
	fill := make([]cache.UserSnapshot, 0, len(users))
	for _, u := range users {
		snap := snapshotOf(u)
		out[u.ID] = snap
		fill = append(fill, snap)
	}
	if err := s.cache.SetMany(ctx, fill); err != nil {
		logger.Warn("user cache backfill failed", zap.Int("users", len(fill)), zap.Error(err))
	}
	return out, nil
}

// resolveUser 先查缓存再查库，用于作者展示名
func (s *postService) resolveUser(ctx context.Context, id string) (*cache.UserSnapshot, error) {
	if snap, err := s.cache.Get(ctx, id); err == nil && snap != nil {
		return snap, nil
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("post: load user: %w", err))
	}
	snap := snapshotOf(u)
	if err := s.cache.Set(ctx, snap); err != nil {
		logger.Warn("user cache write failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return &snap, nil
}

func (s *postService) discardUpload(url string) {
	if url == "" || s.janitor == nil {
		return
	}
	if name, ok := s.resolver.StoredName(url); ok {
		s.janitor.EnqueueRemove(name)
	}
}
