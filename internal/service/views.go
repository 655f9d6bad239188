package service

import (
	"time"

	"github.com/d60-Lab/postboard/internal/cache"
	"github.com/d60-Lab/postboard/internal/media"
	"github.com/d60-Lab/postboard/internal/model"
)

// UserView 对外暴露的用户信息（不含密码哈希）
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthorView 帖子/评论上的作者展示名
type AuthorView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type AuthResult struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type CommentView struct {
	ID        string     `json:"id"`
	User      AuthorView `json:"user"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
}

type PostView struct {
	ID         string            `json:"id"`
	Author     AuthorView        `json:"author"`
	Content    string            `json:"content"`
	Media      *media.Descriptor `json:"media,omitempty"`
	Image      string            `json:"image,omitempty"`
	Likes      []string          `json:"likes"`
	LikesCount int               `json:"likesCount"`
	Comments   []CommentView     `json:"comments"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type LikeResult struct {
	LikesCount int64 `json:"likesCount"`
	Liked      bool  `json:"liked"`
}

type PostStatsView struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
}

type StatsView struct {
	Posts         []PostStatsView `json:"posts"`
	TotalLikes    int64           `json:"totalLikes"`
	TotalComments int64           `json:"totalComments"`
}

func toUserView(u *model.User) *UserView {
	return &UserView{ID: u.ID, Username: u.Username, Email: u.Email}
}

func snapshotOf(u *model.User) cache.UserSnapshot {
	return cache.UserSnapshot{ID: u.ID, Username: u.Username, Email: u.Email}
}

func toCommentView(c *model.Comment, username string) CommentView {
	return CommentView{
		ID:        c.ID,
		User:      AuthorView{ID: c.AuthorID, Username: username},
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func toPostView(p *model.Post, likes []string, comments []*model.Comment) *PostView {
	v := &PostView{
		ID:         p.ID,
		Author:     AuthorView{ID: p.AuthorID, Username: p.Author.Username},
		Content:    p.Content,
		Image:      p.Image,
		Likes:      likes,
		LikesCount: len(likes),
		Comments:   make([]CommentView, 0, len(comments)),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if v.Likes == nil {
		v.Likes = []string{}
	}
	if p.HasMedia() {
		v.Media = &media.Descriptor{URL: p.MediaURL, Type: p.MediaType}
	}
	for _, c := range comments {
		v.Comments = append(v.Comments, toCommentView(c, c.Author.Username))
	}
	return v
}
