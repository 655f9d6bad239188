package model

import "time"

// MediaType 媒体类型
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Post 帖子主体；点赞与评论各自成表，按元素原子增删
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	AuthorID  string    `gorm:"type:varchar(36);index:idx_post_author;not null"`
	Content   string    `gorm:"type:text;not null"`
	MediaURL  string    `gorm:"type:text"`
	MediaType MediaType `gorm:"type:varchar(8)"`
	Image     string    `gorm:"type:text"` // 兼容旧客户端：媒体为图片时等于 MediaURL
	CreatedAt time.Time `gorm:"index:idx_post_created"`
	UpdatedAt time.Time

	Author User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

func (Post) TableName() string { return "posts" }

// HasMedia 是否带媒体
func (p *Post) HasMedia() bool { return p.MediaURL != "" }
