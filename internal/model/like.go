package model

import "time"

// PostLike 点赞集合的一个成员；(post_id, user_id) 唯一
type PostLike struct {
	PostID    string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"primaryKey;type:varchar(36);index:idx_like_user"`
	CreatedAt time.Time

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (PostLike) TableName() string { return "post_likes" }
