package model

import "time"

// Comment 评论，只追加；Seq 自增，决定展示顺序
type Comment struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	PostID    string    `gorm:"type:varchar(36);index:idx_comment_post;not null"`
	AuthorID  string    `gorm:"type:varchar(36);not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time

	Post   Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Author User `gorm:"foreignKey:AuthorID"`
}

func (Comment) TableName() string { return "comments" }
