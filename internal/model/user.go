package model

import "time"

// User 用户；ResetToken 只保存一次性密钥的 sha256，与 ResetTokenExpiresAt 同时设置、同时清空
type User struct {
	ID                  string     `gorm:"primaryKey;type:varchar(36)"`
	Username            string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash        string     `gorm:"type:varchar(255);not null"`
	ResetToken          *string    `gorm:"type:varchar(64);index"`
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (User) TableName() string { return "users" }

// HasResetToken 重置字段是否处于已签发状态
func (u *User) HasResetToken() bool {
	return u.ResetToken != nil && u.ResetTokenExpiresAt != nil
}
