package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 用户模型，删除为物理删除，外键级联删除其书签
type User struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Username     string     `gorm:"type:varchar(80);uniqueIndex;not null"`
	Email        string     `gorm:"type:varchar(256);uniqueIndex;not null"`
	PasswordHash string     `gorm:"type:varchar(255);not null"`
	Bookmarks    []Bookmark `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// SetPassword 加密并设置密码
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword 校验密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
