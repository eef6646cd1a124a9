package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Bookmark 书签模型
//
// ShortURL 创建时分配且不再变化，由唯一索引保证全局唯一。
// URLKey 只在创建时写入（URL 的 sha256），用唯一索引拦截并发创建相同 URL；
// 编辑 URL 时清空，因为 URL 唯一性只在创建时校验。
type Bookmark struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	URLKey    *string   `gorm:"type:char(64);uniqueIndex" json:"-"`
	Body      string    `gorm:"type:text" json:"body"`
	ShortURL  string    `gorm:"size:3;uniqueIndex;not null" json:"short_url"`
	Visits    int64     `gorm:"not null;default:0" json:"visits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Bookmark) TableName() string {
	return "bookmarks"
}

// URLKeyOf 计算 URL 的唯一键
func URLKeyOf(url string) *string {
	sum := sha256.Sum256([]byte(url))
	key := hex.EncodeToString(sum[:])
	return &key
}

// BookmarkStat 统计视图中的单条记录
type BookmarkStat struct {
	ID       uint   `json:"id"`
	URL      string `json:"url"`
	ShortURL string `json:"short_url"`
	Visits   int64  `json:"visits"`
}
