package repository

import (
	"context"

	"bookmarker/internal/model"

	"gorm.io/gorm"
)

// ShortCodeStore 为短码生成器提供存在性查询，实现 shortcode.Store
type ShortCodeStore struct {
	db *gorm.DB
}

// NewShortCodeStore 创建短码查询仓库
func NewShortCodeStore(db *gorm.DB) *ShortCodeStore {
	return &ShortCodeStore{db: db}
}

// ShortCodeExists 检查给定的短码是否已在数据库中存在
func (s *ShortCodeStore) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Bookmark{}).Where("short_url = ?", code).Count(&count).Error
	return count > 0, err
}

// CountShortCodes 返回已分配的短码数量
func (s *ShortCodeStore) CountShortCodes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Bookmark{}).Count(&count).Error
	return count, err
}

// AllShortCodes 返回全部已分配的短码
func (s *ShortCodeStore) AllShortCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&model.Bookmark{}).Pluck("short_url", &codes).Error
	return codes, err
}
