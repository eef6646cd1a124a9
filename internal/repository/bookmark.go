package repository

import (
	"context"
	"errors"
	"fmt"

	"bookmarker/internal/apperr"
	"bookmarker/internal/model"
	"bookmarker/internal/shortcode"

	"gorm.io/gorm"
)

// DefaultInsertRetries 是短码插入冲突时的默认重试次数
const DefaultInsertRetries = 8

// CodeSource 提供候选短码，由 shortcode.Generator 实现
type CodeSource interface {
	Next(ctx context.Context) (string, error)
	MarkUsed(code string)
}

// BookmarkRepository 定义书签的存储契约，除短码查询外均按用户隔离
type BookmarkRepository interface {
	Create(ctx context.Context, userID uint, url, body string) (*model.Bookmark, error)
	Get(ctx context.Context, userID, id uint) (*model.Bookmark, error)
	List(ctx context.Context, userID uint, page, perPage int) ([]model.Bookmark, Pagination, error)
	Update(ctx context.Context, userID, id uint, url, body *string) (*model.Bookmark, error)
	Delete(ctx context.Context, userID, id uint) (*model.Bookmark, error)
	FindByShortCode(ctx context.Context, code string) (*model.Bookmark, error)
	Visit(ctx context.Context, code string) (*model.Bookmark, error)
	IncrementVisits(ctx context.Context, code string) error
	Stats(ctx context.Context, userID uint) ([]model.BookmarkStat, error)
}

type bookmarkRepository struct {
	db         *gorm.DB
	codes      CodeSource
	maxRetries int
}

// NewBookmarkRepository 返回基于 GORM 的书签仓库
//
// db 需要以 TranslateError 打开，唯一索引冲突才会被识别为 gorm.ErrDuplicatedKey。
func NewBookmarkRepository(db *gorm.DB, codes CodeSource, maxRetries int) BookmarkRepository {
	if maxRetries <= 0 {
		maxRetries = DefaultInsertRetries
	}
	return &bookmarkRepository{db: db, codes: codes, maxRetries: maxRetries}
}

func (r *bookmarkRepository) Create(ctx context.Context, userID uint, url, body string) (*model.Bookmark, error) {
	const op = "repository.bookmark.Create"

	exists, err := r.urlExists(ctx, url)
	if err != nil {
		return nil, apperr.E(op, apperr.Internal, err)
	}
	if exists {
		return nil, apperr.New(op, apperr.Conflict, "url already exists")
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		code, err := r.codes.Next(ctx)
		if errors.Is(err, shortcode.ErrSpaceExhausted) {
			return nil, &apperr.Error{Op: op, Kind: apperr.Unavailable, Msg: "no short codes left, try again later", Err: err}
		}
		if err != nil {
			return nil, apperr.E(op, apperr.Internal, err)
		}

		bookmark := &model.Bookmark{
			UserID:   userID,
			URL:      url,
			URLKey:   model.URLKeyOf(url),
			Body:     body,
			ShortURL: code,
		}
		err = r.db.WithContext(ctx).Create(bookmark).Error
		if err == nil {
			r.codes.MarkUsed(code)
			return bookmark, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.E(op, apperr.Internal, err)
		}

		// 冲突可能来自 url_key（并发创建相同 URL）或 short_url
		exists, err := r.urlExists(ctx, url)
		if err != nil {
			return nil, apperr.E(op, apperr.Internal, err)
		}
		if exists {
			return nil, apperr.New(op, apperr.Conflict, "url already exists")
		}
		r.codes.MarkUsed(code)
	}

	return nil, &apperr.Error{Op: op, Kind: apperr.Unavailable, Msg: "no short codes left, try again later", Err: shortcode.ErrSpaceExhausted}
}

func (r *bookmarkRepository) Get(ctx context.Context, userID, id uint) (*model.Bookmark, error) {
	const op = "repository.bookmark.Get"

	var bookmark model.Bookmark
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&bookmark).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(op, apperr.NotFound, fmt.Sprintf("bookmark %d not found", id))
		}
		return nil, apperr.E(op, apperr.Internal, err)
	}
	return &bookmark, nil
}

func (r *bookmarkRepository) List(ctx context.Context, userID uint, page, perPage int) ([]model.Bookmark, Pagination, error) {
	const op = "repository.bookmark.List"

	var (
		items []model.Bookmark
		meta  Pagination
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total int64
		if err := tx.Model(&model.Bookmark{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
			return err
		}
		meta = NewPagination(page, perPage, total)

		items = make([]model.Bookmark, 0, perPage)
		if total == 0 || page > meta.Pages {
			return nil
		}
		return tx.Where("user_id = ?", userID).
			Order("id ASC").
			Limit(perPage).
			Offset(meta.Offset()).
			Find(&items).Error
	})
	if err != nil {
		return nil, Pagination{}, apperr.E(op, apperr.Internal, err)
	}
	return items, meta, nil
}

func (r *bookmarkRepository) Update(ctx context.Context, userID, id uint, url, body *string) (*model.Bookmark, error) {
	const op = "repository.bookmark.Update"

	bookmark, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if url != nil && *url != bookmark.URL {
		updates["url"] = *url
		updates["url_key"] = nil
	}
	if body != nil && *body != bookmark.Body {
		updates["body"] = *body
	}
	if len(updates) == 0 {
		return bookmark, nil
	}

	err = r.db.WithContext(ctx).
		Model(&model.Bookmark{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates).Error
	if err != nil {
		return nil, apperr.E(op, apperr.Internal, err)
	}
	return r.Get(ctx, userID, id)
}

func (r *bookmarkRepository) Delete(ctx context.Context, userID, id uint) (*model.Bookmark, error) {
	const op = "repository.bookmark.Delete"

	bookmark, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Bookmark{})
	if result.Error != nil {
		return nil, apperr.E(op, apperr.Internal, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.New(op, apperr.NotFound, fmt.Sprintf("bookmark %d not found", id))
	}
	return bookmark, nil
}

func (r *bookmarkRepository) FindByShortCode(ctx context.Context, code string) (*model.Bookmark, error) {
	const op = "repository.bookmark.FindByShortCode"

	var bookmark model.Bookmark
	if err := r.db.WithContext(ctx).Where("short_url = ?", code).First(&bookmark).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(op, apperr.NotFound, "short code not found")
		}
		return nil, apperr.E(op, apperr.Internal, err)
	}
	return &bookmark, nil
}

// Visit 原子地累加访问次数并返回书签
func (r *bookmarkRepository) Visit(ctx context.Context, code string) (*model.Bookmark, error) {
	const op = "repository.bookmark.Visit"

	var bookmark model.Bookmark
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := incrementVisits(tx, code); err != nil {
			return err
		}
		return tx.Where("short_url = ?", code).First(&bookmark).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(op, apperr.NotFound, "short code not found")
		}
		return nil, apperr.E(op, apperr.Internal, err)
	}
	return &bookmark, nil
}

// IncrementVisits 只累加访问次数，供缓存命中路径使用
func (r *bookmarkRepository) IncrementVisits(ctx context.Context, code string) error {
	const op = "repository.bookmark.IncrementVisits"

	if err := incrementVisits(r.db.WithContext(ctx), code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(op, apperr.NotFound, "short code not found")
		}
		return apperr.E(op, apperr.Internal, err)
	}
	return nil
}

func (r *bookmarkRepository) Stats(ctx context.Context, userID uint) ([]model.BookmarkStat, error) {
	const op = "repository.bookmark.Stats"

	stats := make([]model.BookmarkStat, 0)
	err := r.db.WithContext(ctx).
		Model(&model.Bookmark{}).
		Select("id", "url", "short_url", "visits").
		Where("user_id = ?", userID).
		Order("id ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, apperr.E(op, apperr.Internal, err)
	}
	return stats, nil
}

func (r *bookmarkRepository) urlExists(ctx context.Context, url string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Bookmark{}).Where("url = ?", url).Count(&count).Error
	return count > 0, err
}

// incrementVisits 在数据库内执行 visits = visits + 1，避免读改写丢失更新
func incrementVisits(db *gorm.DB, code string) error {
	result := db.Model(&model.Bookmark{}).
		Where("short_url = ?", code).
		UpdateColumn("visits", gorm.Expr("visits + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
