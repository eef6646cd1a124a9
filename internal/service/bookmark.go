package service

import (
	"context"
	"errors"

	"bookmarker/internal/apperr"
	"bookmarker/internal/model"
	"bookmarker/internal/repository"
	"bookmarker/internal/shortcode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	DefaultPerPage = 5
	MaxPerPage     = 100
	MaxURLLength   = 2048
)

var validate = validator.New()

// LinkCache 是重定向路径上的短码缓存，可以为空
//
// Add 只在键不存在时写入；Invalidate 之后的一段时间内 Add 不生效。
type LinkCache interface {
	Get(ctx context.Context, code string) (string, bool, error)
	Add(ctx context.Context, code, url string) (bool, error)
	Invalidate(ctx context.Context, code string) error
}

// ListQuery 分页参数，零值表示使用默认值
type ListQuery struct {
	Page    int
	PerPage int
}

// UpdateInput 可编辑字段，nil 表示不修改
type UpdateInput struct {
	URL  *string
	Body *string
}

// BookmarkOptions 书签服务配置
type BookmarkOptions struct {
	DefaultPerPage int
	MaxPerPage     int
}

// BookmarkService 负责校验输入并编排书签仓库与缓存，本身无状态
type BookmarkService struct {
	repo           repository.BookmarkRepository
	cache          LinkCache
	defaultPerPage int
	maxPerPage     int
	logger         *zap.SugaredLogger
}

// NewBookmarkService 创建书签服务，cache 为 nil 时不使用缓存
func NewBookmarkService(repo repository.BookmarkRepository, cache LinkCache, opts BookmarkOptions, logger *zap.SugaredLogger) *BookmarkService {
	if opts.DefaultPerPage <= 0 {
		opts.DefaultPerPage = DefaultPerPage
	}
	if opts.MaxPerPage <= 0 {
		opts.MaxPerPage = MaxPerPage
	}
	return &BookmarkService{
		repo:           repo,
		cache:          cache,
		defaultPerPage: opts.DefaultPerPage,
		maxPerPage:     opts.MaxPerPage,
		logger:         logger.Named("bookmark_service"),
	}
}

func (s *BookmarkService) Create(ctx context.Context, userID uint, url, body string) (*model.Bookmark, error) {
	const op = "service.bookmark.Create"

	if err := ValidateURL(op, url); err != nil {
		return nil, err
	}
	bookmark, err := s.repo.Create(ctx, userID, url, body)
	if err != nil {
		if apperr.KindOf(err) == apperr.Unavailable {
			s.logger.Errorw("短码空间不足", "user_id", userID, "error", err)
		}
		return nil, err
	}
	s.logger.Debugw("书签已创建", "user_id", userID, "id", bookmark.ID, "short_url", bookmark.ShortURL)
	return bookmark, nil
}

func (s *BookmarkService) Get(ctx context.Context, userID, id uint) (*model.Bookmark, error) {
	return s.repo.Get(ctx, userID, id)
}

func (s *BookmarkService) List(ctx context.Context, userID uint, q ListQuery) ([]model.Bookmark, repository.Pagination, error) {
	const op = "service.bookmark.List"

	if q.Page < 0 || q.PerPage < 0 {
		return nil, repository.Pagination{}, apperr.New(op, apperr.Invalid, "page and per_page must be positive")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = s.defaultPerPage
	}
	if q.PerPage > s.maxPerPage {
		q.PerPage = s.maxPerPage
	}
	return s.repo.List(ctx, userID, q.Page, q.PerPage)
}

func (s *BookmarkService) Update(ctx context.Context, userID, id uint, in UpdateInput) (*model.Bookmark, error) {
	const op = "service.bookmark.Update"

	if in.URL != nil {
		if err := ValidateURL(op, *in.URL); err != nil {
			return nil, err
		}
	}

	bookmark, err := s.repo.Update(ctx, userID, id, in.URL, in.Body)
	if err != nil {
		return nil, err
	}
	if in.URL != nil {
		s.evict(ctx, bookmark.ShortURL)
	}
	return bookmark, nil
}

func (s *BookmarkService) Delete(ctx context.Context, userID, id uint) error {
	bookmark, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	s.evict(ctx, bookmark.ShortURL)
	return nil
}

func (s *BookmarkService) Stats(ctx context.Context, userID uint) ([]model.BookmarkStat, error) {
	return s.repo.Stats(ctx, userID)
}

// Resolve 将短码解析为目标 URL，并在存储层原子地累加访问次数
func (s *BookmarkService) Resolve(ctx context.Context, code string) (string, error) {
	const op = "service.bookmark.Resolve"

	if !shortcode.Valid(code) {
		return "", apperr.New(op, apperr.NotFound, "short code not found")
	}

	if s.cache != nil {
		url, ok, err := s.cache.Get(ctx, code)
		if err != nil {
			s.logger.Warnw("读取短码缓存失败", "code", code, "error", err)
		}
		if ok {
			if err := s.repo.IncrementVisits(ctx, code); err != nil {
				if apperr.KindOf(err) == apperr.NotFound {
					s.evict(ctx, code)
				}
				return "", err
			}
			return url, nil
		}
	}

	bookmark, err := s.repo.Visit(ctx, code)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if _, err := s.cache.Add(ctx, code, bookmark.URL); err != nil {
			s.logger.Warnw("写入短码缓存失败", "code", code, "error", err)
		}
	}
	return bookmark.URL, nil
}

func (s *BookmarkService) evict(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.logger.Warnw("删除短码缓存失败", "code", code, "error", err)
	}
}

// ValidateURL 要求绝对的 http/https URL
func ValidateURL(op, url string) error {
	if url == "" {
		return apperr.New(op, apperr.Invalid, "url is required")
	}
	if len(url) > MaxURLLength {
		return apperr.New(op, apperr.Invalid, "url is too long")
	}
	if err := validate.Var(url, "http_url"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperr.New(op, apperr.Invalid, "invalid url, enter a valid one")
		}
		return apperr.E(op, apperr.Internal, err)
	}
	return nil
}
