package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"bookmarker/internal/apperr"
	"bookmarker/internal/model"
	"bookmarker/internal/repository"
	"bookmarker/internal/shortcode"
	"bookmarker/pkg/database"
	auth "bookmarker/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memCache 模拟 LinkCache 的语义：空字符串是失效标记
type memCache struct {
	mu    sync.Mutex
	links map[string]string
	// beforeAdd 在写入前执行，用于插入并发操作
	beforeAdd func()
}

func newMemCache() *memCache { return &memCache{links: map[string]string{}} }

func (c *memCache) Get(_ context.Context, code string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url, ok := c.links[code]
	if url == "" {
		return "", false, nil
	}
	return url, ok, nil
}

func (c *memCache) Add(_ context.Context, code, url string) (bool, error) {
	if c.beforeAdd != nil {
		hook := c.beforeAdd
		c.beforeAdd = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.links[code]; ok {
		return false, nil
	}
	c.links[code] = url
	return true, nil
}

func (c *memCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[code] = ""
	return nil
}

// expire 模拟失效标记过期
func (c *memCache) expire(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, code)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.Options{
		Driver:   "sqlite",
		DSN:      fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func setupBookmarks(t *testing.T, cache LinkCache) (*BookmarkService, uint) {
	t.Helper()
	db := setupDB(t)
	log := zap.NewNop().Sugar()

	user := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)

	gen := shortcode.NewGenerator(repository.NewShortCodeStore(db), 0, log)
	repo := repository.NewBookmarkRepository(db, gen, 0)
	return NewBookmarkService(repo, cache, BookmarkOptions{}, log), user.ID
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("op", "https://example.com"))
	assert.NoError(t, ValidateURL("op", "http://example.com/a?b=c"))

	for _, bad := range []string{"", "not-a-url", "example.com", "ftp://example.com", "https://", strings.Repeat("a", MaxURLLength+1)} {
		err := ValidateURL("op", bad)
		assert.Equal(t, apperr.Invalid, apperr.KindOf(err), "url %q", bad)
	}
}

func TestBookmarkService_CreateAndResolve(t *testing.T) {
	svc, userID := setupBookmarks(t, nil)
	ctx := context.Background()

	bm, err := svc.Create(ctx, userID, "https://example.com", "test")
	require.NoError(t, err)
	assert.Len(t, bm.ShortURL, shortcode.CodeLength)
	assert.Equal(t, int64(0), bm.Visits)

	url, err := svc.Resolve(ctx, bm.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Visits)

	_, err = svc.Resolve(ctx, "not-a-code")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestBookmarkService_CreateInvalidURL(t *testing.T) {
	svc, userID := setupBookmarks(t, nil)

	_, err := svc.Create(context.Background(), userID, "not-a-url", "")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestBookmarkService_UpdateInvalidURLKeepsOriginal(t *testing.T) {
	svc, userID := setupBookmarks(t, nil)
	ctx := context.Background()

	bm, err := svc.Create(ctx, userID, "https://example.com", "")
	require.NoError(t, err)

	bad := "not-a-url"
	_, err = svc.Update(ctx, userID, bm.ID, UpdateInput{URL: &bad})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	got, err := svc.Get(ctx, userID, bm.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.URL)
}

func TestBookmarkService_List(t *testing.T) {
	svc, userID := setupBookmarks(t, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := svc.Create(ctx, userID, fmt.Sprintf("https://example.com/%d", i), "")
		require.NoError(t, err)
	}

	items, meta, err := svc.List(ctx, userID, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, items, DefaultPerPage)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 3, meta.Pages)

	_, meta, err = svc.List(ctx, userID, ListQuery{Page: 1, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, meta.PerPage)

	_, _, err = svc.List(ctx, userID, ListQuery{Page: -1})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestBookmarkService_CacheHitStillCounts(t *testing.T) {
	cache := newMemCache()
	svc, userID := setupBookmarks(t, cache)
	ctx := context.Background()

	bm, err := svc.Create(ctx, userID, "https://example.com", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		url, err := svc.Resolve(ctx, bm.ShortURL)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", url)
	}
	cached, ok, _ := cache.Get(ctx, bm.ShortURL)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com", cached)

	got, err := svc.Get(ctx, userID, bm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Visits)
}

func TestBookmarkService_CacheInvalidation(t *testing.T) {
	cache := newMemCache()
	svc, userID := setupBookmarks(t, cache)
	ctx := context.Background()

	bm, err := svc.Create(ctx, userID, "https://example.com", "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, bm.ShortURL)
	require.NoError(t, err)

	changed := "https://changed.example.com"
	_, err = svc.Update(ctx, userID, bm.ID, UpdateInput{URL: &changed})
	require.NoError(t, err)

	url, err := svc.Resolve(ctx, bm.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, changed, url)

	require.NoError(t, svc.Delete(ctx, userID, bm.ID))
	_, ok, _ := cache.Get(ctx, bm.ShortURL)
	assert.False(t, ok)

	_, err = svc.Resolve(ctx, bm.ShortURL)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestBookmarkService_StaleCacheEntry(t *testing.T) {
	cache := newMemCache()
	svc, _ := setupBookmarks(t, cache)
	ctx := context.Background()

	_, err := cache.Add(ctx, "Zz9", "https://gone.example.com")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "Zz9")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, ok, _ := cache.Get(ctx, "Zz9")
	assert.False(t, ok)
}

func TestBookmarkService_UpdateDuringResolveDoesNotCacheOldURL(t *testing.T) {
	cache := newMemCache()
	svc, userID := setupBookmarks(t, cache)
	ctx := context.Background()

	bm, err := svc.Create(ctx, userID, "https://old.example.com", "")
	require.NoError(t, err)

	// 重定向已从库里读到旧 URL，写缓存之前书签被修改
	changed := "https://new.example.com"
	cache.beforeAdd = func() {
		_, err := svc.Update(ctx, userID, bm.ID, UpdateInput{URL: &changed})
		require.NoError(t, err)
	}
	url, err := svc.Resolve(ctx, bm.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, "https://old.example.com", url)

	_, ok, _ := cache.Get(ctx, bm.ShortURL)
	assert.False(t, ok, "old url must not be cached after an update")

	url, err = svc.Resolve(ctx, bm.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, changed, url)

	cache.expire(bm.ShortURL)
	url, err = svc.Resolve(ctx, bm.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, changed, url)
	cached, ok, _ := cache.Get(ctx, bm.ShortURL)
	assert.True(t, ok)
	assert.Equal(t, changed, cached)
}

func setupAuth(t *testing.T) *AuthService {
	t.Helper()
	db := setupDB(t)
	tokens := auth.NewManager("secret", "bookmarker", time.Hour, 24*time.Hour)
	return NewAuthService(repository.NewUserRepository(db), tokens, zap.NewNop().Sugar())
}

func TestAuthService_Register(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	cases := []struct {
		name string
		in   RegisterInput
		kind apperr.Kind
	}{
		{"short password", RegisterInput{"bobby", "bobby@example.com", "a1"}, apperr.Invalid},
		{"weak password", RegisterInput{"bobby", "bobby@example.com", "abcdefgh"}, apperr.Invalid},
		{"short username", RegisterInput{"bob", "bobby@example.com", "secret1"}, apperr.Invalid},
		{"username with space", RegisterInput{"bob by", "bobby@example.com", "secret1"}, apperr.Invalid},
		{"reserved username", RegisterInput{"Admin", "bobby@example.com", "secret1"}, apperr.Invalid},
		{"bad email", RegisterInput{"bobby", "bobby-at-example", "secret1"}, apperr.Invalid},
		{"duplicate username", RegisterInput{"alice", "bobby@example.com", "secret1"}, apperr.Conflict},
		{"duplicate email", RegisterInput{"bobby", "alice@example.com", "secret1"}, apperr.Conflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestAuthService_LoginAndRefresh(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong1")
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	access, err := svc.Refresh(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	_, err = svc.Refresh(ctx, 9999)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}
