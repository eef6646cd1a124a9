package handler

import (
	"net/http"
	"strconv"
	"time"

	"bookmarker/internal/apperr"
	"bookmarker/internal/middleware"
	"bookmarker/internal/service"

	"github.com/gin-gonic/gin"
)

// BookmarkHandler 书签与短码重定向处理器
type BookmarkHandler struct {
	bookmarks *service.BookmarkService
}

// NewBookmarkHandler 创建处理器实例
func NewBookmarkHandler(bookmarks *service.BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks}
}

// CreateBookmarkRequest 创建书签请求
type CreateBookmarkRequest struct {
	URL  string `json:"url" binding:"required" example:"https://example.com"`
	Body string `json:"body" example:"test"`
}

// UpdateBookmarkRequest 编辑书签请求，缺省字段保持不变
type UpdateBookmarkRequest struct {
	URL  *string `json:"url" example:"https://example.com/new"`
	Body *string `json:"body" example:"updated"`
}

// ListBookmarksQuery 分页查询参数
type ListBookmarksQuery struct {
	Page    *int `form:"page" binding:"omitempty,min=1"`
	PerPage *int `form:"per_page" binding:"omitempty,min=1"`
}

func (q ListBookmarksQuery) toService() service.ListQuery {
	var out service.ListQuery
	if q.Page != nil {
		out.Page = *q.Page
	}
	if q.PerPage != nil {
		out.PerPage = *q.PerPage
	}
	return out
}

// Index 根路径
func (h *BookmarkHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Hello Word")
}

// Hello 简单连通性检查
func (h *BookmarkHandler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello World"})
}

// HealthCheck 健康检查
func (h *BookmarkHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

// CreateBookmark godoc
// @Summary 创建书签
// @Description 为当前用户创建书签并分配 3 位短码
// @Tags Bookmarks
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param   bookmark  body   CreateBookmarkRequest  true  "书签"
// @Success 201 {object} model.Bookmark
// @Failure 400 {object} ErrorResponse "URL 无效"
// @Failure 409 {object} ErrorResponse "URL 已存在"
// @Failure 503 {object} ErrorResponse "短码空间已满"
// @Router /bookmarks/ [post]
func (h *BookmarkHandler) CreateBookmark(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateBookmarkRequest
	if !bindJSON(c, &req) {
		return
	}

	bookmark, err := h.bookmarks.Create(c.Request.Context(), userID, req.URL, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookmark)
}

// ListBookmarks godoc
// @Summary 分页获取书签
// @Tags Bookmarks
// @Security ApiKeyAuth
// @Produce  json
// @Param   page      query  int  false  "页码" default(1)
// @Param   per_page  query  int  false  "每页数量" default(5)
// @Success 200 {object} ListBookmarksResponse
// @Failure 400 {object} ErrorResponse
// @Router /bookmarks/ [get]
func (h *BookmarkHandler) ListBookmarks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var q ListBookmarksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, apperr.New("handler.ListBookmarks", apperr.Invalid, "page and per_page must be positive integers"))
		return
	}

	items, meta, err := h.bookmarks.List(c.Request.Context(), userID, q.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListBookmarksResponse{Data: items, Meta: meta})
}

// GetBookmark godoc
// @Summary 获取单个书签
// @Tags Bookmarks
// @Security ApiKeyAuth
// @Produce  json
// @Param   id  path  int  true  "书签 ID"
// @Success 200 {object} model.Bookmark
// @Failure 404 {object} ErrorResponse
// @Router /bookmarks/{id} [get]
func (h *BookmarkHandler) GetBookmark(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	bookmark, err := h.bookmarks.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookmark)
}

// UpdateBookmark godoc
// @Summary 编辑书签
// @Description 只能修改 url 与 body，短码与访问次数不可编辑
// @Tags Bookmarks
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param   id        path  int                    true  "书签 ID"
// @Param   bookmark  body  UpdateBookmarkRequest  true  "修改内容"
// @Success 200 {object} model.Bookmark
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /bookmarks/{id} [patch]
func (h *BookmarkHandler) UpdateBookmark(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	var req UpdateBookmarkRequest
	if !bindJSON(c, &req) {
		return
	}

	bookmark, err := h.bookmarks.Update(c.Request.Context(), userID, id, service.UpdateInput{URL: req.URL, Body: req.Body})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookmark)
}

// DeleteBookmark godoc
// @Summary 删除书签
// @Tags Bookmarks
// @Security ApiKeyAuth
// @Param   id  path  int  true  "书签 ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /bookmarks/{id} [delete]
func (h *BookmarkHandler) DeleteBookmark(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}

	if err := h.bookmarks.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats godoc
// @Summary 访问统计
// @Description 返回当前用户全部书签的访问次数，不分页
// @Tags Bookmarks
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {object} StatsResponse
// @Router /bookmarks/stats [get]
func (h *BookmarkHandler) GetStats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.bookmarks.Stats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Data: stats})
}

// RedirectToOriginal godoc
// @Summary 短码重定向
// @Description 访问次数 +1 并 302 跳转到原始 URL
// @Tags Redirect
// @Param   code  path  string  true  "3 位短码"
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Router /{code} [get]
func (h *BookmarkHandler) RedirectToOriginal(c *gin.Context) {
	url, err := h.bookmarks.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperr.New("handler.currentUser", apperr.Unauthorized, "authentication required"))
		return 0, false
	}
	return userID, true
}

func userAndID(c *gin.Context) (uint, uint, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apperr.New("handler.userAndID", apperr.NotFound, "bookmark not found"))
		return 0, 0, false
	}
	return userID, uint(id), true
}
