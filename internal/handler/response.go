package handler

import (
	"net/http"

	"bookmarker/internal/apperr"
	"bookmarker/internal/middleware"
	"bookmarker/internal/model"
	"bookmarker/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse 统一的错误响应
type ErrorResponse struct {
	Message string `json:"message" example:"resource not found"`
}

// ListBookmarksResponse 分页列表响应
type ListBookmarksResponse struct {
	Data []model.Bookmark      `json:"data"`
	Meta repository.Pagination `json:"meta"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	Data []model.BookmarkStat `json:"data"`
}

// respondError 将业务错误翻译为状态码与消息，内部错误只记录日志不外泄
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zap.S().Errorw("请求处理失败",
			"path", c.FullPath(),
			"status", status,
			"request_id", c.GetString(middleware.ContextRequestID),
			"error", err,
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Message: apperr.Message(err)})
}

// bindJSON 绑定请求体，失败时直接返回 400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// notFound 未匹配路由的统一响应
func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Message: apperr.MsgNotFound})
}
