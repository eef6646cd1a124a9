package handler

import (
	"net/http"

	"bookmarker/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler 包含认证相关的处理器
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler 创建一个新的 AuthHandler
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// LoginRequest 定义了登录请求的结构体
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"alice@example.com"`
	Password string `json:"password" binding:"required" example:"secret1"`
}

// RegisterRequest 定义了注册请求的结构体，字段规则由服务层校验
type RegisterRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Email    string `json:"email" binding:"required" example:"alice@example.com"`
	Password string `json:"password" binding:"required" example:"secret1"`
}

// UserInfo 对外暴露的用户信息
type UserInfo struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
}

// RegisterResponse 注册成功响应
type RegisterResponse struct {
	Message string   `json:"message" example:"user created"`
	User    UserInfo `json:"user"`
}

// LoginUser 登录成功后返回的用户与令牌
type LoginUser struct {
	Refresh  string `json:"refresh"`
	Access   string `json:"access"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse 登录成功响应
type LoginResponse struct {
	User LoginUser `json:"user"`
}

// RefreshResponse 刷新令牌响应
type RefreshResponse struct {
	Access string `json:"access"`
}

// Register godoc
// @Summary 用户注册
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param   account  body   RegisterRequest  true  "注册信息"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse "请求无效"
// @Failure 409 {object} ErrorResponse "用户名或邮箱已存在"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "user created",
		User:    UserInfo{Username: user.Username, Email: user.Email},
	})
}

// Login godoc
// @Summary 用户登录
// @Description 使用邮箱和密码获取访问令牌与刷新令牌
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param   account  body   LoginRequest  true  "登录凭据"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse "认证失败"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{User: LoginUser{
		Refresh:  pair.Refresh,
		Access:   pair.Access,
		Username: user.Username,
		Email:    user.Email,
	}})
}

// GetCurrentUser godoc
// @Summary 获取当前用户信息
// @Tags Auth
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {object} UserInfo
// @Failure 401 {object} ErrorResponse "未认证"
// @Router /auth/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserInfo{Username: user.Username, Email: user.Email})
}

// RefreshToken godoc
// @Summary 刷新访问令牌
// @Description Authorization 头需携带刷新令牌
// @Tags Auth
// @Security ApiKeyAuth
// @Produce  json
// @Success 200 {object} RefreshResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/token/refresh [get]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	access, err := h.auth.Refresh(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RefreshResponse{Access: access})
}
