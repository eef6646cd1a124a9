package middleware

import (
	"net/http"
	"strings"

	auth "bookmarker/pkg/jwt"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// TokenValidator 校验令牌并返回声明
type TokenValidator interface {
	ValidateToken(token string, kind auth.TokenKind) (*auth.Claims, error)
}

// AuthMiddleware JWT认证中间件，kind 决定接受访问令牌还是刷新令牌
func AuthMiddleware(tokens TokenValidator, kind auth.TokenKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// 提取Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			abortUnauthorized(c, "authorization header must be Bearer <token>")
			return
		}

		claims, err := tokens.ValidateToken(parts[1], kind)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		// 将用户信息存入上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)

		c.Next()
	}
}

// UserID 读取认证中间件写入的用户 ID
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
}
