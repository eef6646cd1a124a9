package service

import (
	"context"
	"strings"
	"unicode"

	"bookmarker/internal/apperr"
	"bookmarker/internal/model"
	"bookmarker/internal/repository"
	auth "bookmarker/pkg/jwt"

	"go.uber.org/zap"
)

const (
	MinUsernameLength = 5
	MaxUsernameLength = 50
	MinPasswordLength = 6
)

var reservedUsernames = map[string]bool{
	"admin": true, "administrator": true, "root": true, "system": true,
	"support": true, "bookmarks": true, "static": true, "swagger": true,
}

// TokenIssuer 是认证服务依赖的令牌能力
type TokenIssuer interface {
	IssuePair(userID uint, username string) (auth.TokenPair, error)
	GenerateToken(userID uint, username string, kind auth.TokenKind) (string, error)
}

// RegisterInput 注册参数
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthService 用户注册、登录与令牌刷新
type AuthService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	logger *zap.SugaredLogger
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger.Named("auth_service")}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	const op = "service.auth.Register"

	if msg := checkPassword(in.Password); msg != "" {
		return nil, apperr.New(op, apperr.Invalid, msg)
	}
	if !safeUsername(in.Username) {
		return nil, apperr.New(op, apperr.Invalid, "username should contain at least 5 characters and without space")
	}
	if err := validate.Var(in.Email, "required,email"); err != nil {
		return nil, apperr.New(op, apperr.Invalid, "invalid email")
	}

	user := &model.User{Username: in.Username, Email: in.Email}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, apperr.E(op, apperr.Internal, err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("用户注册成功", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login 校验邮箱与密码并签发令牌
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, auth.TokenPair, error) {
	const op = "service.auth.Login"

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, auth.TokenPair{}, apperr.New(op, apperr.Unauthorized, "wrong credentials")
		}
		return nil, auth.TokenPair{}, err
	}
	if !user.CheckPassword(password) {
		return nil, auth.TokenPair{}, apperr.New(op, apperr.Unauthorized, "wrong credentials")
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return nil, auth.TokenPair{}, apperr.E(op, apperr.Internal, err)
	}
	return user, pair, nil
}

// Me 返回当前用户
func (s *AuthService) Me(ctx context.Context, userID uint) (*model.User, error) {
	const op = "service.auth.Me"

	user, err := s.users.GetByID(ctx, userID)
	if apperr.KindOf(err) == apperr.NotFound {
		return nil, apperr.New(op, apperr.Unauthorized, "user no longer exists")
	}
	return user, err
}

// Refresh 用刷新令牌的身份签发新的访问令牌
func (s *AuthService) Refresh(ctx context.Context, userID uint) (string, error) {
	const op = "service.auth.Refresh"

	user, err := s.Me(ctx, userID)
	if err != nil {
		return "", err
	}
	access, err := s.tokens.GenerateToken(user.ID, user.Username, auth.AccessToken)
	if err != nil {
		return "", apperr.E(op, apperr.Internal, err)
	}
	return access, nil
}

func checkPassword(password string) string {
	if len(password) < MinPasswordLength {
		return "password is too short"
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return "password must contain letters and digits"
	}
	return ""
}

func safeUsername(username string) bool {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return false
	}
	if reservedUsernames[strings.ToLower(username)] {
		return false
	}
	for _, r := range username {
		if !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-')) {
			return false
		}
	}
	return true
}
