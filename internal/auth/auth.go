// Package auth issues and verifies the HS256 bearer tokens that identify
// users, and resolves them to stored users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/model"
)

var (
	ErrNoToken      = apperr.Unauthenticated("Not authorized, no token")
	ErrInvalidToken = apperr.Unauthenticated("Not authorized, token failed")
)

// Claims token 中携带用户ID和角色
type Claims struct {
	ID   string     `json:"id"`
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(cfg.JWTSecret), ttl: ttl}
}

// Issue 为用户签发 token
func (m *TokenManager) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:   user.ID,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("签发token失败: %w", err)
	}
	return token, nil
}

// Parse 校验签名和过期时间
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserLoader 按ID加载用户
type UserLoader interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Authenticator 把 Authorization 头解析为存储中的用户
type Authenticator struct {
	tokens *TokenManager
	users  UserLoader
}

func NewAuthenticator(tokens *TokenManager, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

func bearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Authenticate 未激活的用户返回 AuthorizationError
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*model.User, error) {
	token := bearer(header)
	if token == "" {
		return nil, ErrNoToken
	}
	return a.authenticateToken(ctx, token)
}

func (a *Authenticator) authenticateToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUser(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, apperr.Internal("Failed to load user", err)
	}
	if user.Status != model.UserActive {
		return nil, model.ErrUserInactive
	}
	return user, nil
}

// FromRequest 供 WebSocket 升级使用：token 可放在 Authorization 头或 token 查询参数，
// 没有 token 时按匿名处理
func (a *Authenticator) FromRequest(r *http.Request) (*model.User, error) {
	token := bearer(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, nil
	}
	return a.authenticateToken(r.Context(), token)
}

type ctxKey struct{}

// WithUser 把已认证用户放入 context，供 GraphQL 解析器读取
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKey{}).(*model.User)
	return user
}
