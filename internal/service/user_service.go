package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/repository"
)

const minPasswordLength = 6

// TokenIssuer 为登录成功的用户签发 token
type TokenIssuer interface {
	Issue(user *model.User) (string, error)
}

type RegisterInput struct {
	FullName    string
	Email       string
	Password    string
	PhoneNumber string
}

// UserService 注册、登录和用户查询
type UserService struct {
	store  repository.Store
	tokens TokenIssuer
	admins map[string]bool
	cost   int
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(store repository.Store, tokens TokenIssuer, cfg config.AuthConfig, logger *zap.Logger) *UserService {
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		admins[normalizeEmail(email)] = true
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &UserService{store: store, tokens: tokens, admins: admins, cost: cost, logger: logger, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 新用户默认为 Voter，邮箱在 auth.admin_emails 中的为 Admin
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	if in.FullName == "" || in.Email == "" || in.Password == "" {
		return nil, "", apperr.Validation("Please provide all required fields")
	}
	if len(in.Password) < minPasswordLength {
		return nil, "", apperr.Validation("Password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, "", apperr.Internal("Failed to hash password", err)
	}

	role := model.RoleVoter
	if s.admins[in.Email] {
		role = model.RoleAdmin
	}
	user := &model.User{
		ID:             uuid.NewString(),
		FullName:       in.FullName,
		Email:          in.Email,
		PhoneNumber:    strings.TrimSpace(in.PhoneNumber),
		PasswordHash:   string(hash),
		Role:           role,
		Status:         model.UserActive,
		VotedElections: []string{},
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, "", wrapErr("Failed to create user", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", apperr.Internal("Failed to generate token", err)
	}
	s.logger.Info("注册用户", zap.String("user", user.ID), zap.String("role", string(role)))
	return user, token, nil
}

// Login 邮箱不存在和密码错误返回同一个错误
func (s *UserService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", apperr.Validation("Please provide your email and password")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, "", model.ErrInvalidCredentials
		}
		return nil, "", wrapErr("Failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", model.ErrInvalidCredentials
	}
	if user.Status != model.UserActive {
		return nil, "", model.ErrAccountDeactivated
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", apperr.Internal("Failed to generate token", err)
	}
	return user, token, nil
}

// ListUsers 仅管理员
func (s *UserService) ListUsers(ctx context.Context, requester *model.User) ([]*model.User, error) {
	if !requester.IsAdmin() {
		return nil, model.ErrNotAdmin
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, wrapErr("Failed to list users", err)
	}
	return users, nil
}
