package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/model"
)

type stubIssuer struct {
	fail bool
}

func (s stubIssuer) Issue(user *model.User) (string, error) {
	if s.fail {
		return "", errors.New("sign failed")
	}
	return "token-" + user.ID, nil
}

func newUserService(f *fixture, issuer TokenIssuer) *UserService {
	cfg := config.AuthConfig{BcryptCost: bcrypt.MinCost, AdminEmails: []string{" Boss@Example.com"}}
	s := NewUserService(f.store, issuer, cfg, zap.NewNop())
	s.now = f.clock.Now
	return s
}

func TestRegister(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	users := newUserService(f, stubIssuer{})

	_, _, err := users.Register(ctx, RegisterInput{FullName: "Ada", Email: "ada@example.com"})
	require.Equal(apperr.KindValidation, apperr.KindOf(err))
	_, _, err = users.Register(ctx, RegisterInput{FullName: "Ada", Email: "ada@example.com", Password: "12345"})
	require.Equal(apperr.KindValidation, apperr.KindOf(err))

	user, token, err := users.Register(ctx, RegisterInput{FullName: " Ada ", Email: " ADA@example.com", Password: "secret1"})
	require.NoError(err)
	require.Equal("token-"+user.ID, token)
	require.Equal("Ada", user.FullName)
	require.Equal("ada@example.com", user.Email)
	require.Equal(model.RoleVoter, user.Role)
	require.Equal(model.UserActive, user.Status)
	require.NotEqual("secret1", user.PasswordHash)
	require.NoError(bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))

	stored, err := f.store.GetUser(ctx, user.ID)
	require.NoError(err)
	require.Equal(user.PasswordHash, stored.PasswordHash)

	_, _, err = users.Register(ctx, RegisterInput{FullName: "Other", Email: "ada@example.com", Password: "secret2"})
	require.ErrorIs(err, model.ErrEmailTaken)

	boss, _, err := users.Register(ctx, RegisterInput{FullName: "Boss", Email: "boss@example.com", Password: "secret1"})
	require.NoError(err)
	require.Equal(model.RoleAdmin, boss.Role)

	_, _, err = newUserService(f, stubIssuer{fail: true}).Register(ctx,
		RegisterInput{FullName: "Eve", Email: "eve@example.com", Password: "secret1"})
	require.Equal(apperr.KindInternal, apperr.KindOf(err))
}

func TestLogin(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	users := newUserService(f, stubIssuer{})

	registered, _, err := users.Register(ctx, RegisterInput{FullName: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(err)

	_, _, err = users.Login(ctx, "", "secret1")
	require.Equal(apperr.KindValidation, apperr.KindOf(err))

	_, _, err = users.Login(ctx, "nobody@example.com", "secret1")
	require.ErrorIs(err, model.ErrInvalidCredentials)

	_, _, err = users.Login(ctx, "ada@example.com", "secret2")
	require.ErrorIs(err, model.ErrInvalidCredentials)

	user, token, err := users.Login(ctx, "Ada@Example.com", "secret1")
	require.NoError(err)
	require.Equal(registered.ID, user.ID)
	require.Equal("token-"+user.ID, token)

	// 停用的账号不能登录
	user.Status = model.UserInactive
	require.NoError(f.store.CreateUser(ctx, user))
	_, _, err = users.Login(ctx, "ada@example.com", "secret1")
	require.ErrorIs(err, model.ErrAccountDeactivated)
}

func TestListUsers(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	users := newUserService(f, stubIssuer{})

	_, err := users.ListUsers(ctx, f.voters[0])
	require.ErrorIs(err, model.ErrNotAdmin)

	list, err := users.ListUsers(ctx, f.admin)
	require.NoError(err)
	require.Len(list, 4)
}
