package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
	"github.com/iliyamo/librov/internal/service/servicetest"
	"github.com/iliyamo/librov/internal/utils"
)

var tokens = service.TokenSettings{Secret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}

func newAccounts(store *servicetest.Store) *service.AccountService {
	s := service.NewAccountService(store, tokens, discard)
	s.SetClock(time.Now)
	return s
}

func TestRegisterIssuesTokens(t *testing.T) {
	store := servicetest.New()
	svc := newAccounts(store)
	bio := "likes sci-fi"

	u, pair, err := svc.Register(ctx, service.RegisterInput{Username: " ada ", Email: "Ada@Example.com", Password: "pw123456", Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.IsStaff)
	assert.False(t, u.DateOfMembership.IsZero())

	claims, err := utils.ParseAccessToken(tokens.Secret, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleMember, claims.Role)
	assert.NotEmpty(t, pair.Refresh)

	_, _, err = svc.Register(ctx, service.RegisterInput{Username: "ada", Password: "other"})
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
}

func TestRegisterValidates(t *testing.T) {
	svc := newAccounts(servicetest.New())

	cases := []struct {
		in    service.RegisterInput
		field string
	}{
		{service.RegisterInput{Username: "   ", Password: "pw123456"}, "username"},
		{service.RegisterInput{Username: "ada", Email: "not-an-address", Password: "pw123456"}, "email"},
		{service.RegisterInput{Username: "ada"}, "password"},
	}
	for _, tc := range cases {
		_, _, err := svc.Register(ctx, tc.in)
		e, ok := apperr.As(err)
		require.True(t, ok, "%+v", tc.in)
		assert.Equal(t, apperr.KindValidation, e.Kind)
		assert.Equal(t, tc.field, e.Field)
	}

	_, _, err := svc.Register(ctx, service.RegisterInput{Username: "ada", Password: "pw123456"})
	assert.NoError(t, err, "email is optional")
}

func TestLogin(t *testing.T) {
	store := servicetest.New()
	svc := newAccounts(store)
	_, err := svc.CreateStaff(ctx, service.RegisterInput{Username: "librarian", Password: "pw123456"})
	require.NoError(t, err)

	u, pair, err := svc.Login(ctx, "librarian", "pw123456")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	claims, err := utils.ParseAccessToken(tokens.Secret, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, claims.Role)

	_, _, err = svc.Login(ctx, "librarian", "wrong")
	assert.ErrorIs(t, err, apperr.ErrBadCredentials)
	_, _, err = svc.Login(ctx, "nobody", "pw123456")
	assert.ErrorIs(t, err, apperr.ErrBadCredentials)
}

func TestRefreshRotates(t *testing.T) {
	store := servicetest.New()
	svc := newAccounts(store)
	_, pair, err := svc.Register(ctx, service.RegisterInput{Username: "ada", Password: "pw123456"})
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, next.Refresh)
	assert.NotEmpty(t, next.Access)

	_, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, apperr.ErrInvalidRefresh)
	_, err = svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidRefresh)

	svc.SetClock(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) })
	_, err = svc.Refresh(ctx, next.Refresh)
	assert.ErrorIs(t, err, apperr.ErrInvalidRefresh)
}

func TestProfile(t *testing.T) {
	store := servicetest.New()
	svc := newAccounts(store)
	u, _, err := svc.Register(ctx, service.RegisterInput{Username: "ada", Password: "pw123456"})
	require.NoError(t, err)
	b := store.AddBook("Dune", 1)
	_, err = service.NewCheckoutService(store, nil, discard, 0).Checkout(ctx, u.ID, b.ID)
	require.NoError(t, err)
	_, err = service.NewNotificationService(store, nil, discard, 0).Notify(ctx, u.ID, "welcome")
	require.NoError(t, err)

	p, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", p.User.Username)
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, "Dune", p.Transactions[0].BookTitle)
	require.Len(t, p.Notifications, 1)

	_, err = svc.Profile(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}
