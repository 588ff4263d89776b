package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
	"github.com/iliyamo/librov/internal/utils"
)

// AccountStore persists users and their refresh tokens.
type AccountStore interface {
	// CreateUser fills u.ID.  A taken username is repoerr.ErrDuplicate.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id uint64) (*model.User, error)
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	// RotateRefresh revokes the live token oldHash and stores newHash for
	// the same user in one unit.  An unknown, revoked or expired oldHash is
	// repoerr.ErrNotFound.
	RotateRefresh(ctx context.Context, oldHash, newHash string, exp, now time.Time) (uint64, error)
	ListUserTransactions(ctx context.Context, userID uint64) ([]model.Transaction, error)
	ListNotifications(ctx context.Context, recipientID uint64) ([]model.Notification, error)
}

// TokenSettings configures token issuance.
type TokenSettings struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// TokenPair is returned by register, token and refresh.
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Bio      *string
	Staff    bool
}

// Profile is the caller's account with its loans and notifications.
type Profile struct {
	User          *model.User
	Transactions  []model.Transaction
	Notifications []model.Notification
}

// AccountService registers users and issues tokens.
type AccountService struct {
	store  AccountStore
	tokens TokenSettings
	log    *slog.Logger
	now    func() time.Time
}

func NewAccountService(store AccountStore, tokens TokenSettings, log *slog.Logger) *AccountService {
	return &AccountService{store: store, tokens: tokens, log: log, now: utcNow}
}

// Register creates an account and issues its first token pair.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.User, TokenPair, error) {
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// CreateStaff creates a staff account without issuing tokens.
func (s *AccountService) CreateStaff(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Staff = true
	return s.create(ctx, in)
}

func (s *AccountService) create(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := inputs.Validate(accountInput{Username: in.Username, Email: in.Email, Password: in.Password}); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.tokens.BcryptCost)
	if err != nil {
		return nil, err
	}
	now := stamp(s.now)
	u := &model.User{
		Username:         in.Username,
		Email:            in.Email,
		PasswordHash:     hash,
		Bio:              in.Bio,
		IsStaff:          in.Staff,
		IsActive:         true,
		DateOfMembership: model.NewDate(now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repoerr.ErrDuplicate) {
			return nil, apperr.ErrUsernameTaken
		}
		return nil, err
	}
	s.log.Info("account created", "user_id", u.ID, "staff", u.IsStaff)
	return u, nil
}

// Login verifies credentials and issues a token pair.
func (s *AccountService) Login(ctx context.Context, username, password string) (*model.User, TokenPair, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repoerr.ErrNotFound) {
		return nil, TokenPair{}, apperr.ErrBadCredentials
	}
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, TokenPair{}, apperr.ErrBadCredentials
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh exchanges a live refresh token for a new pair.  The presented
// token is revoked.
func (s *AccountService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, apperr.ErrInvalidRefresh
	}
	now := stamp(s.now)
	next, err := utils.NewRefreshToken(s.tokens.RefreshTTLDays, now)
	if err != nil {
		return TokenPair{}, err
	}
	uid, err := s.store.RotateRefresh(ctx, utils.HashRefreshRaw(raw), utils.HashRefreshRaw(next.Raw), next.Exp, now)
	if errors.Is(err, repoerr.ErrNotFound) {
		return TokenPair{}, apperr.ErrInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, err
	}
	u, err := s.store.GetUserByID(ctx, uid)
	if errors.Is(err, repoerr.ErrNotFound) {
		return TokenPair{}, apperr.ErrInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !u.IsActive {
		return TokenPair{}, apperr.ErrInvalidRefresh
	}
	access, err := utils.NewAccessToken(s.tokens.Secret, u.ID, u.Role(), s.tokens.AccessTTLMin, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Refresh: next.Raw, Access: access.Token}, nil
}

// Profile loads the caller's account, loans and notifications.
func (s *AccountService) Profile(ctx context.Context, userID uint64) (*Profile, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, repoerr.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListUserTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: u, Transactions: txs, Notifications: notes}, nil
}

func (s *AccountService) issue(ctx context.Context, u *model.User) (TokenPair, error) {
	now := stamp(s.now)
	access, err := utils.NewAccessToken(s.tokens.Secret, u.ID, u.Role(), s.tokens.AccessTTLMin, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.tokens.RefreshTTLDays, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Refresh: refresh.Raw, Access: access.Token}, nil
}
