package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/librov/internal/repository/repoerr"
)

// TokenRepo persists refresh token hashes.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return repoerr.Translate(err)
}

// Rotate revokes the live token oldHash and stores newHash for the same
// user in one transaction.  The old row is locked so a token presented
// twice concurrently rotates once.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash, newHash string, exp, now time.Time) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		id, userID uint64
		expiresAt  time.Time
		revokedAt  sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		"SELECT id, user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE",
		oldHash).Scan(&id, &userID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, repoerr.Translate(err)
	}
	if revokedAt.Valid || !now.Before(expiresAt) {
		return 0, repoerr.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "UPDATE refresh_tokens SET revoked_at=? WHERE id=?", now, id); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, newHash, exp); err != nil {
		return 0, repoerr.Translate(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return userID, nil
}
