package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,password_hash,bio,is_staff,is_active,date_of_membership,created_at,updated_at"

// Create inserts u and fills its ID.  A taken username is repoerr.ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, bio, is_staff, is_active, date_of_membership, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		u.Username, u.Email, u.PasswordHash, u.Bio, u.IsStaff, u.IsActive, u.DateOfMembership, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return repoerr.Translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u   model.User
		bio sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &bio, &u.IsStaff, &u.IsActive,
		&u.DateOfMembership, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, repoerr.Translate(err)
	}
	if bio.Valid {
		b := bio.String
		u.Bio = &b
	}
	return &u, nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// Exists reports whether a user with id exists.
func (r *UserRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ListIDs snapshots every user id in ascending order.
func (r *UserRepo) ListIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
