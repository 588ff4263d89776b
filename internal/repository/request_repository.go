package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

// RequestRepo reads and writes book_requests.
type RequestRepo struct{ db *sql.DB }

func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

// Create inserts req and fills its ID and username.
func (r *RequestRepo) Create(ctx context.Context, req *model.BookRequest) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO book_requests (user_id, title, author, description, created_at) VALUES (?,?,?,?,?)",
		req.UserID, req.Title, req.Author, req.Description, req.CreatedAt)
	if err != nil {
		return repoerr.Translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return r.db.QueryRowContext(ctx, "SELECT username FROM users WHERE id=?", req.UserID).Scan(&req.Username)
}

// List returns every request, newest first.
func (r *RequestRepo) List(ctx context.Context) ([]model.BookRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT q.id, q.user_id, u.username, q.title, q.author, q.description, q.created_at
		 FROM book_requests q
		 JOIN users u ON u.id = q.user_id
		 ORDER BY q.created_at DESC, q.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BookRequest{}
	for rows.Next() {
		var q model.BookRequest
		if err := rows.Scan(&q.ID, &q.UserID, &q.Username, &q.Title, &q.Author, &q.Description, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
