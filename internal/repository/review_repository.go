package repository

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

// ReviewRepo reads and writes reviews.  There is at most one row per
// (book_id, user_id), enforced by a unique key.
type ReviewRepo struct {
	db *sql.DB
	x  *sqlx.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db, x: sqlx.NewDb(db, "mysql")}
}

func reviewSelect() *goqu.SelectDataset {
	return dialect.From(goqu.T("reviews").As("r")).Prepared(true).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.user_id")))).
		Select(
			goqu.I("r.id"), goqu.I("r.book_id"), goqu.I("b.title").As("book_title"),
			goqu.I("r.user_id"), goqu.I("u.username"), goqu.I("r.review_text"),
			goqu.I("r.rating"), goqu.I("r.created_at"), goqu.I("r.updated_at"),
		)
}

// buildReviewList renders the listing query for f.
func buildReviewList(f model.ReviewFilter) (string, []interface{}, error) {
	ds := reviewSelect()
	if f.BookID != 0 {
		ds = ds.Where(goqu.I("r.book_id").Eq(f.BookID))
	}
	if f.UserID != 0 {
		ds = ds.Where(goqu.I("r.user_id").Eq(f.UserID))
	}
	newest := []exp.OrderedExpression{goqu.I("r.created_at").Desc(), goqu.I("r.id").Desc()}
	switch f.Ordering {
	case "rating":
		ds = ds.Order(append([]exp.OrderedExpression{goqu.I("r.rating").Asc()}, newest...)...)
	case "-rating":
		ds = ds.Order(append([]exp.OrderedExpression{goqu.I("r.rating").Desc()}, newest...)...)
	default:
		ds = ds.Order(newest...)
	}
	return ds.ToSQL()
}

// List returns the reviews matching f.
func (r *ReviewRepo) List(ctx context.Context, f model.ReviewFilter) ([]model.Review, error) {
	q, args, err := buildReviewList(f)
	if err != nil {
		return nil, err
	}
	out := []model.Review{}
	if err := r.x.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReviewRepo) get(ctx context.Context, q sqlx.QueryerContext, where goqu.Ex, lock bool) (*model.Review, error) {
	ds := reviewSelect().Where(where)
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	sqlStr, args, err := ds.ToSQL()
	if err != nil {
		return nil, err
	}
	var out model.Review
	if err := sqlx.GetContext(ctx, q, &out, sqlStr, args...); err != nil {
		return nil, repoerr.Translate(err)
	}
	return &out, nil
}

// GetByID returns one review.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (*model.Review, error) {
	return r.get(ctx, r.x, goqu.Ex{"r.id": id}, false)
}

// LockTx reads review id holding an exclusive row lock until tx ends.  The
// review's book is locked first, the same order UpsertTx callers take, so
// an edit and a resubmission of one review cannot deadlock.
func (r *ReviewRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Review, error) {
	var bookID uint64
	if err := tx.QueryRowContext(ctx, "SELECT book_id FROM reviews WHERE id=?", id).Scan(&bookID); err != nil {
		return nil, repoerr.Translate(err)
	}
	var locked uint64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM books WHERE id=? FOR UPDATE", bookID).Scan(&locked); err != nil {
		return nil, repoerr.Translate(err)
	}
	return r.get(ctx, tx, goqu.Ex{"r.id": id}, true)
}

// UpsertTx inserts rv or overwrites the text, rating and updated_at of
// the existing review for the same (book, user).  MySQL reports one
// affected row for an insert and two for an update.  rv is reloaded from
// the stored row so created_at reflects the first submission.
func (r *ReviewRepo) UpsertTx(ctx context.Context, tx *sqlx.Tx, rv *model.Review) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reviews (book_id, user_id, review_text, rating, created_at, updated_at)
		 VALUES (?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE review_text=VALUES(review_text), rating=VALUES(rating), updated_at=VALUES(updated_at)`,
		rv.BookID, rv.UserID, rv.ReviewText, rv.Rating, rv.CreatedAt, rv.UpdatedAt)
	if err != nil {
		return false, repoerr.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	stored, err := r.get(ctx, tx, goqu.Ex{"r.book_id": rv.BookID, "r.user_id": rv.UserID}, false)
	if err != nil {
		return false, err
	}
	*rv = *stored
	return n == 1, nil
}

// UpdateTx writes the mutable columns of rv.
func (r *ReviewRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, rv *model.Review) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE reviews SET review_text=?, rating=?, updated_at=? WHERE id=?",
		rv.ReviewText, rv.Rating, rv.UpdatedAt, rv.ID)
	return err
}

// DeleteTx removes review id.
func (r *ReviewRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM reviews WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repoerr.ErrNotFound
	}
	return nil
}

// RatingStats returns the sum and number of ratings for a book.
func (r *ReviewRepo) RatingStats(ctx context.Context, bookID uint64) (sum, count int64, err error) {
	err = r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(rating),0), COUNT(*) FROM reviews WHERE book_id=?", bookID).Scan(&sum, &count)
	return sum, count, err
}
