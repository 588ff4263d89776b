package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

// TransactionRepo reads and writes checkout transactions.  Write methods
// take the caller's *sql.Tx; the caller commits or rolls back.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionSelect = `SELECT t.id, t.user_id, t.book_id, b.title, t.checkout_date, t.expected_return_date, t.return_date
	FROM transactions t
	JOIN books b ON b.id = t.book_id`

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var (
		t        model.Transaction
		returned sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.BookID, &t.BookTitle, &t.CheckoutDate, &t.ExpectedReturnDate, &returned); err != nil {
		return nil, repoerr.Translate(err)
	}
	if returned.Valid {
		r := returned.Time
		t.ReturnDate = &r
	}
	return &t, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer rows.Close()
	out := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// HasActiveTx reports whether userID holds an unreturned copy of bookID.
func (r *TransactionRepo) HasActiveTx(ctx context.Context, tx *sql.Tx, userID, bookID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM transactions WHERE user_id=? AND book_id=? AND return_date IS NULL LIMIT 1",
		userID, bookID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// CreateTx inserts t and fills its ID.  The unique key on active
// (user_id, book_id) pairs turns a concurrent duplicate into repoerr.ErrDuplicate.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO transactions (user_id, book_id, checkout_date, expected_return_date) VALUES (?,?,?,?)",
		t.UserID, t.BookID, t.CheckoutDate, t.ExpectedReturnDate)
	if err != nil {
		return repoerr.Translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// LockForReturnTx locks the transaction owned by userID together with its
// book.  The book row is locked first, matching the order CreateTx callers
// use, so a return and a checkout of the same book cannot deadlock.
func (r *TransactionRepo) LockForReturnTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Transaction, error) {
	var bookID uint64
	err := tx.QueryRowContext(ctx,
		"SELECT book_id FROM transactions WHERE id=? AND user_id=?", id, userID).Scan(&bookID)
	if err != nil {
		return nil, repoerr.Translate(err)
	}
	var locked uint64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM books WHERE id=? FOR UPDATE", bookID).Scan(&locked); err != nil {
		return nil, repoerr.Translate(err)
	}
	return scanTransaction(tx.QueryRowContext(ctx,
		transactionSelect+" WHERE t.id=? AND t.user_id=? FOR UPDATE", id, userID))
}

// MarkReturnedTx sets return_date once.  An already settled row is
// repoerr.ErrConflict.
func (r *TransactionRepo) MarkReturnedTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE transactions SET return_date=? WHERE id=? AND return_date IS NULL", at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return repoerr.ErrConflict
	}
	return nil
}

// ListByUser returns a user's transactions, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, transactionSelect+" WHERE t.user_id=? ORDER BY t.checkout_date DESC, t.id DESC", userID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// ListOverdue returns active transactions whose expected return date is
// before now.
func (r *TransactionRepo) ListOverdue(ctx context.Context, now time.Time) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		transactionSelect+" WHERE t.return_date IS NULL AND t.expected_return_date < ? ORDER BY t.id", now)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}
