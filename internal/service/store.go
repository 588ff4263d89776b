// Package service implements the library's stateful operations: the
// checkout engine, the review ledger and the notification fan-out.  Each
// state-changing operation runs inside one store transaction so concurrent
// callers observe serializable outcomes for copy counts, active loans and
// review uniqueness.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/librov/internal/model"
)

// CheckoutStore opens the atomic unit used by checkouts and returns.
type CheckoutStore interface {
	InCheckoutTx(ctx context.Context, fn func(tx CheckoutTx) error) error
}

// CheckoutTx is the view of the store inside a checkout or return.  Lock
// methods hold their rows until the unit ends.  Books are always locked
// before transactions.
type CheckoutTx interface {
	// LockBook returns repoerr.ErrNotFound for an unknown id.
	LockBook(ctx context.Context, bookID uint64) (*model.Book, error)
	HasActiveTransaction(ctx context.Context, userID, bookID uint64) (bool, error)
	// InsertTransaction fills t.ID.  It returns repoerr.ErrDuplicate when
	// the user already holds an active transaction for the book.
	InsertTransaction(ctx context.Context, t *model.Transaction) error
	// DecrementCopies returns repoerr.ErrNoCopies when no copy is left.
	DecrementCopies(ctx context.Context, bookID uint64) error
	IncrementCopies(ctx context.Context, bookID uint64) error
	// LockTransaction locks the transaction and its book, book first.  A
	// transaction belonging to another user is repoerr.ErrNotFound.
	LockTransaction(ctx context.Context, transactionID, userID uint64) (*model.Transaction, error)
	// MarkReturned returns repoerr.ErrConflict when already settled.
	MarkReturned(ctx context.Context, transactionID uint64, at time.Time) error
}

// ReviewStore reads reviews and opens the atomic unit used by writes.
type ReviewStore interface {
	InReviewTx(ctx context.Context, fn func(tx ReviewTx) error) error
	GetReview(ctx context.Context, id uint64) (*model.Review, error)
	ListReviews(ctx context.Context, f model.ReviewFilter) ([]model.Review, error)
	// RatingStats returns the sum and number of ratings for a book.
	RatingStats(ctx context.Context, bookID uint64) (sum, count int64, err error)
}

// ReviewTx is the view of the store inside a review write.
type ReviewTx interface {
	// LockBook locks the book row, serializing review writes per book so
	// two first submissions by one user resolve to one insert and one
	// update.
	LockBook(ctx context.Context, bookID uint64) (*model.Book, error)
	// UpsertReview inserts r or, when (book, user) already has a review,
	// overwrites its text, rating and updated_at.  r is refreshed from the
	// stored row, keeping the original created_at.
	UpsertReview(ctx context.Context, r *model.Review) (created bool, err error)
	LockReview(ctx context.Context, id uint64) (*model.Review, error)
	UpdateReview(ctx context.Context, r *model.Review) error
	DeleteReview(ctx context.Context, id uint64) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	UserExists(ctx context.Context, id uint64) (bool, error)
	InsertNotification(ctx context.Context, n *model.Notification) error
	// ListUserIDs snapshots every existing account id in ascending order.
	ListUserIDs(ctx context.Context) ([]uint64, error)
	// InsertNotifications writes batch in one multi-row statement and
	// returns the number of rows written.
	InsertNotifications(ctx context.Context, batch []model.Notification) (int64, error)
	// ListNotifications returns a recipient's notifications newest first.
	ListNotifications(ctx context.Context, recipientID uint64) ([]model.Notification, error)
	// ListOverdueTransactions returns active transactions due before now.
	ListOverdueTransactions(ctx context.Context, now time.Time) ([]model.Transaction, error)
}
