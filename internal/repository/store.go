package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
)

// Store composes the repositories behind the service store interfaces.
type Store struct {
	db *sql.DB
	x  *sqlx.DB

	Users         *UserRepo
	Tokens        *TokenRepo
	Books         *BookRepo
	Transactions  *TransactionRepo
	Reviews       *ReviewRepo
	Notifications *NotificationRepo
	Requests      *RequestRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:            db,
		x:             sqlx.NewDb(db, "mysql"),
		Users:         NewUserRepo(db),
		Tokens:        NewTokenRepo(db),
		Books:         NewBookRepo(db),
		Transactions:  NewTransactionRepo(db),
		Reviews:       NewReviewRepo(db),
		Notifications: NewNotificationRepo(db),
		Requests:      NewRequestRepo(db),
	}
}

var (
	_ service.CheckoutStore     = (*Store)(nil)
	_ service.ReviewStore       = (*Store)(nil)
	_ service.NotificationStore = (*Store)(nil)
	_ service.AccountStore      = (*Store)(nil)
	_ service.CatalogStore      = (*Store)(nil)
	_ service.RequestStore      = (*Store)(nil)
)

// inTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.x.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ---- checkout ----

func (s *Store) InCheckoutTx(ctx context.Context, fn func(tx service.CheckoutTx) error) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error { return fn(checkoutTx{s: s, tx: tx.Tx}) })
}

type checkoutTx struct {
	s  *Store
	tx *sql.Tx
}

func (c checkoutTx) LockBook(ctx context.Context, bookID uint64) (*model.Book, error) {
	return c.s.Books.LockTx(ctx, c.tx, bookID)
}

func (c checkoutTx) HasActiveTransaction(ctx context.Context, userID, bookID uint64) (bool, error) {
	return c.s.Transactions.HasActiveTx(ctx, c.tx, userID, bookID)
}

func (c checkoutTx) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	return c.s.Transactions.CreateTx(ctx, c.tx, t)
}

func (c checkoutTx) DecrementCopies(ctx context.Context, bookID uint64) error {
	return c.s.Books.DecrementCopiesTx(ctx, c.tx, bookID)
}

func (c checkoutTx) IncrementCopies(ctx context.Context, bookID uint64) error {
	return c.s.Books.IncrementCopiesTx(ctx, c.tx, bookID)
}

func (c checkoutTx) LockTransaction(ctx context.Context, transactionID, userID uint64) (*model.Transaction, error) {
	return c.s.Transactions.LockForReturnTx(ctx, c.tx, transactionID, userID)
}

func (c checkoutTx) MarkReturned(ctx context.Context, transactionID uint64, at time.Time) error {
	return c.s.Transactions.MarkReturnedTx(ctx, c.tx, transactionID, at)
}

// ---- reviews ----

func (s *Store) InReviewTx(ctx context.Context, fn func(tx service.ReviewTx) error) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error { return fn(reviewTx{s: s, tx: tx}) })
}

type reviewTx struct {
	s  *Store
	tx *sqlx.Tx
}

func (r reviewTx) LockBook(ctx context.Context, bookID uint64) (*model.Book, error) {
	return r.s.Books.LockTx(ctx, r.tx.Tx, bookID)
}

func (r reviewTx) UpsertReview(ctx context.Context, rv *model.Review) (bool, error) {
	return r.s.Reviews.UpsertTx(ctx, r.tx, rv)
}

func (r reviewTx) LockReview(ctx context.Context, id uint64) (*model.Review, error) {
	return r.s.Reviews.LockTx(ctx, r.tx, id)
}

func (r reviewTx) UpdateReview(ctx context.Context, rv *model.Review) error {
	return r.s.Reviews.UpdateTx(ctx, r.tx, rv)
}

func (r reviewTx) DeleteReview(ctx context.Context, id uint64) error {
	return r.s.Reviews.DeleteTx(ctx, r.tx, id)
}

func (s *Store) GetReview(ctx context.Context, id uint64) (*model.Review, error) {
	return s.Reviews.GetByID(ctx, id)
}

func (s *Store) ListReviews(ctx context.Context, f model.ReviewFilter) ([]model.Review, error) {
	return s.Reviews.List(ctx, f)
}

func (s *Store) RatingStats(ctx context.Context, bookID uint64) (int64, int64, error) {
	return s.Reviews.RatingStats(ctx, bookID)
}

// ---- notifications ----

func (s *Store) UserExists(ctx context.Context, id uint64) (bool, error) {
	return s.Users.Exists(ctx, id)
}

func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) error {
	return s.Notifications.Create(ctx, n)
}

func (s *Store) ListUserIDs(ctx context.Context) ([]uint64, error) {
	return s.Users.ListIDs(ctx)
}

func (s *Store) InsertNotifications(ctx context.Context, batch []model.Notification) (int64, error) {
	return s.Notifications.CreateBulk(ctx, batch)
}

func (s *Store) ListNotifications(ctx context.Context, recipientID uint64) ([]model.Notification, error) {
	return s.Notifications.ListForRecipient(ctx, recipientID)
}

func (s *Store) ListOverdueTransactions(ctx context.Context, now time.Time) ([]model.Transaction, error) {
	return s.Transactions.ListOverdue(ctx, now)
}

// ---- accounts ----

func (s *Store) CreateUser(ctx context.Context, u *model.User) error { return s.Users.Create(ctx, u) }

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.Users.GetByUsername(ctx, username)
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	return s.Users.GetByID(ctx, id)
}

func (s *Store) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return s.Tokens.StoreRefresh(ctx, userID, tokenHash, exp)
}

func (s *Store) RotateRefresh(ctx context.Context, oldHash, newHash string, exp, now time.Time) (uint64, error) {
	return s.Tokens.Rotate(ctx, oldHash, newHash, exp, now)
}

func (s *Store) ListUserTransactions(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	return s.Transactions.ListByUser(ctx, userID)
}

// ---- catalog ----

func (s *Store) ListBooks(ctx context.Context, f model.BookFilter) ([]model.Book, error) {
	return s.Books.List(ctx, f)
}

func (s *Store) GetBook(ctx context.Context, id uint64) (*model.Book, error) {
	return s.Books.GetByID(ctx, id)
}

func (s *Store) CreateBook(ctx context.Context, b *model.Book) error { return s.Books.Create(ctx, b) }

func (s *Store) UpdateBook(ctx context.Context, id uint64, fn func(b *model.Book) error) (*model.Book, error) {
	return s.Books.Update(ctx, id, fn)
}

func (s *Store) DeleteBook(ctx context.Context, id uint64) error { return s.Books.Delete(ctx, id) }

// ---- requests ----

func (s *Store) CreateBookRequest(ctx context.Context, r *model.BookRequest) error {
	return s.Requests.Create(ctx, r)
}

func (s *Store) ListBookRequests(ctx context.Context) ([]model.BookRequest, error) {
	return s.Requests.List(ctx)
}
