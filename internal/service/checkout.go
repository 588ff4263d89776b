package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/queue"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

// DefaultLoanPeriod is the time between checkout and expected return.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// CheckoutService lends and takes back books.
type CheckoutService struct {
	store      CheckoutStore
	events     EventPublisher
	log        *slog.Logger
	loanPeriod time.Duration
	now        func() time.Time
}

// NewCheckoutService wires a CheckoutService.  A non-positive loanPeriod
// selects DefaultLoanPeriod.
func NewCheckoutService(store CheckoutStore, events EventPublisher, log *slog.Logger, loanPeriod time.Duration) *CheckoutService {
	if loanPeriod <= 0 {
		loanPeriod = DefaultLoanPeriod
	}
	return &CheckoutService{store: store, events: events, log: log, loanPeriod: loanPeriod, now: utcNow}
}

// Checkout lends one copy of bookID to userID.  The book row stays locked
// from the availability check to the decrement, so two requests racing
// for the last copy cannot both succeed.
func (s *CheckoutService) Checkout(ctx context.Context, userID, bookID uint64) (*model.Transaction, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	now := stamp(s.now)

	var out *model.Transaction
	err := s.store.InCheckoutTx(ctx, func(tx CheckoutTx) error {
		book, err := tx.LockBook(ctx, bookID)
		if errors.Is(err, repoerr.ErrNotFound) {
			return apperr.ErrBookUnavailable
		}
		if err != nil {
			return err
		}
		if book.AvailableCopies == 0 {
			return apperr.ErrBookUnavailable
		}

		active, err := tx.HasActiveTransaction(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if active {
			return apperr.ErrAlreadyBorrowed
		}

		t := &model.Transaction{
			UserID:             userID,
			BookID:             bookID,
			BookTitle:          book.Title,
			CheckoutDate:       now,
			ExpectedReturnDate: now.Add(s.loanPeriod),
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			if errors.Is(err, repoerr.ErrDuplicate) {
				return apperr.ErrAlreadyBorrowed
			}
			return err
		}
		if err := tx.DecrementCopies(ctx, bookID); err != nil {
			if errors.Is(err, repoerr.ErrNoCopies) {
				return apperr.ErrBookUnavailable
			}
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("book checked out", "user_id", userID, "book_id", bookID, "transaction_id", out.ID)
	publish(ctx, s.events, s.log, queue.Event{
		Type:          queue.EventBookCheckedOut,
		UserID:        userID,
		BookID:        bookID,
		TransactionID: out.ID,
		OccurredAt:    now,
	})
	return out, nil
}

// Return settles transactionID for userID and puts the copy back.
func (s *CheckoutService) Return(ctx context.Context, userID, transactionID uint64) (*model.Transaction, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	now := stamp(s.now)

	var out *model.Transaction
	err := s.store.InCheckoutTx(ctx, func(tx CheckoutTx) error {
		t, err := tx.LockTransaction(ctx, transactionID, userID)
		if errors.Is(err, repoerr.ErrNotFound) {
			return apperr.ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		if !t.Active() {
			return apperr.ErrAlreadySettled
		}
		if err := tx.MarkReturned(ctx, t.ID, now); err != nil {
			if errors.Is(err, repoerr.ErrConflict) {
				return apperr.ErrAlreadySettled
			}
			return err
		}
		if err := tx.IncrementCopies(ctx, t.BookID); err != nil {
			return err
		}
		returned := now
		t.ReturnDate = &returned
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("book returned", "user_id", userID, "book_id", out.BookID, "transaction_id", out.ID)
	publish(ctx, s.events, s.log, queue.Event{
		Type:          queue.EventBookReturned,
		UserID:        userID,
		BookID:        out.BookID,
		TransactionID: out.ID,
		OccurredAt:    now,
	})
	return out, nil
}
