package servicetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
)

var ctx = context.Background()

func TestCheckoutWritesRequireBookLock(t *testing.T) {
	s := New()
	u := s.AddUser("ada", false)
	b := s.AddBook("Dune", 1)

	err := s.InCheckoutTx(ctx, func(tx service.CheckoutTx) error {
		return tx.DecrementCopies(ctx, b.ID)
	})
	assert.ErrorIs(t, err, ErrLockNotHeld)

	err = s.InCheckoutTx(ctx, func(tx service.CheckoutTx) error {
		return tx.InsertTransaction(ctx, &model.Transaction{UserID: u.ID, BookID: b.ID})
	})
	assert.ErrorIs(t, err, ErrLockNotHeld)
	assert.Empty(t, s.Transactions())
	assert.Equal(t, uint32(1), s.Book(b.ID).AvailableCopies)

	err = s.InCheckoutTx(ctx, func(tx service.CheckoutTx) error {
		if _, err := tx.LockBook(ctx, b.ID); err != nil {
			return err
		}
		return tx.DecrementCopies(ctx, b.ID)
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), s.Book(b.ID).AvailableCopies)
}

func TestReviewWritesRequireBookLock(t *testing.T) {
	s := New()
	u := s.AddUser("ada", false)
	b := s.AddBook("Dune", 1)
	now := time.Now().UTC()
	rv := &model.Review{BookID: b.ID, UserID: u.ID, ReviewText: "good", Rating: 4, CreatedAt: now, UpdatedAt: now}

	err := s.InReviewTx(ctx, func(tx service.ReviewTx) error {
		_, err := tx.UpsertReview(ctx, rv)
		return err
	})
	assert.ErrorIs(t, err, ErrLockNotHeld)
	assert.Empty(t, s.Reviews())

	err = s.InReviewTx(ctx, func(tx service.ReviewTx) error {
		if _, err := tx.LockBook(ctx, b.ID); err != nil {
			return err
		}
		_, err := tx.UpsertReview(ctx, rv)
		return err
	})
	require.NoError(t, err)

	// Locking the review takes its book too.
	err = s.InReviewTx(ctx, func(tx service.ReviewTx) error {
		r, err := tx.LockReview(ctx, rv.ID)
		if err != nil {
			return err
		}
		r.Rating = 5
		return tx.UpdateReview(ctx, r)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Reviews()[0].Rating)
}
