package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/policy"
	"github.com/iliyamo/librov/internal/queue"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

// ReviewInput is a review submission.
type ReviewInput struct {
	BookID     uint64
	ReviewText string
	Rating     int
}

// ReviewPatch carries the fields of a partial review update.  The book a
// review belongs to cannot change.
type ReviewPatch struct {
	ReviewText *string
	Rating     *int
}

// ReviewService keeps at most one review per user and book.
type ReviewService struct {
	store  ReviewStore
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

func NewReviewService(store ReviewStore, events EventPublisher, log *slog.Logger) *ReviewService {
	return &ReviewService{store: store, events: events, log: log, now: utcNow}
}

// ValidateRating rejects ratings outside [model.MinRating, model.MaxRating].
func ValidateRating(r int) error {
	return inputs.ValidateCoded(ratingInput{Rating: r}, ratingCodes)
}

func validateText(text string) error {
	return inputs.Validate(reviewTextInput{ReviewText: text})
}

// Submit creates the caller's review of in.BookID or, when one exists,
// overwrites its text and rating.  created reports which happened.
func (s *ReviewService) Submit(ctx context.Context, caller policy.Caller, in ReviewInput) (review *model.Review, created bool, err error) {
	if err := policy.AuthorOrStaff.Check(caller, policy.Write); err != nil {
		return nil, false, err
	}
	if err := ValidateRating(in.Rating); err != nil {
		return nil, false, err
	}
	if err := validateText(in.ReviewText); err != nil {
		return nil, false, err
	}
	now := stamp(s.now)

	err = s.store.InReviewTx(ctx, func(tx ReviewTx) error {
		book, err := tx.LockBook(ctx, in.BookID)
		if errors.Is(err, repoerr.ErrNotFound) {
			return apperr.ErrBookNotFound
		}
		if err != nil {
			return err
		}
		r := &model.Review{
			BookID:     in.BookID,
			BookTitle:  book.Title,
			UserID:     caller.UserID,
			ReviewText: in.ReviewText,
			Rating:     in.Rating,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		created, err = tx.UpsertReview(ctx, r)
		if err != nil {
			return err
		}
		review = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	publish(ctx, s.events, s.log, queue.Event{
		Type:       queue.EventReviewSubmitted,
		UserID:     caller.UserID,
		BookID:     review.BookID,
		ReviewID:   review.ID,
		Rating:     review.Rating,
		Created:    created,
		OccurredAt: now,
	})
	return review, created, nil
}

// Update applies patch to review id.  Only the author or staff may update.
func (s *ReviewService) Update(ctx context.Context, caller policy.Caller, id uint64, patch ReviewPatch) (*model.Review, error) {
	if err := policy.AuthorOrStaff.Check(caller, policy.Write); err != nil {
		return nil, err
	}
	if patch.Rating != nil {
		if err := ValidateRating(*patch.Rating); err != nil {
			return nil, err
		}
	}
	if patch.ReviewText != nil {
		if err := validateText(*patch.ReviewText); err != nil {
			return nil, err
		}
	}
	now := stamp(s.now)

	var out *model.Review
	err := s.store.InReviewTx(ctx, func(tx ReviewTx) error {
		r, err := tx.LockReview(ctx, id)
		if errors.Is(err, repoerr.ErrNotFound) {
			return apperr.ErrReviewNotFound
		}
		if err != nil {
			return err
		}
		if err := policy.AuthorOrStaff.CheckObject(caller, policy.Write, r.UserID); err != nil {
			return err
		}
		if patch.ReviewText != nil {
			r.ReviewText = *patch.ReviewText
		}
		if patch.Rating != nil {
			r.Rating = *patch.Rating
		}
		r.UpdatedAt = now
		if err := tx.UpdateReview(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes review id.  Only the author or staff may delete.  It
// returns the book the review belonged to.
func (s *ReviewService) Delete(ctx context.Context, caller policy.Caller, id uint64) (bookID uint64, err error) {
	if err := policy.AuthorOrStaff.Check(caller, policy.Write); err != nil {
		return 0, err
	}
	err = s.store.InReviewTx(ctx, func(tx ReviewTx) error {
		r, err := tx.LockReview(ctx, id)
		if errors.Is(err, repoerr.ErrNotFound) {
			return apperr.ErrReviewNotFound
		}
		if err != nil {
			return err
		}
		if err := policy.AuthorOrStaff.CheckObject(caller, policy.Write, r.UserID); err != nil {
			return err
		}
		bookID = r.BookID
		return tx.DeleteReview(ctx, id)
	})
	return bookID, err
}

// Get returns review id.
func (s *ReviewService) Get(ctx context.Context, id uint64) (*model.Review, error) {
	r, err := s.store.GetReview(ctx, id)
	if errors.Is(err, repoerr.ErrNotFound) {
		return nil, apperr.ErrReviewNotFound
	}
	return r, err
}

// List returns the reviews matching f.
func (s *ReviewService) List(ctx context.Context, f model.ReviewFilter) ([]model.Review, error) {
	return s.store.ListReviews(ctx, f)
}

// AverageRating returns the mean rating of bookID rounded to two
// decimals, or nil when the book has no reviews.
func (s *ReviewService) AverageRating(ctx context.Context, bookID uint64) (*float64, error) {
	sum, count, err := s.store.RatingStats(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return Average(sum, count), nil
}

// Average is sum/count rounded to two decimals, halves away from zero,
// the way MySQL ROUND treats the exact AVG used by the book listing.  No
// reviews is nil.
func Average(sum, count int64) *float64 {
	if count == 0 {
		return nil
	}
	avg := math.Round(float64(sum)/float64(count)*100) / 100
	return &avg
}
