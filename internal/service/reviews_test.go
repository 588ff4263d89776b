package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/policy"
	"github.com/iliyamo/librov/internal/service"
	"github.com/iliyamo/librov/internal/service/servicetest"
)

func newReviews(store *servicetest.Store) *service.ReviewService {
	s := service.NewReviewService(store, nil, discard)
	s.SetClock(fixed(t0))
	return s
}

func caller(u *model.User) policy.Caller { return policy.Caller{UserID: u.ID, Staff: u.IsStaff} }

func TestRatingBounds(t *testing.T) {
	for _, r := range []int{0, 6, -1} {
		assert.ErrorIs(t, service.ValidateRating(r), apperr.ErrInvalidRating, "rating %d", r)
	}
	for _, r := range []int{1, 5} {
		assert.NoError(t, service.ValidateRating(r), "rating %d", r)
	}

	store := servicetest.New()
	u := store.AddUser("ada", false)
	b := store.AddBook("Dune", 1)
	svc := newReviews(store)

	_, _, err := svc.Submit(ctx, caller(u), service.ReviewInput{BookID: b.ID, ReviewText: "meh", Rating: 6})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "rating", e.Field)

	_, _, err = svc.Submit(ctx, caller(u), service.ReviewInput{BookID: b.ID, ReviewText: "  ", Rating: 4})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "review_text", e.Field)
	assert.Empty(t, store.Reviews())
}

func TestSubmitTwiceKeepsOneRow(t *testing.T) {
	store := servicetest.New()
	u := store.AddUser("ada", false)
	b := store.AddBook("Dune", 1)
	svc := newReviews(store)

	first, created, err := svc.Submit(ctx, caller(u), service.ReviewInput{BookID: b.ID, ReviewText: "good", Rating: 2})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ada", first.Username)
	assert.Equal(t, "Dune", first.BookTitle)

	later := t0.Add(time.Hour)
	svc.SetClock(fixed(later))
	second, created, err := svc.Submit(ctx, caller(u), service.ReviewInput{BookID: b.ID, ReviewText: "great", Rating: 5})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, t0, second.CreatedAt)
	assert.Equal(t, later, second.UpdatedAt)

	rows := store.Reviews()
	require.Len(t, rows, 1)
	assert.Equal(t, "great", rows[0].ReviewText)
	assert.Equal(t, 5, rows[0].Rating)

	avg, err := svc.AverageRating(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.Equal(t, 5.0, *avg)
}

// The in-memory store serializes whole units, so this checks the outcome
// and that every write ran under the book lock.  Lock contention itself
// is covered by the MySQL integration tests.
func TestConcurrentFirstSubmissions(t *testing.T) {
	store := servicetest.New()
	u := store.AddUser("ada", false)
	b := store.AddBook("Dune", 1)
	svc := newReviews(store)

	var wg sync.WaitGroup
	created := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, c, err := svc.Submit(ctx, caller(u), service.ReviewInput{BookID: b.ID, ReviewText: "x", Rating: rating})
			assert.NoError(t, err)
			created <- c
		}(i%5 + 1)
	}
	wg.Wait()
	close(created)

	n := 0
	for c := range created {
		if c {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Len(t, store.Reviews(), 1)
}

func TestAverageRating(t *testing.T) {
	store := servicetest.New()
	b := store.AddBook("Dune", 1)
	svc := newReviews(store)

	avg, err := svc.AverageRating(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, avg)

	for i, r := range []int{3, 4, 5} {
		u := store.AddUser("u"+string(rune('a'+i)), false)
		_, _, err := svc.Submit(ctx, caller(u), service.ReviewInput{BookID: b.ID, ReviewText: "ok", Rating: r})
		require.NoError(t, err)
	}
	avg, err = svc.AverageRating(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.Equal(t, 4.00, *avg)
}

func TestAverageRounding(t *testing.T) {
	assert.Nil(t, service.Average(0, 0))
	assert.Equal(t, 3.67, *service.Average(11, 3))
	assert.Equal(t, 4.33, *service.Average(13, 3))
	assert.Equal(t, 3.63, *service.Average(29, 8), "halves round away from zero")
}

func TestSubmitUnknownBook(t *testing.T) {
	store := servicetest.New()
	u := store.AddUser("ada", false)
	_, _, err := newReviews(store).Submit(ctx, caller(u), service.ReviewInput{BookID: 404, ReviewText: "x", Rating: 3})
	assert.ErrorIs(t, err, apperr.ErrBookNotFound)
}

func TestSubmitAnonymous(t *testing.T) {
	store := servicetest.New()
	b := store.AddBook("Dune", 1)
	_, _, err := newReviews(store).Submit(ctx, policy.Caller{}, service.ReviewInput{BookID: b.ID, ReviewText: "x", Rating: 3})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestUpdateAndDeleteAreAuthorOrStaff(t *testing.T) {
	store := servicetest.New()
	author := store.AddUser("ada", false)
	other := store.AddUser("bob", false)
	staff := store.AddUser("librarian", true)
	b := store.AddBook("Dune", 1)
	svc := newReviews(store)

	r, _, err := svc.Submit(ctx, caller(author), service.ReviewInput{BookID: b.ID, ReviewText: "good", Rating: 4})
	require.NoError(t, err)

	rating := 1
	_, err = svc.Update(ctx, caller(other), r.ID, service.ReviewPatch{Rating: &rating})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, 4, store.Reviews()[0].Rating)

	text := "changed my mind"
	updated, err := svc.Update(ctx, caller(author), r.ID, service.ReviewPatch{ReviewText: &text})
	require.NoError(t, err)
	assert.Equal(t, text, updated.ReviewText)
	assert.Equal(t, 4, updated.Rating)

	bad := 0
	_, err = svc.Update(ctx, caller(author), r.ID, service.ReviewPatch{Rating: &bad})
	assert.ErrorIs(t, err, apperr.ErrInvalidRating)

	_, err = svc.Delete(ctx, caller(other), r.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Len(t, store.Reviews(), 1)

	bookID, err := svc.Delete(ctx, caller(staff), r.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, bookID)
	assert.Empty(t, store.Reviews())

	_, err = svc.Get(ctx, r.ID)
	assert.ErrorIs(t, err, apperr.ErrReviewNotFound)
}

func TestListReviewsOrdering(t *testing.T) {
	store := servicetest.New()
	b := store.AddBook("Dune", 1)
	svc := newReviews(store)
	for i, r := range []int{2, 5, 3} {
		u := store.AddUser("u"+string(rune('a'+i)), false)
		_, _, err := svc.Submit(ctx, caller(u), service.ReviewInput{BookID: b.ID, ReviewText: "ok", Rating: r})
		require.NoError(t, err)
	}

	rows, err := svc.List(ctx, model.ReviewFilter{BookID: b.ID, Ordering: "-rating"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{5, 3, 2}, []int{rows[0].Rating, rows[1].Rating, rows[2].Rating})

	rows, err = svc.List(ctx, model.ReviewFilter{BookID: b.ID + 1})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
