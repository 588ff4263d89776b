//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iliyamo/librov/internal/database"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/policy"
	"github.com/iliyamo/librov/internal/repository"
	"github.com/iliyamo/librov/internal/repository/repoerr"
	"github.com/iliyamo/librov/internal/service"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// setupMySQL starts a MySQL container, applies the schema and returns a
// connected store.
func setupMySQL(t *testing.T) (*sql.DB, *repository.Store) {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "secret",
				"MYSQL_DATABASE":      "library",
			},
			WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	var db *sql.DB
	require.Eventually(t, func() bool {
		db, err = database.Open("root", "secret", host, port.Port(), "library")
		return err == nil
	}, time.Minute, time.Second)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(ctx, db, discard))
	require.NoError(t, database.Migrate(ctx, db, discard), "migrations are idempotent")
	return db, repository.NewStore(db)
}

func seedUser(t *testing.T, store *repository.Store, name string, staff bool) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &model.User{Username: name, PasswordHash: "x", IsStaff: staff, IsActive: true,
		DateOfMembership: model.NewDate(now), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func seedBook(t *testing.T, store *repository.Store, title, isbn string, copies uint32) *model.Book {
	t.Helper()
	b := &model.Book{Title: title, Author: "A. Writer", ISBN: isbn, Genre: "fiction",
		PublishedDate: model.NewDate(time.Date(1999, 1, 2, 0, 0, 0, 0, time.UTC)), AvailableCopies: copies}
	require.NoError(t, store.CreateBook(context.Background(), b))
	return b
}

func TestMySQLStore(t *testing.T) {
	_, store := setupMySQL(t)
	ctx := context.Background()

	checkout := service.NewCheckoutService(store, nil, discard, 0)
	reviews := service.NewReviewService(store, nil, discard)
	notes := service.NewNotificationService(store, nil, discard, 2)

	t.Run("last copy goes to exactly one caller", func(t *testing.T) {
		b := seedBook(t, store, "Solaris", "9780156027601", 1)
		users := make([]*model.User, 8)
		for i := range users {
			users[i] = seedUser(t, store, fmt.Sprintf("racer%d", i), false)
		}

		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for _, u := range users {
			wg.Add(1)
			go func(uid uint64) {
				defer wg.Done()
				if _, err := checkout.Checkout(ctx, uid, b.ID); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}(u.ID)
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		got, err := store.GetBook(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), got.AvailableCopies)
	})

	t.Run("checkout and return", func(t *testing.T) {
		b := seedBook(t, store, "Kindred", "9780807083697", 2)
		u := seedUser(t, store, "reader", false)

		tx, err := checkout.Checkout(ctx, u.ID, b.ID)
		require.NoError(t, err)
		_, err = checkout.Checkout(ctx, u.ID, b.ID)
		assert.Error(t, err)

		returned, err := checkout.Return(ctx, u.ID, tx.ID)
		require.NoError(t, err)
		assert.NotNil(t, returned.ReturnDate)
		_, err = checkout.Return(ctx, u.ID, tx.ID)
		assert.Error(t, err)

		got, err := store.GetBook(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), got.AvailableCopies)

		txs, err := store.ListUserTransactions(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "Kindred", txs[0].BookTitle)
	})

	t.Run("review upsert and average", func(t *testing.T) {
		b := seedBook(t, store, "Beloved", "9781400033416", 1)
		a := seedUser(t, store, "critic_a", false)
		c := seedUser(t, store, "critic_b", false)

		r1, created, err := reviews.Submit(ctx, policy.Caller{UserID: a.ID}, service.ReviewInput{BookID: b.ID, ReviewText: "fine", Rating: 3})
		require.NoError(t, err)
		assert.True(t, created)
		r2, created, err := reviews.Submit(ctx, policy.Caller{UserID: a.ID}, service.ReviewInput{BookID: b.ID, ReviewText: "better", Rating: 4})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, r1.ID, r2.ID)
		assert.Equal(t, "critic_a", r2.Username)
		_, _, err = reviews.Submit(ctx, policy.Caller{UserID: c.ID}, service.ReviewInput{BookID: b.ID, ReviewText: "great", Rating: 5})
		require.NoError(t, err)

		avg, err := reviews.AverageRating(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, avg)
		assert.Equal(t, 4.5, *avg)

		listed, err := store.ListBooks(ctx, model.BookFilter{ISBN: "9781400033416"})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.NotNil(t, listed[0].AverageRating)
		assert.Equal(t, 4.5, *listed[0].AverageRating)

		rows, err := reviews.List(ctx, model.ReviewFilter{BookID: b.ID, Ordering: "-rating"})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 5, rows[0].Rating)
	})

	t.Run("concurrent edit and resubmit of one review", func(t *testing.T) {
		b := seedBook(t, store, "Parable of the Sower", "9781538732182", 1)
		a := seedUser(t, store, "critic_c", false)
		author := policy.Caller{UserID: a.ID}
		first, _, err := reviews.Submit(ctx, author, service.ReviewInput{BookID: b.ID, ReviewText: "first", Rating: 2})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				text := fmt.Sprintf("edit %d", i)
				_, err := reviews.Update(ctx, author, first.ID, service.ReviewPatch{ReviewText: &text})
				errs <- err
			}(i)
			go func(i int) {
				defer wg.Done()
				_, _, err := reviews.Submit(ctx, author, service.ReviewInput{BookID: b.ID, ReviewText: fmt.Sprintf("again %d", i), Rating: 4})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("broadcast writes one row per user", func(t *testing.T) {
		ids, err := store.ListUserIDs(ctx)
		require.NoError(t, err)

		n, err := notes.Broadcast(ctx, "Closed for inventory")
		require.NoError(t, err)
		assert.Equal(t, int64(len(ids)), n)

		mine, err := notes.ListForUser(ctx, ids[0])
		require.NoError(t, err)
		require.NotEmpty(t, mine)
		assert.Equal(t, "Closed for inventory", mine[0].Message)
		assert.False(t, mine[0].IsRead)
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		seedBook(t, store, "Original", "1111111111111", 1)
		err := store.CreateBook(ctx, &model.Book{Title: "Copy", Author: "x", ISBN: "1111111111111",
			PublishedDate: model.NewDate(time.Now())})
		assert.ErrorIs(t, err, repoerr.ErrDuplicate)
	})
}
