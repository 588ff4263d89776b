package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/queue"
	"github.com/iliyamo/librov/internal/service"
	"github.com/iliyamo/librov/internal/service/servicetest"
)

func newNotifications(store *servicetest.Store, batch int, events service.EventPublisher) *service.NotificationService {
	s := service.NewNotificationService(store, events, discard, batch)
	s.SetClock(fixed(t0))
	return s
}

func TestBroadcastReachesEveryUser(t *testing.T) {
	store := servicetest.New()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		store.AddUser(name, false)
	}
	events := &recorder{}

	n, err := newNotifications(store, 2, events).Broadcast(ctx, "Library closed on Monday")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rows := store.Notifications()
	require.Len(t, rows, 5)
	seen := map[uint64]bool{}
	for _, row := range rows {
		assert.Equal(t, "Library closed on Monday", row.Message)
		assert.False(t, row.IsRead)
		assert.Equal(t, t0, row.CreatedAt)
		seen[row.RecipientID] = true
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, []string{queue.EventNotificationBroadcast}, events.types())
	assert.Equal(t, int64(5), events.events[0].Count)
}

func TestBroadcastReportsActualCountOnPartialFailure(t *testing.T) {
	store := servicetest.New()
	for i := 0; i < 5; i++ {
		store.AddUser("u"+string(rune('a'+i)), false)
	}
	store.BatchErr = func(call int, _ []model.Notification) error {
		if call == 1 {
			return servicetest.ErrInjected
		}
		return nil
	}

	n, err := newNotifications(store, 2, nil).Broadcast(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Len(t, store.Notifications(), 3)
}

func TestBroadcastAllBatchesFail(t *testing.T) {
	store := servicetest.New()
	store.AddUser("a", false)
	store.BatchErr = func(int, []model.Notification) error { return servicetest.ErrInjected }

	n, err := newNotifications(store, 2, nil).Broadcast(ctx, "hello")
	assert.ErrorIs(t, err, servicetest.ErrInjected)
	assert.Zero(t, n)
}

func TestBroadcastValidation(t *testing.T) {
	store := servicetest.New()
	store.AddUser("a", false)
	svc := newNotifications(store, 0, nil)

	_, err := svc.Broadcast(ctx, "   ")
	assert.ErrorIs(t, err, apperr.ErrEmptyMessage)

	_, err = svc.Broadcast(ctx, strings.Repeat("x", 256))
	assert.ErrorIs(t, err, apperr.ErrMessageLength)

	// counted in characters, not bytes
	n, err := svc.Broadcast(ctx, strings.Repeat("é", 255))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	store := servicetest.New()
	store.AddUser("a", false)
	cctx, cancel := context.WithCancel(ctx)
	cancel()

	n, err := newNotifications(store, 1, nil).Broadcast(cctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestNotify(t *testing.T) {
	store := servicetest.New()
	u := store.AddUser("ada", false)
	svc := newNotifications(store, 0, nil)

	n, err := svc.Notify(ctx, u.ID, "Your request was approved")
	require.NoError(t, err)
	assert.Equal(t, "ada", n.Recipient)
	assert.False(t, n.IsRead)

	_, err = svc.Notify(ctx, 999, "hi")
	assert.ErrorIs(t, err, apperr.ErrRecipientNotFound)

	_, err = svc.Notify(ctx, u.ID, "")
	assert.ErrorIs(t, err, apperr.ErrEmptyMessage)

	// only broadcasts are length limited
	_, err = svc.Notify(ctx, u.ID, strings.Repeat("x", 400))
	assert.NoError(t, err)
}

func TestListForUserNewestFirst(t *testing.T) {
	store := servicetest.New()
	ada := store.AddUser("ada", false)
	bob := store.AddUser("bob", false)
	svc := newNotifications(store, 0, nil)

	for i, msg := range []string{"first", "second", "third"} {
		svc.SetClock(fixed(t0.Add(time.Duration(i) * time.Minute)))
		_, err := svc.Notify(ctx, ada.ID, msg)
		require.NoError(t, err)
	}
	_, err := svc.Notify(ctx, bob.ID, "not yours")
	require.NoError(t, err)

	rows, err := svc.ListForUser(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{rows[0].Message, rows[1].Message, rows[2].Message})

	_, err = svc.ListForUser(ctx, 0)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRemindOverdue(t *testing.T) {
	store := servicetest.New()
	ada := store.AddUser("ada", false)
	bob := store.AddUser("bob", false)
	dune := store.AddBook("Dune", 2)
	emma := store.AddBook("Emma", 2)

	checkout := service.NewCheckoutService(store, nil, discard, 0)
	checkout.SetClock(fixed(t0))
	_, err := checkout.Checkout(ctx, ada.ID, dune.ID)
	require.NoError(t, err)
	returned, err := checkout.Checkout(ctx, bob.ID, dune.ID)
	require.NoError(t, err)
	_, err = checkout.Return(ctx, bob.ID, returned.ID)
	require.NoError(t, err)
	checkout.SetClock(fixed(t0.Add(10 * 24 * time.Hour)))
	_, err = checkout.Checkout(ctx, bob.ID, emma.ID)
	require.NoError(t, err)

	events := &recorder{}
	svc := newNotifications(store, 0, events)

	svc.SetClock(fixed(t0.Add(13 * 24 * time.Hour)))
	n, err := svc.RemindOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	svc.SetClock(fixed(t0.Add(15 * 24 * time.Hour)))
	n, err = svc.RemindOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := svc.ListForUser(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `Reminder: "Dune" was due back on 2024-05-15. Please return it.`, rows[0].Message)
	assert.Equal(t, []string{queue.EventRemindersSent}, events.types())
}
