package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/queue"
)

// DefaultBatchSize is the number of rows per multi-row notification insert.
const DefaultBatchSize = 500

// NotificationService writes pull-style notifications.
type NotificationService struct {
	store     NotificationStore
	events    EventPublisher
	log       *slog.Logger
	batchSize int
	now       func() time.Time
}

// NewNotificationService wires a NotificationService.  A non-positive
// batchSize selects DefaultBatchSize.
func NewNotificationService(store NotificationStore, events EventPublisher, log *slog.Logger, batchSize int) *NotificationService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &NotificationService{store: store, events: events, log: log, batchSize: batchSize, now: utcNow}
}

// Notify sends message to one recipient.
func (s *NotificationService) Notify(ctx context.Context, recipientID uint64, message string) (*model.Notification, error) {
	if err := validateMessage(message); err != nil {
		return nil, err
	}
	ok, err := s.store.UserExists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrRecipientNotFound
	}
	n := &model.Notification{RecipientID: recipientID, Message: message, CreatedAt: stamp(s.now)}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Broadcast sends message to every existing account and returns the
// number of notifications actually written.  Delivery is best effort per
// batch: a failed batch is logged and skipped, never retried.  An error
// is returned only when nothing could be written or ctx ends.
func (s *NotificationService) Broadcast(ctx context.Context, message string) (int64, error) {
	if err := validateBroadcast(message); err != nil {
		return 0, err
	}
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := stamp(s.now)
	rows := make([]model.Notification, len(ids))
	for i, id := range ids {
		rows[i] = model.Notification{RecipientID: id, Message: message, CreatedAt: now}
	}

	written, err := s.writeBatches(ctx, rows)
	s.log.Info("broadcast delivered", "recipients", len(ids), "written", written)
	if written > 0 {
		publish(ctx, s.events, s.log, queue.Event{Type: queue.EventNotificationBroadcast, Count: written, OccurredAt: now})
	}
	return written, err
}

// ListForUser returns the caller's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint64) ([]model.Notification, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	return s.store.ListNotifications(ctx, userID)
}

// RemindOverdue writes one reminder per active transaction past its
// expected return date.  A loan that stays overdue is reminded again on
// every run.
func (s *NotificationService) RemindOverdue(ctx context.Context) (int64, error) {
	now := stamp(s.now)
	overdue, err := s.store.ListOverdueTransactions(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		return 0, nil
	}
	rows := make([]model.Notification, len(overdue))
	for i, t := range overdue {
		rows[i] = model.Notification{
			RecipientID: t.UserID,
			Message:     ReminderMessage(t),
			CreatedAt:   now,
		}
	}
	written, err := s.writeBatches(ctx, rows)
	s.log.Info("overdue reminders sent", "overdue", len(overdue), "written", written)
	if written > 0 {
		publish(ctx, s.events, s.log, queue.Event{Type: queue.EventRemindersSent, Count: written, OccurredAt: now})
	}
	return written, err
}

// ReminderMessage is the text of an overdue reminder.
func ReminderMessage(t model.Transaction) string {
	return fmt.Sprintf("Reminder: %q was due back on %s. Please return it.",
		t.BookTitle, t.ExpectedReturnDate.UTC().Format(model.DateLayout))
}

func (s *NotificationService) writeBatches(ctx context.Context, rows []model.Notification) (int64, error) {
	var (
		written  int64
		failed   int
		firstErr error
	)
	for start := 0; start < len(rows); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+s.batchSize, len(rows))
		n, err := s.store.InsertNotifications(ctx, rows[start:end])
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.log.Warn("notification batch failed", "offset", start, "size", end-start, "err", err)
			continue
		}
		written += n
	}
	if written == 0 && firstErr != nil {
		return 0, fmt.Errorf("all %d notification batches failed: %w", failed, firstErr)
	}
	return written, nil
}
