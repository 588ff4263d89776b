package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/librov/internal/queue"
)

// EventPublisher emits domain events after a successful commit.  A nil
// EventPublisher discards events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

const publishTimeout = 3 * time.Second

// publish sends ev without affecting the outcome of the committed
// operation; failures are only logged.
func publish(ctx context.Context, events EventPublisher, log *slog.Logger, ev queue.Event) {
	if events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := events.Publish(ctx, ev); err != nil {
		log.Warn("event publish failed", "type", ev.Type, "err", err)
	}
}

func utcNow() time.Time { return time.Now().UTC() }

// stamp truncates to the microsecond precision of DATETIME(6) columns.
func stamp(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Microsecond)
}
