// Package queue carries library domain events over the message broker.
// Producers publish after their database transaction commits; the activity
// consumer appends one line per event to an audit log.
package queue

import "time"

// EventsQueue is the durable queue every library event is routed to.
const EventsQueue = "library.events"

// Event types.
const (
    EventBookCheckedOut        = "book.checked_out"
    EventBookReturned          = "book.returned"
    EventReviewSubmitted       = "review.submitted"
    EventNotificationBroadcast = "notification.broadcast"
    EventRemindersSent         = "reminders.sent"
)

// Event is the envelope published for every domain event.  Only the
// fields relevant to Type are populated.
type Event struct {
    Type          string    `json:"type"`
    UserID        uint64    `json:"user_id,omitempty"`
    BookID        uint64    `json:"book_id,omitempty"`
    TransactionID uint64    `json:"transaction_id,omitempty"`
    ReviewID      uint64    `json:"review_id,omitempty"`
    Rating        int       `json:"rating,omitempty"`
    Created       bool      `json:"created,omitempty"`
    Count         int64     `json:"count,omitempty"`
    OccurredAt    time.Time `json:"occurred_at"`
}
