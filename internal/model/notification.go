package model

import "time"

// Notification is a pull-style message addressed to one user.  Rows are
// created one at a time or in bulk by the broadcast and reminder paths.
type Notification struct {
    ID          uint64    `json:"id"`
    RecipientID uint64    `json:"-"`
    Recipient   string    `json:"recipient"`
    Message     string    `json:"message"`
    IsRead      bool      `json:"is_read"`
    CreatedAt   time.Time `json:"created_at"`
}
