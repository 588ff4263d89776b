package model

import "time"

// BookRequest is a member's suggestion for a title the library does not
// carry yet.  Requests are created by members and listed by staff.
type BookRequest struct {
    ID          uint64    `json:"id"`
    UserID      uint64    `json:"user"`
    Username    string    `json:"username"`
    Title       string    `json:"title"`
    Author      string    `json:"author"`
    Description string    `json:"description"`
    CreatedAt   time.Time `json:"created_at"`
}
