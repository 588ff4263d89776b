package model

import "time"

// Rating bounds accepted for a review.
const (
    MinRating = 1
    MaxRating = 5
)

// Review is a user's rating and text for a book.  The `reviews` table
// carries a unique key on (book_id, user_id); a second submission by the
// same user for the same book updates the existing row.
type Review struct {
    ID         uint64    `json:"id" db:"id"`
    BookID     uint64    `json:"book" db:"book_id"`
    BookTitle  string    `json:"book_title" db:"book_title"`
    UserID     uint64    `json:"-" db:"user_id"`
    Username   string    `json:"user" db:"username"`
    ReviewText string    `json:"review_text" db:"review_text"`
    Rating     int       `json:"rating" db:"rating"`
    CreatedAt  time.Time `json:"created_at" db:"created_at"`
    UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ReviewFilter narrows a review listing.  Zero IDs are ignored.  Ordering
// is "rating" or "-rating"; anything else falls back to newest first.
type ReviewFilter struct {
    BookID   uint64
    UserID   uint64
    Ordering string
}
