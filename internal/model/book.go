package model

// Book is a catalog entry in the `books` table.  AvailableCopies is never
// negative; it is decremented by a successful checkout and incremented by a
// successful return, both inside the same database transaction that writes
// the corresponding Transaction row.
//
// AverageRating is derived on read from the book's reviews and is nil when
// the book has no reviews.
type Book struct {
    ID              uint64   `json:"id" db:"id"`
    Title           string   `json:"title" db:"title" validate:"required,max=150"`
    Author          string   `json:"author" db:"author" validate:"required,max=150"`
    Genre           string   `json:"genre" db:"genre" validate:"max=100"`
    ISBN            string   `json:"isbn" db:"isbn" validate:"required,max=13"`
    PublishedDate   Date     `json:"published_date" db:"published_date"`
    AvailableCopies uint32   `json:"available_copies" db:"available_copies"`
    AverageRating   *float64 `json:"average_rating" db:"average_rating"`
}

// BookFilter narrows a catalog listing.  Empty string fields and nil
// pointers are ignored.  Search matches a substring of title, author, isbn
// or genre.  Ordering is one of title, published_date, optionally prefixed
// with "-" for descending order.
type BookFilter struct {
    Title           string
    Author          string
    ISBN            string
    Genre           string
    AvailableCopies *uint32
    Search          string
    Ordering        string
}

// BookPatch carries the fields of a partial book update.  Nil fields are
// left unchanged.
type BookPatch struct {
    Title           *string
    Author          *string
    Genre           *string
    ISBN            *string
    PublishedDate   *Date
    AvailableCopies *uint32
}

// Apply copies the non-nil fields of p onto b.
func (p BookPatch) Apply(b *Book) {
    if p.Title != nil {
        b.Title = *p.Title
    }
    if p.Author != nil {
        b.Author = *p.Author
    }
    if p.Genre != nil {
        b.Genre = *p.Genre
    }
    if p.ISBN != nil {
        b.ISBN = *p.ISBN
    }
    if p.PublishedDate != nil {
        b.PublishedDate = *p.PublishedDate
    }
    if p.AvailableCopies != nil {
        b.AvailableCopies = *p.AvailableCopies
    }
}
