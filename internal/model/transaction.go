package model

import "time"

// Transaction records one checkout of a book by a user.  CheckoutDate and
// ExpectedReturnDate are fixed at creation; ReturnDate is set exactly once
// when the book comes back.  A transaction with a nil ReturnDate is
// "active" and a user holds at most one active transaction per book.
//
// Fields:
//  ID                 – primary key identifier.
//  UserID             – borrower.
//  BookID             – borrowed book.
//  BookTitle          – title of the book, joined on read.
//  CheckoutDate       – when the checkout happened.
//  ExpectedReturnDate – CheckoutDate plus the loan period.
//  ReturnDate         – when the book was returned (nil while active).
type Transaction struct {
    ID                 uint64     `json:"id"`
    UserID             uint64     `json:"-"`
    BookID             uint64     `json:"book_id"`
    BookTitle          string     `json:"book_title"`
    CheckoutDate       time.Time  `json:"checkout_date"`
    ExpectedReturnDate time.Time  `json:"expected_return_date"`
    ReturnDate         *time.Time `json:"return_date"`
}

// Active reports whether the book has not been returned yet.
func (t Transaction) Active() bool { return t.ReturnDate == nil }

// Overdue reports whether the transaction is active past its expected
// return date.
func (t Transaction) Overdue(now time.Time) bool {
    return t.Active() && now.After(t.ExpectedReturnDate)
}
