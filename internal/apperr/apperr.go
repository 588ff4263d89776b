// Package apperr defines the error taxonomy surfaced to API callers.  Every
// failure a caller can act on is an *Error carrying a machine readable kind
// and code, plus the offending request field where one applies.  Anything
// that is not an *Error is an internal failure.
package apperr

import (
	"errors"
	"net/http"
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindBusinessRule    Kind = "business_rule_violation"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindUnauthenticated Kind = "unauthenticated"
)

// Error is a caller-facing failure.  Two errors match under errors.Is when
// their codes are equal, so a sentinel still matches after the message or
// field has been specialised.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return string(e.Kind) + ": " + e.Field + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Status maps the error kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindBusinessRule:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// WithMessage returns a copy of e with a different message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Response is the JSON body written for an *Error.
type Response struct {
	Error   Kind   `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Response renders e for the wire.
func (e *Error) Response() Response {
	return Response{Error: e.Kind, Code: e.Code, Field: e.Field, Message: e.Message}
}

// Validation builds an ad-hoc validation error for a request field.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid", Field: field, Message: msg}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	ErrBookUnavailable = &Error{Kind: KindBusinessRule, Code: "book_unavailable", Field: "book_id", Message: "Book is currently unavailable"}
	ErrAlreadyBorrowed = &Error{Kind: KindBusinessRule, Code: "already_borrowed", Field: "book_id", Message: "You have already borrowed this book"}
	ErrAlreadySettled  = &Error{Kind: KindBusinessRule, Code: "already_settled", Field: "transaction_id", Message: "This transaction has already been settled."}

	ErrInvalidRating = &Error{Kind: KindValidation, Code: "invalid_rating", Field: "rating", Message: "rating must be between 1 and 5"}
	ErrEmptyMessage  = &Error{Kind: KindValidation, Code: "empty_message", Field: "message", Message: "message may not be blank"}
	ErrMessageLength = &Error{Kind: KindValidation, Code: "message_too_long", Field: "message", Message: "message may not exceed 255 characters"}
	ErrDuplicateISBN = &Error{Kind: KindValidation, Code: "duplicate_isbn", Field: "isbn", Message: "book with this isbn already exists"}
	ErrUsernameTaken = &Error{Kind: KindValidation, Code: "username_taken", Field: "username", Message: "a user with that username already exists"}

	ErrTransactionNotFound = &Error{Kind: KindNotFound, Code: "transaction_not_found", Field: "transaction_id", Message: "The Checkout transaction does not exist."}
	ErrRecipientNotFound   = &Error{Kind: KindNotFound, Code: "recipient_not_found", Field: "recipient", Message: "A User with that ID was not found"}
	ErrBookNotFound        = &Error{Kind: KindNotFound, Code: "book_not_found", Field: "book", Message: "book not found"}
	ErrReviewNotFound      = &Error{Kind: KindNotFound, Code: "review_not_found", Message: "review not found"}
	ErrUserNotFound        = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}

	ErrForbidden       = &Error{Kind: KindForbidden, Code: "forbidden", Message: "You do not have permission to perform this action."}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Code: "unauthenticated", Message: "Authentication credentials were not provided."}
	ErrBadCredentials  = &Error{Kind: KindUnauthenticated, Code: "bad_credentials", Message: "No active account found with the given credentials"}
	ErrInvalidToken    = &Error{Kind: KindUnauthenticated, Code: "token_not_valid", Message: "Given token not valid for any token type"}
	ErrInvalidRefresh  = &Error{Kind: KindUnauthenticated, Code: "invalid_refresh", Field: "refresh", Message: "Token is invalid or expired"}
)
