// Package policy holds the capability checks that gate every API operation.
// Each route declares one Policy; the check runs before the handler so a
// denied request has no side effects.  Record-level checks (the author of a
// review) are evaluated by the service once the record is loaded, again
// before any mutation.
package policy

import (
	"net/http"

	"github.com/iliyamo/librov/internal/apperr"
)

// Policy names a rule deciding whether a caller may perform an operation.
type Policy int

const (
	// Open allows everyone, authenticated or not.
	Open Policy = iota
	// AuthenticatedOnly requires a valid access token for every method.
	AuthenticatedOnly
	// StaffGatedWrite lets anyone read; writes require the staff flag.
	StaffGatedWrite
	// AuthorOrStaff lets anyone read; writes require authentication and,
	// for an existing record, that the caller wrote it or is staff.
	AuthorOrStaff
	// AdminOnly requires the staff flag for every method.
	AdminOnly
)

func (p Policy) String() string {
	switch p {
	case Open:
		return "open"
	case AuthenticatedOnly:
		return "authenticated_only"
	case StaffGatedWrite:
		return "staff_gated_write"
	case AuthorOrStaff:
		return "author_or_staff"
	case AdminOnly:
		return "admin_only"
	}
	return "unknown"
}

// Action distinguishes safe reads from state-changing writes.
type Action int

const (
	Read Action = iota
	Write
)

// ActionFor classifies an HTTP method.  GET, HEAD and OPTIONS are reads.
func ActionFor(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return Read
	}
	return Write
}

// Caller is the identity a request runs as.  The zero value is an
// anonymous caller.
type Caller struct {
	UserID uint64
	Staff  bool
}

// Authenticated reports whether the caller presented a valid token.
func (c Caller) Authenticated() bool { return c.UserID != 0 }

// Check evaluates the route-level rule of p.  It returns
// apperr.ErrUnauthenticated when a token is required but missing and
// apperr.ErrForbidden when the caller lacks the capability.
func (p Policy) Check(c Caller, a Action) error {
	switch p {
	case Open:
		return nil
	case AuthenticatedOnly:
		if !c.Authenticated() {
			return apperr.ErrUnauthenticated
		}
		return nil
	case StaffGatedWrite:
		if a == Read {
			return nil
		}
		if !c.Authenticated() {
			return apperr.ErrUnauthenticated
		}
		if !c.Staff {
			return apperr.ErrForbidden
		}
		return nil
	case AuthorOrStaff:
		if a == Read {
			return nil
		}
		if !c.Authenticated() {
			return apperr.ErrUnauthenticated
		}
		return nil
	case AdminOnly:
		if !c.Authenticated() {
			return apperr.ErrUnauthenticated
		}
		if !c.Staff {
			return apperr.ErrForbidden
		}
		return nil
	}
	return apperr.ErrForbidden
}

// CheckObject evaluates p against an existing record owned by ownerID.
// Only AuthorOrStaff has a record-level rule; the other policies defer to
// Check.
func (p Policy) CheckObject(c Caller, a Action, ownerID uint64) error {
	if err := p.Check(c, a); err != nil {
		return err
	}
	if p != AuthorOrStaff || a == Read {
		return nil
	}
	if c.UserID == ownerID || c.Staff {
		return nil
	}
	return apperr.ErrForbidden
}
