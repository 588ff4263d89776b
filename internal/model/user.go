package model

import "time"

// Role names carried in the access token's "role" claim.  A user's role is
// derived from the is_staff column; there is no separate roles table.
const (
    RoleMember = "MEMBER"
    RoleStaff  = "STAFF"
)

// User represents a library account as stored in the `users` table.
// Staff accounts manage the catalog, read book requests and send
// notifications; members borrow books and write reviews.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Username         – unique login name.
//  Email            – contact address.
//  PasswordHash     – bcrypt hashed password.
//  Bio              – optional free text about the member.
//  IsStaff          – whether the account has staff privileges.
//  IsActive         – whether the account may sign in.
//  DateOfMembership – calendar date the account was created.
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
    ID               uint64    // users.id
    Username         string    // users.username
    Email            string    // users.email
    PasswordHash     string    // users.password_hash
    Bio              *string   // users.bio (nullable)
    IsStaff          bool      // users.is_staff
    IsActive         bool      // users.is_active
    DateOfMembership Date      // users.date_of_membership
    CreatedAt        time.Time // users.created_at
    UpdatedAt        time.Time // users.updated_at
}

// Role maps the staff flag onto the role claim used by the API.
func (u User) Role() string {
    if u.IsStaff {
        return RoleStaff
    }
    return RoleMember
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
