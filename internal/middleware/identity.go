package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/policy"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// CallerFrom returns the identity JWTAuth attached to the request.  A
// request without a token yields the anonymous caller.
func CallerFrom(c echo.Context) policy.Caller {
	uid, _ := c.Get(ctxUserID).(uint64)
	if uid == 0 {
		return policy.Caller{}
	}
	role, _ := c.Get(ctxRole).(string)
	return policy.Caller{UserID: uid, Staff: role == model.RoleStaff}
}

// identityKey names the caller in rate-limit keys.
func identityKey(c echo.Context) string {
	if uid, _ := c.Get(ctxUserID).(uint64); uid != 0 {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}
