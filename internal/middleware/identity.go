package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth and RequestLogger.
const (
    CtxUserID    = "user_id"
    CtxRole      = "role"
    CtxRequestID = "request_id"
)

// UserID returns the authenticated caller's ID.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(CtxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated caller's role, or "".
func Role(c echo.Context) string {
    r, _ := c.Get(CtxRole).(string)
    return r
}

// callerKey identifies the caller for rate limiting: the user ID when
// authenticated, "guest" otherwise.
func callerKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
