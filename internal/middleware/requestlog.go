package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"
)

// RequestLogger assigns each request an ID (reusing X-Request-ID when the
// client sends one) and logs one line per request when it completes.
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            rid := c.Request().Header.Get(echo.HeaderXRequestID)
            if rid == "" {
                rid = uuid.NewString()
            }
            c.Set(CtxRequestID, rid)
            c.Response().Header().Set(echo.HeaderXRequestID, rid)

            err := next(c)
            if err != nil {
                c.Error(err)
            }

            entry := log.WithFields(logrus.Fields{
                "request_id": rid,
                "method":     c.Request().Method,
                "path":       c.Path(),
                "status":     c.Response().Status,
                "latency_ms": time.Since(start).Milliseconds(),
                "ip":         c.RealIP(),
            })
            if id, ok := UserID(c); ok {
                entry = entry.WithField("user_id", id)
            }
            switch {
            case c.Response().Status >= 500:
                entry.Error("request failed")
            case c.Response().Status >= 400:
                entry.Info("request rejected")
            default:
                entry.Debug("request served")
            }
            return nil
        }
    }
}
