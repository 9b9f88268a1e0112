package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/bus-seat-booking/internal/handler"
    "github.com/iliyamo/bus-seat-booking/internal/middleware"
    "github.com/iliyamo/bus-seat-booking/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
    Health  handler.Health
    Auth    *handler.AuthHandler
    Orders  *handler.OrderHandler
    Webhook *handler.WebhookHandler
    Tickets *handler.TicketAdminHandler
}

// Limits are the rate limiters applied per route group.  Nil entries
// disable limiting for that group.
type Limits struct {
    API     echo.MiddlewareFunc
    Webhook echo.MiddlewareFunc
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
    if m == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return m
}

// Register mounts every endpoint on e.
//
//   GET  /healthz                          public
//   POST /v1/auth/login                    public
//   POST /v1/payments/webhook              signed by the payment provider
//   GET  /v1/me                            any authenticated user
//   GET  /v1/routes/:id/seats              any authenticated user
//   POST /v1/orders/:id/confirm            CUSTOMER
//   GET  /v1/orders/:id                    CUSTOMER
//   POST /v1/admin/tickets/:id/cancel      STAFF
//   POST /v1/admin/tickets/:id/reactivate  STAFF
//   POST /v1/admin/tickets/:id/seat        STAFF
func Register(e *echo.Echo, h Handlers, lim Limits, jwtSecret string) {
    e.GET("/healthz", h.Health.Check)

    e.POST("/v1/auth/login", h.Auth.Login, orPass(lim.API))
    e.POST("/v1/payments/webhook", h.Webhook.Payment, orPass(lim.Webhook))

    authed := e.Group("/v1", middleware.JWTAuth(jwtSecret), orPass(lim.API))
    authed.GET("/me", h.Auth.Me)
    authed.GET("/routes/:id/seats", h.Orders.SeatMap)

    customer := authed.Group("/orders", middleware.RequireRole(model.RoleCustomer))
    customer.POST("/:id/confirm", h.Orders.Confirm)
    customer.GET("/:id", h.Orders.Status)

    staff := authed.Group("/admin/tickets", middleware.RequireRole(model.RoleStaff))
    staff.POST("/:id/cancel", h.Tickets.Cancel)
    staff.POST("/:id/reactivate", h.Tickets.Reactivate)
    staff.POST("/:id/seat", h.Tickets.ChangeSeat)
}
