package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/bus-seat-booking/internal/booking"
    "github.com/iliyamo/bus-seat-booking/internal/middleware"
    "github.com/iliyamo/bus-seat-booking/internal/model"
    "github.com/iliyamo/bus-seat-booking/internal/repository"
)

// Booking is the part of booking.Service the HTTP layer calls.
type Booking interface {
    Finalize(ctx context.Context, orderID uint64, trigger string, opts ...booking.FinalizeOption) (booking.FinalizeResult, error)
    Status(ctx context.Context, orderID uint64) (booking.OrderStatus, error)
    SeatMap(ctx context.Context, routeID uint64) (model.SeatMap, error)
    Cancel(ctx context.Context, ticketID uint64) error
    Reactivate(ctx context.Context, ticketID uint64) (booking.ReactivateResult, error)
    ChangeSeat(ctx context.Context, ticketID uint64, seatNo uint32) error
}

const requestTimeout = 10 * time.Second

// OrderHandler serves the customer-facing finalization endpoints.
type OrderHandler struct {
    Booking Booking
    Log     *logrus.Logger
}

func NewOrderHandler(b Booking, log *logrus.Logger) *OrderHandler {
    return &OrderHandler{Booking: b, Log: log}
}

type confirmResp struct {
    OrderID          uint64   `json:"order_id"`
    SeatNumbers      []uint32 `json:"seat_numbers"`
    AlreadyFinalized bool     `json:"already_finalized"`
}

// ownOrder loads the order status and checks the caller owns it.
func (h *OrderHandler) ownOrder(c echo.Context, ctx context.Context, orderID uint64) (booking.OrderStatus, error) {
    st, err := h.Booking.Status(ctx, orderID)
    if err != nil {
        return booking.OrderStatus{}, err
    }
    uid, _ := middleware.UserID(c)
    if st.UserID != uid {
        return booking.OrderStatus{}, repository.ErrForbidden
    }
    return st, nil
}

// Confirm is the direct finalization trigger: POST /v1/orders/:id/confirm.
// A repeated call, or a call that loses to the payment webhook, returns
// 200 with an empty seat list and already_finalized=true.
func (h *OrderHandler) Confirm(c echo.Context) error {
    orderID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid order id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if _, err := h.ownOrder(c, ctx, orderID); err != nil {
        return fail(c, err)
    }
    res, err := h.Booking.Finalize(ctx, orderID, booking.TriggerDirect)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, confirmResp{
        OrderID:          res.OrderID,
        SeatNumbers:      res.SeatNumbers,
        AlreadyFinalized: len(res.SeatNumbers) == 0,
    })
}

// Status is the finalization poll: GET /v1/orders/:id.
func (h *OrderHandler) Status(c echo.Context) error {
    orderID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid order id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    st, err := h.ownOrder(c, ctx, orderID)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, st)
}

// SeatMap serves GET /v1/routes/:id/seats.
func (h *OrderHandler) SeatMap(c echo.Context) error {
    routeID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid route id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    m, err := h.Booking.SeatMap(ctx, routeID)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, m)
}
