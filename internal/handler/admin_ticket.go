package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/bus-seat-booking/internal/middleware"
)

// TicketAdminHandler serves the staff ticket mutations.
type TicketAdminHandler struct {
    Booking Booking
    Log     *logrus.Logger
}

func NewTicketAdminHandler(b Booking, log *logrus.Logger) *TicketAdminHandler {
    return &TicketAdminHandler{Booking: b, Log: log}
}

type changeSeatReq struct {
    SeatNo uint32 `json:"seat_no" validate:"required,gt=0"`
}

func (h *TicketAdminHandler) audit(c echo.Context, ticketID uint64, action string) *logrus.Entry {
    staff, _ := middleware.UserID(c)
    return h.Log.WithFields(logrus.Fields{"ticket_id": ticketID, "staff_id": staff, "action": action})
}

// Cancel serves POST /v1/admin/tickets/:id/cancel.
func (h *TicketAdminHandler) Cancel(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ticket id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if err := h.Booking.Cancel(ctx, id); err != nil {
        return fail(c, err)
    }
    h.audit(c, id, "cancel").Info("staff ticket mutation")
    return c.JSON(http.StatusOK, echo.Map{"ticket_id": id, "status": "cancelled"})
}

// Reactivate serves POST /v1/admin/tickets/:id/reactivate.
func (h *TicketAdminHandler) Reactivate(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ticket id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    res, err := h.Booking.Reactivate(ctx, id)
    if err != nil {
        return fail(c, err)
    }
    h.audit(c, id, "reactivate").WithField("seat", res.SeatNo).Info("staff ticket mutation")
    return c.JSON(http.StatusOK, res)
}

// ChangeSeat serves POST /v1/admin/tickets/:id/seat with {"seat_no": n}.
func (h *TicketAdminHandler) ChangeSeat(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ticket id")
    }
    var req changeSeatReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if err := h.Booking.ChangeSeat(ctx, id, req.SeatNo); err != nil {
        return fail(c, err)
    }
    h.audit(c, id, "change_seat").WithField("seat", req.SeatNo).Info("staff ticket mutation")
    return c.JSON(http.StatusOK, echo.Map{"ticket_id": id, "seat_no": req.SeatNo})
}
