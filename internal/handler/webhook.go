package handler

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/bus-seat-booking/internal/booking"
    "github.com/iliyamo/bus-seat-booking/internal/utils"
)

// Payment notification types.
const (
    PaymentSucceeded = "payment.succeeded"
    PaymentFailed    = "payment.failed"
)

const maxWebhookBody = 64 << 10

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// Deduper suppresses replays of an already processed event ID.  IDs are
// remembered only after their delivery has been handled.
type Deduper interface {
    Seen(ctx context.Context, id string) (bool, error)
    Remember(ctx context.Context, id string) error
}

// WebhookHandler is the payment-provider finalization trigger.
type WebhookHandler struct {
    Booking Booking
    Dedupe  Deduper
    Secret  string
    Log     *logrus.Logger
}

func NewWebhookHandler(b Booking, d Deduper, secret string, log *logrus.Logger) *WebhookHandler {
    return &WebhookHandler{Booking: b, Dedupe: d, Secret: secret, Log: log}
}

type webhookReq struct {
    EventID    string `json:"event_id" validate:"required,max=128"`
    Type       string `json:"type" validate:"required,oneof=payment.succeeded payment.failed"`
    OrderID    uint64 `json:"order_id" validate:"required,gt=0"`
    PaymentRef string `json:"payment_ref" validate:"max=128"`
}

// Payment serves POST /v1/payments/webhook.  The raw body must carry a
// valid signature.  Succeeded payments run Finalize; replays and losers of
// the race with the direct trigger get 200 with an empty seat list, so
// the provider stops retrying.
func (h *WebhookHandler) Payment(c echo.Context) error {
    body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
    if err != nil || len(body) > maxWebhookBody {
        return badRequest(c, "unreadable body")
    }
    if !utils.VerifyWebhook(h.Secret, body, c.Request().Header.Get(SignatureHeader)) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_signature", "message": "signature mismatch"})
    }

    var req webhookReq
    if err := json.Unmarshal(body, &req); err != nil {
        return badRequest(c, "invalid json")
    }
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation_failed", "message": validationMessage(err)})
    }

    l := h.Log.WithFields(logrus.Fields{"event_id": req.EventID, "order_id": req.OrderID, "type": req.Type})
    if req.Type != PaymentSucceeded {
        l.Info("webhook: ignoring non-success payment event")
        return c.JSON(http.StatusOK, echo.Map{"event_id": req.EventID, "ignored": true})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if h.Dedupe != nil {
        seen, err := h.Dedupe.Seen(ctx, req.EventID)
        if err != nil {
            l.WithError(err).Warn("webhook: dedupe unavailable")
        }
        if seen {
            l.Debug("webhook: duplicate event")
            return c.JSON(http.StatusOK, echo.Map{"event_id": req.EventID, "duplicate": true, "seat_numbers": []uint32{}})
        }
    }

    res, err := h.Booking.Finalize(ctx, req.OrderID, booking.TriggerWebhook, booking.WithPaymentRef(req.PaymentRef))
    if err != nil {
        l.WithError(err).Warn("webhook: finalize failed")
        if !retryable(err) {
            h.remember(ctx, l, req.EventID)
        }
        return fail(c, err)
    }
    h.remember(ctx, l, req.EventID)
    l.WithField("seats", res.SeatNumbers).Info("webhook: processed")
    return c.JSON(http.StatusOK, echo.Map{
        "event_id":     req.EventID,
        "order_id":     res.OrderID,
        "seat_numbers": res.SeatNumbers,
    })
}

func (h *WebhookHandler) remember(ctx context.Context, l *logrus.Entry, eventID string) {
    if h.Dedupe == nil {
        return
    }
    if err := h.Dedupe.Remember(context.WithoutCancel(ctx), eventID); err != nil {
        l.WithError(err).Warn("webhook: dedupe record failed")
    }
}

// retryable reports whether the provider should be allowed to redeliver.
func retryable(err error) bool {
    status, _ := errorStatus(err)
    return status >= 500 || errors.Is(err, context.DeadlineExceeded)
}
