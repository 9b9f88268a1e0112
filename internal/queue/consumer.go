package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// AuditConsumer drains the booking.finalized and ticket.changed queues and
// appends one line per event to <Dir>/booking.log.
type AuditConsumer struct {
    url string
    dir string
    log *logrus.Logger
    mu  sync.Mutex
}

// NewAuditConsumer returns a consumer writing into dir ("logs" if empty).
func NewAuditConsumer(url, dir string, log *logrus.Logger) *AuditConsumer {
    if url == "" {
        url = DefaultURL
    }
    if dir == "" {
        dir = "logs"
    }
    if log == nil {
        log = logrus.New()
    }
    return &AuditConsumer{url: url, dir: dir, log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broken
// connections are re-dialled with exponential backoff capped at 30s.  A
// message that cannot be handled is rejected without requeue so that one
// bad payload cannot spin the loop.
func (c *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.WithError(err).WithField("retry_in", backoff.String()).Warn("audit-consumer: dial failed")
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.WithError(err).Warn("audit-consumer: consume loop ended, reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.WithError(err).Warn("audit-consumer: set QoS failed")
    }
    for _, q := range []string{FinalizedQueue, TicketChangedQueue} {
        if err := declare(ch, q); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
    }
    finalized, err := ch.Consume(FinalizedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("consume %s: %w", FinalizedQueue, err)
    }
    changed, err := ch.Consume(TicketChangedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("consume %s: %w", TicketChangedQueue, err)
    }

    for {
        var (
            d  amqp.Delivery
            ok bool
        )
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-finalized:
        case d, ok = <-changed:
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := c.Handle(d.RoutingKey, d.Body); err != nil {
            c.log.WithError(err).WithField("queue", d.RoutingKey).Warn("audit-consumer: handle message failed")
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
}

// Handle formats one message from queue and appends it to the audit log.
func (c *AuditConsumer) Handle(queue string, body []byte) error {
    var (
        line string
        err  error
    )
    switch queue {
    case FinalizedQueue:
        line, err = formatFinalized(body)
    case TicketChangedQueue:
        line, err = formatTicketChanged(body)
    default:
        return fmt.Errorf("unknown queue %q", queue)
    }
    if err != nil {
        return err
    }
    return c.appendLine(line)
}

func (c *AuditConsumer) appendLine(line string) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(c.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(c.dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatFinalized(body []byte) (string, error) {
    var ev OrderFinalizedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return "", fmt.Errorf("unmarshal: %w", err)
    }
    return fmt.Sprintf("[%s] Order finalized | order_id=%d | route_id=%d | user_id=%d | trigger=%s | seats=%s\n",
        ev.FinalizedAt, ev.OrderID, ev.RouteID, ev.UserID, ev.Trigger, seatList(ev.Seats)), nil
}

func formatTicketChanged(body []byte) (string, error) {
    var ev TicketChangedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return "", fmt.Errorf("unmarshal: %w", err)
    }
    return fmt.Sprintf("[%s] Ticket %s | ticket_id=%d | route_id=%d | order_id=%d | seat=%d->%d | status=%s\n",
        ev.ChangedAt, ev.Action, ev.TicketID, ev.RouteID, ev.OrderID, ev.FromSeat, ev.ToSeat, ev.Status), nil
}

func seatList(seats []uint32) string {
    parts := make([]string, len(seats))
    for i, s := range seats {
        parts[i] = fmt.Sprint(s)
    }
    return "[" + strings.Join(parts, ",") + "]"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
