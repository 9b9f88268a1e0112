package queue

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

const (
    dialTimeout    = 3 * time.Second
    publishTimeout = 5 * time.Second
    outboxSize     = 256
)

// ErrOutboxFull is returned when events arrive faster than the broker
// accepts them.  The event is dropped.
var ErrOutboxFull = errors.New("queue: publisher outbox full")

type outgoing struct {
    queue     string
    messageID string
    body      any
}

// Publisher sends booking events to RabbitMQ.  Publish calls only enqueue
// the event in a bounded outbox and return at once; Run drains the outbox,
// dialing a connection per message, declaring the durable target queue and
// sending one persistent message.  Delivery failures are logged and the
// event is dropped, so a broker outage never holds up the request that
// produced it.
type Publisher struct {
    url    string
    log    *logrus.Logger
    outbox chan outgoing
}

// NewPublisher returns a publisher for the broker at url.  Nothing is sent
// until Run is started.
func NewPublisher(url string, log *logrus.Logger) *Publisher {
    if url == "" {
        url = DefaultURL
    }
    if log == nil {
        log = logrus.New()
    }
    return &Publisher{url: url, log: log, outbox: make(chan outgoing, outboxSize)}
}

// PublishOrderFinalized queues evt for the booking.finalized queue.
func (p *Publisher) PublishOrderFinalized(_ context.Context, evt OrderFinalizedEvent) error {
    return p.enqueue(outgoing{queue: FinalizedQueue, messageID: evt.EventID, body: evt})
}

// PublishTicketChanged queues evt for the ticket.changed queue.
func (p *Publisher) PublishTicketChanged(_ context.Context, evt TicketChangedEvent) error {
    return p.enqueue(outgoing{queue: TicketChangedQueue, messageID: evt.EventID, body: evt})
}

func (p *Publisher) enqueue(m outgoing) error {
    select {
    case p.outbox <- m:
        return nil
    default:
        p.log.WithFields(logrus.Fields{"queue": m.queue, "message_id": m.messageID}).Warn("rabbitmq: outbox full, dropping event")
        return ErrOutboxFull
    }
}

// Run sends queued events until ctx is cancelled.  Events still queued at
// that point are dropped and counted in the log.
func (p *Publisher) Run(ctx context.Context) {
    for {
        select {
        case <-ctx.Done():
            if n := len(p.outbox); n > 0 {
                p.log.WithField("dropped", n).Warn("rabbitmq: publisher stopped with queued events")
            }
            return
        case m := <-p.outbox:
            pctx, cancel := context.WithTimeout(ctx, publishTimeout)
            _ = p.publish(pctx, m.queue, m.messageID, m.body)
            cancel()
        }
    }
}

func (p *Publisher) publish(ctx context.Context, queue, messageID string, v any) error {
    l := p.log.WithField("queue", queue)
    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
    if err != nil {
        l.WithError(err).Warn("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        l.WithError(err).Warn("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch, queue); err != nil {
        l.WithError(err).Warn("rabbitmq: queue declare failed")
        return err
    }

    body, err := json.Marshal(v)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    messageID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        l.WithError(err).Warn("rabbitmq: publish failed")
        return err
    }
    return nil
}

func declare(ch *amqp.Channel, queue string) error {
    _, err := ch.QueueDeclare(queue, true, false, false, false, nil)
    return err
}
