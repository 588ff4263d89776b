package queue

import (
    "context"
    "log/slog"
    "time"

    jsoniter "github.com/json-iterator/go"
    amqp "github.com/rabbitmq/amqp091-go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultDialTimeout = 5 * time.Second

// Publisher sends events to the durable library.events queue.  A
// Publisher with an empty URL discards events, which lets the server run
// without a broker.
type Publisher struct {
    url string
    log *slog.Logger
}

// NewPublisher returns a Publisher dialing url for each event.
func NewPublisher(url string, log *slog.Logger) *Publisher {
    return &Publisher{url: url, log: log}
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// Publish marshals ev and publishes it as a persistent message.  Errors
// are logged and returned so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
    if !p.Enabled() {
        return nil
    }
    if ev.OccurredAt.IsZero() {
        ev.OccurredAt = time.Now().UTC()
    }
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Dial: amqp.DefaultDial(dialTimeout(ctx)),
    })
    if err != nil {
        p.log.Warn("rabbitmq: dial failed", "err", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warn("rabbitmq: channel open failed", "err", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := declareEventsQueue(ch); err != nil {
        p.log.Warn("rabbitmq: queue declare failed", "err", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    ev.OccurredAt,
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", EventsQueue, false, false, pub); err != nil {
        p.log.Warn("rabbitmq: publish failed", "type", ev.Type, "err", err)
        return err
    }
    return nil
}

// dialTimeout bounds the TCP connect and AMQP handshake by ctx's deadline.
// amqp.Dial ignores ctx and would otherwise wait 30s on a silent broker.
func dialTimeout(ctx context.Context) time.Duration {
    d := defaultDialTimeout
    if deadline, ok := ctx.Deadline(); ok {
        if left := time.Until(deadline); left < d {
            d = left
        }
    }
    if d <= 0 {
        d = time.Millisecond
    }
    return d
}

func declareEventsQueue(ch *amqp.Channel) (amqp.Queue, error) {
    return ch.QueueDeclare(
        EventsQueue, // name
        true,        // durable
        false,       // autoDelete
        false,       // exclusive
        false,       // noWait
        nil,         // args
    )
}
