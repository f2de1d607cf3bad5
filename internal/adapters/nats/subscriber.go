package natsadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

// Subscriber implements ports.PositionSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
	subs    []*nats.Subscription
}

// NewSubscriber connects to NATS and makes sure the position stream exists.
func NewSubscriber(url, subject string) (*Subscriber, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(js, subject); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js, subject: subject}, nil
}

func (s *Subscriber) SubscribePositions(ctx context.Context, handler func(ctx context.Context, fix *domain.PositionFix) error) error {
	sub, err := s.js.Subscribe(s.subject, func(msg *nats.Msg) {
		fix, err := decodeFix(msg.Data)
		if err != nil {
			slog.Warn("dropping malformed position fix", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, fix); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("vehiclenav-route"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (s *Subscriber) IsConnected() bool { return s.conn.IsConnected() }

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

// decodeFix parses a JSON fix and clamps its coordinate.
func decodeFix(data []byte) (*domain.PositionFix, error) {
	var fix domain.PositionFix
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil, err
	}
	fix.Coordinate = domain.NewCoordinate(fix.Coordinate.Latitude.Get(), fix.Coordinate.Longitude.Get())
	return &fix, nil
}
