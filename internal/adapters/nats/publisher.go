package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

const (
	PositionStream = "VEHICLE_POSITIONS"
	// DefaultSubject matches every vehicle; fixes are published on
	// vehicle.position.<vehicle id>.
	DefaultSubject = "vehicle.position.>"
)

// Publisher implements ports.PositionPublisher using NATS JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

func connect(url string) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := nats.Connect(url,
		nats.Name("vehiclenav"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return conn, js, nil
}

// ensureStream creates the position stream or updates it in place.
func ensureStream(js nats.JetStreamContext, subject string) error {
	cfg := nats.StreamConfig{
		Name:      PositionStream,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// NewPublisher connects to NATS and makes sure the position stream exists.
func NewPublisher(url, subject string) (*Publisher, error) {
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
	return &Publisher{conn: conn, js: js, prefix: subjectPrefix(subject)}, nil
}

func (p *Publisher) PublishPosition(ctx context.Context, fix *domain.PositionFix) error {
	data, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	id := fix.VehicleID
	if id == "" {
		id = "unknown"
	}
	_, err = p.js.Publish(p.prefix+id, data, nats.Context(ctx))
	return err
}

// Close flushes pending publishes and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// subjectPrefix turns "vehicle.position.>" into "vehicle.position.".
func subjectPrefix(subject string) string {
	return strings.TrimSuffix(strings.TrimSuffix(subject, ">"), "*")
}
