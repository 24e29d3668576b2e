// Package ingest receives tuner status snapshots from a NATS feed.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"atsc_diag/internal/tuner"
)

// Config holds NATS connection settings.
type Config struct {
	URL     string // e.g. nats://localhost:4222
	Subject string // e.g. tuner.snapshots.>
	Queue   string // queue group; empty for plain subscription
}

// DefaultConfig returns settings for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "tuner.snapshots.>",
		Queue:   "atsc-diag",
	}
}

// Handler processes one snapshot. Errors are logged, not fatal: a bad
// snapshot must not stop the feed.
type Handler func(ctx context.Context, snap *tuner.Snapshot) error

// Subscriber consumes snapshots from NATS and dispatches them to a handler.
type Subscriber struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

// Subscribe connects to NATS and starts consuming snapshots. The handler runs
// on the NATS delivery goroutine; it should hand off long work itself.
func Subscribe(ctx context.Context, cfg Config, handler Handler) (*Subscriber, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("atsc-diag"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	cb := func(msg *nats.Msg) {
		var snap tuner.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			log.Printf("drop malformed snapshot on %s: %v", msg.Subject, err)
			return
		}
		if snap.DeviceID == "" {
			log.Printf("drop snapshot without device_id on %s", msg.Subject)
			return
		}
		if err := handler(ctx, &snap); err != nil {
			log.Printf("handle snapshot %s/%d: %v", snap.DeviceID, snap.Tuner, err)
		}
	}

	var sub *nats.Subscription
	if cfg.Queue != "" {
		sub, err = conn.QueueSubscribe(cfg.Subject, cfg.Queue, cb)
	} else {
		sub, err = conn.Subscribe(cfg.Subject, cb)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Subject, err)
	}

	return &Subscriber{conn: conn, sub: sub}, nil
}

// Close drains the subscription and closes the connection, letting in-flight
// messages finish.
func (s *Subscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.conn.Close()
			return fmt.Errorf("drain subscription: %w", err)
		}
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("drain connection: %w", err)
	}
	return nil
}
