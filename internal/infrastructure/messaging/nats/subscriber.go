package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/quality-history/pkg/logger"
)

// AllEvents matches every subject published by report runs.
const AllEvents = "quality.>"

// EventHandler receives the subject and raw JSON payload of an event.
type EventHandler func(subject string, data []byte)

// NATSSubscriber delivers live quality events to in-process handlers.
// It uses core subscriptions, so only events published while it is connected are seen.
type NATSSubscriber struct {
	nc     *nats.Conn
	subs   []*nats.Subscription
	logger *logger.Logger
}

// NewNATSSubscriber connects to NATS for consuming events.
func NewNATSSubscriber(natsURL string, log *logger.Logger) (*NATSSubscriber, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("quality-report-serve"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSSubscriber{nc: nc, logger: log}, nil
}

// Subscribe registers handler for subject (wildcards allowed).
func (s *NATSSubscriber) Subscribe(subject string, handler EventHandler) error {
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	s.logger.Info("Subscribed to NATS events", "subject", subject)
	return nil
}

// Close drains subscriptions and closes the connection.
func (s *NATSSubscriber) Close() error {
	if s.nc == nil {
		return nil
	}
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
