package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/pkg/logger"
)

const (
	// DefaultStream captures every quality.* subject.
	DefaultStream = "QUALITY"

	streamMaxAge     = 30 * 24 * time.Hour
	duplicatesWindow = 24 * time.Hour
	ackWait          = 5 * time.Second
)

type jetStream interface {
	PublishMsgAsync(m *nats.Msg, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
	PublishAsyncPending() int
}

// NATSPublisher publishes run events to a JetStream stream. It implements port.EventPublisher.
type NATSPublisher struct {
	nc     *nats.Conn
	js     jetStream
	logger *logger.Logger
}

// NewNATSPublisher connects to NATS and makes sure the stream for quality events exists.
func NewNATSPublisher(natsURL, stream string, log *logger.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("quality-report"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if stream == "" {
		stream = DefaultStream
	}
	if err := ensureStream(js, stream); err != nil {
		nc.Close()
		return nil, err
	}

	log.Info("Connected to NATS", "url", natsURL, "stream", stream)
	return &NATSPublisher{nc: nc, js: js, logger: log}, nil
}

func ensureStream(js nats.JetStreamContext, stream string) error {
	_, err := js.StreamInfo(stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", stream, err)
	}

	if _, err := js.AddStream(&nats.StreamConfig{
		Name:       stream,
		Subjects:   []string{AllEvents},
		MaxAge:     streamMaxAge,
		Duplicates: duplicatesWindow,
	}); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", stream, err)
	}
	return nil
}

// PublishEvent publishes event as JSON without waiting for the ack.
// Events implementing port.IdentifiedEvent get a Nats-Msg-Id header so a
// retried run does not publish them twice.
func (p *NATSPublisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := newMessage(subject, event)
	if err != nil {
		return err
	}

	if _, err := p.js.PublishMsgAsync(msg); err != nil {
		p.logger.Error("Failed to publish event", err, "subject", subject)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published", "subject", subject, "size", len(msg.Data))
	return nil
}

func newMessage(subject string, event interface{}) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if identified, ok := event.(port.IdentifiedEvent); ok {
		msg.Header.Set(nats.MsgIdHdr, identified.EventID())
	}
	return msg, nil
}

// Close waits for pending acks and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(ackWait):
		p.logger.Warn("Timed out waiting for NATS acks", "pending", p.js.PublishAsyncPending())
	}

	p.logger.Info("Closing NATS connection")
	p.nc.Close()
	return nil
}
