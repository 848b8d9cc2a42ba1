package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/pkg/logger"
)

type fakeJetStream struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeJetStream) PublishMsgAsync(m *nats.Msg, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, m)
	return nil, nil
}

func (f *fakeJetStream) PublishAsyncComplete() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (f *fakeJetStream) PublishAsyncPending() int { return 0 }

func TestNATSPublisher_PublishEvent(t *testing.T) {
	js := &fakeJetStream{}
	p := &NATSPublisher{js: js, logger: logger.New("error")}

	event := &dto.StatusChangedEvent{RunID: "run-1", MetricID: "OpenBugsFoo", Status: "red"}
	if err := p.PublishEvent(context.Background(), port.SubjectStatusChange, event); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	if len(js.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(js.msgs))
	}
	msg := js.msgs[0]
	if msg.Subject != port.SubjectStatusChange {
		t.Errorf("Subject = %s", msg.Subject)
	}
	if got := msg.Header.Get(nats.MsgIdHdr); got != "run-1:OpenBugsFoo" {
		t.Errorf("%s = %q, want run-1:OpenBugsFoo", nats.MsgIdHdr, got)
	}

	var decoded dto.StatusChangedEvent
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.MetricID != "OpenBugsFoo" || decoded.Status != "red" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestNATSPublisher_EventWithoutID(t *testing.T) {
	js := &fakeJetStream{}
	p := &NATSPublisher{js: js, logger: logger.New("error")}

	if err := p.PublishEvent(context.Background(), "quality.custom", map[string]int{"n": 1}); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}
	if got := js.msgs[0].Header.Get(nats.MsgIdHdr); got != "" {
		t.Errorf("plain events must not carry a message id, got %q", got)
	}
}

func TestNATSPublisher_Errors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		js    *fakeJetStream
		event interface{}
	}{
		{"cancelled context", cancelled, &fakeJetStream{}, &dto.RunCompletedEvent{RunID: "run-1"}},
		{"unmarshalable event", context.Background(), &fakeJetStream{}, make(chan int)},
		{"broker error", context.Background(), &fakeJetStream{err: errors.New("no responders")}, &dto.RunCompletedEvent{RunID: "run-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &NATSPublisher{js: tt.js, logger: logger.New("error")}
			if err := p.PublishEvent(tt.ctx, port.SubjectRunCompleted, tt.event); err == nil {
				t.Error("expected error")
			}
			if len(tt.js.msgs) != 0 {
				t.Error("nothing must be published on error")
			}
		})
	}
}

func TestRunCompletedEvent_ID(t *testing.T) {
	var event interface{} = &dto.RunCompletedEvent{RunID: "run-1"}
	identified, ok := event.(port.IdentifiedEvent)
	if !ok || identified.EventID() != "run-1:completed" {
		t.Errorf("unexpected event id for %+v", event)
	}
}
