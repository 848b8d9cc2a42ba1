package port

import "context"

// Subjects of events published after the history of a run is saved
const (
	SubjectRunCompleted = "quality.run.completed"
	SubjectStatusChange = "quality.status.changed"
)

// IdentifiedEvent is implemented by events that carry a stable id; brokers use it
// to drop duplicates when a run is retried.
type IdentifiedEvent interface {
	EventID() string
}

// EventPublisher publishes run events to a message broker
type EventPublisher interface {
	PublishEvent(ctx context.Context, subject string, event interface{}) error
	Close() error
}
