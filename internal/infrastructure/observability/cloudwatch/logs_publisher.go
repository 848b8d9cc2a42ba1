package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/quality-history/internal/application/port"
)

// PutLogEvents request limits.
const (
	maxEventsPerBatch = 10000
	maxBatchBytes     = 1048576
	eventOverhead     = 26
	maxEventBytes     = 256000
)

// LogsPublisherConfig holds configuration for CloudWatch logs publishing.
type LogsPublisherConfig struct {
	LogGroupName    string
	LogStreamName   string
	Region          string
	Endpoint        string // LocalStack
	AccessKeyID     string
	SecretAccessKey string
	BufferSize      int
	FlushInterval   time.Duration
	// MinLevel drops entries below it; empty ships everything.
	MinLevel   port.LogLevel
	AutoCreate bool
	// StaticFields are merged into every entry; entry fields win on conflicts.
	StaticFields map[string]interface{}
}

type logsAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// LogsPublisher ships logger output of report runs to CloudWatch Logs.
// It implements port.LogPublisher.
type LogsPublisher struct {
	client       logsAPI
	group        string
	stream       string
	minLevel     port.LogLevel
	staticFields map[string]interface{}

	mu         sync.Mutex
	pending    []port.LogEntry
	bufferSize int

	stopCh chan struct{}
	done   chan struct{}
}

// NewLogsPublisher validates cfg, optionally creates the group and stream and
// starts the periodic flush.
func NewLogsPublisher(ctx context.Context, cfg LogsPublisherConfig) (*LogsPublisher, error) {
	switch {
	case cfg.LogGroupName == "":
		return nil, fmt.Errorf("log group name is required")
	case cfg.LogStreamName == "":
		return nil, fmt.Errorf("log stream name is required")
	case cfg.Region == "":
		return nil, fmt.Errorf("region is required")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newLogsPublisher(cloudwatchlogs.NewFromConfig(awsCfg), cfg)
	if cfg.AutoCreate {
		if err := p.ensureDestination(ctx); err != nil {
			return nil, err
		}
	}

	p.done = make(chan struct{})
	go p.run(cfg.FlushInterval)
	return p, nil
}

func newLogsPublisher(client logsAPI, cfg LogsPublisherConfig) *LogsPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	return &LogsPublisher{
		client:       client,
		group:        cfg.LogGroupName,
		stream:       cfg.LogStreamName,
		minLevel:     cfg.MinLevel,
		staticFields: cfg.StaticFields,
		pending:      make([]port.LogEntry, 0, cfg.BufferSize),
		bufferSize:   cfg.BufferSize,
		stopCh:       make(chan struct{}),
	}
}

// Publish queues one entry.
func (p *LogsPublisher) Publish(ctx context.Context, entry port.LogEntry) error {
	return p.PublishBatch(ctx, []port.LogEntry{entry})
}

// PublishBatch queues entries at or above the minimum level and flushes when
// the buffer is full.
func (p *LogsPublisher) PublishBatch(ctx context.Context, entries []port.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range entries {
		if p.minLevel != "" && !entry.Level.AtLeast(p.minLevel) {
			continue
		}
		p.pending = append(p.pending, entry)
	}

	if len(p.pending) < p.bufferSize {
		return nil
	}
	if err := p.flushLocked(ctx); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// Flush sends everything queued so far.
func (p *LogsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(ctx)
}

// Close stops the periodic flush and sends what is left.
func (p *LogsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	if p.done != nil {
		<-p.done
	}
	return p.Flush(ctx)
}

func (p *LogsPublisher) run(interval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			// Entries stay queued on failure and go out with the next tick.
			_ = p.Flush(ctx)
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushLocked sends pending entries in chronological batches; caller holds mu.
func (p *LogsPublisher) flushLocked(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}

	// PutLogEvents rejects batches that are not in chronological order.
	sort.SliceStable(p.pending, func(i, j int) bool {
		return p.pending[i].Timestamp.Before(p.pending[j].Timestamp)
	})

	events := make([]types.InputLogEvent, 0, len(p.pending))
	for _, entry := range p.pending {
		event, err := p.encode(entry)
		if err != nil {
			continue
		}
		events = append(events, event)
	}

	for _, batch := range splitBatches(events) {
		if err := p.put(ctx, batch); err != nil {
			return err
		}
	}

	p.pending = p.pending[:0]
	return nil
}

// splitBatches honors both the event count and the request size limits.
func splitBatches(events []types.InputLogEvent) [][]types.InputLogEvent {
	var batches [][]types.InputLogEvent
	start, size := 0, 0
	for i, e := range events {
		n := len(aws.ToString(e.Message)) + eventOverhead
		if i > start && (i-start >= maxEventsPerBatch || size+n > maxBatchBytes) {
			batches = append(batches, events[start:i])
			start, size = i, 0
		}
		size += n
	}
	if start < len(events) {
		batches = append(batches, events[start:])
	}
	return batches
}

func (p *LogsPublisher) put(ctx context.Context, events []types.InputLogEvent) error {
	return withRetry(ctx, func(ctx context.Context) error {
		_, err := p.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(p.group),
			LogStreamName: aws.String(p.stream),
			LogEvents:     events,
		})

		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return errPermanent{fmt.Errorf("log stream %s/%s does not exist: %w", p.group, p.stream, err)}
		}
		return err
	})
}

// encode renders an entry as one JSON line.
func (p *LogsPublisher) encode(entry port.LogEntry) (types.InputLogEvent, error) {
	line := struct {
		Timestamp string                 `json:"timestamp"`
		Level     port.LogLevel          `json:"level"`
		Message   string                 `json:"message"`
		Fields    map[string]interface{} `json:"fields,omitempty"`
	}{
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Level:     entry.Level,
		Message:   entry.Message,
		Fields:    p.mergeFields(entry.Fields),
	}

	data, err := json.Marshal(line)
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("failed to marshal log entry: %w", err)
	}

	message := string(data)
	if len(message) > maxEventBytes {
		message = message[:maxEventBytes-3] + "..."
	}

	return types.InputLogEvent{
		Message:   aws.String(message),
		Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
	}, nil
}

func (p *LogsPublisher) mergeFields(fields map[string]interface{}) map[string]interface{} {
	if len(fields) == 0 && len(p.staticFields) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(fields)+len(p.staticFields))
	for k, v := range p.staticFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// ensureDestination creates the log group and stream, tolerating existing ones.
func (p *LogsPublisher) ensureDestination(ctx context.Context) error {
	var exists *types.ResourceAlreadyExistsException

	if _, err := p.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(p.group),
	}); err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create log group %s: %w", p.group, err)
	}

	if _, err := p.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(p.group),
		LogStreamName: aws.String(p.stream),
	}); err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create log stream %s: %w", p.stream, err)
	}

	return nil
}
