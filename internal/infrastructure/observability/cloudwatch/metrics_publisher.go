package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// PutMetricData accepts at most this many datums per request.
const maxMetricsPerRequest = 1000

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "Quality/Report")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all metrics
	BufferSize        int               // Buffer size before auto-flush
	FlushInterval     time.Duration     // Automatic flush interval
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
	// PublishValues also sends every available measured value, one datum per metric id.
	PublishValues bool
}

type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// datapoint is a single value queued for CloudWatch.
type datapoint struct {
	name       string
	value      float64
	unit       types.StandardUnit
	timestamp  time.Time
	dimensions map[string]string
}

// MetricsPublisher publishes run summaries (status counts, meta metrics and
// optionally measured values) to AWS CloudWatch. It implements port.RunMetricsPublisher.
type MetricsPublisher struct {
	client            putMetricDataAPI
	namespace         string
	defaultDimensions map[string]string
	storageResolution int32
	publishValues     bool

	mu         sync.Mutex
	pending    []datapoint
	bufferSize int

	stopCh chan struct{}
	done   chan struct{}
}

// NewMetricsPublisher validates cfg and starts the periodic flush.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig) (*MetricsPublisher, error) {
	switch {
	case cfg.Namespace == "":
		return nil, fmt.Errorf("namespace is required")
	case cfg.Region == "":
		return nil, fmt.Errorf("region is required")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg)
	p.done = make(chan struct{})
	go p.run(cfg.FlushInterval)
	return p, nil
}

func newMetricsPublisher(client putMetricDataAPI, cfg MetricsPublisherConfig) *MetricsPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		storageResolution: cfg.StorageResolution,
		publishValues:     cfg.PublishValues,
		pending:           make([]datapoint, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		stopCh:            make(chan struct{}),
	}
}

// PublishRun queues the datapoints of one run, flushing when the buffer fills up.
func (p *MetricsPublisher) PublishRun(ctx context.Context, summary *dto.RunSummaryDTO) error {
	if summary == nil {
		return fmt.Errorf("run summary cannot be nil")
	}

	points := runDatapoints(summary, p.publishValues)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = append(p.pending, points...)
	if len(p.pending) < p.bufferSize {
		return nil
	}
	if err := p.flushLocked(ctx); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// runDatapoints converts a summary into CloudWatch datapoints.
func runDatapoints(summary *dto.RunSummaryDTO, withValues bool) []datapoint {
	points := make([]datapoint, 0, len(summary.Counts)+len(summary.MetaMetrics))
	project := map[string]string{}
	if summary.Project != "" {
		project["Project"] = summary.Project
	}

	for _, status := range valueobject.AllStatuses() {
		points = append(points, datapoint{
			name:       "MetricsByStatus",
			value:      float64(summary.Count(status)),
			unit:       types.StandardUnitCount,
			timestamp:  summary.Date,
			dimensions: withDimension(project, "Status", status.String()),
		})
	}

	for _, meta := range summary.MetaMetrics {
		if meta.Percentage == nil {
			continue
		}
		points = append(points, datapoint{
			name:       meta.Name,
			value:      *meta.Percentage,
			unit:       types.StandardUnitPercent,
			timestamp:  summary.Date,
			dimensions: project,
		})
	}

	if withValues {
		for _, m := range summary.Measurements {
			if m.Value == nil {
				continue
			}
			points = append(points, datapoint{
				name:      "MeasuredValue",
				value:     *m.Value,
				unit:      mapUnit(m.Unit),
				timestamp: m.Date,
				dimensions: withDimension(
					withDimension(project, "MetricKind", m.Kind),
					"Subject", m.Subject,
				),
			})
		}
	}

	return points
}

func withDimension(base map[string]string, name, value string) map[string]string {
	result := make(map[string]string, len(base)+1)
	for k, v := range base {
		result[k] = v
	}
	result[name] = value
	return result
}

// Flush sends everything queued so far.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(ctx)
}

// Close stops the periodic flush and sends what is left.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	if p.done != nil {
		<-p.done
	}
	return p.Flush(ctx)
}

func (p *MetricsPublisher) run(interval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			// Failed datapoints stay queued until the next tick.
			_ = p.Flush(ctx)
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushLocked sends pending datapoints in requests of at most
// maxMetricsPerRequest; caller holds mu.
func (p *MetricsPublisher) flushLocked(ctx context.Context) error {
	for len(p.pending) > 0 {
		n := min(len(p.pending), maxMetricsPerRequest)
		data := make([]types.MetricDatum, 0, n)
		for _, point := range p.pending[:n] {
			data = append(data, p.convertToDatum(point))
		}
		if err := p.publishBatchWithRetry(ctx, data); err != nil {
			return fmt.Errorf("failed to publish %d datapoints: %w", n, err)
		}
		p.pending = p.pending[n:]
	}
	return nil
}

// publishBatchWithRetry publishes one PutMetricData request.
func (p *MetricsPublisher) publishBatchWithRetry(ctx context.Context, data []types.MetricDatum) error {
	return withRetry(ctx, func(ctx context.Context) error {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		return err
	})
}

// convertToDatum converts a queued datapoint to CloudWatch MetricDatum.
// Dimensions are sorted by name so identical series produce identical requests.
func (p *MetricsPublisher) convertToDatum(point datapoint) types.MetricDatum {
	merged := make(map[string]string, len(p.defaultDimensions)+len(point.dimensions))
	for key, value := range p.defaultDimensions {
		merged[key] = value
	}
	for key, value := range point.dimensions {
		merged[key] = value
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	dimensions := make([]types.Dimension, 0, len(names))
	for _, name := range names {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(name),
			Value: aws.String(merged[name]),
		})
	}

	datum := types.MetricDatum{
		MetricName: aws.String(point.name),
		Value:      aws.Float64(point.value),
		Unit:       point.unit,
		Timestamp:  aws.Time(point.timestamp),
		Dimensions: dimensions,
	}

	if p.storageResolution > 0 {
		datum.StorageResolution = aws.Int32(p.storageResolution)
	}

	return datum
}

// mapUnit maps metric definition units to CloudWatch units.
func mapUnit(unit string) types.StandardUnit {
	switch unit {
	case "%":
		return types.StandardUnitPercent
	case "bytes":
		return types.StandardUnitBytes
	case "KB":
		return types.StandardUnitKilobytes
	case "MB":
		return types.StandardUnitMegabytes
	case "GB":
		return types.StandardUnitGigabytes
	case "ms":
		return types.StandardUnitMilliseconds
	case "s":
		return types.StandardUnitSeconds
	case "count", "issues", "bugs", "LOC":
		return types.StandardUnitCount
	default:
		return types.StandardUnitNone
	}
}
