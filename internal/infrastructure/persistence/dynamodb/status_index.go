package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/quality-history/internal/application/port"
)

const (
	defaultListLimit  = 50
	maxListLimit      = 500
	maxBatchWriteSize = 25
	maxBatchRetries   = 5

	statusIndexGSI1 = "GSI1"

	attrPK          = "PK"
	attrSK          = "SK"
	attrGSI1PK      = "GSI1PK"
	attrGSI1SK      = "GSI1SK"
	attrMetricID    = "metric_id"
	attrSubject     = "subject"
	attrKind        = "kind"
	attrStatus      = "status"
	attrStatusSince = "status_since"
	attrValue       = "value"
	attrDate        = "date"
	attrRunID       = "run_id"

	sortKeyStatus = "STATUS"
)

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

// client is the subset of the DynamoDB API the index uses.
type client interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// StatusIndex keeps one item per metric with its latest status.
// GSI1 groups metrics by status, oldest status first.
type StatusIndex struct {
	client      client
	tableName   string
	strongReads bool
	retryDelay  time.Duration
}

func NewStatusIndex(ctx context.Context, cfg Config) (*StatusIndex, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	ddb := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
	})

	return newStatusIndex(ddb, cfg), nil
}

func newStatusIndex(c client, cfg Config) *StatusIndex {
	return &StatusIndex{
		client:      c,
		tableName:   strings.TrimSpace(cfg.TableName),
		strongReads: cfg.StrongReads,
		retryDelay:  100 * time.Millisecond,
	}
}

func (s *StatusIndex) PutBatch(ctx context.Context, records []port.StatusRecord) error {
	if len(records) == 0 {
		return nil
	}

	for start := 0; start < len(records); start += maxBatchWriteSize {
		end := start + maxBatchWriteSize
		if end > len(records) {
			end = len(records)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, record := range records[start:end] {
			item, err := toItem(record)
			if err != nil {
				return err
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.writeBatchWithRetry(ctx, requests); err != nil {
			return err
		}
	}

	return nil
}

// ListByStatus returns metrics currently in status, longest-standing first.
func (s *StatusIndex) ListByStatus(ctx context.Context, status string, limit int) ([]port.StatusRecord, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return nil, fmt.Errorf("status is required")
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	keyCondition := "#gsi1pk = :pk"
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              stringPointer(statusIndexGSI1),
		Limit:                  int32Pointer(int32(limit)),
		ScanIndexForward:       boolPointer(true),
		KeyConditionExpression: &keyCondition,
		ExpressionAttributeNames: map[string]string{
			"#gsi1pk": attrGSI1PK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: buildGSI1PK(status)},
		},
	}

	output, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("dynamodb query failed: %w", err)
	}

	records := make([]port.StatusRecord, 0, len(output.Items))
	for _, raw := range output.Items {
		record, err := fromItem(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func (s *StatusIndex) writeBatchWithRetry(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{
		s.tableName: requests,
	}

	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		output, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("dynamodb batch write failed: %w", err)
		}

		if len(output.UnprocessedItems) == 0 {
			return nil
		}

		pending = output.UnprocessedItems
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * s.retryDelay):
		}
	}

	return fmt.Errorf("dynamodb batch write has unprocessed items after retries")
}

func toItem(record port.StatusRecord) (map[string]types.AttributeValue, error) {
	metricID := strings.TrimSpace(record.MetricID)
	status := strings.ToLower(strings.TrimSpace(record.Status))
	if metricID == "" {
		return nil, fmt.Errorf("metric_id is required")
	}
	if status == "" {
		return nil, fmt.Errorf("status is required for metric %s", metricID)
	}

	date := record.Date.UTC()
	since := record.StatusSince.UTC()
	if record.StatusSince.IsZero() {
		since = date
	}
	sinceMS := since.UnixMilli()

	item := map[string]types.AttributeValue{
		attrPK:          &types.AttributeValueMemberS{Value: buildPK(metricID)},
		attrSK:          &types.AttributeValueMemberS{Value: sortKeyStatus},
		attrGSI1PK:      &types.AttributeValueMemberS{Value: buildGSI1PK(status)},
		attrGSI1SK:      &types.AttributeValueMemberS{Value: buildGSI1SK(sinceMS, metricID)},
		attrMetricID:    &types.AttributeValueMemberS{Value: metricID},
		attrStatus:      &types.AttributeValueMemberS{Value: status},
		attrStatusSince: &types.AttributeValueMemberN{Value: strconv.FormatInt(sinceMS, 10)},
		attrDate:        &types.AttributeValueMemberN{Value: strconv.FormatInt(date.UnixMilli(), 10)},
	}

	if subject := strings.TrimSpace(record.Subject); subject != "" {
		item[attrSubject] = &types.AttributeValueMemberS{Value: subject}
	}
	if kind := strings.TrimSpace(record.Kind); kind != "" {
		item[attrKind] = &types.AttributeValueMemberS{Value: kind}
	}
	if record.Value != nil {
		item[attrValue] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(*record.Value, 'f', -1, 64)}
	}
	if runID := strings.TrimSpace(record.RunID); runID != "" {
		item[attrRunID] = &types.AttributeValueMemberS{Value: runID}
	}

	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (port.StatusRecord, error) {
	metricID, err := attrString(item, attrMetricID)
	if err != nil {
		return port.StatusRecord{}, err
	}
	status, err := attrString(item, attrStatus)
	if err != nil {
		return port.StatusRecord{}, err
	}
	sinceMS, err := attrInt64(item, attrStatusSince)
	if err != nil {
		return port.StatusRecord{}, err
	}
	dateMS, err := attrInt64(item, attrDate)
	if err != nil {
		return port.StatusRecord{}, err
	}

	record := port.StatusRecord{
		MetricID:    metricID,
		Subject:     optionalString(item, attrSubject),
		Kind:        optionalString(item, attrKind),
		Status:      status,
		StatusSince: time.UnixMilli(sinceMS).UTC(),
		Date:        time.UnixMilli(dateMS).UTC(),
		RunID:       optionalString(item, attrRunID),
	}

	if raw, ok := item[attrValue].(*types.AttributeValueMemberN); ok {
		value, err := strconv.ParseFloat(raw.Value, 64)
		if err != nil {
			return port.StatusRecord{}, fmt.Errorf("invalid attribute %s: %w", attrValue, err)
		}
		record.Value = &value
	}

	return record, nil
}

func buildPK(metricID string) string {
	return "METRIC#" + metricID
}

func buildGSI1PK(status string) string {
	return "STATUS#" + status
}

func buildGSI1SK(sinceMS int64, metricID string) string {
	return fmt.Sprintf("SINCE#%013d#METRIC#%s", sinceMS, metricID)
}

func attrString(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("invalid attribute %s", name)
	}
	return value.Value, nil
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	raw, ok := item[name]
	if !ok {
		return ""
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return value.Value
}

func attrInt64(item map[string]types.AttributeValue, name string) (int64, error) {
	raw, ok := item[name]
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("invalid attribute %s", name)
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s: %w", name, err)
	}
	return parsed, nil
}

func boolPointer(v bool) *bool {
	return &v
}

func int32Pointer(v int32) *int32 {
	return &v
}

func stringPointer(v string) *string {
	return &v
}
