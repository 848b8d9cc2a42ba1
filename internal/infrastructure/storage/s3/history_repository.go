package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/infrastructure/persistence/document"
)

type Config struct {
	Bucket          string
	Key             string
	ArchivePrefix   string // optional: every save also writes <prefix>/<timestamp>.json
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// objectAPI is the subset of the S3 client the repository uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// HistoryRepository keeps the canonical history document in an S3 bucket.
type HistoryRepository struct {
	client        objectAPI
	bucket        string
	key           string
	archivePrefix string
	now           func() time.Time
}

func NewHistoryRepository(ctx context.Context, cfg Config) (*HistoryRepository, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, fmt.Errorf("s3 access key id and secret are required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "ru-central1"
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = "https://storage.yandexcloud.net"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		options.BaseEndpoint = &cfg.Endpoint
		options.UsePathStyle = cfg.UsePathStyle
	})

	return newHistoryRepository(client, cfg)
}

func newHistoryRepository(client objectAPI, cfg Config) (*HistoryRepository, error) {
	key := strings.Trim(strings.TrimSpace(cfg.Key), "/")
	if key == "" {
		key = "history.json"
	}
	return &HistoryRepository{
		client:        client,
		bucket:        strings.TrimSpace(cfg.Bucket),
		key:           key,
		archivePrefix: strings.Trim(strings.TrimSpace(cfg.ArchivePrefix), "/"),
		now:           time.Now,
	}, nil
}

func (r *HistoryRepository) Load(ctx context.Context) (*entity.HistoryLog, error) {
	output, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &r.key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, repository.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("read object failed: %w", err)
	}

	log, err := document.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.Location(), err)
	}
	return log, nil
}

func (r *HistoryRepository) Save(ctx context.Context, log *entity.HistoryLog) error {
	data, err := document.Encode(log)
	if err != nil {
		return err
	}

	if err := r.put(ctx, r.key, data); err != nil {
		return err
	}

	if r.archivePrefix != "" {
		archiveKey := fmt.Sprintf("%s/%s.json", r.archivePrefix, r.now().UTC().Format("20060102T150405Z"))
		if err := r.put(ctx, archiveKey, data); err != nil {
			return fmt.Errorf("archive copy failed: %w", err)
		}
	}
	return nil
}

func (r *HistoryRepository) Location() string {
	return fmt.Sprintf("s3://%s/%s", r.bucket, r.key)
}

func (r *HistoryRepository) put(ctx context.Context, key string, data []byte) error {
	contentType := document.ContentType
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &r.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put object failed: %w", err)
	}
	return nil
}
