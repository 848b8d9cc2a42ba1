package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	redisCache "github.com/dreschagin/quality-history/internal/infrastructure/cache/redis"
	natsInfra "github.com/dreschagin/quality-history/internal/infrastructure/messaging/nats"
	"github.com/dreschagin/quality-history/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/quality-history/internal/infrastructure/observability/prometheus"
	dynamodbIndex "github.com/dreschagin/quality-history/internal/infrastructure/persistence/dynamodb"
	fileRepo "github.com/dreschagin/quality-history/internal/infrastructure/persistence/file"
	"github.com/dreschagin/quality-history/internal/infrastructure/persistence/postgres"
	s3storage "github.com/dreschagin/quality-history/internal/infrastructure/storage/s3"
	"github.com/dreschagin/quality-history/pkg/config"
	"github.com/dreschagin/quality-history/pkg/logger"

	_ "github.com/lib/pq"
)

// app собирает зависимости команды и закрывает их в обратном порядке
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	closers []func(context.Context) error
}

// newApp загружает конфигурацию и настраивает logger
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	a := &app{
		cfg: cfg,
		log: logger.NewWithWriter(level, cmd.ErrOrStderr()),
	}
	a.attachLogShipping(cmd.Context())
	return a, nil
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// close освобождает ресурсы; ошибки только логируются
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("Failed to release resource", "error", err.Error())
		}
	}
	a.closers = nil
}

// attachLogShipping дублирует логи в CloudWatch Logs
func (a *app) attachLogShipping(ctx context.Context) {
	cw := a.cfg.CloudWatch
	if !cw.LogsEnabled {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	publisher, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
		LogGroupName:    cw.LogGroupName,
		LogStreamName:   cw.LogStreamName,
		Region:          cw.Region,
		Endpoint:        cw.Endpoint,
		AccessKeyID:     cw.AccessKeyID,
		SecretAccessKey: cw.SecretAccessKey,
		BufferSize:      cw.LogsBufferSize,
		FlushInterval:   cw.LogsFlushInterval,
		MinLevel:        port.ParseLogLevel(cw.LogsMinLevel),
		AutoCreate:      true,
		StaticFields:    map[string]interface{}{"app": "quality-report"},
	})
	if err != nil {
		a.log.Warn("CloudWatch logs publishing is disabled", "error", err.Error())
		return
	}

	a.log.SetLogPublisher(publisher)
	a.onClose(func(ctx context.Context) error {
		a.log.SetLogPublisher(nil)
		return publisher.Close(ctx)
	})
	a.log.Debug("CloudWatch logs publisher initialized", "group", cw.LogGroupName)
}

// historyRepository возвращает хранилище истории: файл по пути path или настроенный backend
func (a *app) historyRepository(ctx context.Context, path string) (repository.HistoryRepository, error) {
	if path != "" {
		return fileRepo.NewHistoryRepository(path)
	}

	switch a.cfg.History.Backend {
	case config.BackendS3:
		s3cfg := a.cfg.S3
		return s3storage.NewHistoryRepository(ctx, s3storage.Config{
			Bucket:          s3cfg.Bucket,
			Key:             s3cfg.Key,
			ArchivePrefix:   s3cfg.ArchivePrefix,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
	case config.BackendPostgres:
		return a.postgresRepository(ctx)
	default:
		return fileRepo.NewHistoryRepository(a.cfg.History.Path)
	}
}

func (a *app) postgresRepository(ctx context.Context) (repository.HistoryRepository, error) {
	dbCfg := a.cfg.Database
	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(dbCfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	a.onClose(func(context.Context) error { return db.Close() })

	repo := postgres.NewPostgresHistoryRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.log.Debug("Database connected", "host", dbCfg.Host, "database", dbCfg.Database)
	return repo, nil
}

// cache возвращает кеш запросов истории или nil
func (a *app) cache() port.Cache {
	rc := a.cfg.Redis
	if !rc.Enabled {
		return nil
	}

	c, err := redisCache.NewRedisCache(redisCache.Config{
		Host:      rc.Host,
		Port:      rc.Port,
		Password:  rc.Password,
		DB:        rc.DB,
		TTL:       rc.TTL,
		Namespace: rc.Namespace,
	})
	if err != nil {
		a.log.Warn("Redis is unavailable, continuing without cache", "error", err.Error())
		return nil
	}
	a.onClose(func(context.Context) error { return c.Close() })
	return c
}

// eventPublisher возвращает публикатор событий NATS или nil
func (a *app) eventPublisher() port.EventPublisher {
	if !a.cfg.NATS.Enabled {
		return nil
	}

	publisher, err := natsInfra.NewNATSPublisher(a.cfg.NATS.URL, a.cfg.NATS.Stream, a.log)
	if err != nil {
		a.log.Warn("Failed to connect to NATS, continuing without event publishing", "error", err.Error())
		return nil
	}
	a.onClose(func(context.Context) error { return publisher.Close() })
	return publisher
}

// statusIndex возвращает индекс текущих статусов DynamoDB или nil
func (a *app) statusIndex(ctx context.Context) port.StatusIndex {
	dc := a.cfg.Dynamo
	if !dc.Enabled {
		return nil
	}

	index, err := dynamodbIndex.NewStatusIndex(ctx, dynamodbIndex.Config{
		TableName:       dc.TableName,
		Region:          dc.Region,
		Endpoint:        dc.Endpoint,
		AccessKeyID:     dc.AccessKeyID,
		SecretAccessKey: dc.SecretAccessKey,
		StrongReads:     dc.StrongReads,
	})
	if err != nil {
		a.log.Warn("DynamoDB status index is disabled", "error", err.Error())
		return nil
	}
	return index
}

// cloudWatchMetrics возвращает публикатор метрик запуска в CloudWatch или nil
func (a *app) cloudWatchMetrics(ctx context.Context) port.RunMetricsPublisher {
	cw := a.cfg.CloudWatch
	if !cw.MetricsEnabled {
		return nil
	}

	publisher, err := cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
		Namespace:         cw.MetricsNamespace,
		Region:            cw.Region,
		Endpoint:          cw.Endpoint,
		AccessKeyID:       cw.AccessKeyID,
		SecretAccessKey:   cw.SecretAccessKey,
		DefaultDimensions: cw.MetricsDimensions,
		BufferSize:        cw.MetricsBufferSize,
		FlushInterval:     cw.MetricsFlushInterval,
		StorageResolution: cw.MetricsStorageResolution,
		PublishValues:     cw.MetricsPublishValues,
	})
	if err != nil {
		a.log.Warn("CloudWatch metrics publishing is disabled", "error", err.Error())
		return nil
	}
	a.onClose(publisher.Close)
	return publisher
}

// prometheusMetrics создает метрики Prometheus; push выполняется только при заданном Pushgateway
func (a *app) prometheusMetrics() *prometheus.Metrics {
	registry := promclient.NewRegistry()
	return prometheus.New(registry).WithPushgateway(a.cfg.Prometheus.PushgatewayURL, a.cfg.Prometheus.Job)
}
