package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// History backends
const (
	BackendFile     = "file"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

type Config struct {
	LogLevel   string
	History    HistoryConfig
	Database   DatabaseConfig
	S3         S3Config
	Redis      RedisConfig
	NATS       NATSConfig
	Dynamo     DynamoConfig
	CloudWatch CloudWatchConfig
	Prometheus PrometheusConfig
	Server     ServerConfig
	Security   SecurityConfig
	Fetch      FetchConfig
}

type HistoryConfig struct {
	Backend string
	Path    string
}

type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RateLimitPerSec   float64
	RateLimitBurst    int
	CompressionMinLen int
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type S3Config struct {
	Bucket          string
	Key             string
	ArchivePrefix   string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Password  string
	DB        int
	TTL       time.Duration
	Namespace string
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Stream  string
}

type DynamoConfig struct {
	Enabled         bool
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

type CloudWatchConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	MetricsEnabled           bool
	MetricsNamespace         string
	MetricsDimensions        map[string]string
	MetricsBufferSize        int
	MetricsFlushInterval     time.Duration
	MetricsStorageResolution int32
	MetricsPublishValues     bool

	LogsEnabled       bool
	LogGroupName      string
	LogStreamName     string
	LogsBufferSize    int
	LogsFlushInterval time.Duration
	LogsMinLevel      string
}

type PrometheusConfig struct {
	PushgatewayURL string
	Job            string
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
}

// FetchConfig ограничивает параллелизм и частоту запросов к источникам значений
type FetchConfig struct {
	Workers       int
	RatePerSecond float64
	Burst         int
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	var p parser

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		History: HistoryConfig{
			Backend: strings.ToLower(getEnv("HISTORY_BACKEND", BackendFile)),
			Path:    getEnv("HISTORY_PATH", "history.json"),
		},
		Server: ServerConfig{
			Port:              getEnv("SERVER_PORT", "8080"),
			ReadTimeout:       p.duration("SERVER_READ_TIMEOUT", "10s"),
			WriteTimeout:      p.duration("SERVER_WRITE_TIMEOUT", "10s"),
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   p.duration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
			RateLimitPerSec:   p.float("HTTP_RATE_LIMIT_PER_SEC", "20"),
			RateLimitBurst:    p.int("HTTP_RATE_LIMIT_BURST", "40"),
			CompressionMinLen: p.int("HTTP_COMPRESSION_MIN_BYTES", "1024"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "quality"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Key:             getEnv("S3_HISTORY_KEY", "history.json"),
			ArchivePrefix:   getEnv("S3_ARCHIVE_PREFIX", ""),
			Region:          getEnv("S3_REGION", "ru-central1"),
			Endpoint:        getEnv("S3_ENDPOINT", "https://storage.yandexcloud.net"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
		},
		Redis: RedisConfig{
			Enabled:   getEnvBool("REDIS_ENABLED", false),
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        p.int("REDIS_DB", "0"),
			TTL:       p.duration("REDIS_TTL", "10m"),
			Namespace: getEnv("REDIS_NAMESPACE", "quality"),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnv("NATS_STREAM", "QUALITY"),
		},
		Dynamo: DynamoConfig{
			Enabled:         getEnvBool("DYNAMODB_ENABLED", false),
			TableName:       getEnv("DYNAMODB_STATUS_TABLE", "quality-status"),
			Region:          getEnv("DYNAMODB_REGION", getEnv("AWS_REGION", "us-east-1")),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			StrongReads:     getEnvBool("DYNAMODB_STRONG_READS", false),
		},
		CloudWatch: CloudWatchConfig{
			Region:          getEnv("CLOUDWATCH_REGION", getEnv("AWS_REGION", "us-east-1")),
			Endpoint:        getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

			MetricsEnabled:           getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			MetricsNamespace:         getEnv("CLOUDWATCH_METRICS_NAMESPACE", "Quality/Report"),
			MetricsDimensions:        parseDimensions(getEnv("CLOUDWATCH_METRICS_DIMENSIONS", "")),
			MetricsBufferSize:        p.int("CLOUDWATCH_METRICS_BUFFER_SIZE", "20"),
			MetricsFlushInterval:     p.duration("CLOUDWATCH_METRICS_FLUSH_INTERVAL", "1m"),
			MetricsStorageResolution: int32(p.int("CLOUDWATCH_METRICS_STORAGE_RESOLUTION", "60")),
			MetricsPublishValues:     getEnvBool("CLOUDWATCH_METRICS_PUBLISH_VALUES", false),

			LogsEnabled:       getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			LogGroupName:      getEnv("CLOUDWATCH_LOG_GROUP", "/quality/report"),
			LogStreamName:     getEnv("CLOUDWATCH_LOG_STREAM", defaultLogStream()),
			LogsBufferSize:    p.int("CLOUDWATCH_LOGS_BUFFER_SIZE", "50"),
			LogsFlushInterval: p.duration("CLOUDWATCH_LOGS_FLUSH_INTERVAL", "5s"),
			LogsMinLevel:      getEnv("CLOUDWATCH_LOGS_MIN_LEVEL", "info"),
		},
		Prometheus: PrometheusConfig{
			PushgatewayURL: getEnv("PROMETHEUS_PUSHGATEWAY_URL", ""),
			Job:            getEnv("PROMETHEUS_JOB", "quality_report"),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
		},
		Fetch: FetchConfig{
			Workers:       p.int("FETCH_WORKERS", "4"),
			RatePerSecond: p.float("FETCH_RATE_PER_SEC", "0"),
			Burst:         p.int("FETCH_RATE_BURST", "1"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.History.Backend {
	case BackendFile:
		if c.History.Path == "" {
			return fmt.Errorf("HISTORY_PATH is required when HISTORY_BACKEND=file")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when HISTORY_BACKEND=s3")
		}
	case BackendPostgres:
	default:
		return fmt.Errorf("invalid HISTORY_BACKEND %q: want file|s3|postgres", c.History.Backend)
	}

	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	if c.Fetch.Workers <= 0 {
		return fmt.Errorf("FETCH_WORKERS must be positive")
	}
	if r := c.CloudWatch.MetricsStorageResolution; r != 1 && r != 60 {
		return fmt.Errorf("CLOUDWATCH_METRICS_STORAGE_RESOLUTION must be 1 or 60")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key, def string) int {
	v, err := strconv.Atoi(getEnv(key, def))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) float(key, def string) float64 {
	v, err := strconv.ParseFloat(getEnv(key, def), 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) duration(key, def string) time.Duration {
	v, err := parseDuration(getEnv(key, def))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// parseDimensions reads "Key=Value,Key2=Value2".
func parseDimensions(raw string) map[string]string {
	dims := make(map[string]string)
	for _, item := range splitCSV(raw) {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		dims[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return dims
}

func defaultLogStream() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "quality-report"
	}
	return host
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
