package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Workflow     WorkflowConfig
	Agents       AgentsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for the operator API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorID            string
	OperatorPasswordHash  string
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// WorkflowConfig tunes the orchestrator.
type WorkflowConfig struct {
	MaxIterations       int
	ConfidenceThreshold float64
	TicketTimeoutSec    int
	WorkerPoolSize      int
	QueueSize           int
	LockTTLSec          int
}

// LimiterConfig tunes the outbound model throttle for one agent type.
type LimiterConfig struct {
	RequestsPerMinute int
	TokensPerMinute   int
	MaxWaitSeconds    int
	MaxRetries        int
}

// AgentsConfig carries per-agent limiter settings.
type AgentsConfig struct {
	Triage     LimiterConfig
	Resolution LimiterConfig
	Compliance LimiterConfig
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "agentops-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 120),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorID:            getEnv("AUTH_OPERATOR_ID", "operator"),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Workflow: WorkflowConfig{
			MaxIterations:       getEnvAsInt("WORKFLOW_MAX_ITERATIONS", 5),
			ConfidenceThreshold: getEnvAsFloat("WORKFLOW_CONFIDENCE_THRESHOLD", 0.65),
			TicketTimeoutSec:    getEnvAsInt("WORKFLOW_TICKET_TIMEOUT_SECONDS", 300),
			WorkerPoolSize:      getEnvAsInt("WORKFLOW_WORKER_POOL_SIZE", 4),
			QueueSize:           getEnvAsInt("WORKFLOW_QUEUE_SIZE", 64),
			LockTTLSec:          getEnvAsInt("WORKFLOW_LOCK_TTL_SECONDS", 600),
		},
		Agents: AgentsConfig{
			Triage:     limiterFromEnv("TRIAGE", 50, 100000),
			Resolution: limiterFromEnv("RESOLUTION", 30, 80000),
			Compliance: limiterFromEnv("COMPLIANCE", 60, 50000),
		},
	}

	return cfg, nil
}

func limiterFromEnv(prefix string, defaultRPM, defaultTPM int) LimiterConfig {
	return LimiterConfig{
		RequestsPerMinute: getEnvAsInt(prefix+"_REQUESTS_PER_MINUTE", defaultRPM),
		TokensPerMinute:   getEnvAsInt(prefix+"_TOKENS_PER_MINUTE", defaultTPM),
		MaxWaitSeconds:    getEnvAsInt(prefix+"_MAX_WAIT_SECONDS", 60),
		MaxRetries:        getEnvAsInt(prefix+"_MAX_RETRIES", 3),
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TicketTimeout returns the end-to-end per-ticket deadline.
func (w WorkflowConfig) TicketTimeout() time.Duration {
	if w.TicketTimeoutSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(w.TicketTimeoutSec) * time.Second
}

// MaxWait returns the bounded admission wait for the limiter.
func (l LimiterConfig) MaxWait() time.Duration {
	if l.MaxWaitSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(l.MaxWaitSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
