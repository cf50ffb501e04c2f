package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis        RedisConfig
	Email        EmailConfig
	Storage      StorageConfig
	Authority    AuthorityConfig
	Scheduler    SchedulerConfig
	RateLimit    RateLimitConfig
	Backlog      BacklogConfig
	PolicyConfig string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// EmailConfig selects the notification channel. Channel is one of smtp, ses or noop.
type EmailConfig struct {
	Channel      string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SESRegion    string
}

// StorageConfig configures the S3 bucket that archives rendered artifacts.
type StorageConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	PublicURL    string
}

func (c StorageConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// AuthorityConfig names the external judicial authority that receives referrals.
type AuthorityConfig struct {
	Name  string
	Email string
}

type SchedulerConfig struct {
	Enabled     bool
	Interval    time.Duration
	BatchSize   int
	EnabledJobs []string
}

type RateLimitConfig struct {
	Enabled       bool
	TaxpayerRate  float64
	TaxpayerBurst int
}

// BacklogConfig drives the backlog gauges. A zero Interval disables the worker.
type BacklogConfig struct {
	Interval     time.Duration
	PushEndpoint string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "redevance"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "redevance"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Channel:      strings.ToLower(getenv("NOTIFICATION_CHANNEL", "noop")),
			From:         getenv("NOTIFICATION_FROM", "no-reply@redevance.local"),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 1025),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SESRegion:    getenv("SES_REGION", "eu-west-1"),
		},
		Storage: StorageConfig{
			Bucket:       strings.TrimSpace(getenv("ARCHIVE_BUCKET", "")),
			Region:       getenv("ARCHIVE_REGION", "eu-west-1"),
			Endpoint:     strings.TrimSpace(getenv("ARCHIVE_ENDPOINT", "")),
			AccessKey:    strings.TrimSpace(getenv("ARCHIVE_ACCESS_KEY", "")),
			SecretKey:    strings.TrimSpace(getenv("ARCHIVE_SECRET_KEY", "")),
			UsePathStyle: getenvBool("ARCHIVE_USE_PATH_STYLE", false),
			PublicURL:    strings.TrimSpace(getenv("ARCHIVE_PUBLIC_URL", "")),
		},
		Authority: AuthorityConfig{
			Name:  getenv("AUTHORITY_NAME", "Tribunal de commerce"),
			Email: strings.TrimSpace(getenv("AUTHORITY_EMAIL", "")),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getenvBool("SCHEDULER_ENABLED", true),
			Interval:    getenvDuration("SCHEDULER_INTERVAL", time.Hour),
			BatchSize:   getenvInt("SCHEDULER_BATCH_SIZE", 100),
			EnabledJobs: parseList(getenv("SCHEDULER_JOBS", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			TaxpayerRate:  getenvFloat("RATE_LIMIT_TAXPAYER_RATE", 1),
			TaxpayerBurst: getenvInt("RATE_LIMIT_TAXPAYER_BURST", 10),
		},
		Backlog: BacklogConfig{
			Interval:     getenvDuration("BACKLOG_INTERVAL", 5*time.Minute),
			PushEndpoint: strings.TrimSpace(getenv("BACKLOG_PUSHGATEWAY", "")),
		},
		PolicyConfig: strings.TrimSpace(getenv("POLICY_CONFIG_PATH", "")),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
