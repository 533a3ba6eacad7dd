package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/freelance/backend/internal/domain/shared/valueobject"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the whole runtime configuration. Keys are the lower-case
// mapstructure names, nested by section, e.g. billing.invoice_prefix.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PDF         PDFConfig         `mapstructure:"pdf"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig selects the store. Path is used by sqlite, the
// connection fields by postgres.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"` // ":memory:" for tests
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// RedisConfig is optional; without it idempotency keys live in memory
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BillingConfig holds invoicing defaults and the issuer printed on
// invoices
type BillingConfig struct {
	Currency       string `mapstructure:"currency"` // ISO 4217
	Locale         string `mapstructure:"locale"`   // BCP 47, e.g. en-IN
	InvoicePrefix  string `mapstructure:"invoice_prefix"`
	PaymentPrefix  string `mapstructure:"payment_prefix"`
	DefaultDueDays int    `mapstructure:"default_due_days"`

	BusinessName    string `mapstructure:"business_name"`
	BusinessAddress string `mapstructure:"business_address"`
	BusinessEmail   string `mapstructure:"business_email"`
	BusinessPhone   string `mapstructure:"business_phone"`
}

type IdempotencyConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// StorageConfig selects where rendered invoice documents are kept
type StorageConfig struct {
	Driver          string `mapstructure:"driver"` // local or s3
	LocalDir        string `mapstructure:"local_dir"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // S3-compatible stores
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

type PDFConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RemoteURL string        `mapstructure:"remote_url"` // empty starts a local Chrome
	Timeout   time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`

	// Write requests per client IP and window; zero disables limiting
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP gRPC, e.g. localhost:4317
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
	DBTraceEnabled    bool    `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool    `mapstructure:"db_log_full_sql"` // query variables in spans

	// Metrics and log records go to the same collector as spans
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled     bool          `mapstructure:"logs_enabled"`
}

// defaults lists every key. Keys missing here are invisible to
// AutomaticEnv, so secrets are registered with empty values.
var defaults = map[string]any{
	"app.name": "freelance",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             DriverSQLite,
	"database.path":               "freelance.db",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "freelance",
	"database.sslmode":            "disable",
	"database.max_open_conns":     10,
	"database.max_idle_conns":     2,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"billing.currency":         string(valueobject.DefaultCurrency),
	"billing.locale":           "en-IN",
	"billing.invoice_prefix":   "INV",
	"billing.payment_prefix":   "PAY",
	"billing.default_due_days": 30,
	"billing.business_name":    "",
	"billing.business_address": "",
	"billing.business_email":   "",
	"billing.business_phone":   "",

	"idempotency.ttl":        24 * time.Hour,
	"idempotency.key_prefix": "freelance:idem:",

	"storage.driver":            "local",
	"storage.local_dir":         "documents",
	"storage.bucket":            "",
	"storage.region":            "us-east-1",
	"storage.endpoint":          "",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.use_path_style":    false,
	"storage.key_prefix":        "invoices/",

	"pdf.enabled":    false,
	"pdf.remote_url": "",
	"pdf.timeout":    30 * time.Second,

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       60 * time.Second, // PDF rendering can take a while
	"http.idle_timeout":        60 * time.Second,
	"http.shutdown_timeout":    10 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       1 << 20,
	"http.cors_allow_origins":  []string{},
	"http.cors_allow_methods":  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "X-Request-ID", "Idempotency-Key"},
	"http.trusted_proxies":     []string{},
	"http.rate_limit_requests": 0,
	"http.rate_limit_window":   time.Minute,

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.sampling_ratio":     1.0,
	"telemetry.service_name":       "freelance",
	"telemetry.insecure":           false,
	"telemetry.db_trace_enabled":   false,
	"telemetry.db_log_full_sql":    false,
	"telemetry.metrics_enabled":    false,
	"telemetry.metrics_interval":   time.Minute,
	"telemetry.logs_enabled":       false,
}

// Load reads the configuration. Later sources win:
//  1. built-in defaults
//  2. config.toml in ., /etc/freelance or $FREELANCE_CONFIG_DIR
//  3. a .env file in the working directory
//  4. FREELANCE_ environment variables, e.g. FREELANCE_DATABASE_DRIVER
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/freelance")
	if dir := os.Getenv("FREELANCE_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FREELANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.Billing.Currency = strings.ToUpper(strings.TrimSpace(cfg.Billing.Currency))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if _, err := valueobject.ParseCurrency(c.Billing.Currency); err != nil {
		return fmt.Errorf("billing.currency: %w", err)
	}
	if c.Billing.DefaultDueDays < 0 {
		return fmt.Errorf("billing.default_due_days cannot be negative")
	}

	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage.driver is s3")
		}
	default:
		return fmt.Errorf("storage.driver must be local or s3, got %q", c.Storage.Driver)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == DriverPostgres {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.MetricsEnabled && c.Telemetry.MetricsInterval < time.Second {
		return fmt.Errorf("telemetry.metrics_interval must be at least 1s, got %s", c.Telemetry.MetricsInterval)
	}

	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
