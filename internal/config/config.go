package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. CLAIMS_DATABASE_HOST.
const EnvPrefix = "CLAIMS"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" split_words:"true"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Mail      MailConfig      `mapstructure:"mail"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Insurer   InsurerConfig   `mapstructure:"insurer"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" split_words:"true"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" split_words:"true"`
}

type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open" split_words:"true"`
	MaxIdle  int    `mapstructure:"max_idle" split_words:"true"`

	// AutoMigrate applies pending migrations when the API starts.
	AutoMigrate bool `mapstructure:"auto_migrate" split_words:"true"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval  time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" split_words:"true"`

	// Processed events older than RetentionDays are pruned every CleanupInterval.
	RetentionDays   int           `mapstructure:"retention_days" split_words:"true"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours" split_words:"true"`
}

// OperatorConfig is a desk operator allowed to log in; PasswordHash is bcrypt.
type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

type AuthConfig struct {
	Operators []OperatorConfig `mapstructure:"operators" ignored:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// To is the billing office mailbox that receives claim decisions.
	To string `mapstructure:"to"`
}

type AuditConfig struct {
	// Path is the audit trail file; empty means stdout.
	Path string `mapstructure:"path"`
}

type InsurerConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       uint64        `mapstructure:"max_retries" split_words:"true"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures" split_words:"true"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout" split_words:"true"`
	SandboxLatency   time.Duration `mapstructure:"sandbox_latency" split_words:"true"`
	SandboxEligible  bool          `mapstructure:"sandbox_eligible" split_words:"true"`
	SandboxApprovals bool          `mapstructure:"sandbox_approvals" split_words:"true"`

	// SandboxCoverage is the limit and remaining balance reported for unscripted
	// members when SandboxEligible is set.
	SandboxCoverage float64 `mapstructure:"sandbox_coverage" split_words:"true"`
}

type SecurityConfig struct {
	// EncryptionKey is 64 hex characters (AES-256) used for integration API keys.
	EncryptionKey string `mapstructure:"encryption_key" split_words:"true"`
	BcryptCost    int    `mapstructure:"bcrypt_cost" split_words:"true"`
}

// Key decodes EncryptionKey.
func (c SecurityConfig) Key() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open", 10)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 500*time.Millisecond)
	v.SetDefault("outbox.retention_days", 7)
	v.SetDefault("outbox.cleanup_interval", time.Hour)

	v.SetDefault("jwt.issuer", "claims-api")
	v.SetDefault("jwt.expiry_hours", 8)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cache.ttl", 15*time.Minute)
	v.SetDefault("cache.cleanup_interval", time.Hour)

	v.SetDefault("mail.port", 587)

	v.SetDefault("insurer.timeout", 10*time.Second)
	v.SetDefault("insurer.max_retries", 3)
	v.SetDefault("insurer.breaker_failures", 5)
	v.SetDefault("insurer.breaker_timeout", 30*time.Second)
	v.SetDefault("insurer.sandbox_latency", 800*time.Millisecond)
	v.SetDefault("insurer.sandbox_eligible", true)
	v.SetDefault("insurer.sandbox_coverage", 100000)

	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from path (or the standard search paths when path is
// empty), applies CLAIMS_* environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("database.driver must be memory or postgres, got %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if _, err := c.Security.Key(); err != nil {
		return err
	}
	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "" || c.Mail.To == "") {
		return errors.New("mail.host, mail.from and mail.to are required when mail is enabled")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
		return errors.New("outbox.batch_size and outbox.poll_interval must be positive")
	}
	return nil
}
