package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Redis     Redis     `mapstructure:"redis"`
	Storage   Storage   `mapstructure:"storage"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Auth      Auth      `mapstructure:"auth"`
	Worker    Worker    `mapstructure:"worker"`
	Converter Converter `mapstructure:"converter"`
	Scheduler Scheduler `mapstructure:"scheduler"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort          string        `mapstructure:"http_port"` // HTTP port to listen on
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Redis holds configuration for the task state store and scheduler backend.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TaskTTL  time.Duration `mapstructure:"task_ttl"` // how long finished task records are kept
}

// Storage holds configuration for the file storage backend.
type Storage struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Auth holds token signing and password hashing configuration. When
// SeedEmail is set, an initial super admin account is created at startup
// unless that email is already registered.
type Auth struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
	SeedEmail    string        `mapstructure:"seed_email"`
	SeedName     string        `mapstructure:"seed_name"`
	SeedPassword string        `mapstructure:"seed_password"`
}

// Worker defines the task execution retry policy.
type Worker struct {
	MaxAttempts    int                      `mapstructure:"max_attempts"` // Number of execution attempts
	RetryDelay     time.Duration            `mapstructure:"retry_delay"`  // Initial delay between retries
	Backoff        float64                  `mapstructure:"backoff"`      // Backoff multiplier for delays
	DefaultTimeout time.Duration            `mapstructure:"default_timeout"`
	KindTimeouts   map[string]time.Duration `mapstructure:"kind_timeouts"` // Per-kind overrides
}

// Converter holds configuration for converters that depend on external
// collaborators.
type Converter struct {
	AIUpscaleEndpoint string        `mapstructure:"ai_upscale_endpoint"`
	AIUpscaleTimeout  time.Duration `mapstructure:"ai_upscale_timeout"`
	CertLogURL        string        `mapstructure:"cert_log_url"` // certificate transparency search endpoint
}

// Scheduler holds the delayed-task polling configuration.
type Scheduler struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv() {
	bindings := map[string]string{
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",
		"redis.addr":           "REDIS_ADDR",
		"redis.password":       "REDIS_PASSWORD",
		"auth.jwt_secret":      "JWT_SECRET",
		"auth.seed_email":      "SEED_EMAIL",
		"auth.seed_password":   "SEED_PASSWORD",
		"storage.access_key":   "MINIO_ACCESS_KEY",
		"storage.secret_key":   "MINIO_SECRET_KEY",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to read config")
	}

	mustBindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		zlog.Logger.Panic().Err(err).Msgf("failed to unmarshal config: %v", err)
	}

	return &cfg
}
