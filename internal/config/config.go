package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sungwon/post-office/internal/transport"
)

// Config holds all application configuration.
type Config struct {
	SMTP      SMTPConfig                  `mapstructure:"smtp"`
	API       APIConfig                   `mapstructure:"api"`
	Database  DatabaseConfig              `mapstructure:"database"`
	Redis     RedisConfig                 `mapstructure:"redis"`
	Logging   LoggingConfig               `mapstructure:"logging"`
	TLS       TLSConfig                   `mapstructure:"tls"`
	Storage   StorageConfig               `mapstructure:"storage"`
	Templates TemplatesConfig             `mapstructure:"templates"`
	Dispatch  DispatchConfig              `mapstructure:"dispatch"`
	Backends  map[string]transport.Config `mapstructure:"backends"`
	Metrics   MetricsConfig               `mapstructure:"metrics"`
}

// SMTPConfig holds SMTP ingress server configuration.
type SMTPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Domain         string        `mapstructure:"domain"`
	MaxConnections int           `mapstructure:"max_connections"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	MaxRecipients  int           `mapstructure:"max_recipients"`
	// AllowedDomains restricts sender domains. Empty allows every domain.
	AllowedDomains []string `mapstructure:"allowed_domains"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxBodyBytes caps request bodies, attachments included.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds the Redis connection used by the template cache and the
// distributed lock. An empty URL disables both.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// TLSConfig holds the certificate offered by the SMTP ingress for STARTTLS.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// StorageConfig selects where attachment content is kept.
type StorageConfig struct {
	Type       string `mapstructure:"type"`
	Path       string `mapstructure:"path"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`
}

// TemplatesConfig configures template caching.
type TemplatesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DispatchConfig configures dispatch cycles and message defaults.
type DispatchConfig struct {
	Processes       int           `mapstructure:"processes"`
	// Interval is the pause between cycles of the dispatch worker.
	Interval        time.Duration `mapstructure:"interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	Lockfile        string        `mapstructure:"lockfile"`
	LockType        string        `mapstructure:"lock_type"` // file or redis
	LockKey         string        `mapstructure:"lock_key"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	DefaultPriority string        `mapstructure:"default_priority"`
	DefaultFrom     string        `mapstructure:"default_from"`
}

// MetricsConfig configures the Prometheus pushgateway used by one-shot
// commands.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// FlagBinding maps a command-line flag name to a configuration key.
type FlagBinding struct {
	Flag string
	Key  string
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix POST_OFFICE_ override file values.
// For example, POST_OFFICE_DATABASE_URL overrides database.url.
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags is Load with command-line flags layered on top. A flag
// overrides env and file values only when it was set explicitly.
func LoadWithFlags(configPath string, flags *pflag.FlagSet, bindings ...FlagBinding) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("POST_OFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for _, b := range bindings {
			f := flags.Lookup(b.Flag)
			if f == nil {
				return nil, fmt.Errorf("bind flag %s: not defined", b.Flag)
			}
			if err := v.BindPFlag(b.Key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", b.Flag, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DefaultLockfile is the lock path used when none is configured.
func DefaultLockfile() string {
	return filepath.Join(os.TempDir(), "post_office")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dispatch.processes", 1)
	v.SetDefault("dispatch.interval", 30*time.Second)
	v.SetDefault("dispatch.batch_size", 5000)
	v.SetDefault("dispatch.lockfile", DefaultLockfile())
	v.SetDefault("dispatch.lock_type", "file")
	v.SetDefault("dispatch.lock_key", "post_office:dispatch_lock")
	v.SetDefault("dispatch.lock_ttl", 10*time.Minute)
	v.SetDefault("dispatch.default_priority", "medium")
	v.SetDefault("templates.cache_ttl", time.Hour)
	v.SetDefault("metrics.job", "post_office")
}
