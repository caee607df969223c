package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"invoice-scanner-go/internal/classifier"
)

// Archive and ledger backends
const (
	ArchiveLocal = "local"
	ArchiveS3    = "s3"

	LedgerFile     = "file"
	LedgerDatabase = "database"
	LedgerRedis    = "redis"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Gmail      GmailConfig      `mapstructure:"gmail"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Vehicle    VehicleConfig    `mapstructure:"vehicle"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Scan       ScanConfig       `mapstructure:"scan"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig selects the logrus level and formatter
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GmailConfig holds Gmail API and IMAP configuration
type GmailConfig struct {
	ClientID          string  `mapstructure:"client_id"`
	ClientSecret      string  `mapstructure:"client_secret"`
	RefreshToken      string  `mapstructure:"refresh_token"`
	UserEmail         string  `mapstructure:"user_email"`
	UseIMAP           bool    `mapstructure:"use_imap"`
	IMAPHost          string  `mapstructure:"imap_host"`
	IMAPPort          int     `mapstructure:"imap_port"`
	IMAPUser          string  `mapstructure:"imap_user"`
	IMAPPassword      string  `mapstructure:"imap_password"`
	IMAPMailbox       string  `mapstructure:"imap_mailbox"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	RunOnStart      bool `mapstructure:"run_on_start"`
}

// VehicleConfig identifies the tracked vehicle
type VehicleConfig struct {
	UnitNumber string `mapstructure:"unit_number"`
	VIN        string `mapstructure:"vin"`
}

// VocabularyConfig holds the classifier keyword lists
type VocabularyConfig struct {
	Include        []string `mapstructure:"include"`
	Exclude        []string `mapstructure:"exclude"`
	ExcludeSenders []string `mapstructure:"exclude_senders"`
}

// ArchiveConfig selects where attachments are stored
type ArchiveConfig struct {
	Backend string   `mapstructure:"backend"`
	Root    string   `mapstructure:"root"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds object storage settings
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LedgerConfig selects where processed message ids are persisted
type LedgerConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	RedisKey string `mapstructure:"redis_key"`
}

// ScanConfig holds the knobs of one scan pass
type ScanConfig struct {
	BatchSize           int     `mapstructure:"batch_size"`
	LookbackDays        int     `mapstructure:"lookback_days"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	SummaryDir          string  `mapstructure:"summary_dir"`
}

// LoadConfig loads configuration from an optional config file and the
// environment. An empty path searches config.yaml in . and ./config.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.applyDerivedDefaults()

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)

	v.SetDefault("gmail.user_email", "me")
	v.SetDefault("gmail.use_imap", false)
	v.SetDefault("gmail.imap_host", "imap.gmail.com")
	v.SetDefault("gmail.imap_port", 993)
	v.SetDefault("gmail.imap_mailbox", "INBOX")
	v.SetDefault("gmail.requests_per_second", 2.0)
	v.SetDefault("gmail.burst", 5)

	v.SetDefault("scheduler.interval_minutes", 240)
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("vehicle.unit_number", "574")
	v.SetDefault("vehicle.vin", "3AKJHHDR7KSKE1598")

	v.SetDefault("vocabulary.include", classifier.DefaultInclude)
	v.SetDefault("vocabulary.exclude", classifier.DefaultExclude)
	v.SetDefault("vocabulary.exclude_senders", classifier.DefaultExcludeSenders)

	v.SetDefault("archive.backend", ArchiveLocal)
	v.SetDefault("archive.root", "./downloaded_invoices")
	v.SetDefault("archive.s3.use_ssl", true)

	v.SetDefault("ledger.backend", LedgerFile)
	v.SetDefault("ledger.redis_key", "invoice-scanner:processed")

	v.SetDefault("scan.batch_size", 500)
	v.SetDefault("scan.lookback_days", 365)
	v.SetDefault("scan.confidence_threshold", classifier.DefaultThreshold)
}

// bindEnvVars binds the short environment names used in deployments
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("log.level", "LOG_LEVEL")

	// Database
	v.BindEnv("database.enabled", "DB_ENABLED")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Gmail
	v.BindEnv("gmail.client_id", "GMAIL_CLIENT_ID")
	v.BindEnv("gmail.client_secret", "GMAIL_CLIENT_SECRET")
	v.BindEnv("gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	v.BindEnv("gmail.user_email", "GMAIL_USER_EMAIL")
	v.BindEnv("gmail.use_imap", "GMAIL_USE_IMAP")
	v.BindEnv("gmail.imap_user", "GMAIL_IMAP_USER")
	v.BindEnv("gmail.imap_password", "GMAIL_IMAP_PASSWORD")

	// Vehicle
	v.BindEnv("vehicle.unit_number", "TRUCK_UNIT_NUMBER")
	v.BindEnv("vehicle.vin", "TRUCK_VIN")

	// Storage
	v.BindEnv("archive.root", "INVOICE_FOLDER")
	v.BindEnv("archive.s3.access_key", "S3_ACCESS_KEY")
	v.BindEnv("archive.s3.secret_key", "S3_SECRET_KEY")
	v.BindEnv("ledger.redis_url", "REDIS_URL")
}

// applyDerivedDefaults fills paths that default relative to the archive root
func (c *Config) applyDerivedDefaults() {
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.Archive.Root, "processed_emails.json")
	}
	if c.Scan.SummaryDir == "" {
		c.Scan.SummaryDir = c.Archive.Root
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if strings.TrimSpace(c.Vehicle.UnitNumber) == "" || strings.TrimSpace(c.Vehicle.VIN) == "" {
		return fmt.Errorf("vehicle unit number and VIN are required")
	}

	if c.Scan.ConfidenceThreshold <= 0 || c.Scan.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1], got %v", c.Scan.ConfidenceThreshold)
	}
	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("scan batch size must be greater than 0")
	}
	if c.Scan.LookbackDays <= 0 {
		return fmt.Errorf("scan lookback days must be greater than 0")
	}
	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	if !c.Gmail.UseIMAP {
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when not using IMAP")
		}
	} else if c.Gmail.IMAPUser == "" || c.Gmail.IMAPPassword == "" {
		return fmt.Errorf("IMAP credentials are required when using IMAP")
	}

	if c.Database.Enabled && (c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "") {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	switch c.Archive.Backend {
	case ArchiveLocal:
		if c.Archive.Root == "" {
			return fmt.Errorf("archive root is required")
		}
	case ArchiveS3:
		if c.Archive.S3.Endpoint == "" || c.Archive.S3.Bucket == "" {
			return fmt.Errorf("S3 endpoint and bucket are required for the s3 archive backend")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}

	switch c.Ledger.Backend {
	case LedgerFile:
	case LedgerDatabase:
		if !c.Database.Enabled {
			return fmt.Errorf("ledger backend %q requires database.enabled", LedgerDatabase)
		}
	case LedgerRedis:
		if c.Ledger.RedisURL == "" {
			return fmt.Errorf("ledger.redis_url is required for the redis ledger backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	return nil
}
