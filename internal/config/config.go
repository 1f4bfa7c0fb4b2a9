package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultDriftRange = 20

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// BaseURL is the externally visible address, used for local blob links
	BaseURL string `yaml:"base_url"`
	// MaxUploadBytes caps the body of authenticated requests
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is one of postgres, mysql, sqlite
	Driver      string `yaml:"driver"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"dbname"`
	SSLMode     string `yaml:"sslmode"`
	DSNOverride string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// StorageConfig selects and configures the train blob store
type StorageConfig struct {
	// Backend is s3 or local
	Backend string      `yaml:"backend"`
	AWS     AWSConfig   `yaml:"aws"`
	Local   LocalConfig `yaml:"local"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region        string        `yaml:"region"`
	S3Bucket      string        `yaml:"s3_bucket"`
	Prefix        string        `yaml:"prefix"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	Endpoint      string        `yaml:"endpoint"` // for S3-compatible providers
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// LocalConfig holds filesystem blob store configuration
type LocalConfig struct {
	Root      string        `yaml:"root"`
	URLExpiry time.Duration `yaml:"url_expiry"`
}

// AuthConfig holds the one-time code settings
type AuthConfig struct {
	SecretKey     string `yaml:"secret_key"`
	OTPStepSecs int `yaml:"otp_step_secs"`
	// OTPDriftRange is nil when unset; an explicit 0 accepts only the current step
	OTPDriftRange *int `yaml:"otp_drift_range"`
}

// DriftRange returns the configured code window half-width
func (a AuthConfig) DriftRange() int {
	if a.OTPDriftRange == nil {
		return defaultDriftRange
	}
	return *a.OTPDriftRange
}

// MailConfig holds outbound email configuration
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	// Timeout bounds one SMTP exchange, dial included
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string        `yaml:"level"`
	File  LogFileConfig `yaml:"file"`
}

// LogFileConfig configures rotating file output
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file, then applies environment
// overrides and defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Auth.SecretKey, "FYM_SECRET_KEY")
	setString(&c.Database.Password, "FYM_DB_PASSWORD")
	setString(&c.Database.DSNOverride, "FYM_DB_DSN")
	setString(&c.Storage.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Mail.Password, "FYM_SMTP_PASSWORD")

	if err := setInt(&c.Auth.OTPStepSecs, "OTP_STEP_SECS"); err != nil {
		return err
	}
	return setIntPtr(&c.Auth.OTPDriftRange, "OTP_DRIFT_RANGE")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.AWS.Prefix == "" {
		c.Storage.AWS.Prefix = "trains"
	}
	if c.Storage.AWS.PresignExpiry == 0 {
		c.Storage.AWS.PresignExpiry = 360 * time.Second
	}
	if c.Storage.Local.Root == "" {
		c.Storage.Local.Root = "data/trains"
	}
	if c.Storage.Local.URLExpiry == 0 {
		c.Storage.Local.URLExpiry = 360 * time.Second
	}
	if c.Auth.OTPStepSecs == 0 {
		c.Auth.OTPStepSecs = 30
	}
	if c.Auth.OTPDriftRange == nil {
		n := defaultDriftRange
		c.Auth.OTPDriftRange = &n
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 64 << 20
	}
	if c.Mail.Timeout == 0 {
		c.Mail.Timeout = 10 * time.Second
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.From == "" {
		c.Mail.From = "noreply@fymanager.com"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return errors.New("auth.secret_key is required (or FYM_SECRET_KEY)")
	}
	if c.Auth.OTPStepSecs <= 0 {
		return fmt.Errorf("auth.otp_step_secs must be positive, got %d", c.Auth.OTPStepSecs)
	}
	if c.Auth.DriftRange() < 0 {
		return fmt.Errorf("auth.otp_drift_range must not be negative, got %d", c.Auth.DriftRange())
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.AWS.S3Bucket == "" {
			return errors.New("storage.aws.s3_bucket is required for the s3 backend")
		}
	case "local":
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	return nil
}

// DSN returns the connection string for the configured driver
func (c *DatabaseConfig) DSN() string {
	if c.DSNOverride != "" {
		return c.DSNOverride
	}
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		return c.DBName
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setIntPtr treats a present variable as set, even when it is 0
func setIntPtr(dst **int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = &n
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
