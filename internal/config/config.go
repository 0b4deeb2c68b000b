// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	// Environment is the deployment environment: development or production.
	// Upstream error detail is exposed to clients only in development.
	Environment string `env:"APP_ENV" default:"development"`

	Server  ServerConfig
	Store   StoreConfig
	Files   FileStoreConfig
	SMTP    SMTPConfig
	OTP     OTPConfig
	Auth    AuthConfig
	Upload  UploadConfig
	Rate    RateLimitConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response.
	// Zero disables the timeout; bulk email sends can run long.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// StoreConfig holds record-store settings.
type StoreConfig struct {
	// Driver selects the record store backend: postgres or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string (required for the postgres driver)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// FileStoreConfig holds object-store settings for uploaded attachments.
type FileStoreConfig struct {
	// Driver selects the file store backend: s3 or memory (default: s3)
	Driver string `env:"FILE_STORE_DRIVER" default:"s3"`

	// Bucket is the object store bucket name (required for the s3 driver)
	Bucket string `env:"FILE_STORE_BUCKET"`

	// Region is the object store region (default: us-east-1)
	Region string `env:"FILE_STORE_REGION" default:"us-east-1"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores (MinIO etc.)
	Endpoint string `env:"FILE_STORE_ENDPOINT"`

	// AccessKey and SecretKey are static credentials for the object store.
	AccessKey string `env:"FILE_STORE_ACCESS_KEY"`
	SecretKey string `env:"FILE_STORE_SECRET_KEY"`

	// Prefix is the key prefix under which attachments are stored (default: registration-uploads)
	Prefix string `env:"FILE_STORE_PREFIX" default:"registration-uploads"`

	// PublicBaseURL is the base URL at which stored objects are reachable.
	// Object URLs persisted on registrations are PublicBaseURL + "/" + key.
	PublicBaseURL string `env:"FILE_STORE_PUBLIC_BASE_URL"`

	// SignedURLTTL is the validity window for signed download URLs (default: 15m)
	SignedURLTTL time.Duration `env:"FILE_STORE_SIGNED_URL_TTL" default:"15m"`
}

// SMTPProvider holds the connection settings for one named SMTP relay.
type SMTPProvider struct {
	Host string
	Port int
	User string
	Pass string
}

// SMTPConfig holds mail settings. Two named providers are supported,
// selectable per send request.
type SMTPConfig struct {
	// From is the default sender address; falls back to the selected
	// provider's user when empty.
	From string `env:"SMTP_FROM"`

	// FromName is the display name used on outgoing mail (default: Registration Team)
	FromName string `env:"SMTP_FROM_NAME" default:"Registration Team"`

	GmailHost string `env:"SMTP_HOST_GMAIL" default:"smtp.gmail.com"`
	GmailPort int    `env:"SMTP_PORT_GMAIL" default:"587"`
	GmailUser string `env:"SMTP_USER_GMAIL"`
	GmailPass string `env:"SMTP_PASS_GMAIL"`

	OutlookHost string `env:"SMTP_HOST_OUTLOOK" default:"smtp.office365.com"`
	OutlookPort int    `env:"SMTP_PORT_OUTLOOK" default:"587"`
	OutlookUser string `env:"SMTP_USER_OUTLOOK"`
	OutlookPass string `env:"SMTP_PASS_OUTLOOK"`
}

// Provider returns the named provider settings, or false when unknown.
func (c *SMTPConfig) Provider(name string) (SMTPProvider, bool) {
	switch name {
	case "gmail":
		return SMTPProvider{Host: c.GmailHost, Port: c.GmailPort, User: c.GmailUser, Pass: c.GmailPass}, true
	case "outlook":
		return SMTPProvider{Host: c.OutlookHost, Port: c.OutlookPort, User: c.OutlookUser, Pass: c.OutlookPass}, true
	}
	return SMTPProvider{}, false
}

// ProviderNames lists the selectable SMTP providers.
func (c *SMTPConfig) ProviderNames() []string {
	return []string{"gmail", "outlook"}
}

// OTPConfig holds admin OTP login settings.
type OTPConfig struct {
	// StoreDriver selects where pending codes live: memory or redis (default: memory).
	// Use redis for multi-instance deployments; memory state does not
	// survive a process restart.
	StoreDriver string `env:"OTP_STORE" default:"memory"`

	// RedisAddr is the redis host:port (required for the redis driver)
	RedisAddr string `env:"REDIS_ADDR"`

	// RedisPassword is the redis auth password, if any.
	RedisPassword string `env:"REDIS_PASSWORD"`

	// RedisDB is the redis database index (default: 0)
	RedisDB int `env:"REDIS_DB" default:"0"`

	// TTL is how long an issued code stays valid (default: 10m)
	TTL time.Duration `env:"OTP_TTL" default:"10m"`

	// AdminEmails is the comma-separated allow-list of admin login emails.
	AdminEmails []string `env:"ADMIN_USERS_AUTH"`
}

// AuthConfig holds admin session settings.
type AuthConfig struct {
	// JWTSecret signs admin session tokens issued on OTP verification.
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTL is the admin session lifetime (default: 12h)
	TokenTTL time.Duration `env:"JWT_TOKEN_TTL" default:"12h"`

	// Issuer is the iss claim on session tokens (default: regdesk)
	Issuer string `env:"JWT_ISSUER" default:"regdesk"`

	// Required gates admin endpoints behind Bearer token validation.
	// Defaults to false: the admin surface historically runs open and the
	// middleware only enforces when explicitly enabled.
	Required bool `env:"ADMIN_AUTH_REQUIRED" default:"false"`

	// AccessKey is the shared secure access key for the dashboard unlock flow.
	AccessKey string `env:"ADMIN_SECURE_ACCESS_KEY"`
}

// UploadConfig holds attachment size limits.
type UploadConfig struct {
	// MaxFileSize is the per-file limit for submission attachments in bytes (default: 3MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"3145728"`

	// MaxMailAttachmentSize is the per-file limit for outgoing mail attachments (default: 10MB)
	MaxMailAttachmentSize int64 `env:"MAIL_MAX_ATTACHMENT_SIZE" default:"10485760"`

	// MaxMailAttachments caps attachments per outgoing message (default: 5)
	MaxMailAttachments int `env:"MAIL_MAX_ATTACHMENTS" default:"5"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
