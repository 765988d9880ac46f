// Package config provides configuration management for the literature assistant.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the literature assistant.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings for the delivery audit log.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// NLU contains NLU provider settings for query classification and expansion.
	NLU NLUConfig `mapstructure:"nlu"`
	// PubMed contains PubMed retrieval settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Search contains search orchestration policy.
	Search SearchConfig `mapstructure:"search"`
	// Synthesis contains evidence synthesis policy.
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	// Delivery contains SMTP delivery settings.
	Delivery DeliveryConfig `mapstructure:"delivery"`
	// Conversation contains session lifecycle settings.
	Conversation ConversationConfig `mapstructure:"conversation"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is the maximum duration to keep idle connections open.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled controls whether the delivery audit log is persisted.
	// When false, delivery records live only in session memory.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// NLUConfig holds NLU provider configuration.
type NLUConfig struct {
	// Provider is the NLU provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Temperature is the model temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// Timeout is the timeout for NLU API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// MaxExpansionTerms caps the number of expansion terms appended to a query.
	MaxExpansionTerms int `mapstructure:"max_expansion_terms"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from LITASSIST_NLU_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from LITASSIST_NLU_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// PubMedConfig holds PubMed retrieval settings.
type PubMedConfig struct {
	// Enabled controls whether the PubMed source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the NCBI API key (loaded from LITASSIST_PUBMED_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// SearchConfig holds search orchestration policy.
type SearchConfig struct {
	// MaxResults is the maximum number of articles returned per search.
	MaxResults int `mapstructure:"max_results"`
	// RetryAttempts is the number of immediate retries on transient provider errors.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// Timeout is the overall per-search deadline.
	Timeout time.Duration `mapstructure:"timeout"`
}

// SynthesisConfig holds evidence synthesis policy.
type SynthesisConfig struct {
	// CitationThreshold is the article count at or below which the narrative
	// cites every parsed article individually. Above it, the narrative
	// summarizes by theme.
	CitationThreshold int `mapstructure:"citation_threshold"`
}

// DeliveryConfig holds SMTP delivery settings.
type DeliveryConfig struct {
	// SMTPHost is the SMTP server hostname.
	SMTPHost string `mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port (default: 587).
	SMTPPort int `mapstructure:"smtp_port"`
	// SMTPUser is the SMTP username.
	SMTPUser string `mapstructure:"smtp_user"`
	// SMTPPassword is the SMTP password (loaded from LITASSIST_DELIVERY_SMTP_PASSWORD env var).
	SMTPPassword string `mapstructure:"-"`
	// From is the sender address.
	From string `mapstructure:"from"`
	// DefaultRecipient, when set, is used for sessions that never supply an
	// address, skipping the recipient prompt.
	DefaultRecipient string `mapstructure:"default_recipient"`
	// Timeout is the timeout for transport sends.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ConversationConfig holds session lifecycle settings.
type ConversationConfig struct {
	// SessionTTL is how long an idle session is retained before expiry.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// SweepInterval is how often expired sessions are purged.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("LITASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/literature-assistant")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.NLU.OpenAI.APIKey = os.Getenv("LITASSIST_NLU_OPENAI_API_KEY")
	cfg.NLU.Anthropic.APIKey = os.Getenv("LITASSIST_NLU_ANTHROPIC_API_KEY")
	cfg.PubMed.APIKey = os.Getenv("LITASSIST_PUBMED_API_KEY")
	cfg.Delivery.SMTPPassword = os.Getenv("LITASSIST_DELIVERY_SMTP_PASSWORD")
	cfg.Database.Password = os.Getenv("LITASSIST_DATABASE_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "litassist")
	v.SetDefault("database.name", "literature_assistant")
	// Default to "require" for production security. Use LITASSIST_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// NLU defaults
	v.SetDefault("nlu.provider", "openai")
	v.SetDefault("nlu.temperature", 0.0)
	v.SetDefault("nlu.timeout", "30s")
	v.SetDefault("nlu.max_retries", 2)
	v.SetDefault("nlu.max_expansion_terms", 8)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("nlu.openai.model", "gpt-4-turbo")
	v.SetDefault("nlu.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("nlu.anthropic.model", "claude-3-sonnet-20240229")
	v.SetDefault("nlu.anthropic.base_url", "https://api.anthropic.com")

	// PubMed defaults
	v.SetDefault("pubmed.enabled", true)
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key

	// Search policy defaults
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.retry_attempts", 1)
	v.SetDefault("search.timeout", "30s")

	// Synthesis policy defaults
	v.SetDefault("synthesis.citation_threshold", 10)

	// Delivery defaults
	v.SetDefault("delivery.smtp_host", "smtp.gmail.com")
	v.SetDefault("delivery.smtp_port", 587)
	v.SetDefault("delivery.smtp_user", "")
	v.SetDefault("delivery.from", "")
	v.SetDefault("delivery.default_recipient", "")
	v.SetDefault("delivery.timeout", "30s")

	// Conversation defaults
	v.SetDefault("conversation.session_ttl", "30m")
	v.SetDefault("conversation.sweep_interval", "5m")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate that the configured NLU provider has its required API key set.
	switch strings.ToLower(c.NLU.Provider) {
	case "openai":
		if c.NLU.OpenAI.APIKey == "" {
			return fmt.Errorf("NLU provider %q requires LITASSIST_NLU_OPENAI_API_KEY to be set", c.NLU.Provider)
		}
	case "anthropic":
		if c.NLU.Anthropic.APIKey == "" {
			return fmt.Errorf("NLU provider %q requires LITASSIST_NLU_ANTHROPIC_API_KEY to be set", c.NLU.Provider)
		}
	default:
		return fmt.Errorf("unsupported NLU provider: %q", c.NLU.Provider)
	}

	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search max_results must be positive")
	}
	if c.Search.RetryAttempts < 0 {
		return fmt.Errorf("search retry_attempts must not be negative")
	}
	if c.Synthesis.CitationThreshold <= 0 {
		return fmt.Errorf("synthesis citation_threshold must be positive")
	}

	if c.Delivery.SMTPHost == "" {
		return fmt.Errorf("delivery smtp_host is required")
	}
	if c.Delivery.SMTPPort <= 0 || c.Delivery.SMTPPort > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", c.Delivery.SMTPPort)
	}
	if c.Delivery.From == "" {
		return fmt.Errorf("delivery from address is required")
	}

	if c.Conversation.SessionTTL <= 0 {
		return fmt.Errorf("conversation session_ttl must be positive")
	}

	return nil
}
