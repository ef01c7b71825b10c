package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Collector CollectorConfig
	Provider  ProviderConfig
	Auth      AuthConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// MongoDBConfig holds MongoDB connection configuration. When Enabled is
// false the service runs on the in-memory store instead.
type MongoDBConfig struct {
	Enabled        bool
	URI            string
	Database       string
	CollectionName string
	Timeout        time.Duration
}

// CollectorConfig holds page signal collector configuration
type CollectorConfig struct {
	FetchTimeout time.Duration
	UserAgent    string
	CacheTTL     time.Duration
}

// ProviderConfig holds analysis provider (LLM API) configuration
type ProviderConfig struct {
	Endpoint        string
	APIVersion      string
	Credential      string
	DefaultModel    string
	MaxTokens       int
	Temperature     float64
	CredentialTests float64 // allowed credential tests per second
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	AdminKey string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string
	Verbose bool
}

// New creates a new Config with values from environment variables
func New() (*Config, error) {
	port := getEnv("PORT", "9090")
	readTimeout, err := strconv.Atoi(getEnv("READ_TIMEOUT", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := strconv.Atoi(getEnv("WRITE_TIMEOUT", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := strconv.Atoi(getEnv("SHUTDOWN_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	fetchTimeout, err := strconv.Atoi(getEnv("FETCH_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}

	mongoTimeout, err := strconv.Atoi(getEnv("MONGO_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONGO_TIMEOUT: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("SIGNAL_CACHE_TTL", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNAL_CACHE_TTL: %w", err)
	}

	maxTokens, err := strconv.Atoi(getEnv("PROVIDER_MAX_TOKENS", "4096"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_MAX_TOKENS: %w", err)
	}

	temperature, err := strconv.ParseFloat(getEnv("PROVIDER_TEMPERATURE", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TEMPERATURE: %w", err)
	}

	credentialTests, err := strconv.ParseFloat(getEnv("CREDENTIAL_TESTS_PER_SEC", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CREDENTIAL_TESTS_PER_SEC: %w", err)
	}

	mongoEnabled, err := strconv.ParseBool(getEnv("MONGO_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONGO_ENABLED: %w", err)
	}

	verbose, err := strconv.ParseBool(getEnv("VERBOSE_LOGGING", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERBOSE_LOGGING: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     time.Duration(readTimeout) * time.Second,
			WriteTimeout:    time.Duration(writeTimeout) * time.Second,
			ShutdownTimeout: time.Duration(shutdownTimeout) * time.Second,
		},
		MongoDB: MongoDBConfig{
			Enabled:        mongoEnabled,
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DB", "seo_audit"),
			CollectionName: getEnv("MONGO_COLLECTION", "audits"),
			Timeout:        time.Duration(mongoTimeout) * time.Second,
		},
		Collector: CollectorConfig{
			FetchTimeout: time.Duration(fetchTimeout) * time.Second,
			UserAgent:    getEnv("USER_AGENT", "SEOAudit/1.0"),
			CacheTTL:     time.Duration(cacheTTL) * time.Second,
		},
		Provider: ProviderConfig{
			Endpoint:        getEnv("PROVIDER_ENDPOINT", "https://api.anthropic.com/v1/messages"),
			APIVersion:      getEnv("PROVIDER_API_VERSION", "2023-06-01"),
			Credential:      getEnv("PROVIDER_CREDENTIAL", ""),
			DefaultModel:    getEnv("PROVIDER_MODEL", "claude-sonnet-4-20250514"),
			MaxTokens:       maxTokens,
			Temperature:     temperature,
			CredentialTests: credentialTests,
		},
		Auth: AuthConfig{
			AdminKey: getEnv("ADMIN_API_KEY", ""),
		},
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Verbose: verbose,
		},
	}, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
