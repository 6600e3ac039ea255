// Package config loads the bridge's configuration from environment
// variables with sensible defaults and validates it before startup.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./bridge.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (empty disables Redis; SQL state
//     store and uncached field lookups are used instead)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Chat Platform:
//   - SLACK_SIGNING_SECRET: Request signing secret (required)
//   - SLACK_BOT_TOKEN: Bot token for Web API calls (required)
//   - SLACK_API_URL: Web API base URL override, used in tests
//
// Tracker OAuth:
//   - JIRA_CLIENT_ID: OAuth client ID (required)
//   - JIRA_CLIENT_SECRET: OAuth client secret (required)
//   - JIRA_REDIRECT_URI: Registered callback URL (required)
//   - JIRA_SCOPES: Requested scopes (default covers issue read/write and
//     offline_access)
//   - JIRA_AUTHORIZE_URL, JIRA_TOKEN_URL, JIRA_RESOURCES_URL,
//     JIRA_GATEWAY_URL: Provider endpoints, defaulted to Atlassian cloud
//
// Security Configuration:
//   - TOKEN_ENCRYPTION_KEY: Key encrypting stored OAuth tokens (required).
//     Base64-encoded 32 bytes are used directly; any other value is
//     PBKDF2-derived.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration values for the bridge. All fields
// correspond to environment variables; Load() fills them and Validate()
// must pass before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Chat platform credentials
	SlackSigningSecret string
	SlackBotToken      string
	SlackAPIURL        string

	// Tracker OAuth client registration and endpoints
	JiraClientID     string
	JiraClientSecret string
	JiraRedirectURI  string
	JiraScopes       string
	JiraAuthorizeURL string
	JiraTokenURL     string
	JiraResourcesURL string
	JiraGatewayURL   string

	// Encryption key for stored OAuth tokens
	TokenEncryptionKey string
}

// Load creates a Config from environment variables, applying defaults for
// anything unset. Call Validate() before using the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Database configuration
		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./bridge.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "slack_jira_bridge"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		// Redis configuration
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		// Chat platform
		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackAPIURL:        getEnv("SLACK_API_URL", ""),

		// Tracker OAuth
		JiraClientID:     getEnv("JIRA_CLIENT_ID", ""),
		JiraClientSecret: getEnv("JIRA_CLIENT_SECRET", ""),
		JiraRedirectURI:  getEnv("JIRA_REDIRECT_URI", ""),
		JiraScopes:       getEnv("JIRA_SCOPES", "read:jira-work write:jira-work read:jira-user offline_access"),
		JiraAuthorizeURL: getEnv("JIRA_AUTHORIZE_URL", "https://auth.atlassian.com/authorize"),
		JiraTokenURL:     getEnv("JIRA_TOKEN_URL", "https://auth.atlassian.com/oauth/token"),
		JiraResourcesURL: getEnv("JIRA_RESOURCES_URL", "https://api.atlassian.com/oauth/token/accessible-resources"),
		JiraGatewayURL:   getEnv("JIRA_GATEWAY_URL", "https://api.atlassian.com"),

		// Encryption configuration
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value
// if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// UsesRedis reports whether a Redis address was configured.
func (c *Config) UsesRedis() bool {
	return c.RedisAddress != ""
}

// Validate checks required fields, field formats, and cross-field
// dependencies. The application should refuse to start when it fails.
func (c *Config) Validate() error {
	if c.SlackSigningSecret == "" {
		return fmt.Errorf("SLACK_SIGNING_SECRET environment variable is required")
	}
	if c.SlackBotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN environment variable is required")
	}
	if c.JiraClientID == "" {
		return fmt.Errorf("JIRA_CLIENT_ID environment variable is required")
	}
	if c.JiraClientSecret == "" {
		return fmt.Errorf("JIRA_CLIENT_SECRET environment variable is required")
	}
	if c.JiraRedirectURI == "" {
		return fmt.Errorf("JIRA_REDIRECT_URI environment variable is required")
	}
	if c.TokenEncryptionKey == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY environment variable is required")
	}
	if len(c.TokenEncryptionKey) < 16 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least 16 characters")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	return nil
}
