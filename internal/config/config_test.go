package config

import (
	"testing"
)

func validConfig() *Config {
	cfg := Load()
	cfg.SlackSigningSecret = "signing-secret"
	cfg.SlackBotToken = "xoxb-test"
	cfg.JiraClientID = "client-id"
	cfg.JiraClientSecret = "client-secret"
	cfg.JiraRedirectURI = "https://bridge.example.com/jira/oauth2/callback"
	cfg.TokenEncryptionKey = "a-long-enough-encryption-key"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected default database type sqlite, got %s", cfg.DatabaseType)
	}
	if cfg.JiraAuthorizeURL != "https://auth.atlassian.com/authorize" {
		t.Errorf("unexpected default authorize URL: %s", cfg.JiraAuthorizeURL)
	}
	if cfg.UsesRedis() {
		t.Error("expected Redis to be disabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.DatabaseType != "postgres" {
		t.Errorf("expected database type postgres, got %s", cfg.DatabaseType)
	}
	if !cfg.UsesRedis() {
		t.Error("expected Redis to be enabled")
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing signing secret", func(c *Config) { c.SlackSigningSecret = "" }},
		{"missing bot token", func(c *Config) { c.SlackBotToken = "" }},
		{"missing client id", func(c *Config) { c.JiraClientID = "" }},
		{"missing client secret", func(c *Config) { c.JiraClientSecret = "" }},
		{"missing redirect uri", func(c *Config) { c.JiraRedirectURI = "" }},
		{"missing encryption key", func(c *Config) { c.TokenEncryptionKey = "" }},
		{"short encryption key", func(c *Config) { c.TokenEncryptionKey = "short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = "not-a-port" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"bad database type", func(c *Config) { c.DatabaseType = "oracle" }},
		{"bad redis db", func(c *Config) { c.RedisAddress = "redis:6379"; c.RedisDB = "16" }},
		{"bad redis pool size", func(c *Config) { c.RedisAddress = "redis:6379"; c.RedisPoolSize = "0" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_PostgresRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseType = "postgres"
	cfg.PostgresHost = ""

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing postgres host")
	}

	cfg = validConfig()
	cfg.DatabaseType = "postgres"
	cfg.PostgresPort = "abc"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid postgres port")
	}
}
