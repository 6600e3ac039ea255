// Package app wires the bridge's components together and owns their
// lifecycle.
package app

import (
	"context"
	"strconv"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/config"
	"slack-jira-bridge/internal/crypto"
	"slack-jira-bridge/internal/handlers"
	"slack-jira-bridge/internal/identity"
	"slack-jira-bridge/internal/jira"
	"slack-jira-bridge/internal/mapping"
	"slack-jira-bridge/internal/oauth"
	"slack-jira-bridge/internal/redis"
	"slack-jira-bridge/internal/signature"
	"slack-jira-bridge/internal/slack"
	"slack-jira-bridge/internal/storage"
)

// App holds the bridge's wired components.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Redis    *redis.Client
	OAuth    *oauth.Manager
	Handlers *handlers.Handlers

	janitor *oauth.StateJanitor
}

// New builds the application from validated configuration. Redis is
// optional; without it the state store and field lookups fall back to SQL
// and direct API calls.
func New(cfg *config.Config) (*App, error) {
	logger := logging.GetGlobalLogger()

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = newRedis(cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	cipher, err := crypto.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Redis states expire on their own; the SQL backend needs the janitor
	var states oauth.StateStore
	var janitor *oauth.StateJanitor
	if redisClient != nil {
		states = oauth.NewRedisStateStore(redisClient)
	} else {
		states = oauth.NewSQLStateStore(store)
		janitor = oauth.NewStateJanitor(store, logger)
	}

	oauthManager := oauth.NewManager(oauth.Config{
		ClientID:     cfg.JiraClientID,
		ClientSecret: cfg.JiraClientSecret,
		RedirectURI:  cfg.JiraRedirectURI,
		Scopes:       cfg.JiraScopes,
		AuthorizeURL: cfg.JiraAuthorizeURL,
		TokenURL:     cfg.JiraTokenURL,
		ResourcesURL: cfg.JiraResourcesURL,
	}, states, store, cipher, logger)

	resolver := identity.NewResolver(store)
	jiraClient := jira.NewClient(cfg.JiraGatewayURL, oauthManager, resolver, logger)
	fieldSvc := jira.NewFieldService(jiraClient, redisClient, logger)
	slackClient := slack.NewClient(cfg.SlackAPIURL, cfg.SlackBotToken, logger)
	mappings := mapping.NewService(store, logger)
	updater := mapping.NewUpdater(mappings, jiraClient, logger)

	h := handlers.New(cfg, signature.NewVerifier(logger), oauthManager, slackClient,
		fieldSvc, mappings, updater, store, redisClient, logger)

	return &App{
		Config:   cfg,
		Store:    store,
		Redis:    redisClient,
		OAuth:    oauthManager,
		Handlers: h,
		janitor:  janitor,
	}, nil
}

// Start launches background work, currently just the state janitor.
func (a *App) Start() error {
	if a.janitor != nil {
		return a.janitor.Start()
	}
	return nil
}

// Shutdown stops background work. The HTTP server is shut down separately.
func (a *App) Shutdown(ctx context.Context) error {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	return nil
}

// Cleanup releases storage and cache connections.
func (a *App) Cleanup() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logging.Warn("failed to close redis client", logging.Err(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		logging.Warn("failed to close store", logging.Err(err))
	}
}

func newStore(cfg *config.Config) (storage.Store, error) {
	return storage.New(storage.Config{
		Type: cfg.DatabaseType,
		Path: cfg.DatabasePath,
		Postgres: storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		},
	})
}

func newRedis(cfg *config.Config) (*redis.Client, error) {
	db, _ := strconv.Atoi(cfg.RedisDB)
	poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)
	return redis.NewClient(&redis.Config{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       db,
		PoolSize: poolSize,
	})
}
