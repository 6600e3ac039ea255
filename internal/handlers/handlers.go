// Package handlers implements the bridge's HTTP surface: the slash-command
// and interactivity endpoints the chat platform posts to, the OAuth
// authorize/callback pages, and the health check.
package handlers

import (
	"encoding/json"
	"net/http"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/config"
	"slack-jira-bridge/internal/jira"
	"slack-jira-bridge/internal/mapping"
	"slack-jira-bridge/internal/oauth"
	"slack-jira-bridge/internal/redis"
	"slack-jira-bridge/internal/signature"
	"slack-jira-bridge/internal/slack"
	"slack-jira-bridge/internal/storage"
)

type Handlers struct {
	config   *config.Config
	verifier *signature.Verifier
	oauth    *oauth.Manager
	slack    *slack.Client
	fields   *jira.FieldService
	mappings *mapping.Service
	updater  *mapping.Updater
	store    storage.Store
	redis    *redis.Client
	logger   logging.Logger
}

func New(
	cfg *config.Config,
	verifier *signature.Verifier,
	oauthManager *oauth.Manager,
	slackClient *slack.Client,
	fields *jira.FieldService,
	mappings *mapping.Service,
	updater *mapping.Updater,
	store storage.Store,
	redisClient *redis.Client,
	logger logging.Logger,
) *Handlers {
	return &Handlers{
		config:   cfg,
		verifier: verifier,
		oauth:    oauthManager,
		slack:    slackClient,
		fields:   fields,
		mappings: mappings,
		updater:  updater,
		store:    store,
		redis:    redisClient,
		logger:   logger,
	}
}

// respondJSON writes a JSON response with the given status code.
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to write response", logging.Err(err))
	}
}

// ephemeral writes a JSON command response only the invoking user sees.
func (h *Handlers) ephemeral(w http.ResponseWriter, text string) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}
