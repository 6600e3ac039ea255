package app

import (
	"github.com/gorilla/mux"

	"slack-jira-bridge/internal/handlers"
	"slack-jira-bridge/internal/middleware"
)

// SetupRoutes configures the bridge's HTTP routes.
func SetupRoutes(router *mux.Router, h *handlers.Handlers) {
	router.Use(middleware.LoggingMiddleware)

	// Endpoints the chat platform posts to; both verify the request
	// signature themselves before reading anything else
	router.HandleFunc("/slack/commands", h.HandleSlashCommand).Methods("POST")
	router.HandleFunc("/slack/interactions", h.HandleInteraction).Methods("POST")

	// OAuth browser surface
	router.HandleFunc("/jira/oauth2/authorize", h.HandleAuthorize).Methods("GET")
	router.HandleFunc("/jira/oauth2/callback", h.HandleOAuthCallback).Methods("GET")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
