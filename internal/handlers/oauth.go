package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/oauth"
)

// HandleAuthorize serves GET /jira/oauth2/authorize. It issues a fresh
// state for the user and redirects to the provider's consent page.
func (h *Handlers) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}

	authURL, err := h.oauth.CreateAuthorizationURL(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to create authorization URL", err, logging.String("user_id", userID))
		h.renderResultPage(w, http.StatusInternalServerError, "Connection failed",
			"We could not start the authorization flow. Go back to the chat and try again.")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleOAuthCallback serves GET /jira/oauth2/callback, the redirect target
// of the provider's consent page. It completes the flow and renders a plain
// HTML result page the user can close.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code, state := query.Get("code"), query.Get("state")

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("authorization denied at provider", logging.String("error", errParam))
		h.renderResultPage(w, http.StatusBadRequest, "Connection cancelled",
			"Authorization was not granted. Go back to the chat and run the connect command again if this was a mistake.")
		return
	}
	if code == "" || state == "" {
		h.renderResultPage(w, http.StatusBadRequest, "Connection failed",
			"The callback is missing required parameters.")
		return
	}

	result, err := h.oauth.HandleCallback(r.Context(), code, state)
	if err != nil {
		h.logger.Warn("oauth callback failed", logging.Err(err))
		h.renderResultPage(w, http.StatusBadRequest, "Connection failed", callbackFailureText(err))
		return
	}

	h.notifyConnected(result)

	title := "Connected to Jira"
	message := "Your account is connected. You can close this window and return to the chat."
	if result.Reconnect {
		title = "Reconnected to Jira"
		message = "Your connection was refreshed. You can close this window and return to the chat."
	}
	h.renderResultPage(w, http.StatusOK, title, message)
}

// notifyConnected sends a best-effort confirmation into the user's DM.
func (h *Handlers) notifyConnected(result *oauth.CallbackResult) {
	text := "Your Jira account is connected. Try `/jira update ISSUE-123 50`."
	if result.Reconnect {
		text = "Your Jira connection was refreshed."
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.slack.PostEphemeral(ctx, result.OwnerID, result.OwnerID, text); err != nil {
			h.logger.Debug("connection confirmation message not delivered",
				logging.String("user_id", result.OwnerID),
				logging.Err(err))
		}
	}()
}

func callbackFailureText(err error) string {
	switch {
	case stderrors.Is(err, oauth.ErrInvalidState):
		return "This link has expired or was already used. Go back to the chat and run the connect command again."
	case stderrors.Is(err, oauth.ErrNoAccessibleResource):
		return "Your account has no accessible Jira site. Check your Jira permissions and try again."
	default:
		return "Something went wrong completing the connection. Go back to the chat and try again."
	}
}

func (h *Handlers) renderResultPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, resultPageTemplate, html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
}

const resultPageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>%s</title>
  <style>
    body { font-family: -apple-system, sans-serif; display: flex; justify-content: center; margin-top: 15vh; }
    .card { max-width: 28rem; padding: 2rem; border: 1px solid #ddd; border-radius: 8px; text-align: center; }
  </style>
</head>
<body>
  <div class="card">
    <h1>%s</h1>
    <p>%s</p>
  </div>
</body>
</html>
`
