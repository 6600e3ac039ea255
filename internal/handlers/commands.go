package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slack-jira-bridge/internal/common/errors"
	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/crypto"
	"slack-jira-bridge/internal/oauth"
	"slack-jira-bridge/internal/slack"
)

const usageText = "Usage: `/jira connect`, `/jira reconnect`, `/jira map`, `/jira update ISSUE-123 <value>`"

// maxCommandBody bounds how much of a command request is read before
// signature verification.
const maxCommandBody = 1 << 20

// HandleSlashCommand serves POST /slack/commands. The raw body is verified
// against the signing secret before any parsing; failures get a bare 401
// with no reason attached.
func (h *Handlers) HandleSlashCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readVerified(w, r)
	if !ok {
		return
	}

	cmd, err := slack.ParseCommand(body)
	if err != nil {
		h.logger.Warn("malformed command payload", logging.Err(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sub, rest := cmd.Subcommand()
	ctx := r.Context()

	switch sub {
	case "connect":
		h.handleConnect(ctx, w, cmd, false)
	case "reconnect":
		h.handleConnect(ctx, w, cmd, true)
	case "map":
		h.handleMap(ctx, w, cmd)
	case "update":
		h.handleUpdate(ctx, w, cmd, rest)
	default:
		h.ephemeral(w, usageText)
	}
}

// readVerified reads the raw body and checks the request signature. It
// writes the failure response itself and returns ok=false when the caller
// should stop.
func (h *Handlers) readVerified(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil, false
	}

	valid := h.verifier.Verify(
		h.config.SlackSigningSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
		body,
	)
	if !valid {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

func (h *Handlers) handleConnect(ctx context.Context, w http.ResponseWriter, cmd *slack.Command, force bool) {
	if !force && h.oauth.IsConnectedAndValid(ctx, cmd.UserID) {
		h.ephemeral(w, "You are already connected. Use `/jira reconnect` to connect again.")
		return
	}

	authURL, err := h.oauth.CreateAuthorizationURL(ctx, cmd.UserID)
	if err != nil {
		h.logger.Error("failed to create authorization URL", err, logging.String("user_id", cmd.UserID))
		h.ephemeral(w, "Something went wrong starting the connection. Please try again.")
		return
	}

	// Open the connect modal off the trigger ID; the ephemeral link below
	// is the fallback when the modal cannot be shown.
	if cmd.TriggerID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.slack.OpenView(ctx, cmd.TriggerID, slack.ConnectModal(authURL)); err != nil {
				h.logger.Warn("failed to open connect modal",
					logging.String("user_id", cmd.UserID),
					logging.Err(err))
			}
		}()
	}

	h.ephemeral(w, fmt.Sprintf("<%s|Click here to connect your Jira account>. The link expires in 10 minutes.", authURL))
}

func (h *Handlers) handleMap(ctx context.Context, w http.ResponseWriter, cmd *slack.Command) {
	if !h.oauth.IsConnectedAndValid(ctx, cmd.UserID) {
		h.ephemeral(w, "Connect your Jira account first with `/jira connect`.")
		return
	}

	// views.open needs the trigger ID before it expires, so the modal is
	// opened in the background and the command gets an immediate 200
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.slack.OpenView(ctx, cmd.TriggerID, slack.MappingModal()); err != nil {
			h.logger.Warn("failed to open mapping modal",
				logging.String("user_id", cmd.UserID),
				logging.Err(err))
		}
	}()

	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) handleUpdate(ctx context.Context, w http.ResponseWriter, cmd *slack.Command, args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		h.ephemeral(w, usageText)
		return
	}
	issueKey, value := parts[0], strings.TrimSpace(parts[1])

	result, err := h.updater.Update(ctx, cmd.UserID, issueKey, value)
	if err != nil {
		h.ephemeral(w, updateFailureText(err))
		return
	}

	h.ephemeral(w, result.Confirmation())
}

// updateFailureText maps an update error to a user-facing message without
// leaking internals.
func updateFailureText(err error) string {
	switch {
	case isNotConnected(err):
		return "Connect your Jira account first with `/jira connect`."
	case errors.IsType(err, errors.ErrTypeValidation):
		return err.Error()
	case errors.IsType(err, errors.ErrTypeNotFound):
		return "Couldn't find that issue, or its project has no mapped field yet. Run `/jira map` first."
	default:
		return "The update failed. Please try again."
	}
}

// isNotConnected matches every error whose remedy is reconnecting: no
// credential, a failed refresh, or a stored token that no longer decrypts.
func isNotConnected(err error) bool {
	return stderrors.Is(err, oauth.ErrNotConnected) ||
		stderrors.Is(err, oauth.ErrRefreshFailed) ||
		stderrors.Is(err, crypto.ErrDecryptionFailed)
}
