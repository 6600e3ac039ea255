// Package slack is a minimal client for the chat platform's Web API plus
// the payload types the bridge receives from it. Only the calls the bridge
// makes are implemented: ephemeral messages and modal views.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slack-jira-bridge/internal/common/errors"
	commonhttp "slack-jira-bridge/internal/common/http"
	"slack-jira-bridge/internal/common/logging"
)

// DefaultAPIURL is the production Web API base.
const DefaultAPIURL = "https://slack.com/api"

// Client calls the chat platform's Web API with a bot token.
type Client struct {
	apiURL     string
	botToken   string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a Web API client. apiURL may be empty to use the
// production endpoint.
func NewClient(apiURL, botToken string, logger logging.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		botToken:   botToken,
		httpClient: commonhttp.NewHTTPClientWithTimeout(10 * time.Second),
		logger:     logger,
	}
}

// PostEphemeral sends a message only the given user can see.
func (c *Client) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	return c.call(ctx, "chat.postEphemeral", map[string]interface{}{
		"channel": channelID,
		"user":    userID,
		"text":    text,
	})
}

// OpenView opens a modal in response to a trigger ID. Trigger IDs expire
// after three seconds, so callers should invoke this promptly.
func (c *Client) OpenView(ctx context.Context, triggerID string, view map[string]interface{}) error {
	return c.call(ctx, "views.open", map[string]interface{}{
		"trigger_id": triggerID,
		"view":       view,
	})
}

// apiResponse is the envelope every Web API method returns.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.UpstreamError(fmt.Sprintf("%s request failed", method), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return errors.UpstreamError(fmt.Sprintf("%s returned error %q", method, apiResp.Error), nil)
	}

	c.logger.Debug("web api call succeeded", logging.String("method", method))
	return nil
}
