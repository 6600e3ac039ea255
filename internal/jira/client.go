// Package jira is a minimal client for the tracker REST API, scoped to the
// calls the bridge needs: resolving an issue's project, listing fields, and
// writing a single field value. All calls go through the cloud gateway using
// the owner's OAuth token.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slack-jira-bridge/internal/circuitbreaker"
	"slack-jira-bridge/internal/common/errors"
	commonhttp "slack-jira-bridge/internal/common/http"
	"slack-jira-bridge/internal/common/logging"
)

// TokenSource hands out a valid access token for an owner. Implemented by
// the OAuth manager.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, ownerID string) (string, error)
}

// TenantSource resolves the cloud ID an owner's calls should target.
type TenantSource interface {
	FindRemoteTenant(ctx context.Context, ownerID string) (string, error)
}

// Field is one field definition from the tracker's field list.
type Field struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Custom bool        `json:"custom"`
	Schema FieldSchema `json:"schema"`
}

// FieldSchema describes a field's value type.
type FieldSchema struct {
	Type   string `json:"type"`
	Custom string `json:"custom"`
}

// Client calls the tracker REST API on behalf of connected owners.
type Client struct {
	gatewayURL string
	tokens     TokenSource
	tenants    TenantSource
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	logger     logging.Logger
}

// NewClient creates a tracker API client. gatewayURL is the cloud gateway
// base, normally https://api.atlassian.com.
func NewClient(gatewayURL string, tokens TokenSource, tenants TenantSource, logger logging.Logger) *Client {
	return &Client{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		tokens:     tokens,
		tenants:    tenants,
		httpClient: commonhttp.NewHTTPClientWithTimeout(15 * time.Second),
		breaker:    circuitbreaker.NewGoBreaker("tracker-api", circuitbreaker.TrackerAPIConfig, logger),
		logger:     logger,
	}
}

// FetchIssueProjectKey returns the project key of the given issue.
func (c *Client) FetchIssueProjectKey(ctx context.Context, ownerID, issueKey string) (string, error) {
	var payload struct {
		Fields struct {
			Project struct {
				Key string `json:"key"`
			} `json:"project"`
		} `json:"fields"`
	}

	path := fmt.Sprintf("/rest/api/3/issue/%s?fields=project", url.PathEscape(issueKey))
	if err := c.get(ctx, ownerID, path, &payload); err != nil {
		return "", err
	}
	if payload.Fields.Project.Key == "" {
		return "", errors.NotFoundError(fmt.Sprintf("project for issue %s", issueKey))
	}
	return payload.Fields.Project.Key, nil
}

// FetchAllFields lists every field defined in the tracker instance.
func (c *Client) FetchAllFields(ctx context.Context, ownerID string) ([]Field, error) {
	var fields []Field
	if err := c.get(ctx, ownerID, "/rest/api/3/field", &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// FindFieldIDByName resolves a field name to its ID, case-insensitively.
func (c *Client) FindFieldIDByName(ctx context.Context, ownerID, name string) (*Field, error) {
	fields, err := c.FetchAllFields(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	for i := range fields {
		if strings.EqualFold(fields[i].Name, name) {
			return &fields[i], nil
		}
	}
	return nil, errors.NotFoundError(fmt.Sprintf("field %q", name))
}

// UpdateIssueField writes a single field value on the issue. The value must
// already be shaped for the field's type.
func (c *Client) UpdateIssueField(ctx context.Context, ownerID, issueKey, fieldID string, value interface{}) error {
	body := map[string]interface{}{
		"fields": map[string]interface{}{
			fieldID: value,
		},
	}

	path := fmt.Sprintf("/rest/api/3/issue/%s", url.PathEscape(issueKey))
	if err := c.put(ctx, ownerID, path, body); err != nil {
		return err
	}

	c.logger.Info("issue field updated",
		logging.String("owner_id", ownerID),
		logging.String("issue_key", issueKey),
		logging.String("field_id", fieldID))
	return nil
}

func (c *Client) get(ctx context.Context, ownerID, path string, dest interface{}) error {
	return c.do(ctx, ownerID, http.MethodGet, path, nil, dest)
}

func (c *Client) put(ctx context.Context, ownerID, path string, body interface{}) error {
	return c.do(ctx, ownerID, http.MethodPut, path, body, nil)
}

func (c *Client) do(ctx context.Context, ownerID, method, path string, body, dest interface{}) error {
	token, err := c.tokens.GetValidAccessToken(ctx, ownerID)
	if err != nil {
		return err
	}

	cloudID, err := c.tenants.FindRemoteTenant(ctx, ownerID)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := fmt.Sprintf("%s/ex/jira/%s%s", c.gatewayURL, cloudID, path)

	return c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return errors.NotFoundError(fmt.Sprintf("%s %s", method, path))
		case resp.StatusCode >= 400:
			return errors.UpstreamError(
				fmt.Sprintf("tracker returned %d for %s %s", resp.StatusCode, method, path),
				fmt.Errorf("%s", strings.TrimSpace(string(data))))
		}

		if dest != nil {
			if err := json.Unmarshal(data, dest); err != nil {
				return fmt.Errorf("failed to decode tracker response: %w", err)
			}
		}
		return nil
	})
}
