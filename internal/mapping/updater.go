package mapping

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"slack-jira-bridge/internal/common/errors"
	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/jira"
)

// issueKeyPattern matches tracker issue keys like PROJ-42.
var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]+-\d+$`)

// Updater resolves an issue's mapped field and writes a new value to it.
type Updater struct {
	mappings *Service
	client   *jira.Client
	logger   logging.Logger
}

// NewUpdater creates an updater.
func NewUpdater(mappings *Service, client *jira.Client, logger logging.Logger) *Updater {
	return &Updater{
		mappings: mappings,
		client:   client,
		logger:   logger,
	}
}

// UpdateResult describes a completed field update for user-facing output.
type UpdateResult struct {
	IssueKey   string
	ProjectKey string
	FieldName  string
	Value      string
}

// Confirmation renders the ephemeral confirmation text, with a progress bar
// when the value is a percentage.
func (r *UpdateResult) Confirmation() string {
	if n, err := strconv.ParseFloat(r.Value, 64); err == nil && n >= 0 && n <= 100 {
		filled := int(n / 10)
		bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
		return fmt.Sprintf("%s updated: %s %s%%", r.IssueKey, bar, r.Value)
	}
	return fmt.Sprintf("%s updated: %s set to %s", r.IssueKey, r.FieldName, r.Value)
}

// Update validates the issue key, resolves the mapped field through the
// issue's project, and writes the value.
func (u *Updater) Update(ctx context.Context, ownerID, issueKey, rawValue string) (*UpdateResult, error) {
	issueKey = strings.ToUpper(strings.TrimSpace(issueKey))
	if !issueKeyPattern.MatchString(issueKey) {
		return nil, errors.ValidationError(fmt.Sprintf("%q is not a valid issue key", issueKey))
	}

	rawValue = strings.TrimSpace(rawValue)
	if rawValue == "" {
		return nil, errors.ValidationError("a value is required")
	}

	projectKey, err := u.client.FetchIssueProjectKey(ctx, ownerID, issueKey)
	if err != nil {
		return nil, err
	}

	mapping, err := u.mappings.GetProgressField(ctx, ownerID, projectKey)
	if err != nil {
		return nil, err
	}

	value, err := shapeValue(mapping.FieldType, rawValue)
	if err != nil {
		return nil, err
	}

	if err := u.client.UpdateIssueField(ctx, ownerID, issueKey, mapping.FieldID, value); err != nil {
		return nil, err
	}

	u.logger.Info("progress update applied",
		logging.String("owner_id", ownerID),
		logging.String("issue_key", issueKey),
		logging.String("field_id", mapping.FieldID))

	return &UpdateResult{
		IssueKey:   issueKey,
		ProjectKey: projectKey,
		FieldName:  mapping.FieldID,
		Value:      rawValue,
	}, nil
}

// shapeValue converts the raw text into the JSON value the field's type
// expects.
func shapeValue(fieldType, raw string) (interface{}, error) {
	switch fieldType {
	case "number":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("%q is not a number", raw))
		}
		return n, nil
	case "option":
		return map[string]string{"value": raw}, nil
	default:
		return raw, nil
	}
}
