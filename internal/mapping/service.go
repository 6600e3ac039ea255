// Package mapping stores which tracker field each project's progress updates
// target and orchestrates the update itself.
package mapping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slack-jira-bridge/internal/common/errors"
	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/storage"
)

// Service manages per (owner, project) field mappings.
type Service struct {
	store  storage.Store
	logger logging.Logger
}

// NewService creates a mapping service over the given store.
func NewService(store storage.Store, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// SaveMapping records the progress field for the owner's project, replacing
// any previous mapping. Project keys are stored uppercased so lookups from
// issue keys always match.
func (s *Service) SaveMapping(ctx context.Context, ownerID, projectKey, fieldID, fieldType, allowedValues string) error {
	projectKey = strings.ToUpper(strings.TrimSpace(projectKey))
	if projectKey == "" {
		return errors.ValidationError("project key is required")
	}
	if fieldID == "" {
		return errors.ValidationError("field id is required")
	}

	err := s.store.UpsertMapping(ctx, &storage.FieldMapping{
		OwnerID:       ownerID,
		ProjectKey:    projectKey,
		FieldID:       fieldID,
		FieldType:     fieldType,
		AllowedValues: allowedValues,
		UpdatedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}

	s.logger.Info("field mapping saved",
		logging.String("owner_id", ownerID),
		logging.String("project_key", projectKey),
		logging.String("field_id", fieldID))
	return nil
}

// GetProgressField returns the mapping for the owner's project, or a
// not-found error when none was saved.
func (s *Service) GetProgressField(ctx context.Context, ownerID, projectKey string) (*storage.FieldMapping, error) {
	projectKey = strings.ToUpper(strings.TrimSpace(projectKey))

	mapping, err := s.store.GetMapping(ctx, ownerID, projectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}
	if mapping == nil {
		return nil, errors.NotFoundError(fmt.Sprintf("mapping for project %s", projectKey))
	}
	return mapping, nil
}
