package jira

import (
	"context"
	"sort"
	"strings"
	"time"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/redis"
)

// fieldCacheTTL bounds how stale the cached field list may get. Field
// definitions change rarely; ten minutes keeps the suggestion endpoint fast
// without going stale for long after an admin adds a field.
const fieldCacheTTL = 10 * time.Minute

// maxFieldSuggestions caps what a single suggestion response returns.
const maxFieldSuggestions = 100

// FieldService serves field lookups and typeahead suggestions, backed by a
// short-lived Redis cache of the owner's field list.
type FieldService struct {
	client *Client
	cache  *redis.Client
	logger logging.Logger
}

// NewFieldService creates a field service. cache may be nil, in which case
// every call hits the tracker.
func NewFieldService(client *Client, cache *redis.Client, logger logging.Logger) *FieldService {
	return &FieldService{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// CustomFields returns the owner's custom field definitions, cached.
func (s *FieldService) CustomFields(ctx context.Context, ownerID string) ([]Field, error) {
	cacheKey := "jira:fields:" + ownerID

	if s.cache != nil {
		var cached []Field
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	all, err := s.client.FetchAllFields(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	custom := make([]Field, 0, len(all))
	for _, f := range all {
		if strings.HasPrefix(f.ID, "customfield_") {
			custom = append(custom, f)
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, custom, fieldCacheTTL); err != nil {
			s.logger.Warn("failed to cache field list", logging.Err(err))
		}
	}

	return custom, nil
}

// SearchFields returns custom fields whose names contain the query,
// case-insensitively, capped at maxFieldSuggestions. An empty query matches
// everything.
func (s *FieldService) SearchFields(ctx context.Context, ownerID, query string) ([]Field, error) {
	fields, err := s.CustomFields(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	matches := make([]Field, 0, maxFieldSuggestions)
	for _, f := range fields {
		if query != "" && !strings.Contains(strings.ToLower(f.Name), query) {
			continue
		}
		matches = append(matches, f)
		if len(matches) == maxFieldSuggestions {
			break
		}
	}
	return matches, nil
}

// InvalidateFields drops the owner's cached field list.
func (s *FieldService) InvalidateFields(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, "jira:fields:"+ownerID); err != nil {
		s.logger.Warn("failed to invalidate field cache", logging.Err(err))
	}
}
