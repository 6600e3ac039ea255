package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "slack-jira-bridge/internal/common/errors"
	"slack-jira-bridge/internal/common/logging"
	redisclient "slack-jira-bridge/internal/redis"
)

type staticTokenSource string

func (s staticTokenSource) GetValidAccessToken(ctx context.Context, ownerID string) (string, error) {
	return string(s), nil
}

type staticTenantSource string

func (s staticTenantSource) FindRemoteTenant(ctx context.Context, ownerID string) (string, error) {
	return string(s), nil
}

type trackerFake struct {
	server     *httptest.Server
	fieldCalls int64
	lastAuth   string
	lastPath   string
	lastBody   map[string]interface{}

	fields      []Field
	issueStatus int
}

func newTrackerFake(t *testing.T) *trackerFake {
	t.Helper()

	f := &trackerFake{
		issueStatus: http.StatusOK,
		fields: []Field{
			{ID: "summary", Name: "Summary"},
			{ID: "customfield_10001", Name: "Progress", Custom: true, Schema: FieldSchema{Type: "number"}},
			{ID: "customfield_10002", Name: "Story Points", Custom: true, Schema: FieldSchema{Type: "number"}},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ex/jira/cloud-1/rest/api/3/field", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.fieldCalls, 1)
		f.lastAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(f.fields)
	})
	mux.HandleFunc("/ex/jira/cloud-1/rest/api/3/issue/", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		f.lastPath = r.URL.Path

		if f.issueStatus != http.StatusOK {
			w.WriteHeader(f.issueStatus)
			return
		}

		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"fields": map[string]interface{}{
					"project": map[string]string{"key": "PROJ"},
				},
			})
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&f.lastBody)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestClient(t *testing.T, fake *trackerFake) *Client {
	t.Helper()
	return NewClient(fake.server.URL, staticTokenSource("token-1"), staticTenantSource("cloud-1"), logging.NewDefaultLogger())
}

func TestClient_FetchIssueProjectKey(t *testing.T) {
	fake := newTrackerFake(t)
	client := newTestClient(t, fake)

	key, err := client.FetchIssueProjectKey(context.Background(), "U123", "PROJ-42")
	require.NoError(t, err)
	assert.Equal(t, "PROJ", key)
	assert.Equal(t, "Bearer token-1", fake.lastAuth)
	assert.Equal(t, "/ex/jira/cloud-1/rest/api/3/issue/PROJ-42", fake.lastPath)
}

func TestClient_FetchIssueProjectKey_NotFound(t *testing.T) {
	fake := newTrackerFake(t)
	fake.issueStatus = http.StatusNotFound
	client := newTestClient(t, fake)

	_, err := client.FetchIssueProjectKey(context.Background(), "U123", "GONE-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestClient_FindFieldIDByName(t *testing.T) {
	fake := newTrackerFake(t)
	client := newTestClient(t, fake)
	ctx := context.Background()

	field, err := client.FindFieldIDByName(ctx, "U123", "progress")
	require.NoError(t, err)
	assert.Equal(t, "customfield_10001", field.ID)

	_, err = client.FindFieldIDByName(ctx, "U123", "velocity")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestClient_UpdateIssueField(t *testing.T) {
	fake := newTrackerFake(t)
	client := newTestClient(t, fake)

	err := client.UpdateIssueField(context.Background(), "U123", "PROJ-42", "customfield_10001", 80)
	require.NoError(t, err)

	fields, ok := fake.lastBody["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 80, fields["customfield_10001"])
}

func TestClient_UpdateIssueField_UpstreamError(t *testing.T) {
	fake := newTrackerFake(t)
	fake.issueStatus = http.StatusBadRequest
	client := newTestClient(t, fake)

	err := client.UpdateIssueField(context.Background(), "U123", "PROJ-42", "customfield_10001", 80)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
}

func newTestFieldService(t *testing.T, fake *trackerFake) *FieldService {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewFieldService(newTestClient(t, fake), redisclient.NewClientFromRedis(rdb), logging.NewDefaultLogger())
}

func TestFieldService_CustomFieldsFiltersAndCaches(t *testing.T) {
	fake := newTrackerFake(t)
	svc := newTestFieldService(t, fake)
	ctx := context.Background()

	fields, err := svc.CustomFields(ctx, "U123")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Progress", fields[0].Name)
	assert.Equal(t, "Story Points", fields[1].Name)

	// Second call is served from cache
	_, err = svc.CustomFields(ctx, "U123")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&fake.fieldCalls))

	svc.InvalidateFields(ctx, "U123")
	_, err = svc.CustomFields(ctx, "U123")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&fake.fieldCalls))
}

func TestFieldService_SearchFields(t *testing.T) {
	fake := newTrackerFake(t)
	svc := newTestFieldService(t, fake)
	ctx := context.Background()

	matches, err := svc.SearchFields(ctx, "U123", "POINTS")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "customfield_10002", matches[0].ID)

	all, err := svc.SearchFields(ctx, "U123", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
