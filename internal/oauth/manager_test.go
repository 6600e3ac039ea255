package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/crypto"
	"slack-jira-bridge/internal/storage"
)

const testCipherKey = "unit-test-encryption-secret"

type providerFake struct {
	server        *httptest.Server
	tokenCalls    int64
	resourceCalls int64

	tokenStatus   int
	tokenBody     map[string]interface{}
	resourceBody  []map[string]string
	lastGrantType string
}

func newProviderFake(t *testing.T) *providerFake {
	t.Helper()

	f := &providerFake{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]interface{}{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		},
		resourceBody: []map[string]string{
			{"id": "cloud-1", "name": "Acme", "url": "https://acme.example.com"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.tokenCalls, 1)

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastGrantType = body["grant_type"]

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_ = json.NewEncoder(w).Encode(f.tokenBody)
	})
	mux.HandleFunc("/oauth/accessible-resources", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.resourceCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.resourceBody)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestManager(t *testing.T, fake *providerFake) (*Manager, storage.Store) {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cipher, err := crypto.NewTokenCipher(testCipherKey)
	require.NoError(t, err)

	cfg := Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://bridge.example.com/jira/oauth2/callback",
		Scopes:       "read:jira-work write:jira-work offline_access",
		AuthorizeURL: "https://auth.example.com/authorize",
		TokenURL:     fake.server.URL + "/oauth/token",
		ResourcesURL: fake.server.URL + "/oauth/accessible-resources",
	}

	return NewManager(cfg, NewSQLStateStore(store), store, cipher, logging.NewDefaultLogger()), store
}

func completeFlow(t *testing.T, m *Manager, ownerID string) *CallbackResult {
	t.Helper()
	ctx := context.Background()

	_, err := m.CreateAuthorizationURL(ctx, ownerID)
	require.NoError(t, err)

	token, err := m.states.Issue(ctx, ownerID)
	require.NoError(t, err)

	result, err := m.HandleCallback(ctx, "auth-code", token)
	require.NoError(t, err)
	return result
}

func TestManager_CreateAuthorizationURL(t *testing.T) {
	fake := newProviderFake(t)
	m, _ := newTestManager(t, fake)

	authURL, err := m.CreateAuthorizationURL(context.Background(), "U123")
	require.NoError(t, err)

	assert.Contains(t, authURL, "https://auth.example.com/authorize?")
	assert.Contains(t, authURL, "audience=api.atlassian.com")
	assert.Contains(t, authURL, "client_id=client-id")
	assert.Contains(t, authURL, "response_type=code")
	assert.Contains(t, authURL, "prompt=consent")
	assert.Contains(t, authURL, "state=")
	assert.Contains(t, authURL, "scope=read%3Ajira-work+write%3Ajira-work+offline_access")
}

func TestManager_HandleCallback_Connect(t *testing.T) {
	fake := newProviderFake(t)
	m, store := newTestManager(t, fake)
	ctx := context.Background()

	result := completeFlow(t, m, "U123")

	assert.Equal(t, "U123", result.OwnerID)
	assert.Equal(t, "cloud-1", result.RemoteTenantID)
	assert.False(t, result.Reconnect)

	cred, err := store.GetCredential(ctx, "U123")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.NotEqual(t, "access-1", cred.EncryptedAccessToken)
	assert.NotEqual(t, "refresh-1", cred.EncryptedRefreshToken)

	conn, err := store.GetConnection(ctx, "U123")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "cloud-1", conn.RemoteTenantID)
	assert.Equal(t, "oauth-user", conn.RemoteAccountID)
}

func TestManager_HandleCallback_Reconnect(t *testing.T) {
	fake := newProviderFake(t)
	m, _ := newTestManager(t, fake)

	first := completeFlow(t, m, "U123")
	assert.False(t, first.Reconnect)

	fake.resourceBody = []map[string]string{{"id": "cloud-2"}}
	second := completeFlow(t, m, "U123")
	assert.True(t, second.Reconnect)
	assert.Equal(t, "cloud-2", second.RemoteTenantID)
}

func TestManager_HandleCallback_InvalidState(t *testing.T) {
	fake := newProviderFake(t)
	m, _ := newTestManager(t, fake)

	_, err := m.HandleCallback(context.Background(), "auth-code", "bogus-state")
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.EqualValues(t, 0, atomic.LoadInt64(&fake.tokenCalls))
}

func TestManager_HandleCallback_StateConsumedOnFailure(t *testing.T) {
	fake := newProviderFake(t)
	fake.tokenStatus = http.StatusBadRequest
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	token, err := m.states.Issue(ctx, "U123")
	require.NoError(t, err)

	_, err = m.HandleCallback(ctx, "auth-code", token)
	assert.True(t, errors.Is(err, ErrTokenExchangeFailed))

	// The state is spent even though the exchange failed
	_, err = m.HandleCallback(ctx, "auth-code", token)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestManager_HandleCallback_MissingRefreshToken(t *testing.T) {
	fake := newProviderFake(t)
	fake.tokenBody = map[string]interface{}{
		"access_token": "access-1",
		"expires_in":   3600,
	}
	m, store := newTestManager(t, fake)
	ctx := context.Background()

	token, err := m.states.Issue(ctx, "U123")
	require.NoError(t, err)

	_, err = m.HandleCallback(ctx, "auth-code", token)
	assert.True(t, errors.Is(err, ErrInvalidTokenResponse))

	cred, err := store.GetCredential(ctx, "U123")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestManager_HandleCallback_NoAccessibleResource(t *testing.T) {
	fake := newProviderFake(t)
	fake.resourceBody = []map[string]string{}
	m, store := newTestManager(t, fake)
	ctx := context.Background()

	token, err := m.states.Issue(ctx, "U123")
	require.NoError(t, err)

	_, err = m.HandleCallback(ctx, "auth-code", token)
	assert.True(t, errors.Is(err, ErrNoAccessibleResource))

	// Nothing was persisted
	cred, err := store.GetCredential(ctx, "U123")
	require.NoError(t, err)
	assert.Nil(t, cred)
	conn, err := store.GetConnection(ctx, "U123")
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestManager_GetValidAccessToken_NotConnected(t *testing.T) {
	fake := newProviderFake(t)
	m, _ := newTestManager(t, fake)

	_, err := m.GetValidAccessToken(context.Background(), "U999")
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestManager_GetValidAccessToken_FreshTokenNoRefresh(t *testing.T) {
	fake := newProviderFake(t)
	m, _ := newTestManager(t, fake)

	completeFlow(t, m, "U123")
	callsAfterFlow := atomic.LoadInt64(&fake.tokenCalls)

	token, err := m.GetValidAccessToken(context.Background(), "U123")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, callsAfterFlow, atomic.LoadInt64(&fake.tokenCalls))
}

func TestManager_GetValidAccessToken_RefreshesNearExpiry(t *testing.T) {
	fake := newProviderFake(t)
	m, store := newTestManager(t, fake)
	ctx := context.Background()

	completeFlow(t, m, "U123")
	callsAfterFlow := atomic.LoadInt64(&fake.tokenCalls)

	// Move the clock to 30s before expiry, inside the refresh window
	m.now = func() time.Time { return time.Now().Add(3600*time.Second - 30*time.Second) }
	fake.tokenBody = map[string]interface{}{
		"access_token":  "access-2",
		"refresh_token": "refresh-2",
		"expires_in":    3600,
	}

	token, err := m.GetValidAccessToken(ctx, "U123")
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Equal(t, "refresh_token", fake.lastGrantType)
	assert.Equal(t, callsAfterFlow+1, atomic.LoadInt64(&fake.tokenCalls))

	// The stored credential was rotated
	cred, err := store.GetCredential(ctx, "U123")
	require.NoError(t, err)
	plaintext, err := m.cipher.DecryptString(cred.EncryptedAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-2", plaintext)
}

func TestManager_GetValidAccessToken_RefreshFailureKeepsRow(t *testing.T) {
	fake := newProviderFake(t)
	m, store := newTestManager(t, fake)
	ctx := context.Background()

	completeFlow(t, m, "U123")
	before, err := store.GetCredential(ctx, "U123")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(3600 * time.Second) }
	fake.tokenStatus = http.StatusInternalServerError

	_, err = m.GetValidAccessToken(ctx, "U123")
	assert.True(t, errors.Is(err, ErrRefreshFailed))

	after, err := store.GetCredential(ctx, "U123")
	require.NoError(t, err)
	assert.Equal(t, before.EncryptedAccessToken, after.EncryptedAccessToken)
	assert.Equal(t, before.EncryptedRefreshToken, after.EncryptedRefreshToken)
}

func TestManager_HandleCallback_ExpiresInDefaults(t *testing.T) {
	fake := newProviderFake(t)
	fake.tokenBody = map[string]interface{}{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
	}
	m, store := newTestManager(t, fake)
	ctx := context.Background()

	start := time.Now()
	completeFlow(t, m, "U123")

	cred, err := store.GetCredential(ctx, "U123")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.True(t, cred.ExpiresAt.After(start.Add(59*time.Minute)))
	assert.True(t, cred.ExpiresAt.Before(start.Add(61*time.Minute)))
}

func TestManager_IsConnectedAndValid(t *testing.T) {
	fake := newProviderFake(t)
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	assert.False(t, m.IsConnectedAndValid(ctx, "U123"))

	completeFlow(t, m, "U123")
	assert.True(t, m.IsConnectedAndValid(ctx, "U123"))
}
