package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-jira-bridge/internal/oauth"
	"slack-jira-bridge/internal/storage"
)

func newResolver(t *testing.T) (*Resolver, storage.Store) {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewResolver(store), store
}

func TestResolver_FindRemoteTenant(t *testing.T) {
	resolver, store := newResolver(t)
	ctx := context.Background()

	err := store.UpsertConnection(ctx, &storage.Connection{
		OwnerID:         "U123",
		RemoteAccountID: "oauth-user",
		RemoteTenantID:  "cloud-1",
		ConnectedAt:     time.Now(),
	})
	require.NoError(t, err)

	tenantID, err := resolver.FindRemoteTenant(ctx, "U123")
	require.NoError(t, err)
	assert.Equal(t, "cloud-1", tenantID)
}

func TestResolver_FindRemoteTenant_NotConnected(t *testing.T) {
	resolver, _ := newResolver(t)

	_, err := resolver.FindRemoteTenant(context.Background(), "U999")
	assert.True(t, errors.Is(err, oauth.ErrNotConnected))
}

func TestResolver_FindRemoteIdentity(t *testing.T) {
	resolver, store := newResolver(t)
	ctx := context.Background()

	err := store.UpsertConnection(ctx, &storage.Connection{
		OwnerID:         "U123",
		RemoteAccountID: "oauth-user",
		RemoteTenantID:  "cloud-1",
		ConnectedAt:     time.Now(),
	})
	require.NoError(t, err)

	identity, err := resolver.FindRemoteIdentity(ctx, "U123")
	require.NoError(t, err)
	assert.Equal(t, "oauth-user", identity.AccountID)
	assert.Equal(t, "cloud-1", identity.TenantID)
}
