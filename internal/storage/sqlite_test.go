package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestCredentialUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetCredential(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, got, "absent credential should be nil without error")

	first := &Credential{
		OwnerID:               "U1",
		EncryptedAccessToken:  "enc-access-1",
		EncryptedRefreshToken: "enc-refresh-1",
		ExpiresAt:             time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		UpdatedAt:             time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.UpsertCredential(ctx, first))

	got, err = store.GetCredential(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "enc-access-1", got.EncryptedAccessToken)

	// Overwrite in place: still exactly one row per owner
	second := &Credential{
		OwnerID:               "U1",
		EncryptedAccessToken:  "enc-access-2",
		EncryptedRefreshToken: "enc-refresh-2",
		ExpiresAt:             first.ExpiresAt.Add(time.Hour),
		UpdatedAt:             first.UpdatedAt.Add(time.Minute),
	}
	require.NoError(t, store.UpsertCredential(ctx, second))

	got, err = store.GetCredential(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "enc-access-2", got.EncryptedAccessToken)
	assert.Equal(t, "enc-refresh-2", got.EncryptedRefreshToken)
}

func TestConnectionUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetConnection(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, got)

	conn := &Connection{
		OwnerID:         "U1",
		RemoteAccountID: "oauth-user",
		RemoteTenantID:  "tenant-1",
		ConnectedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.UpsertConnection(ctx, conn))

	got, err = store.GetConnection(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tenant-1", got.RemoteTenantID)

	conn.RemoteTenantID = "tenant-2"
	require.NoError(t, store.UpsertConnection(ctx, conn))

	got, err = store.GetConnection(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", got.RemoteTenantID)
}

func TestConsumeStateIsSingleUse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := &OAuthState{
		Token:     "state-token-1",
		OwnerID:   "U1",
		ExpiresAt: time.Now().Add(10 * time.Minute).UTC(),
	}
	require.NoError(t, store.SaveState(ctx, state))

	got, err := store.ConsumeState(ctx, "state-token-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "U1", got.OwnerID)

	// Second consume must find nothing
	got, err = store.ConsumeState(ctx, "state-token-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConsumeUnknownState(t *testing.T) {
	store := newTestStore(t)

	got, err := store.ConsumeState(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteExpiredStates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveState(ctx, &OAuthState{Token: "expired-1", OwnerID: "U1", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.SaveState(ctx, &OAuthState{Token: "expired-2", OwnerID: "U2", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.SaveState(ctx, &OAuthState{Token: "live-1", OwnerID: "U3", ExpiresAt: now.Add(10 * time.Minute)}))

	removed, err := store.DeleteExpiredStates(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	// The live state must survive the sweep
	got, err := store.ConsumeState(ctx, "live-1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMappingUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetMapping(ctx, "U1", "PROJ")
	require.NoError(t, err)
	assert.Nil(t, got)

	mapping := &FieldMapping{
		OwnerID:       "U1",
		ProjectKey:    "PROJ",
		FieldID:       "customfield_10001",
		FieldType:     "number",
		AllowedValues: `["0","50","100"]`,
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.UpsertMapping(ctx, mapping))

	got, err = store.GetMapping(ctx, "U1", "PROJ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "customfield_10001", got.FieldID)

	mapping.FieldID = "customfield_10002"
	require.NoError(t, store.UpsertMapping(ctx, mapping))

	got, err = store.GetMapping(ctx, "U1", "PROJ")
	require.NoError(t, err)
	assert.Equal(t, "customfield_10002", got.FieldID)

	// Mapping is scoped per owner and project
	other, err := store.GetMapping(ctx, "U2", "PROJ")
	require.NoError(t, err)
	assert.Nil(t, other)
}
