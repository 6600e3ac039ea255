// Package identity resolves chat-platform users to the remote tracker
// identities their OAuth connection established.
package identity

import (
	"context"
	"fmt"

	"slack-jira-bridge/internal/oauth"
	"slack-jira-bridge/internal/storage"
)

// RemoteIdentity is the tracker-side identity bound to an owner.
type RemoteIdentity struct {
	AccountID string
	TenantID  string
}

// Resolver answers which remote tenant an owner's API calls should target.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// FindRemoteTenant returns the tenant ID the owner is connected to.
// Owners who never completed the OAuth flow get ErrNotConnected.
func (r *Resolver) FindRemoteTenant(ctx context.Context, ownerID string) (string, error) {
	conn, err := r.store.GetConnection(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to read connection: %w", err)
	}
	if conn == nil || conn.RemoteTenantID == "" {
		return "", oauth.ErrNotConnected
	}
	return conn.RemoteTenantID, nil
}

// FindRemoteIdentity returns the full identity binding for the owner.
func (r *Resolver) FindRemoteIdentity(ctx context.Context, ownerID string) (*RemoteIdentity, error) {
	conn, err := r.store.GetConnection(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read connection: %w", err)
	}
	if conn == nil || conn.RemoteTenantID == "" {
		return nil, oauth.ErrNotConnected
	}
	return &RemoteIdentity{
		AccountID: conn.RemoteAccountID,
		TenantID:  conn.RemoteTenantID,
	}, nil
}
