// Package storage persists the bridge's durable state: encrypted OAuth
// credentials, resolved remote identities, pending OAuth states, and
// per-project field mappings. Two backends are provided, SQLite for single
// instance deployments and PostgreSQL for anything shared.
package storage

import (
	"context"
	"time"
)

// Credential is one owner's encrypted token pair. ExpiresAt always refers to
// the access token currently stored; refresh tokens are treated as
// non-expiring. Plaintext tokens never appear in this struct.
type Credential struct {
	OwnerID               string    `json:"owner_id"`
	EncryptedAccessToken  string    `json:"encrypted_access_token"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token"`
	ExpiresAt             time.Time `json:"expires_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Connection maps an owner to the remote account and tenant their credential
// can act on.
type Connection struct {
	OwnerID         string    `json:"owner_id"`
	RemoteAccountID string    `json:"remote_account_id"`
	RemoteTenantID  string    `json:"remote_tenant_id"`
	ConnectedAt     time.Time `json:"connected_at"`
}

// OAuthState is a pending single-use CSRF token binding an authorization URL
// to the owner who requested it.
type OAuthState struct {
	Token     string    `json:"token"`
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FieldMapping records which tracker field an owner's slash commands update
// for a given project.
type FieldMapping struct {
	OwnerID       string    `json:"owner_id"`
	ProjectKey    string    `json:"project_key"`
	FieldID       string    `json:"field_id"`
	FieldType     string    `json:"field_type"`
	AllowedValues string    `json:"allowed_values"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the persistence contract. Upserts have replace-or-insert
// semantics keyed by owner (or owner+project); lookups return (nil, nil)
// when no row exists so callers can distinguish absence from failure.
type Store interface {
	// UpsertCredential inserts or replaces the credential row for the owner
	UpsertCredential(ctx context.Context, cred *Credential) error
	// GetCredential returns the owner's credential, or nil if never stored
	GetCredential(ctx context.Context, ownerID string) (*Credential, error)

	// UpsertConnection inserts or replaces the connection row for the owner
	UpsertConnection(ctx context.Context, conn *Connection) error
	// GetConnection returns the owner's connection, or nil if never connected
	GetConnection(ctx context.Context, ownerID string) (*Connection, error)

	// SaveState records a pending OAuth state
	SaveState(ctx context.Context, state *OAuthState) error
	// ConsumeState atomically reads and deletes a state by token. Returns
	// nil if the token is unknown; a second call with the same token always
	// returns nil.
	ConsumeState(ctx context.Context, token string) (*OAuthState, error)
	// DeleteExpiredStates removes states whose expiry is before now and
	// returns how many were removed
	DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error)

	// UpsertMapping inserts or replaces a field mapping for owner+project
	UpsertMapping(ctx context.Context, mapping *FieldMapping) error
	// GetMapping returns the mapping for owner+project, or nil if unset
	GetMapping(ctx context.Context, ownerID, projectKey string) (*FieldMapping, error)

	// Health checks the backend connection
	Health() error
	// Close releases the backend connection
	Close() error
}
