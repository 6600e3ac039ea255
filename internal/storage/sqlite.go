package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and runs
// migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			owner_id TEXT PRIMARY KEY,
			encrypted_access_token TEXT NOT NULL,
			encrypted_refresh_token TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS connections (
			owner_id TEXT PRIMARY KEY,
			remote_account_id TEXT NOT NULL,
			remote_tenant_id TEXT NOT NULL,
			connected_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS oauth_states (
			token TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oauth_states_expires_at ON oauth_states(expires_at)`,
		`CREATE TABLE IF NOT EXISTS field_mappings (
			owner_id TEXT NOT NULL,
			project_key TEXT NOT NULL,
			field_id TEXT NOT NULL,
			field_type TEXT NOT NULL DEFAULT '',
			allowed_values TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (owner_id, project_key)
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// UpsertCredential inserts or replaces the credential row for the owner.
// The ON CONFLICT clause makes the replace atomic; there is no
// read-modify-write window.
func (s *SQLiteStore) UpsertCredential(ctx context.Context, cred *Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (owner_id, encrypted_access_token, encrypted_refresh_token, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
			encrypted_access_token = excluded.encrypted_access_token,
			encrypted_refresh_token = excluded.encrypted_refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		cred.OwnerID, cred.EncryptedAccessToken, cred.EncryptedRefreshToken, cred.ExpiresAt, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCredential(ctx context.Context, ownerID string) (*Credential, error) {
	var cred Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, encrypted_access_token, encrypted_refresh_token, expires_at, updated_at
		 FROM credentials WHERE owner_id = ?`, ownerID).
		Scan(&cred.OwnerID, &cred.EncryptedAccessToken, &cred.EncryptedRefreshToken, &cred.ExpiresAt, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

func (s *SQLiteStore) UpsertConnection(ctx context.Context, conn *Connection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (owner_id, remote_account_id, remote_tenant_id, connected_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
			remote_account_id = excluded.remote_account_id,
			remote_tenant_id = excluded.remote_tenant_id,
			connected_at = excluded.connected_at`,
		conn.OwnerID, conn.RemoteAccountID, conn.RemoteTenantID, conn.ConnectedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConnection(ctx context.Context, ownerID string) (*Connection, error) {
	var conn Connection
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, remote_account_id, remote_tenant_id, connected_at
		 FROM connections WHERE owner_id = ?`, ownerID).
		Scan(&conn.OwnerID, &conn.RemoteAccountID, &conn.RemoteTenantID, &conn.ConnectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &conn, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, state *OAuthState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_states (token, owner_id, expires_at) VALUES (?, ?, ?)`,
		state.Token, state.OwnerID, state.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// ConsumeState deletes the state row and returns it. DELETE ... RETURNING
// makes the read-and-delete a single statement, so two concurrent callbacks
// with the same token cannot both succeed.
func (s *SQLiteStore) ConsumeState(ctx context.Context, token string) (*OAuthState, error) {
	var state OAuthState
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM oauth_states WHERE token = ? RETURNING token, owner_id, expires_at`, token).
		Scan(&state.Token, &state.OwnerID, &state.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return &state, nil
}

func (s *SQLiteStore) DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) UpsertMapping(ctx context.Context, mapping *FieldMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_mappings (owner_id, project_key, field_id, field_type, allowed_values, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, project_key) DO UPDATE SET
			field_id = excluded.field_id,
			field_type = excluded.field_type,
			allowed_values = excluded.allowed_values,
			updated_at = excluded.updated_at`,
		mapping.OwnerID, mapping.ProjectKey, mapping.FieldID, mapping.FieldType, mapping.AllowedValues, mapping.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert field mapping: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMapping(ctx context.Context, ownerID, projectKey string) (*FieldMapping, error) {
	var mapping FieldMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, project_key, field_id, field_type, allowed_values, updated_at
		 FROM field_mappings WHERE owner_id = ? AND project_key = ?`, ownerID, projectKey).
		Scan(&mapping.OwnerID, &mapping.ProjectKey, &mapping.FieldID, &mapping.FieldType, &mapping.AllowedValues, &mapping.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field mapping: %w", err)
	}
	return &mapping, nil
}

func (s *SQLiteStore) Health() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
