package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// DSN renders the config as a keyword/value connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}

// PostgresStore implements Store on PostgreSQL via the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and runs migrations.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			owner_id TEXT PRIMARY KEY,
			encrypted_access_token TEXT NOT NULL,
			encrypted_refresh_token TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS connections (
			owner_id TEXT PRIMARY KEY,
			remote_account_id TEXT NOT NULL,
			remote_tenant_id TEXT NOT NULL,
			connected_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS oauth_states (
			token TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oauth_states_expires_at ON oauth_states(expires_at)`,
		`CREATE TABLE IF NOT EXISTS field_mappings (
			owner_id TEXT NOT NULL,
			project_key TEXT NOT NULL,
			field_id TEXT NOT NULL,
			field_type TEXT NOT NULL DEFAULT '',
			allowed_values TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL,
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

func (s *PostgresStore) UpsertCredential(ctx context.Context, cred *Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (owner_id, encrypted_access_token, encrypted_refresh_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (owner_id) DO UPDATE SET
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		cred.OwnerID, cred.EncryptedAccessToken, cred.EncryptedRefreshToken, cred.ExpiresAt, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCredential(ctx context.Context, ownerID string) (*Credential, error) {
	var cred Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, encrypted_access_token, encrypted_refresh_token, expires_at, updated_at
		 FROM credentials WHERE owner_id = $1`, ownerID).
		Scan(&cred.OwnerID, &cred.EncryptedAccessToken, &cred.EncryptedRefreshToken, &cred.ExpiresAt, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

func (s *PostgresStore) UpsertConnection(ctx context.Context, conn *Connection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (owner_id, remote_account_id, remote_tenant_id, connected_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id) DO UPDATE SET
			remote_account_id = EXCLUDED.remote_account_id,
			remote_tenant_id = EXCLUDED.remote_tenant_id,
			connected_at = EXCLUDED.connected_at`,
		conn.OwnerID, conn.RemoteAccountID, conn.RemoteTenantID, conn.ConnectedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConnection(ctx context.Context, ownerID string) (*Connection, error) {
	var conn Connection
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, remote_account_id, remote_tenant_id, connected_at
		 FROM connections WHERE owner_id = $1`, ownerID).
		Scan(&conn.OwnerID, &conn.RemoteAccountID, &conn.RemoteTenantID, &conn.ConnectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &conn, nil
}

func (s *PostgresStore) SaveState(ctx context.Context, state *OAuthState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_states (token, owner_id, expires_at) VALUES ($1, $2, $3)`,
		state.Token, state.OwnerID, state.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

func (s *PostgresStore) ConsumeState(ctx context.Context, token string) (*OAuthState, error) {
	var state OAuthState
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM oauth_states WHERE token = $1 RETURNING token, owner_id, expires_at`, token).
		Scan(&state.Token, &state.OwnerID, &state.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return &state, nil
}

func (s *PostgresStore) DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) UpsertMapping(ctx context.Context, mapping *FieldMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_mappings (owner_id, project_key, field_id, field_type, allowed_values, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (owner_id, project_key) DO UPDATE SET
			field_id = EXCLUDED.field_id,
			field_type = EXCLUDED.field_type,
			allowed_values = EXCLUDED.allowed_values,
			updated_at = EXCLUDED.updated_at`,
		mapping.OwnerID, mapping.ProjectKey, mapping.FieldID, mapping.FieldType, mapping.AllowedValues, mapping.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert field mapping: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMapping(ctx context.Context, ownerID, projectKey string) (*FieldMapping, error) {
	var mapping FieldMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, project_key, field_id, field_type, allowed_values, updated_at
		 FROM field_mappings WHERE owner_id = $1 AND project_key = $2`, ownerID, projectKey).
		Scan(&mapping.OwnerID, &mapping.ProjectKey, &mapping.FieldID, &mapping.FieldType, &mapping.AllowedValues, &mapping.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field mapping: %w", err)
	}
	return &mapping, nil
}

func (s *PostgresStore) Health() error {
	return s.db.Ping()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
