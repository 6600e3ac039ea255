package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"slack-jira-bridge/internal/circuitbreaker"
	commonhttp "slack-jira-bridge/internal/common/http"
	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/crypto"
	"slack-jira-bridge/internal/storage"
)

// Config carries the OAuth client registration and provider endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string
	AuthorizeURL string
	TokenURL     string
	ResourcesURL string
}

// CallbackResult reports the outcome of a completed authorization flow.
type CallbackResult struct {
	OwnerID        string
	RemoteTenantID string
	// Reconnect is true when the owner already had a tenant bound before
	// this flow completed
	Reconnect bool
}

// Manager drives the three-legged OAuth flow and the lifecycle of the
// resulting tokens. Tokens are encrypted before they touch the store and
// only ever decrypted on the way out of GetValidAccessToken.
type Manager struct {
	cfg     Config
	states  StateStore
	store   storage.Store
	cipher  *crypto.TokenCipher
	client  *http.Client
	breaker *circuitbreaker.GoBreakerAdapter
	logger  logging.Logger
	now     func() time.Time

	// ownerLocks serializes callback handling and refresh per owner so a
	// reconnect check and the write it guards cannot interleave
	ownerLocks sync.Map
}

// refreshWindow is how long before expiry a token is refreshed rather
// than handed out.
const refreshWindow = 60 * time.Second

// NewManager creates an OAuth manager. The breaker guards calls to the
// provider's token and resources endpoints.
func NewManager(cfg Config, states StateStore, store storage.Store, cipher *crypto.TokenCipher, logger logging.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		states:  states,
		store:   store,
		cipher:  cipher,
		client:  commonhttp.NewHTTPClientWithTimeout(10 * time.Second),
		breaker: circuitbreaker.NewGoBreaker("oauth-provider", circuitbreaker.OAuthConfig, logger),
		logger:  logger,
		now:     time.Now,
	}
}

func (m *Manager) lockOwner(ownerID string) func() {
	v, _ := m.ownerLocks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateAuthorizationURL issues a fresh state token for the owner and
// returns the provider authorization URL carrying it.
func (m *Manager) CreateAuthorizationURL(ctx context.Context, ownerID string) (string, error) {
	state, err := m.states.Issue(ctx, ownerID)
	if err != nil {
		return "", err
	}

	authURL := fmt.Sprintf(
		"%s?audience=api.atlassian.com&client_id=%s&scope=%s&redirect_uri=%s&response_type=code&prompt=consent&state=%s",
		m.cfg.AuthorizeURL,
		url.QueryEscape(m.cfg.ClientID),
		url.QueryEscape(m.cfg.Scopes),
		url.QueryEscape(m.cfg.RedirectURI),
		url.QueryEscape(state),
	)

	m.logger.Debug("issued authorization URL", logging.String("owner_id", ownerID))
	return authURL, nil
}

// HandleCallback completes the authorization flow: it validates and consumes
// the state token, exchanges the code for tokens, discovers the accessible
// resource, and persists the encrypted credential and tenant binding.
// Nothing is persisted unless every step before it succeeded; the state is
// consumed regardless.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (*CallbackResult, error) {
	ownerID, err := m.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	unlock := m.lockOwner(ownerID)
	defer unlock()

	prior, err := m.store.GetConnection(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing connection: %w", err)
	}
	reconnect := prior != nil && prior.RemoteTenantID != ""

	tokens, err := m.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	tenantID, err := m.discoverResource(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	if err := m.persistCredential(ctx, ownerID, tokens); err != nil {
		return nil, err
	}

	err = m.store.UpsertConnection(ctx, &storage.Connection{
		OwnerID:         ownerID,
		RemoteAccountID: "oauth-user",
		RemoteTenantID:  tenantID,
		ConnectedAt:     m.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist connection: %w", err)
	}

	m.logger.Info("oauth connection established",
		logging.String("owner_id", ownerID),
		logging.String("tenant_id", tenantID),
		logging.Bool("reconnect", reconnect))

	return &CallbackResult{
		OwnerID:        ownerID,
		RemoteTenantID: tenantID,
		Reconnect:      reconnect,
	}, nil
}

// GetValidAccessToken returns a plaintext access token for the owner,
// refreshing it first when it expires within the next minute. A failed
// refresh leaves the stored credential untouched.
func (m *Manager) GetValidAccessToken(ctx context.Context, ownerID string) (string, error) {
	unlock := m.lockOwner(ownerID)
	defer unlock()

	cred, err := m.store.GetCredential(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	if cred == nil {
		return "", ErrNotConnected
	}

	if cred.ExpiresAt.After(m.now().Add(refreshWindow)) {
		token, err := m.cipher.DecryptString(cred.EncryptedAccessToken)
		if err != nil {
			return "", err
		}
		return token, nil
	}

	refreshToken, err := m.cipher.DecryptString(cred.EncryptedRefreshToken)
	if err != nil {
		return "", err
	}

	tokens, err := m.refreshTokens(ctx, refreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed",
			logging.String("owner_id", ownerID),
			logging.Err(err))
		return "", err
	}

	if err := m.persistCredential(ctx, ownerID, tokens); err != nil {
		return "", err
	}

	m.logger.Debug("access token refreshed", logging.String("owner_id", ownerID))
	return tokens.AccessToken, nil
}

// IsConnectedAndValid reports whether the owner currently holds a usable
// credential. It may trigger a refresh and never returns an error; any
// failure means not connected.
func (m *Manager) IsConnectedAndValid(ctx context.Context, ownerID string) bool {
	_, err := m.GetValidAccessToken(ctx, ownerID)
	return err == nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (m *Manager) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	body := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"code":          code,
		"redirect_uri":  m.cfg.RedirectURI,
	}
	tokens, err := m.postTokenRequest(ctx, body)
	if err != nil {
		if errors.Is(err, ErrInvalidTokenResponse) {
			return nil, ErrInvalidTokenResponse
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	return tokens, nil
}

func (m *Manager) refreshTokens(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"refresh_token": refreshToken,
	}
	tokens, err := m.postTokenRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return tokens, nil
}

func (m *Manager) postTokenRequest(ctx context.Context, body map[string]string) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	var tokens *tokenResponse
	err = m.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}

		var tr tokenResponse
		if err := json.Unmarshal(data, &tr); err != nil {
			return fmt.Errorf("failed to decode token response: %w", err)
		}
		if tr.AccessToken == "" || tr.RefreshToken == "" {
			return ErrInvalidTokenResponse
		}
		if tr.ExpiresIn <= 0 {
			tr.ExpiresIn = 3600
		}
		tokens = &tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

type accessibleResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// discoverResource asks the provider which tenants the token can reach and
// binds the first one.
func (m *Manager) discoverResource(ctx context.Context, accessToken string) (string, error) {
	var resources []accessibleResource
	err := m.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.ResourcesURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("resources endpoint returned %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&resources)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAccessibleResource, err)
	}
	if len(resources) == 0 || resources[0].ID == "" {
		return "", ErrNoAccessibleResource
	}
	return resources[0].ID, nil
}

func (m *Manager) persistCredential(ctx context.Context, ownerID string, tokens *tokenResponse) error {
	encAccess, err := m.cipher.EncryptString(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := m.cipher.EncryptString(tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := m.now()
	err = m.store.UpsertCredential(ctx, &storage.Credential{
		OwnerID:               ownerID,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		ExpiresAt:             now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		UpdatedAt:             now,
	})
	if err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}
