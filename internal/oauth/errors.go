package oauth

import "errors"

var (
	// ErrInvalidState indicates the CSRF state token is unknown, expired, or
	// already consumed. Surfaced to users as "please retry connect".
	ErrInvalidState = errors.New("oauth: invalid state")
	// ErrTokenExchangeFailed indicates the authorization server rejected the
	// code exchange.
	ErrTokenExchangeFailed = errors.New("oauth: token exchange failed")
	// ErrRefreshFailed indicates the authorization server rejected a refresh
	// attempt, usually because the refresh token was revoked.
	ErrRefreshFailed = errors.New("oauth: token refresh failed")
	// ErrInvalidTokenResponse indicates a token-endpoint response missing
	// required fields. Treated as a hard integration error.
	ErrInvalidTokenResponse = errors.New("oauth: invalid token response")
	// ErrNoAccessibleResource indicates the credential authenticates but no
	// remote tenant is visible to it.
	ErrNoAccessibleResource = errors.New("oauth: no accessible resource")
	// ErrNotConnected indicates an operation that requires a stored
	// credential found none, or found one that is unreadable.
	ErrNotConnected = errors.New("oauth: not connected")
)
