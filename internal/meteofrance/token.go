package meteofrance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var errNoApplicationID = errors.New("application id not configured")

// TokenSource obtains a fresh bearer token.
type TokenSource interface {
	Obtain(ctx context.Context) (string, error)
}

// TokenManager performs the client-credentials exchange against the portal
// token endpoint. It keeps no state; the Session caches what it returns.
type TokenManager struct {
	tokenURL      string
	applicationID string
	client        *http.Client
}

// NewTokenManager creates a TokenManager. applicationID is the pre-encoded
// value sent after "Basic " in the Authorization header.
func NewTokenManager(tokenURL, applicationID string, client *http.Client) *TokenManager {
	if client == nil {
		client = http.DefaultClient
	}
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &TokenManager{
		tokenURL:      tokenURL,
		applicationID: applicationID,
		client:        &noRedirect,
	}
}

// Obtain exchanges the application id for an access token. Failures are
// returned as *AuthenticationError and never retried here.
func (m *TokenManager) Obtain(ctx context.Context) (string, error) {
	if m.applicationID == "" {
		return "", &AuthenticationError{Err: errNoApplicationID}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthenticationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+m.applicationID)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &AuthenticationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &AuthenticationError{
			StatusCode: resp.StatusCode,
			Reason:     reasonPhrase(resp.StatusCode, resp.Status),
		}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &AuthenticationError{
			StatusCode: resp.StatusCode,
			Reason:     reasonPhrase(resp.StatusCode, resp.Status),
			Err:        fmt.Errorf("malformed token response: %w", err),
		}
	}
	if payload.AccessToken == "" {
		return "", &AuthenticationError{
			StatusCode: resp.StatusCode,
			Reason:     reasonPhrase(resp.StatusCode, resp.Status),
			Err:        errors.New("token response has no access_token"),
		}
	}
	return payload.AccessToken, nil
}
