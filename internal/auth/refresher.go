package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/metoffice/owa-checker/internal/config"
	"github.com/metoffice/owa-checker/internal/logger"
)

// ErrAuthRequired indicates the refresh token was rejected (revoked or
// expired). The user must re-run the interactive flow; the refresher never
// triggers it itself.
var ErrAuthRequired = errors.New("auth: re-authentication required")

// ExpiryMargin is the safety margin applied to the access token expiry.
// Tokens expiring within this window are refreshed early so they never get
// close to the wire mid-request.
const ExpiryMargin = 5 * time.Minute

// Refresher hands out a valid access token, silently renewing it via the
// stored refresh token when it is expired or about to expire.
type Refresher struct {
	cred       config.Credential
	store      *Store
	tokenURL   string
	httpClient *http.Client

	mu     sync.Mutex
	pair   TokenPair
	loaded bool
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithTokenURL overrides the token endpoint, used by tests.
func WithTokenURL(u string) RefresherOption {
	return func(r *Refresher) { r.tokenURL = u }
}

// WithRefresherHTTPClient overrides the HTTP client.
func WithRefresherHTTPClient(hc *http.Client) RefresherOption {
	return func(r *Refresher) { r.httpClient = hc }
}

// NewRefresher creates a refresher backed by the given store.
func NewRefresher(cred config.Credential, store *Store, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		cred:       cred,
		store:      store,
		tokenURL:   OAuthConfig(cred).Endpoint.TokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureValid returns an access token that is valid for at least the expiry
// margin, refreshing it when necessary. Returns ErrAuthRequired when no
// stored token exists or the refresh token is rejected.
func (r *Refresher) EnsureValid(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		pair, err := r.store.Load()
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrAuthRequired, err)
		}
		if err != nil {
			return "", err
		}
		r.pair = pair
		r.loaded = true
	}

	if r.pair.RefreshToken == "" {
		return "", fmt.Errorf("%w: stored token has no refresh token", ErrAuthRequired)
	}

	if r.pair.AccessToken != "" && time.Until(r.pair.ExpiresAt) > ExpiryMargin {
		return r.pair.AccessToken, nil
	}

	logger.Debug("access token expired or expiring, refreshing")
	pair, err := r.refresh(ctx, r.pair.RefreshToken)
	if err != nil {
		return "", err
	}

	if err := r.store.Save(pair); err != nil {
		return "", err
	}
	r.pair = pair

	return pair.AccessToken, nil
}

// Invalidate drops the in-memory token pair so the next EnsureValid
// re-reads the store. Called when the refresh token is rejected, so a
// re-authentication performed by a separate --auth run is picked up.
func (r *Refresher) Invalidate() {
	r.mu.Lock()
	r.pair = TokenPair{}
	r.loaded = false
	r.mu.Unlock()
}

// tokenResponse is the token endpoint's success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

// refresh exchanges the refresh token for a new token pair.
func (r *Refresher) refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("redirect_uri", RedirectURI)
	data.Set("scope", strings.Join(Scopes, " "))
	data.Set("client_id", r.cred.ClientID)
	data.Set("client_secret", r.cred.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return TokenPair{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		// invalid_grant means the refresh token itself is dead; anything
		// else from these statuses is equally unrecoverable without the
		// user's involvement.
		return TokenPair{}, fmt.Errorf("%w: token endpoint returned status %d (%s)",
			ErrAuthRequired, resp.StatusCode, body.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return TokenPair{}, fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return TokenPair{}, fmt.Errorf("decode token response: %w", decodeErr)
	}

	pair := TokenPair{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	// Microsoft may rotate the refresh token; keep the old one when the
	// response omits it.
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}
