package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"claudebridge/internal/credstore"
)

// Claude Code OAuth configuration, fixed by the vendor. These are not
// configurable at runtime; tests override them through ManagerConfig.
const (
	DefaultTokenURL = "https://platform.claude.com/v1/oauth/token"
	ClientID        = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	RefreshScope    = "user:inference user:mcp_servers user:profile user:sessions:claude_code"
)

// ExpiryBuffer is the safety margin before actual expiry at which a token
// is treated as needing refresh.
const ExpiryBuffer = 5 * time.Minute

// defaultRefreshTimeout bounds the refresh HTTP call.
const defaultRefreshTimeout = 30 * time.Second

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
const defaultExpiresIn = 3600

// ErrUnavailable is returned when no usable access token can be resolved:
// the store is empty or corrupt, or the credential is expired with no
// refresh token. The caller should fall back to another provider or ask the
// user to re-authenticate via `claude` login.
var ErrUnavailable = errors.New("no usable Claude Code token")

// State is the derived lifecycle state of a stored credential.
type State int

const (
	// StateValid means the access token is present and outside the expiry buffer.
	StateValid State = iota

	// StateExpired means the token is within the expiry buffer (or has no
	// recorded expiry) and a refresh token is available.
	StateExpired

	// StateUnrefreshable means the credential cannot be used or refreshed;
	// the user must re-authenticate externally.
	StateUnrefreshable
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateUnrefreshable:
		return "unrefreshable"
	default:
		return "unknown"
	}
}

// StateOf derives the lifecycle state of a credential record at the given
// instant. A record with no recorded expiry counts as expired; a record
// with no access token is never valid.
func StateOf(creds credstore.Credentials, now time.Time) State {
	expired := creds.ExpiresAt == 0 || now.Add(ExpiryBuffer).UnixMilli() >= creds.ExpiresAt
	if !expired && creds.AccessToken != "" {
		return StateValid
	}
	if creds.RefreshToken == "" {
		return StateUnrefreshable
	}
	return StateExpired
}

// Manager resolves access tokens from a credential store, refreshing and
// persisting them as needed. It is safe for concurrent use.
type Manager struct {
	store      credstore.Store
	httpClient *http.Client
	tokenURL   string
	clientID   string
	scope      string
	group      singleflight.Group
}

// ManagerConfig configures a Manager. Only Store is required.
type ManagerConfig struct {
	// Store is the credential store the document is read from and written
	// back to.
	Store credstore.Store

	// HTTPClient is an optional custom HTTP client for the refresh call.
	HTTPClient *http.Client

	// TokenURL overrides the fixed token endpoint. Used by tests.
	TokenURL string
}

// NewManager creates a token lifecycle manager over the given store.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("credential store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRefreshTimeout}
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &Manager{
		store:      cfg.Store,
		httpClient: httpClient,
		tokenURL:   tokenURL,
		clientID:   ClientID,
		scope:      RefreshScope,
	}, nil
}

// Resolve returns a usable access token, refreshing the stored credential
// first when it is expired or about to expire. Returns ErrUnavailable when
// no usable token can be produced; the store is left untouched in that case.
//
// Concurrent calls share a single resolution: at most one refresh request
// is in flight at a time.
func (m *Manager) Resolve(ctx context.Context) (string, error) {
	creds, err := m.resolveCredentials(ctx)
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// Token returns the resolved credential as an oauth2 token, for callers
// that interoperate with the x/oauth2 ecosystem or want expiry metadata.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	creds, err := m.resolveCredentials(ctx)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}
	if creds.ExpiresAt > 0 {
		token.Expiry = time.UnixMilli(creds.ExpiresAt)
	}
	return token, nil
}

// Peek reads the stored document without refreshing or modifying anything.
// Used for status display.
func (m *Manager) Peek(ctx context.Context) (*credstore.Document, State, error) {
	doc, err := m.store.Read(ctx)
	if err != nil {
		return nil, StateUnrefreshable, err
	}
	return doc, StateOf(doc.Credentials, time.Now()), nil
}

// Source names the backing store.
func (m *Manager) Source() string {
	return m.store.Source()
}

func (m *Manager) resolveCredentials(ctx context.Context) (credstore.Credentials, error) {
	v, err, _ := m.group.Do("resolve", func() (interface{}, error) {
		return m.doResolve(ctx)
	})
	if err != nil {
		return credstore.Credentials{}, err
	}
	return v.(credstore.Credentials), nil
}

// doResolve runs one full resolution: read, expiry check, refresh, persist.
func (m *Manager) doResolve(ctx context.Context) (credstore.Credentials, error) {
	doc, err := m.store.Read(ctx)
	if err != nil {
		switch {
		case errors.Is(err, credstore.ErrNotFound):
			slog.Debug("No Claude Code credentials in store", "source", m.store.Source())
		case errors.Is(err, credstore.ErrCorrupt):
			slog.Warn("Claude Code credential store is corrupt",
				"source", m.store.Source(),
				"error", err.Error(),
			)
		default:
			slog.Warn("Failed to read Claude Code credentials",
				"source", m.store.Source(),
				"error", err.Error(),
			)
		}
		return credstore.Credentials{}, ErrUnavailable
	}

	creds := doc.Credentials
	switch StateOf(creds, time.Now()) {
	case StateValid:
		return creds, nil
	case StateUnrefreshable:
		slog.Info("Claude Code token expired with no refresh token, re-authentication required",
			"source", m.store.Source(),
		)
		return credstore.Credentials{}, ErrUnavailable
	}

	slog.Info("Claude Code token expired, refreshing",
		"source", m.store.Source(),
	)

	refreshed, err := m.refresh(ctx, creds.RefreshToken)
	if err != nil {
		// Refresh itself failed; the stale credential stays in the store.
		slog.Warn("Claude Code token refresh failed",
			"source", m.store.Source(),
			"error", err.Error(),
		)
		return credstore.Credentials{}, ErrUnavailable
	}

	doc.Credentials = mergeRefreshed(creds, refreshed)

	if err := m.store.Write(ctx, doc); err != nil {
		// Refresh succeeded but persistence failed. The fresh token is still
		// usable for this call; the next resolution will refresh again.
		slog.Warn("Failed to persist refreshed Claude Code token",
			"source", m.store.Source(),
			"error", err.Error(),
		)
	} else {
		slog.Info("Refreshed and persisted Claude Code token",
			"source", m.store.Source(),
			"expires_at", time.UnixMilli(doc.Credentials.ExpiresAt).Format(time.RFC3339),
		)
	}

	return doc.Credentials, nil
}

// tokenResponse is the token endpoint's 200 body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// refresh issues the refresh_token grant against the fixed token endpoint.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     m.clientID,
		"scope":         m.scope,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultRefreshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("token refresh failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, errors.New("no access token in refresh response")
	}

	return &tokenResp, nil
}

// mergeRefreshed folds a token endpoint response into the prior credential
// record: the refresh token and scopes are kept from the prior record when
// the response omits them, and expiry defaults to one hour out.
func mergeRefreshed(prior credstore.Credentials, resp *tokenResponse) credstore.Credentials {
	next := prior
	next.AccessToken = resp.AccessToken

	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}

	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	next.ExpiresAt = time.Now().UnixMilli() + int64(expiresIn)*1000

	if resp.Scope != "" {
		next.Scopes = strings.Fields(resp.Scope)
	}

	return next
}
