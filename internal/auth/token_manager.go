package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// skewBuffer is subtracted from a token's expiry before it is considered
// stale, so a token never expires mid-flight of a request that started
// while it still looked valid.
const skewBuffer = 60 * time.Second

// Config holds what the Token Manager needs to perform the client-credentials
// exchange.
type Config struct {
	AuthBase     string
	ClientID     string
	ClientSecret string
	AccountID    string
}

// TokenManager holds at most one valid access token per run and performs a
// single-flight OAuth2 client-credentials exchange to refresh it.
//
// Concurrency model: the first caller to find the token stale becomes the
// designated refresher and performs the network exchange; everyone else
// waits on a channel the refresher closes when done.
type TokenManager struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger

	mu         sync.Mutex
	token      string
	expiry     time.Time
	refreshing bool
	waitCh     chan struct{}
	lastErr    error
}

// NewTokenManager constructs a Token Manager. When client is nil a sensible
// default with a per-request timeout is used.
func NewTokenManager(cfg Config, client *http.Client, log *logger.Logger) *TokenManager {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("token-manager")
	}
	return &TokenManager{cfg: cfg, client: client, log: log}
}

// GetToken returns the current access token, refreshing it first if the
// cached token's expiry minus the skew buffer has passed.
//
// Single-flight discipline: the first caller to find the token stale
// becomes the designated refresher and performs the network exchange with
// tm.mu released; every other concurrent caller waits on a channel that the
// refresher closes when done, then re-checks (double-checked locking) —
// this avoids holding any lock across the HTTP call.
func (tm *TokenManager) GetToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	for {
		if tm.fresh() {
			tok := tm.token
			tm.mu.Unlock()
			return tok, nil
		}
		if tm.refreshing {
			ch := tm.waitCh
			tm.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return "", ctx.Err()
			}
			tm.mu.Lock()
			continue
		}

		// We are the designated refresher.
		tm.refreshing = true
		myCh := make(chan struct{})
		tm.waitCh = myCh
		tm.mu.Unlock()

		token, expiry, err := tm.exchangeWithRetry(ctx)

		tm.mu.Lock()
		tm.refreshing = false
		if err != nil {
			tm.lastErr = err
			close(myCh)
			tm.mu.Unlock()
			return "", model.NewExtractionError(model.ErrAuthFailed, "token-manager", "", err)
		}
		tm.token = token
		tm.expiry = expiry
		tm.lastErr = nil
		close(myCh)
		tok := tm.token
		tm.mu.Unlock()
		return tok, nil
	}
}

// ForceRefresh invalidates the current token and obtains a new one under the
// same single-flight discipline; concurrent ForceRefresh calls collapse to
// one exchange.
func (tm *TokenManager) ForceRefresh(ctx context.Context, reason string) (string, error) {
	tm.log.WithField("reason", reason).Info("forcing token refresh")
	tm.mu.Lock()
	tm.expiry = time.Time{}
	tm.mu.Unlock()
	return tm.GetToken(ctx)
}

func (tm *TokenManager) fresh() bool {
	return tm.token != "" && time.Now().Before(tm.expiry.Add(-skewBuffer))
}

func (tm *TokenManager) exchangeWithRetry(ctx context.Context) (string, time.Time, error) {
	var token string
	var expiry time.Time
	err := Retry(ctx, DefaultRefreshRetryPolicy, func() error {
		t, e, err := tm.exchange(ctx)
		if err != nil {
			tm.log.WithField("error", err.Error()).Warn("token exchange attempt failed")
			return err
		}
		token, expiry = t, e
		return nil
	})
	return token, expiry, err
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (tm *TokenManager) exchange(ctx context.Context) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", tm.cfg.ClientID)
	form.Set("client_secret", tm.cfg.ClientSecret)
	form.Set("account_id", tm.cfg.AccountID)

	endpoint := strings.TrimRight(tm.cfg.AuthBase, "/") + "/v2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("token response missing access_token")
	}
	expiry := time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return out.AccessToken, expiry, nil
}
