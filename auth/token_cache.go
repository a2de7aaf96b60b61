package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-folio/core"
	"github.com/goliatone/go-folio/transport"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"
)

const DefaultSafetyMargin = core.DefaultTokenSafetyMargin

type TokenCacheConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	SafetyMargin time.Duration
	Timeout      time.Duration
	Transport    core.TransportAdapter
	Logger       glog.Logger
	Now          func() time.Time
}

// TokenCache holds a single client-credentials bearer token in memory and
// refreshes it on demand. Concurrent refreshes collapse into one exchange.
type TokenCache struct {
	config TokenCacheConfig
	logger glog.Logger

	mu         sync.RWMutex
	credential core.Credential

	group     singleflight.Group
	exchanges int
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

func NewTokenCache(cfg TokenCacheConfig) *TokenCache {
	margin := cfg.SafetyMargin
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = core.DefaultXubioTokenURL
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &TokenCache{
		config: TokenCacheConfig{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			TokenURL:     tokenURL,
			SafetyMargin: margin,
			Timeout:      cfg.Timeout,
			Transport:    adapter,
			Now:          now,
		},
		logger: glog.Ensure(cfg.Logger),
	}
}

// Token returns the cached token while it is valid for longer than the safety
// margin, otherwise exchanges client credentials for a new one.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return "", core.NewConfigurationError(
			"auth: client id and client secret are required for the token exchange",
			map[string]any{"token_url": c.config.TokenURL},
		)
	}

	c.mu.RLock()
	cached := c.credential
	c.mu.RUnlock()
	if cached.ValidAt(c.config.Now(), c.config.SafetyMargin) {
		return cached.Token, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		c.mu.RLock()
		current := c.credential
		c.mu.RUnlock()
		if current.ValidAt(c.config.Now(), c.config.SafetyMargin) {
			return current.Token, nil
		}
		credential, err := c.exchange(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.credential = credential
		c.mu.Unlock()
		return credential.Token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	}
}

// Invalidate drops the cached credential if it still holds token. A token that
// was already replaced by a concurrent refresh is left alone.
func (c *TokenCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" || c.credential.Token == token {
		c.credential = core.Credential{}
	}
}

// Credential returns a copy of the cached credential.
func (c *TokenCache) Credential() core.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

// Exchanges reports how many token exchanges were performed.
func (c *TokenCache) Exchanges() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exchanges
}

func (c *TokenCache) exchange(ctx context.Context) (core.Credential, error) {
	c.mu.Lock()
	c.exchanges++
	c.mu.Unlock()

	issuedAt := c.config.Now()
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	res, err := c.config.Transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    c.config.TokenURL,
		Headers: map[string]string{
			"Authorization": "Basic " + basicCredentials(c.config.ClientID, c.config.ClientSecret),
			"Content-Type":  "application/x-www-form-urlencoded",
			"Accept":        "application/json",
		},
		Body:    []byte(form.Encode()),
		Timeout: c.config.Timeout,
	})
	if err != nil {
		return core.Credential{}, core.NewTokenExchangeError(
			err,
			"auth: token endpoint request failed",
			0,
			map[string]any{"token_url": c.config.TokenURL},
		)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.Credential{}, core.NewTokenExchangeError(
			nil,
			fmt.Sprintf("auth: token endpoint returned %d: %s", res.StatusCode, truncate(string(res.Body), 256)),
			res.StatusCode,
			map[string]any{"token_url": c.config.TokenURL, "status_code": res.StatusCode},
		)
	}

	var payload tokenResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return core.Credential{}, core.NewTokenExchangeError(
			err,
			"auth: decode token response",
			res.StatusCode,
			map[string]any{"token_url": c.config.TokenURL},
		)
	}
	token := strings.TrimSpace(payload.AccessToken)
	if token == "" {
		return core.Credential{}, core.NewTokenExchangeError(
			nil,
			"auth: token response did not include an access token",
			res.StatusCode,
			map[string]any{"token_url": c.config.TokenURL},
		)
	}
	expiresIn, err := parseExpiresIn(payload.ExpiresIn)
	if err != nil {
		return core.Credential{}, core.NewTokenExchangeError(
			err,
			"auth: token response has an invalid expires_in",
			res.StatusCode,
			map[string]any{"token_url": c.config.TokenURL},
		)
	}

	credential := core.Credential{
		Token:     token,
		ExpiresAt: issuedAt.Add(expiresIn),
	}
	c.logger.Debug("auth: token refreshed", "token_url", c.config.TokenURL, "expires_in_s", int(expiresIn.Seconds()))
	return credential, nil
}

// parseExpiresIn accepts expires_in as a JSON number or a numeric string.
func parseExpiresIn(raw json.RawMessage) (time.Duration, error) {
	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if value == "" || value == "null" {
		return 0, fmt.Errorf("expires_in is missing")
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("expires_in must be positive, got %v", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

var _ core.TokenSource = (*TokenCache)(nil)
