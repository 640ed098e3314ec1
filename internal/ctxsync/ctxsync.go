// Package ctxsync implements the opaque remote context-sync client (§1
// "remote context-sync service — treated as an opaque key-value store
// accessed by workspace-id"): bearer-token auth with JWT expiry parsing, a
// singleflight-guarded refresh, and outbound throttling, grounded on the
// teacher pack's relay auth/bandwidth idiom (ehrlich-b-wingthing).
package ctxsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Sentinel errors surfaced to callers, per §7's AuthExpired/RateLimited
// error kinds.
var (
	ErrAuthExpired       = errors.New("ctxsync: auth token expired")
	ErrReconnectRequired = errors.New("ctxsync: reconnect required")
	ErrRateLimited       = errors.New("ctxsync: rate limited")
)

// fetchDeadline bounds every outbound call (§5 "network fetch deadline ≈
// 10-15s").
const fetchDeadline = 12 * time.Second

// TokenRefresher fetches a fresh bearer token for workspaceID. Supplied by
// the caller since the actual auth backend is out of scope (§1).
type TokenRefresher func(ctx context.Context, workspaceID string) (token string, err error)

// Client is a KV client for the remote context-sync service. At most one
// token refresh is ever in flight per workspace; concurrent callers await
// that refresh's result rather than issuing their own (§5).
type Client struct {
	baseURL     string
	httpClient  *http.Client
	refresher   TokenRefresher
	limiter     *rate.Limiter
	group       singleflight.Group

	mu          sync.Mutex
	tokens      map[string]string
	reconnected map[string]bool // true once a repeat AuthExpired has occurred for this workspace
}

// New returns a Client. ratePerSecond/burst throttle outbound calls,
// distinct from the per-tool fixed-window limiter in internal/ratelimit
// (this is a token bucket suited to bursty network calls, not exact
// per-window call counting).
func New(baseURL string, refresher TokenRefresher, ratePerSecond float64, burst int) *Client {
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: fetchDeadline},
		refresher:   refresher,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		tokens:      map[string]string{},
		reconnected: map[string]bool{},
	}
}

// Get fetches the value stored for key under workspaceID.
func (c *Client) Get(ctx context.Context, workspaceID, key string) ([]byte, error) {
	return c.do(ctx, workspaceID, http.MethodGet, key, nil)
}

// Put stores value for key under workspaceID.
func (c *Client) Put(ctx context.Context, workspaceID, key string, value []byte) error {
	_, err := c.do(ctx, workspaceID, http.MethodPut, key, value)
	return err
}

func (c *Client) do(ctx context.Context, workspaceID, method, key string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, fetchDeadline)
	defer cancel()

	token, err := c.tokenFor(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, workspaceID, key, token, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return finish(resp)
	}
	resp.Body.Close()

	// First AuthExpired: refresh once and retry.
	c.mu.Lock()
	alreadyReconnected := c.reconnected[workspaceID]
	c.mu.Unlock()
	if alreadyReconnected {
		return nil, ErrReconnectRequired
	}

	refreshed, err := c.refresh(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	resp, err = c.send(ctx, method, workspaceID, key, refreshed, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.mu.Lock()
		c.reconnected[workspaceID] = true
		c.mu.Unlock()
		return nil, ErrReconnectRequired
	}
	return finish(resp)
}

func finish(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ctxsync: remote returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) send(ctx context.Context, method, workspaceID, key, token string, body []byte) (*http.Response, error) {
	url := fmt.Sprintf("%s/workspaces/%s/kv/%s", c.baseURL, workspaceID, key)
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(req)
}

// tokenFor returns the cached token for workspaceID, refreshing it first if
// none is cached or the cached one's JWT expiry claim has passed.
func (c *Client) tokenFor(ctx context.Context, workspaceID string) (string, error) {
	c.mu.Lock()
	token, ok := c.tokens[workspaceID]
	c.mu.Unlock()
	if ok && !expired(token) {
		return token, nil
	}
	return c.refresh(ctx, workspaceID)
}

// refresh collapses concurrent refreshes for the same workspace into one
// in-flight call via singleflight, since reusing an already-consumed
// refresh token invalidates the session (§5).
func (c *Client) refresh(ctx context.Context, workspaceID string) (string, error) {
	v, err, _ := c.group.Do(workspaceID, func() (interface{}, error) {
		token, err := c.refresher(ctx, workspaceID)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.tokens[workspaceID] = token
		c.reconnected[workspaceID] = false
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// expired reports whether token's JWT "exp" claim has passed, without
// validating its signature — this client trusts the issuer that minted the
// token and only inspects timing to decide when to proactively refresh.
func expired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return time.Now().After(exp.Time)
}
