package ctxsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestExpiredDetectsPastExpiry(t *testing.T) {
	token := signToken(t, time.Now().Add(-time.Hour))
	if !expired(token) {
		t.Error("expected an already-expired token to be detected as expired")
	}
}

func TestExpiredAllowsFutureExpiry(t *testing.T) {
	token := signToken(t, time.Now().Add(time.Hour))
	if expired(token) {
		t.Error("expected a not-yet-expired token to not be flagged expired")
	}
}

func TestExpiredTreatsMalformedTokenAsExpired(t *testing.T) {
	if !expired("not-a-jwt") {
		t.Error("expected a malformed token to be treated as expired")
	}
}

func TestRefreshCollapsesConcurrentCalls(t *testing.T) {
	var calls int32
	refresher := func(ctx context.Context, workspaceID string) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return signToken(t, time.Now().Add(time.Hour)), nil
	}
	c := New("http://example.invalid", refresher, 100, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.refresh(context.Background(), "ws-1"); err != nil {
				t.Errorf("refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 underlying refresh call, got %d", got)
	}
}

func TestGetReturnsValueOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	refresher := func(ctx context.Context, workspaceID string) (string, error) {
		return signToken(t, time.Now().Add(time.Hour)), nil
	}
	c := New(srv.URL, refresher, 100, 100)
	data, err := c.Get(context.Background(), "ws-1", "some-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Get = %q, want %q", data, "hello")
	}
}

func TestGetReturnsReconnectRequiredAfterRepeatedAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	refresher := func(ctx context.Context, workspaceID string) (string, error) {
		return signToken(t, time.Now().Add(time.Hour)), nil
	}
	c := New(srv.URL, refresher, 100, 100)
	_, err := c.Get(context.Background(), "ws-1", "some-key")
	if err != ErrReconnectRequired {
		t.Fatalf("expected ErrReconnectRequired, got %v", err)
	}
}
