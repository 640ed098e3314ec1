package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	l := New(3, time.Minute)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !l.Allow("ask", now) {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if l.Allow("ask", now) {
		t.Fatal("4th call within the window should be denied")
	}
}

func TestWindowResetsAfterElapsing(t *testing.T) {
	l := New(1, time.Minute)
	start := time.Now()
	if !l.Allow("ask", start) {
		t.Fatal("first call should be allowed")
	}
	if l.Allow("ask", start.Add(30*time.Second)) {
		t.Fatal("call mid-window should be denied")
	}
	if !l.Allow("ask", start.Add(61*time.Second)) {
		t.Fatal("call after the window elapses should be allowed")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Now()
	if !l.Allow("ask", now) {
		t.Fatal("ask should be allowed")
	}
	if !l.Allow("search_context", now) {
		t.Fatal("a different key should have its own independent budget")
	}
}

func TestRemainingReflectsConsumedBudget(t *testing.T) {
	l := New(5, time.Minute)
	now := time.Now()
	l.Allow("ask", now)
	l.Allow("ask", now)
	if got := l.Remaining("ask", now); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
}
