package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.WaitKey(ctx, "openai"); err != nil {
		t.Errorf("wait on named bucket failed: %v", err)
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)

	start := time.Now()
	if err := limiter.WaitWithDelay(context.Background(), "http://example.com", 50*time.Millisecond); err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", d)
	}
}

func TestLimiter_WaitWithDelayCancelled(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.WaitWithDelay(ctx, "http://example.com", time.Minute); err == nil {
		t.Error("expected cancelled context to abort the wait")
	}
}

func TestLimiter_SharedSite(t *testing.T) {
	limiter := NewLimiter(0.01, 1)

	if !limiter.Allow("https://www.example.co.uk/a") {
		t.Fatal("first request should pass")
	}
	if limiter.Allow("https://news.example.co.uk/b") {
		t.Error("subdomain of the same site should share the bucket")
	}
	if !limiter.Allow("https://other.co.uk/") {
		t.Error("different site should pass")
	}
}

func TestLimiter_SetSiteRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetSiteRate("slow.com", 0.1, 1)

	if !limiter.Allow("http://slow.com") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("http://www.slow.com") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("http://fast.com") {
		t.Errorf("other site should pass")
	}
}

func TestSiteKey(t *testing.T) {
	tests := map[string]string{
		"http://example.com/foo":          "example.com",
		"https://en.wikipedia.org/wiki/X": "wikipedia.org",
		"https://www.bbc.co.uk/news":      "bbc.co.uk",
		"http://127.0.0.1:8080/x":         "127.0.0.1",
	}
	for in, want := range tests {
		got, err := SiteKey(in)
		if err != nil {
			t.Errorf("SiteKey(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("SiteKey(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := SiteKey("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
