package evidence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
)

func newTestChecker(respectRobots bool) *LinkChecker {
	cfg := model.DefaultConfig().Evidence
	cfg.Timeout = 5 * time.Second
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	cfg.RespectRobots = respectRobots
	c := NewLinkChecker(cfg, nil, logger.Discard())
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestCheckAccessibleAndStale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2023 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestChecker(false)
	c.now = func() time.Time { return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC) }

	got := c.Check(context.Background(), []string{server.URL})
	if len(got) != 1 {
		t.Fatalf("expected one result, got %d", len(got))
	}
	if !got[0].IsAccessible || got[0].IsDead {
		t.Errorf("expected accessible link, got %+v", got[0])
	}
	if got[0].LastModified == nil || !got[0].IsStale {
		t.Errorf("expected stale Last-Modified, got %+v", got[0])
	}
}

func TestCheckDeadLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	got := newTestChecker(false).Check(context.Background(), []string{server.URL})
	if got[0].IsAccessible || !got[0].IsDead || got[0].StatusCode != http.StatusGone {
		t.Errorf("expected dead link, got %+v", got[0])
	}
}

func TestCheckFallsBackToGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	got := newTestChecker(false).Check(context.Background(), []string{server.URL})
	if !got[0].IsAccessible {
		t.Errorf("expected GET fallback to succeed, got %+v", got[0])
	}
}

func TestCheckRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	got := newTestChecker(false).Check(context.Background(), []string{server.URL})
	if !got[0].IsAccessible {
		t.Errorf("expected success on third attempt, got %+v", got[0])
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCheckHonoursRobots(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		pageHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestChecker(true)
	got := c.Check(context.Background(), []string{server.URL + "/private/doc", server.URL + "/public"})

	if !got[0].Blocked || got[0].IsAccessible {
		t.Errorf("expected /private to be blocked, got %+v", got[0])
	}
	if !got[1].IsAccessible {
		t.Errorf("expected /public to be accessible, got %+v", got[1])
	}
	if pageHits.Load() != 1 {
		t.Errorf("blocked page was fetched: %d page hits", pageHits.Load())
	}
}

func TestCheckKeepsInputOrder(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer gone.Close()

	urls := []string{gone.URL, ok.URL, gone.URL + "/x", ok.URL + "/y"}
	got := newTestChecker(false).Check(context.Background(), urls)
	for i, status := range got {
		if status.URL != urls[i] {
			t.Errorf("result %d is for %s, want %s", i, status.URL, urls[i])
		}
	}
	if got[0].IsAccessible || !got[1].IsAccessible {
		t.Errorf("results out of order: %+v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		status model.LinkStatus
		want   bool
	}{
		{model.LinkStatus{StatusCode: 503}, true},
		{model.LinkStatus{StatusCode: 429}, true},
		{model.LinkStatus{StatusCode: 404}, false},
		{model.LinkStatus{Error: "dial tcp: connection refused"}, true},
		{model.LinkStatus{Error: "no such host"}, false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.status); got != tt.want {
			t.Errorf("isRetryable(%+v) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
