package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/worker"
)

const linkCheckMaxRetries = 3

// LinkChecker verifies that evidence URLs still resolve
type LinkChecker struct {
	httpClient *http.Client
	limiter    *worker.Limiter
	robots     *RobotsChecker // nil when robots.txt is ignored
	authority  *AuthorityClassifier
	workers    int
	userAgent  string
	staleAfter time.Duration
	log        *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error // Between retries
}

// NewLinkChecker creates a checker from the evidence settings
func NewLinkChecker(cfg model.EvidenceConfig, authority *AuthorityClassifier, log *slog.Logger) *LinkChecker {
	if authority == nil {
		authority = NewAuthorityClassifier(nil)
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 20
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	c := &LinkChecker{
		httpClient: client,
		limiter:    worker.NewLimiter(rps, cfg.Burst),
		authority:  authority,
		workers:    workers,
		userAgent:  cfg.UserAgent,
		staleAfter: cfg.StaleAfter,
		log:        logger.OrDefault(log),
		now:        time.Now,
		sleep:      sleepContext,
	}
	if cfg.RespectRobots {
		c.robots = NewRobotsChecker(cfg.UserAgent, client)
	}
	return c
}

// Check checks every URL concurrently. Results follow the input order.
func (c *LinkChecker) Check(ctx context.Context, urls []string) []model.LinkStatus {
	tasks := make([]worker.Task[model.LinkStatus], len(urls))
	for i, u := range urls {
		tasks[i] = func(ctx context.Context) (model.LinkStatus, error) {
			return c.checkWithRetry(ctx, u), nil
		}
	}

	out := make([]model.LinkStatus, len(urls))
	for _, res := range worker.Run(ctx, c.workers, tasks) {
		if res.Err != nil {
			out[res.Index] = model.LinkStatus{URL: urls[res.Index], Error: res.Err.Error()}
			continue
		}
		out[res.Index] = res.Value
	}
	return out
}

// CheckEvidence checks the source URLs of attached evidence
func (c *LinkChecker) CheckEvidence(ctx context.Context, evidence []model.Evidence) []model.LinkStatus {
	var urls []string
	for _, ev := range evidence {
		if ev.SourceURL != "" {
			urls = append(urls, ev.SourceURL)
		}
	}
	return c.Check(ctx, urls)
}

// checkWithRetry retries transient failures with exponential backoff
func (c *LinkChecker) checkWithRetry(ctx context.Context, rawURL string) model.LinkStatus {
	var status model.LinkStatus
	for attempt := 0; attempt < linkCheckMaxRetries; attempt++ {
		status = c.checkOne(ctx, rawURL)
		if !isRetryable(status) {
			return status
		}
		if attempt < linkCheckMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if err := c.sleep(ctx, backoff); err != nil {
				return status
			}
		}
	}
	return status
}

func (c *LinkChecker) checkOne(ctx context.Context, rawURL string) model.LinkStatus {
	status := model.LinkStatus{
		URL:       rawURL,
		Authority: c.authority.Classify(rawURL),
	}

	var crawlDelay time.Duration
	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, rawURL)
		if err != nil {
			status.Error = err.Error()
			status.IsDead = true
			return status
		}
		if !allowed {
			status.Blocked = true
			status.Error = "disallowed by robots.txt"
			return status
		}
		crawlDelay = delay
	}

	if err := c.limiter.WaitWithDelay(ctx, rawURL, crawlDelay); err != nil {
		status.Error = fmt.Sprintf("rate limit: %v", err)
		return status
	}

	resp, err := c.do(ctx, http.MethodHead, rawURL)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		_ = resp.Body.Close()
		resp, err = c.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		status.Error = fmt.Sprintf("request failed: %v", err)
		status.IsDead = true
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		status.IsAccessible = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		status.IsDead = true
	}

	if final := resp.Request.URL.String(); final != rawURL {
		status.RedirectURL = final
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			status.LastModified = &t
			if c.staleAfter > 0 && c.now().Sub(t) > c.staleAfter {
				status.IsStale = true
			}
		}
	}

	c.log.Debug("evidence link checked", "url", rawURL, "status", status.StatusCode, "accessible", status.IsAccessible)
	return status
}

func (c *LinkChecker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

// isRetryable reports transient failures: 5xx, 429 and flaky networks
func isRetryable(status model.LinkStatus) bool {
	if status.StatusCode >= 500 && status.StatusCode < 600 {
		return true
	}
	if status.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if status.Error == "" {
		return false
	}
	s := strings.ToLower(status.Error)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
