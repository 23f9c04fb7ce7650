package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmpvdesign/dsa-scrape/config"
	"github.com/mmpvdesign/dsa-scrape/models"
)

// Client wraps one long-lived HTTP session against the tracker: default
// headers with a per-session user agent, a retry policy for transient status
// codes, Retry-After handling for 429s, optional proxy routing, an optional
// fixed pre-request delay, and request statistics.
type Client struct {
	cfg     *config.Config
	http    *resty.Client
	metrics *Metrics

	total   int64
	success int64
	failed  int64
	retries int64
	start   time.Time

	// sleep is replaceable in tests so waits resolve without real time.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	debug []string
}

// transientStatus reports status codes worth retrying with backoff. 429 is
// handled separately through Retry-After.
func transientStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NewClient builds the session client from cfg. The user agent is chosen
// once here and reused for every request in the session.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = RandomUserAgent()
	}

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeaders(map[string]string{
			"User-Agent":                userAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           cfg.AcceptLanguage,
			"Connection":                "keep-alive",
			"Upgrade-Insecure-Requests": "1",
		})

	rc.SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if cfg.ProxyURL != "" {
		// Routes both HTTP and HTTPS through the configured proxy.
		rc.SetProxy(cfg.ProxyURL)
	}

	return &Client{
		cfg:     cfg,
		http:    rc,
		metrics: metrics,
		sleep:   sleepContext,
		start:   time.Now(),
	}, nil
}

// Get issues a GET request through the session retry policy.
func (c *Client) Get(ctx context.Context, url string) (*resty.Response, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// Post issues a POST request with form data through the session retry policy.
func (c *Client) Post(ctx context.Context, url string, form map[string]string) (*resty.Response, error) {
	return c.do(ctx, http.MethodPost, url, form)
}

func (c *Client) do(ctx context.Context, method, url string, form map[string]string) (*resty.Response, error) {
	attempt := 0
	for {
		if c.cfg.Delay > 0 {
			if err := c.sleep(ctx, c.cfg.Delay); err != nil {
				return nil, err
			}
		}

		atomic.AddInt64(&c.total, 1)
		c.metrics.IncRequest("started")

		req := c.http.R().SetContext(ctx)
		if form != nil {
			req.SetFormData(form)
		}

		begin := time.Now()
		resp, err := req.Execute(method, url)
		c.metrics.ObserveDuration(time.Since(begin))
		c.capture(method, url, resp, err)

		if err == nil && resp.StatusCode() == http.StatusTooManyRequests {
			// A Retry-After wait does not consume the generic retry budget.
			wait := retryAfter(resp, c.cfg.RetryAfterDefault)
			slog.Warn("rate limited, honoring Retry-After",
				slog.String("url", url),
				slog.Duration("wait", wait),
			)
			c.metrics.IncRateLimitWait()
			if serr := c.sleep(ctx, wait); serr != nil {
				atomic.AddInt64(&c.failed, 1)
				return nil, serr
			}
			continue
		}

		if err == nil && resp.IsSuccess() {
			atomic.AddInt64(&c.success, 1)
			c.metrics.IncRequest("succeeded")
			return resp, nil
		}

		statusCode := 0
		if err == nil {
			statusCode = resp.StatusCode()
		}

		if attempt < c.cfg.MaxRetries && (err != nil || transientStatus(statusCode)) {
			delay := c.backoff(attempt)
			slog.Debug("request failed, retrying",
				slog.String("url", url),
				slog.Int("attempt", attempt+1),
				slog.Int("status", statusCode),
				slog.Duration("backoff", delay),
				slog.Any("error", err),
			)
			atomic.AddInt64(&c.retries, 1)
			c.metrics.IncRetries()
			if serr := c.sleep(ctx, delay); serr != nil {
				atomic.AddInt64(&c.failed, 1)
				return nil, serr
			}
			attempt++
			continue
		}

		atomic.AddInt64(&c.failed, 1)
		classified := classifyError(err, statusCode)
		if classified == nil {
			classified = fmt.Errorf("request to %s failed", url)
		}
		c.metrics.IncError(errorTypeLabel(classified))
		return nil, fmt.Errorf("%s %s: %w", method, url, classified)
	}
}

// backoff doubles from the configured base per attempt, capped at the max.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<attempt)
	if max := c.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// retryAfter reads a Retry-After header in seconds, falling back to def.
func retryAfter(resp *resty.Response, def time.Duration) time.Duration {
	raw := resp.Header().Get("Retry-After")
	if raw == "" {
		return def
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats returns a point-in-time snapshot of the session counters.
func (c *Client) Stats() models.RequestStats {
	return models.RequestStats{
		TotalRequests:      atomic.LoadInt64(&c.total),
		SuccessfulRequests: atomic.LoadInt64(&c.success),
		FailedRequests:     atomic.LoadInt64(&c.failed),
		StartTime:          c.start,
	}
}

// Retries returns the number of retry attempts made this session.
func (c *Client) Retries() int {
	return int(atomic.LoadInt64(&c.retries))
}

// SetTransport swaps the underlying transport; used by tests to install a
// mock.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// UserAgent reports the session's user agent.
func (c *Client) UserAgent() string {
	return c.http.Header.Get("User-Agent")
}

func (c *Client) capture(method, url string, resp *resty.Response, err error) {
	if !c.cfg.DebugCapture {
		return
	}
	entry := fmt.Sprintf("%s %s", method, url)
	if err != nil {
		entry += fmt.Sprintf(" error=%v", err)
	} else {
		body := resp.String()
		if len(body) > 500 {
			body = body[:500]
		}
		entry += fmt.Sprintf(" status=%d bytes=%d\n%s", resp.StatusCode(), len(resp.Body()), body)
	}
	c.mu.Lock()
	c.debug = append(c.debug, entry)
	c.mu.Unlock()
}

// DebugLog returns a copy of the captured request summaries.
func (c *Client) DebugLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.debug))
	copy(out, c.debug)
	return out
}
