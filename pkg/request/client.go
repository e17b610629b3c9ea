// Package request performs outgoing HTTP calls through per-provider queues.
package request

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ridelog/pkg/tracker"
	"ridelog/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("ridelog/%s (bicycle ride logger)", version.Version)

// ClientConfig bounds each request. Retries is the number of extra attempts after
// the first one; 0 means a failed request is reported immediately.
type ClientConfig struct {
	Retries        int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	BaseDelay      time.Duration
}

// Client handles HTTP requests with per-provider queuing and outcome tracking.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	cfg        ClientConfig

	queues map[string]chan job
	mu     sync.Mutex // protects queues
}

type job struct {
	req      *http.Request
	provider string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a Client. The tracker may be nil.
func New(cfg ClientConfig, t *tracker.Tracker) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		tracker: t,
		cfg:     cfg,
		queues:  make(map[string]chan job),
	}
}

// Get performs a GET request through the provider's queue and returns the body.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	respChan := make(chan jobResult, 1)
	j := job{req: req, provider: normalizeProvider(parsed.Host), respChan: respChan}
	c.dispatch(j)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// Provider returns the tracker key used for requests to u.
func Provider(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	return normalizeProvider(parsed.Host)
}

func normalizeProvider(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.HasSuffix(host, ".open-meteo.com") || host == "open-meteo.com" {
		return "open-meteo"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue and worker if needed.
func (c *Client) dispatch(j job) {
	c.mu.Lock()
	q, ok := c.queues[j.provider]
	if !ok {
		q = make(chan job, 16)
		c.queues[j.provider] = q
		go c.worker(j.provider, q)
	}
	c.mu.Unlock()

	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for one provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if j.req.Context().Err() != nil {
			slog.Debug("Request dropped from queue (context expired)", "provider", provider)
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}

		body, err := c.execute(j.req)
		if c.tracker != nil {
			if err == nil {
				c.tracker.TrackSuccess(provider)
			} else {
				c.tracker.TrackFailure(provider)
			}
		}
		j.respChan <- jobResult{body: body, err: err}
	}
}

// execute runs the request, retrying network errors, 429 and 5xx up to cfg.Retries times.
func (c *Client) execute(req *http.Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.cfg.BaseDelay
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("api error: status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("api error: status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}
	return nil, lastErr
}
