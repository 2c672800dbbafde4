package gw2

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"gw2-flipper/internal/config"
)

// Client is a rate-limited Guild Wars 2 API client.
type Client struct {
	http    *http.Client
	baseURL string
	key     string
	sem     chan struct{}
	limiter *rate.Limiter

	pageSize      int
	maxRetries    int
	rateLimitWait time.Duration
	transientWait time.Duration

	sleep func(time.Duration) // swapped out in tests
}

// NewClient creates a client from API settings. The semaphore caps
// in-flight requests; the limiter smooths request bursts below the
// anonymous API quota.
func NewClient(cfg config.APIConfig) *Client {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 20
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		http:          &http.Client{Timeout: 30 * time.Second},
		baseURL:       cfg.BaseURL,
		key:           cfg.Key,
		sem:           make(chan struct{}, maxConc),
		limiter:       rate.NewLimiter(rate.Limit(rps), maxConc),
		pageSize:      cfg.PageSize,
		maxRetries:    cfg.MaxRetries,
		rateLimitWait: cfg.RateLimitWait,
		transientWait: cfg.TransientWait,
		sleep:         time.Sleep,
	}
}

// HealthCheck pings the API build endpoint to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	status, _, _, err := c.get(ctx, c.baseURL+"/build")
	return err == nil && status == http.StatusOK
}

// get performs a single GET and returns the status code, body and
// Warning header. Transport-level failures return an error;
// HTTP-level failures do not, the caller decides what a non-2xx
// status means.
func (c *Client) get(ctx context.Context, rawURL string) (int, []byte, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, "", err
	}
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("User-Agent", "gw2-flipper/1.0")
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, "", err
	}
	return resp.StatusCode, body, resp.Header.Get("Warning"), nil
}

// endpointURL builds a bulk endpoint URL for a page of ids.
func (c *Client) endpointURL(endpoint string, ids []int) string {
	q := url.Values{}
	q.Set("ids", joinIDs(ids))
	q.Set("lang", "en")
	return fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())
}

func joinIDs(ids []int) string {
	buf := make([]byte, 0, len(ids)*6)
	for i, id := range ids {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = fmt.Appendf(buf, "%d", id)
	}
	return string(buf)
}
