package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"
	"camlink/pkg/cache"
	"camlink/pkg/circuitbreaker"
	"camlink/pkg/retry"

	"go.uber.org/zap"
)

// Client talks to the surveillance server's monitor/event REST API. Every
// request goes through a per-client circuit breaker and retry with backoff,
// so a flapping server does not stall the viewer.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retryCfg   retry.Config
	monitors   *cache.Cache
	logger     *zap.SugaredLogger
}

// monitorCacheTTL bounds how stale the monitor list may get between
// refreshes of the camera picker.
const monitorCacheTTL = 30 * time.Second

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.SugaredLogger) ports.GatewayAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("gateway breaker state change", "from", from, "to", to)
	})
	retryCfg := retry.DefaultConfig()
	retryCfg.NonRetryableErrors = []error{errRejected}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		retryCfg:   retryCfg,
		monitors:   cache.NewCache(monitorCacheTTL),
		logger:     logger,
	}
}

// Ping checks gateway liveness.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/v1/health", nil, &out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnreachable, err)
	}
	return nil
}

func (c *Client) ListMonitors(ctx context.Context) ([]*domain.Monitor, error) {
	if cached, ok := c.monitors.Get("monitors"); ok {
		return cached.([]*domain.Monitor), nil
	}

	var out struct {
		Monitors []*domain.Monitor `json:"monitors"`
	}
	if err := c.get(ctx, "/api/v1/monitors", nil, &out); err != nil {
		return nil, err
	}

	c.monitors.Set("monitors", out.Monitors)
	return out.Monitors, nil
}

func (c *Client) GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	var out domain.Monitor
	err := c.get(ctx, "/api/v1/monitors/"+url.PathEscape(string(id)), nil, &out)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			return nil, domain.ErrMonitorNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListEvents(ctx context.Context, q domain.EventQuery) ([]*domain.Event, error) {
	params := url.Values{}
	if q.MonitorID != "" {
		params.Set("monitor_id", string(q.MonitorID))
	}
	if !q.After.IsZero() {
		params.Set("after", q.After.UTC().Format(time.RFC3339))
	}
	if !q.Before.IsZero() {
		params.Set("before", q.Before.UTC().Format(time.RFC3339))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var out struct {
		Events []*domain.Event `json:"events"`
	}
	if err := c.get(ctx, "/api/v1/events", params, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// errRejected marks 4xx responses: retrying them cannot help.
var errRejected = errors.New("request rejected")

// apiError preserves the HTTP status for callers that map statuses to domain
// errors.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.status, e.body)
}

func (e *apiError) Unwrap() error {
	if e.status >= 400 && e.status < 500 {
		return errRejected
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	return c.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, c.retryCfg, func() error {
			return c.doGet(ctx, reqURL, out)
		})
	})
}

func (c *Client) doGet(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &apiError{status: resp.StatusCode, body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
