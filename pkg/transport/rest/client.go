// Package rest implements the message log on top of a chat-channel REST API
// (create, list, edit and delete messages of a single channel).
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/resilience"
	"github.com/nimburion/docstream/pkg/transport"
)

// Config configures the REST transport.
type Config struct {
	BaseURL   string
	ChannelID string
	Token     string
	// AuthScheme prefixes the token in the Authorization header ("Bot" by default).
	AuthScheme       string
	OperationTimeout time.Duration
	// RequestsPerSecond throttles outgoing requests on the client side. Zero disables it.
	RequestsPerSecond float64
	Burst             int
	// MaxRetries bounds automatic retries of rate-limited requests.
	MaxRetries int
	// MaxRetryWait caps a single server-advised wait.
	MaxRetryWait     time.Duration
	MaxContentLength int
	Breaker          resilience.Config
	HTTPClient       *http.Client
}

// Client is a transport.Transport backed by a channel-messages REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	log        logger.Logger
}

var _ transport.Transport = (*Client)(nil)

type wireMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"`
}

// New creates a REST transport client.
func New(cfg Config, log logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("rest transport base url is required")
	}
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, fmt.Errorf("rest transport channel id is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("rest transport token is required")
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bot"
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = 30 * time.Second
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = transport.MaxContentLength
	}
	if cfg.Breaker.IsFailure == nil {
		cfg.Breaker.IsFailure = func(err error) bool { return errors.Is(err, transport.ErrNetwork) }
	}
	if log == nil {
		log = logger.Nop{}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: defaultHTTPClient(cfg.HTTPClient, cfg.OperationTimeout),
		breaker:    resilience.NewCircuitBreaker(cfg.Breaker),
		log:        log.With("transport", "rest", "channel_id", cfg.ChannelID),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// Create posts a new message.
func (c *Client) Create(ctx context.Context, content string) (transport.Message, error) {
	if err := transport.CheckContent(content, c.cfg.MaxContentLength); err != nil {
		return transport.Message{}, err
	}
	var out wireMessage
	err := c.do(ctx, http.MethodPost, c.messagesPath(), nil, map[string]string{"content": content}, &out)
	return toMessage(out), err
}

// List returns up to limit messages newest first, older than before when set.
func (c *Client) List(ctx context.Context, limit int, before string) ([]transport.Message, error) {
	if limit <= 0 {
		limit = transport.DefaultPageSize
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if before != "" {
		query.Set("before", before)
	}
	var page []wireMessage
	if err := c.do(ctx, http.MethodGet, c.messagesPath(), query, nil, &page); err != nil {
		return nil, err
	}
	out := make([]transport.Message, 0, len(page))
	for _, m := range page {
		out = append(out, toMessage(m))
	}
	return out, nil
}

// ListAll pages through the channel history.
func (c *Client) ListAll(ctx context.Context, maxItems int) ([]transport.Message, error) {
	return transport.ListAllMessages(ctx, c, transport.DefaultPageSize, maxItems)
}

// Edit replaces a message's content.
func (c *Client) Edit(ctx context.Context, id, content string) (transport.Message, error) {
	if err := transport.CheckContent(content, c.cfg.MaxContentLength); err != nil {
		return transport.Message{}, err
	}
	var out wireMessage
	err := c.do(ctx, http.MethodPatch, c.messagesPath()+"/"+url.PathEscape(id), nil, map[string]string{"content": content}, &out)
	return toMessage(out), err
}

// Delete removes a message.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.messagesPath()+"/"+url.PathEscape(id), nil, nil, nil)
}

// TestConnection fetches the channel resource.
func (c *Client) TestConnection(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(c.cfg.ChannelID), nil, nil, nil)
	if err != nil {
		c.log.Warn("connection test failed", "error", err)
		return false
	}
	return true
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) messagesPath() string {
	return "/channels/" + url.PathEscape(c.cfg.ChannelID) + "/messages"
}

// do sends one request, retrying rate-limited responses up to MaxRetries times.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.send(ctx, method, path, query, raw, out)
		})
		if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
			return fmt.Errorf("%w: %v", transport.ErrNetwork, err)
		}
		var rl *transport.RateLimitError
		if !errors.As(err, &rl) || attempt >= c.cfg.MaxRetries {
			return err
		}
		wait := rl.RetryAfter
		if wait > c.cfg.MaxRetryWait {
			wait = c.cfg.MaxRetryWait
		}
		c.log.Warn("rate limited, retrying", "method", method, "path", path, "retry_after", wait, "attempt", attempt+1)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, raw []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", transport.ErrNetwork, err)
		}
	}

	cctx, cancel := withTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if raw != nil {
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(cctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.AuthScheme+" "+c.cfg.Token)
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", transport.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", transport.ErrNetwork, err)
	}

	if err := statusError(resp, payload, method, path); err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "status", resp.StatusCode)
		return err
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", transport.ErrNetwork, err)
	}
	return nil
}

func statusError(resp *http.Response, payload []byte, method, path string) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s returned %d", transport.ErrAuthentication, method, path, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", transport.ErrNotFound, method, path)
	case code == http.StatusTooManyRequests:
		return &transport.RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"), payload)}
	case code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s %s returned %d", transport.ErrContentTooLarge, method, path, code)
	default:
		return fmt.Errorf("%w: %s %s returned %d", transport.ErrNetwork, method, path, code)
	}
}

// retryAfter reads the wait from the Retry-After header (seconds, possibly
// fractional) or the retry_after field of the body.
func retryAfter(header string, payload []byte) time.Duration {
	if secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	var body rateLimitBody
	if json.Unmarshal(payload, &body) == nil && body.RetryAfter > 0 {
		return time.Duration(body.RetryAfter * float64(time.Second))
	}
	return time.Second
}

func toMessage(m wireMessage) transport.Message {
	return transport.Message{ID: m.ID, Content: m.Content, Timestamp: m.Timestamp}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func defaultHTTPClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
