package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/groupbot/groupbot/core"
)

const (
	defaultBaseURL = "https://api.vk.com"
	// DefaultVersion is the API version the client speaks unless overridden.
	DefaultVersion = "5.80"
	requestTimeout = 10 * time.Second

	// Community tokens are limited to 20 requests per second.
	requestsPerSecond = 20
	requestBurst      = 5
)

// Client calls VK API methods on behalf of one community. Calls are
// throttled client-side and guarded by a circuit breaker so a misbehaving
// API does not get hammered.
type Client struct {
	token   string
	groupID int64
	version string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	randID  atomic.Int64
}

// New creates a Client for the given community access token and group ID.
func New(token string, groupID int64, logger *slog.Logger) *Client {
	c := &Client{
		token:   token,
		groupID: groupID,
		version: DefaultVersion,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "vk-api",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.5
			},
		}),
		logger: logger,
	}
	c.randID.Store(time.Now().UnixNano())
	return c
}

// WithBaseURL overrides the API base URL (for testing).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// WithVersion overrides the API version.
func (c *Client) WithVersion(v string) *Client {
	c.version = v
	return c
}

// Call invokes a VK API method and returns the raw response payload. API
// errors are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, method, params)
	})
	if err != nil {
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (c *Client) do(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	form := url.Values{}
	for k, vs := range params {
		form[k] = vs
	}
	form.Set("access_token", c.token)
	form.Set("v", c.version)

	endpoint := c.baseURL + "/method/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http status %d", method, resp.StatusCode)
	}

	var body struct {
		Response json.RawMessage `json:"response"`
		Error    *Error          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, body.Error)
	}
	return body.Response, nil
}

// LongPollSession requests a fresh long-poll server descriptor for the
// community. Implements core.SessionProvider.
func (c *Client) LongPollSession(ctx context.Context) (core.Session, error) {
	params := url.Values{
		"group_id": {strconv.FormatInt(c.groupID, 10)},
	}
	raw, err := c.Call(ctx, "groups.getLongPollServer", params)
	if err != nil {
		return core.Session{}, err
	}

	var s struct {
		Server string      `json:"server"`
		Key    string      `json:"key"`
		TS     core.Cursor `json:"ts"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return core.Session{}, fmt.Errorf("decode long-poll server: %w", err)
	}
	if s.Server == "" || s.Key == "" {
		return core.Session{}, fmt.Errorf("long-poll server descriptor incomplete")
	}
	return core.Session{Server: s.Server, Key: s.Key, TS: s.TS}, nil
}

// SendMessage posts a text message into a peer.
func (c *Client) SendMessage(ctx context.Context, peerID int64, text string) error {
	params := url.Values{
		"peer_id":   {strconv.FormatInt(peerID, 10)},
		"message":   {text},
		"random_id": {strconv.FormatInt(c.randID.Add(1), 10)},
	}
	if _, err := c.Call(ctx, "messages.send", params); err != nil {
		return err
	}
	return nil
}

// Respond implements core.Responder.
func (c *Client) Respond(ctx context.Context, peerID int64, text string) error {
	return c.SendMessage(ctx, peerID, text)
}
