package trade

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
)

// ErrConnection marks failures where the upstream was never reached.
var ErrConnection = errors.New("trade api unreachable")

// ErrMalformedResponse marks success statuses whose body is unusable.
var ErrMalformedResponse = errors.New("malformed trade api response")

// StatusError reports a non-success upstream status. RetryAfter is populated
// from the Retry-After header on 429 responses.
type StatusError struct {
	Code       int
	RetryAfter int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("trade api status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("trade api status %d", e.Code)
}

// RateLimited reports whether the upstream rejected the call with 429.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// Forbidden reports whether the upstream denied access outright.
func (e *StatusError) Forbidden() bool {
	return e.Code == http.StatusForbidden
}

// ClientConfig drives trade client behaviour.
type ClientConfig struct {
	BaseURL   string
	UserAgent string
	SessionID string
	Timeout   time.Duration
}

// Client performs authenticated search calls against the trade API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	sessionID  string
}

// ErrMissingContact is returned when no identifying user agent is configured;
// the upstream usage policy requires one.
var ErrMissingContact = errors.New("trade client missing contact user agent")

// NewClient constructs a trade client if configuration is valid.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, ErrMissingContact
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://www.pathofexile.com"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		sessionID:  strings.TrimSpace(cfg.SessionID),
	}, nil
}

// BaseURL reports the configured upstream root, used to build site links to
// result pages.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SearchResult is the upstream's successful search body.
type SearchResult struct {
	ID     string            `json:"id"`
	Result []json.RawMessage `json:"result"`
	Total  int               `json:"total"`
}

type upstreamError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Search submits a league-scoped query. The response headers are returned in
// every case the server was reached, so the caller can reconcile its rate
// limiter even on rejections.
func (c *Client) Search(ctx context.Context, league string, payload SearchPayload) (*SearchResult, http.Header, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	endpoint := c.baseURL + "/api/trade/search/" + url.PathEscape(league)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "POESESSID", Value: c.sessionID})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, fmt.Errorf("%w: read body: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode}
		if retry := resp.Header.Get("Retry-After"); retry != "" {
			if seconds, parseErr := strconv.Atoi(strings.TrimSpace(retry)); parseErr == nil {
				statusErr.RetryAfter = seconds
			}
		}
		var payload upstreamError
		if json.Unmarshal(raw, &payload) == nil {
			statusErr.Message = payload.Error.Message
		}
		return nil, resp.Header, statusErr
	}

	var result SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, resp.Header, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.ID == "" {
		return nil, resp.Header, fmt.Errorf("%w: missing result set id", ErrMalformedResponse)
	}

	return &result, resp.Header, nil
}
