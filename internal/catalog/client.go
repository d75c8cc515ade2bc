package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config drives the stats endpoint client behaviour.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// ErrMissingContact is returned when no identifying user agent is configured.
// The upstream usage policy requires a contact-identifying User-Agent string.
var ErrMissingContact = errors.New("catalog client missing contact user agent")

// Client fetches the reference stat dataset from the trade API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient constructs a stats client if configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, ErrMissingContact
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://www.pathofexile.com/api/trade/data/stats"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
	}, nil
}

type statEntry struct {
	ID     string          `json:"id"`
	Text   string          `json:"text"`
	Option json.RawMessage `json:"option,omitempty"`
}

type statGroup struct {
	Label   string      `json:"label"`
	Entries []statEntry `json:"entries"`
}

type statsResponse struct {
	Result []statGroup `json:"result"`
	Error  string      `json:"error,omitempty"`
}

// FetchStats retrieves the grouped stat dataset. It returns both the raw
// payload (kept for the proxy endpoint and the disk cache) and the decoded
// groups.
func (c *Client) FetchStats(ctx context.Context) (json.RawMessage, []statGroup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch stats dataset: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read stats response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var payload statsResponse
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return nil, nil, fmt.Errorf("stats endpoint status %d: %s", resp.StatusCode, payload.Error)
		}
		return nil, nil, fmt.Errorf("stats endpoint status %d", resp.StatusCode)
	}

	var payload statsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode stats response: %w", err)
	}
	if len(payload.Result) == 0 {
		return nil, nil, errors.New("stats response contains no groups")
	}

	return body, payload.Result, nil
}
