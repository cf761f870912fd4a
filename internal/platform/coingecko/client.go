// Package coingecko fetches spot prices from the CoinGecko public API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// cacheTTL bounds how stale a cached spot price may be before a refetch.
const cacheTTL = 60 * time.Second

// Client fetches USD spot prices with a short-lived in-process cache so a
// scan cycle touching many markets costs one upstream call.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	cached map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

// NewClient creates a CoinGecko client against the public API.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cached: make(map[string]cachedPrice),
	}
}

// SpotPrice returns the current USD price for a coin id such as "bitcoin".
func (c *Client) SpotPrice(ctx context.Context, coinID string) (float64, error) {
	c.mu.Lock()
	if entry, ok := c.cached[coinID]; ok && time.Since(entry.fetchedAt) < cacheTTL {
		c.mu.Unlock()
		return entry.price, nil
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", "usd")

	reqURL := c.baseURL + "/simple/price?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coingecko: spot price %s: %w", coinID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko: spot price %s: HTTP %d", coinID, resp.StatusCode)
	}

	var parsed map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("coingecko: decode response: %w", err)
	}

	entry, ok := parsed[coinID]
	if !ok || entry.USD <= 0 {
		return 0, fmt.Errorf("coingecko: no price for %s", coinID)
	}

	c.mu.Lock()
	c.cached[coinID] = cachedPrice{price: entry.USD, fetchedAt: time.Now()}
	c.mu.Unlock()

	return entry.USD, nil
}
