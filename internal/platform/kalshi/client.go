// Package kalshi is the REST client for the Kalshi exchange API. It
// normalizes cent prices to fractions at the boundary and implements
// domain.Exchange.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// readRetries bounds the backoff retry loop for read-side requests. Order
// submissions are never retried: an ambiguous failure must surface instead
// of risking a double fill.
const readRetries = 2

// Client is the REST client for the Kalshi exchange API.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier. requestsPerSecond paces all
// outbound calls.
func NewClient(baseURL, apiKeyID string, requestsPerSecond int) *Client {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &Client{
		baseURL:  baseURL,
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for RSA-signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// ActiveMarkets returns up to limit open markets, following pagination.
func (c *Client) ActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	var markets []domain.Market
	cursor := ""

	for len(markets) < limit {
		pageSize := limit - len(markets)
		if pageSize > 100 {
			pageSize = 100
		}

		params := url.Values{}
		params.Set("status", "open")
		params.Set("limit", strconv.Itoa(pageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := c.doRead(ctx, "/markets?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("kalshi: get markets: %w", err)
		}

		var resp struct {
			Markets []KalshiMarket `json:"markets"`
			Cursor  string         `json:"cursor"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("kalshi: decode markets: %w", err)
		}

		for _, m := range resp.Markets {
			markets = append(markets, m.toDomain())
		}

		if resp.Cursor == "" || len(resp.Markets) == 0 {
			break
		}
		cursor = resp.Cursor
	}

	return markets, nil
}

// Quote returns a single market by its ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (domain.Market, error) {
	body, err := c.doRead(ctx, "/markets/"+url.PathEscape(ticker))
	if err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market KalshiMarket `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: decode market: %w", err)
	}

	return resp.Market.toDomain(), nil
}

// Orderbook returns the current orderbook for the given market ticker.
func (c *Client) Orderbook(ctx context.Context, ticker string) (domain.Orderbook, error) {
	body, err := c.doRead(ctx, "/markets/"+url.PathEscape(ticker)+"/orderbook")
	if err != nil {
		return domain.Orderbook{}, fmt.Errorf("kalshi: get orderbook %s: %w", ticker, err)
	}

	var resp struct {
		Orderbook KalshiOrderbook `json:"orderbook"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Orderbook{}, fmt.Errorf("kalshi: decode orderbook: %w", err)
	}

	return resp.Orderbook.toDomain(ticker), nil
}

// OpenOrders returns all resting orders.
func (c *Client) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	body, err := c.doRead(ctx, "/portfolio/orders?status=resting")
	if err != nil {
		return nil, fmt.Errorf("kalshi: get open orders: %w", err)
	}

	var resp struct {
		Orders []KalshiOpenOrder `json:"orders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode open orders: %w", err)
	}

	orders := make([]domain.OpenOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		orders = append(orders, o.toDomain())
	}
	return orders, nil
}

// PlaceOrder submits a new order. It is sent exactly once; any failure,
// including a timeout, surfaces to the caller unretried.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	if req.Count < 1 {
		return domain.OrderConfirmation{}, fmt.Errorf("kalshi: place order: %w", domain.ErrInvalidOrder)
	}
	if req.Type == domain.OrderTypeLimit && (req.PriceCents < 1 || req.PriceCents > 99) {
		return domain.OrderConfirmation{}, fmt.Errorf("kalshi: place order price %d: %w", req.PriceCents, domain.ErrInvalidOrder)
	}

	order := KalshiOrder{
		Ticker:        req.Ticker,
		Action:        string(req.Action),
		Side:          string(req.Side),
		Type:          string(req.Type),
		Count:         int64(req.Count),
		ClientOrderID: req.ClientOrderID,
	}
	if req.Type == domain.OrderTypeLimit {
		price := int64(req.PriceCents)
		if req.Side == domain.SideNo {
			order.NoPrice = &price
		} else {
			order.YesPrice = &price
		}
	}

	body, err := c.doSignedRequest(ctx, http.MethodPost, "/portfolio/orders", order)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp KalshiOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}

	if resp.Order.Status == "canceled" {
		return domain.OrderConfirmation{}, fmt.Errorf("kalshi: order was immediately cancelled: %w", domain.ErrInvalidOrder)
	}

	return domain.OrderConfirmation{
		OrderID: resp.Order.OrderID,
		Status:  resp.Order.Status,
	}, nil
}

// CancelOrder cancels an existing order by its ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := "/portfolio/orders/" + url.PathEscape(orderID)
	if _, err := c.doSignedRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("kalshi: cancel order %s: %w", orderID, err)
	}
	return nil
}

// Positions returns current exchange holdings for reconciliation.
func (c *Client) Positions(ctx context.Context) ([]domain.ExchangeHolding, error) {
	body, err := c.doRead(ctx, "/portfolio/positions")
	if err != nil {
		return nil, fmt.Errorf("kalshi: get positions: %w", err)
	}

	var resp struct {
		MarketPositions []KalshiPosition `json:"market_positions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode positions: %w", err)
	}

	holdings := make([]domain.ExchangeHolding, 0, len(resp.MarketPositions))
	for _, p := range resp.MarketPositions {
		if p.Position == 0 {
			continue
		}
		holdings = append(holdings, p.toDomain())
	}
	return holdings, nil
}

// Balance returns the available cash balance in dollars.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	body, err := c.doRead(ctx, "/portfolio/balance")
	if err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp KalshiBalance
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: decode balance: %w", err)
	}
	return float64(resp.Balance) / 100, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRead performs a GET with bounded backoff retry on transient failures.
func (c *Client) doRead(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= readRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	// Network-level failures are retryable for reads.
	return true
}

// doSignedRequest builds, signs (RSA), sends, and reads an HTTP request
// against the Kalshi API. All requests pass through the shared rate limiter.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	// Sign the request with RSA.
	if err := c.signRequest(req, method, path); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi uses RSA-PSS-SHA256 signatures over the timestamp + method + path
// message string. The query string is excluded from the signed path.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	if c.privateKey == nil {
		// If no RSA key is set, we cannot sign. This is a configuration error.
		return fmt.Errorf("kalshi: RSA private key not configured")
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	signPath := path
	if q := strings.IndexByte(signPath, '?'); q >= 0 {
		signPath = signPath[:q]
	}

	// The message to sign is: timestamp + method + path
	message := ts + method + "/trade-api/v2" + signPath

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	encodedSig := base64.StdEncoding.EncodeToString(signature)

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", encodedSig)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// statusError carries the HTTP status for retry classification.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	var err error
	switch statusCode {
	case http.StatusNotFound:
		err = fmt.Errorf("kalshi: not found: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		err = fmt.Errorf("kalshi: unauthorized: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrUnauthorized)
	case http.StatusTooManyRequests:
		err = fmt.Errorf("kalshi: rate limited: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrRateLimited)
	case http.StatusBadRequest:
		err = fmt.Errorf("kalshi: bad request: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrInvalidOrder)
	case http.StatusConflict:
		err = fmt.Errorf("kalshi: conflict: %s (%s)", apiErr.Message, apiErr.Code)
	default:
		err = fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
	return &statusError{code: statusCode, err: err}
}

// Compile-time interface check.
var _ domain.Exchange = (*Client)(nil)
