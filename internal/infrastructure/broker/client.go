package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"meanrev-backend/internal/domain"
)

const DefaultBaseURL = "https://api.brokerage.example.com"

// Well-known broker error codes.
const (
	codeInsufficientFunds = -2019
	codeInvalidSymbol     = -1121
	codeOrderRejected     = -2010
)

// Client places authenticated orders with the execution venue.
// Requests are HMAC-SHA256 signed over the query string.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// APIError captures structured error info returned by the broker.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
	Body       string
}

func (e *APIError) Error() string {
	if e == nil {
		return "broker API error"
	}
	if e.Code != 0 || e.Message != "" {
		return fmt.Sprintf("broker API error %d (code=%d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("broker API error %d: %s", e.StatusCode, e.Body)
}

// NewClient builds an authenticated broker client.
func NewClient(apiKey, secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type placeResponse struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
}

// Place submits a limit order and returns the broker order id.
// Broker error codes are mapped onto the domain failure taxonomy so
// the lifecycle manager can classify retryability.
func (c *Client) Place(ctx context.Context, symbol string, side domain.OrderSide, qty, price float64) (int64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "LIMIT")
	params.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params.Encode()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/order?"+params.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return 0, mapAPIError(resp.StatusCode, body)
	}

	var parsed placeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, err
	}
	return parsed.OrderID, nil
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// mapAPIError translates broker responses into the domain taxonomy.
func mapAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Body: string(body)}
	var parsed struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Msg
	}

	switch apiErr.Code {
	case codeInsufficientFunds:
		return fmt.Errorf("%w: %v", domain.ErrInsufficientCapital, apiErr)
	case codeInvalidSymbol, codeOrderRejected:
		return fmt.Errorf("%w: %v", domain.ErrBrokerRejected, apiErr)
	}
	if statusCode >= 400 && statusCode < 500 {
		return fmt.Errorf("%w: %v", domain.ErrBrokerRejected, apiErr)
	}
	// 5xx and everything else is a transient provider failure.
	return fmt.Errorf("%w: %v", domain.ErrDataUnavailable, apiErr)
}

// compile-time check
var _ domain.BrokerExecutor = (*Client)(nil)
