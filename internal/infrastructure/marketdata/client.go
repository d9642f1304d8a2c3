package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"meanrev-backend/internal/domain"
)

const DefaultBaseURL = "https://api.marketfeed.example.com"

// Client talks to the market data provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError captures structured error info returned by the provider.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
	Body       string
}

func (e *APIError) Error() string {
	if e == nil {
		return "marketdata API error"
	}
	if e.Code != 0 || e.Message != "" {
		return fmt.Sprintf("marketdata API error %d (code=%d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("marketdata API error %d: %s", e.StatusCode, e.Body)
}

func parseAPIError(statusCode int, body []byte) error {
	var parsed struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && (parsed.Code != 0 || parsed.Msg != "") {
		return &APIError{StatusCode: statusCode, Code: parsed.Code, Message: parsed.Msg, Body: string(body)}
	}
	return &APIError{StatusCode: statusCode, Body: string(body)}
}

// NewClient builds a provider client. baseURL falls back to the
// default endpoint; the API key comes from MARKETDATA_API_KEY.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     os.Getenv("MARKETDATA_API_KEY"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type snapshotResponse struct {
	Symbol         string  `json:"symbol"`
	Close          float64 `json:"close"`
	RSI            float64 `json:"rsi"`
	TrendReference float64 `json:"trendReference"`
	Time           int64   `json:"time"` // unix seconds
}

type candleResponse struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// GetSnapshot returns the latest indicator snapshot for a symbol.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*domain.IndicatorSnapshot, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	var resp snapshotResponse
	if err := c.get(ctx, "/v1/indicators/snapshot", q, &resp); err != nil {
		return nil, err
	}
	if resp.Close <= 0 {
		return nil, fmt.Errorf("%w: empty snapshot for %s", domain.ErrDataUnavailable, symbol)
	}
	return &domain.IndicatorSnapshot{
		Symbol:         resp.Symbol,
		Close:          resp.Close,
		RSI:            resp.RSI,
		TrendReference: resp.TrendReference,
		Time:           time.Unix(resp.Time, 0).UTC(),
	}, nil
}

// GetDailyCandles returns daily bars for [start, end], oldest first.
func (c *Client) GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1d")
	q.Set("start", fmt.Sprintf("%d", start.Unix()))
	q.Set("end", fmt.Sprintf("%d", end.Unix()))

	var resp []candleResponse
	if err := c.get(ctx, "/v1/candles", q, &resp); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(resp))
	for _, k := range resp {
		candles = append(candles, domain.Candle{
			Time:   time.Unix(k.Time, 0).UTC(),
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
		})
	}
	return candles, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var buf [512]byte
		n, _ := resp.Body.Read(buf[:])
		return parseAPIError(resp.StatusCode, buf[:n])
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// compile-time check
var _ domain.IndicatorProvider = (*Client)(nil)
