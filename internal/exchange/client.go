package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid   = errors.New("exchange config invalid")
	ErrRequestFailed   = errors.New("exchange request failed")
	ErrResponseInvalid = errors.New("exchange response invalid")
)

// Config 汇率数据源配置
type Config struct {
	BaseURL string        // 数据源地址
	Timeout time.Duration // 单次请求超时
}

// Client 汇率数据源客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建汇率客户端
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// FetchRates 拉取 base 币种到 symbols 各币种的实时汇率
func (c *Client) FetchRates(ctx context.Context, base string, symbols []string) (map[string]decimal.Decimal, error) {
	if c == nil || c.httpClient == nil {
		return nil, ErrConfigInvalid
	}
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" || len(symbols) == 0 {
		return nil, fmt.Errorf("%w: base and symbols required", ErrRequestFailed)
	}

	query := url.Values{}
	query.Set("base", base)
	query.Set("symbols", strings.Join(symbols, ","))
	endpoint := fmt.Sprintf("%s/latest?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	var parsed struct {
		Base  string                 `json:"base"`
		Rates map[string]json.Number `json:"rates"`
	}
	decoder := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	decoder.UseNumber()
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rates", ErrResponseInvalid)
	}

	rates := make(map[string]decimal.Decimal, len(parsed.Rates))
	for currency, raw := range parsed.Rates {
		rate, err := decimal.NewFromString(raw.String())
		if err != nil || rate.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: invalid rate for %s", ErrResponseInvalid, currency)
		}
		rates[strings.ToUpper(currency)] = rate
	}
	return rates, nil
}
