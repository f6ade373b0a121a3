// Package rates предоставляет клиент внешнего прайс-фида криптовалют.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL — время жизни закэшированного курса. Цена здесь оценочная:
// расчётной суммой остаётся фактически отправленная в сети.
const DefaultTTL = 2 * time.Minute

// Идентификаторы активов прайс-фида для поддерживаемых валют оплаты.
var assetIDs = map[string]string{
	"SOL":  "solana",
	"USDC": "usd-coin",
}

// Client инкапсулирует HTTP-взаимодействие с прайс-фидом (CoinCap API).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *Cache
}

// NewClient создаёт клиент прайс-фида по указанному адресу с кэшем курсов.
func NewClient(baseURL, apiKey string, cache *Cache) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		cache: cache,
	}
}

type assetResponse struct {
	Data struct {
		ID       string `json:"id"`
		Symbol   string `json:"symbol"`
		PriceUSD string `json:"priceUsd"`
	} `json:"data"`
}

// USDPerUnit возвращает цену одной единицы валюты в долларах, используя кэш
// с коротким TTL для ограничения обращений к внешнему фиду.
func (c *Client) USDPerUnit(ctx context.Context, symbol string) (float64, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(symbol); ok {
			return v, nil
		}
	}

	assetID, ok := assetIDs[symbol]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", symbol)
	}

	url := fmt.Sprintf("%s/v3/assets/%s", c.baseURL, assetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	price, err := strconv.ParseFloat(result.Data.PriceUSD, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price format %q: %w", result.Data.PriceUSD, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price for %s: %v", symbol, price)
	}

	if c.cache != nil {
		c.cache.Put(symbol, price)
	}

	return price, nil
}
