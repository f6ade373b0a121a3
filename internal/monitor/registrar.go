// Package monitor предоставляет регистрацию адресов во внешнем сервисе
// мониторинга транзакций, чтобы оплата обнаруживалась вебхуком автоматически.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Registrar описывает возможность регистрации адреса для мониторинга.
// Необязательность интеграции решается на этапе сборки: вместо проверок
// "настроен ли сервис" в месте вызова подставляется Nop.
type Registrar interface {
	RegisterAddress(ctx context.Context, address string) error
}

// Client регистрирует адреса через HTTP API сервиса мониторинга (Helius).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент регистрации адресов по указанному адресу API.
func NewClient(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: rc,
	}
}

type registerRequest struct {
	Address string `json:"address"`
}

// RegisterAddress добавляет адрес в список отслеживаемых сервисом мониторинга.
func (c *Client) RegisterAddress(ctx context.Context, address string) error {
	body, err := json.Marshal(registerRequest{Address: address})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/addresses", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

// Nop — заглушка регистратора для окружений без сервиса мониторинга.
type Nop struct{}

// RegisterAddress ничего не делает и всегда успешен.
func (Nop) RegisterAddress(ctx context.Context, address string) error {
	return nil
}
