package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agora/backend/internal/config"
	"github.com/agora/backend/internal/infrastructure/logger"
)

// Client fetches the current pricing exchange rate from the rates provider.
type Client struct {
	providerURL string
	httpClient  *http.Client
	log         *logger.Logger
}

func NewClient(cfg config.RatesConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		providerURL: cfg.ProviderURL,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

func (c *Client) CurrentRate(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.providerURL+"/v1/rate", nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("rates provider returned %d: %s", resp.StatusCode, raw)
	}

	var decoded rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, err
	}
	if decoded.Rate <= 0 {
		return 0, fmt.Errorf("rates provider returned non-positive rate %f", decoded.Rate)
	}
	return decoded.Rate, nil
}
