package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agora/backend/internal/config"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
)

// Client batches balance lookups through the balance gateway. Responses are
// correlated to requests by position over a single batch; an address the
// gateway did not answer for comes back as an error entry, never an error
// return.
type Client struct {
	gatewayURL string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg config.BalanceConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		gatewayURL: cfg.GatewayURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type batchRequest struct {
	Addresses []string `json:"addresses"`
}

type batchResponse struct {
	Balances []domain.BalanceEntry `json:"balances"`
}

func (c *Client) BatchBalances(ctx context.Context, addresses []string, timeout time.Duration) ([]domain.BalanceEntry, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := json.Marshal(batchRequest{Addresses: addresses})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/v1/balances", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warnw("balance_batch_failed", "addresses", len(addresses), "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("balance gateway returned %d: %s", resp.StatusCode, raw)
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	return correlate(addresses, decoded.Balances), nil
}

// correlate pairs responses to requested addresses by position and fills in
// error entries for any the gateway dropped.
func correlate(addresses []string, balances []domain.BalanceEntry) []domain.BalanceEntry {
	out := make([]domain.BalanceEntry, len(addresses))
	for i, addr := range addresses {
		if i < len(balances) {
			entry := balances[i]
			if entry.Address == "" {
				entry.Address = addr
			}
			out[i] = entry
			continue
		}
		out[i] = domain.BalanceEntry{
			Address: addr,
			Status:  "error",
			Error:   "no response in batch",
		}
	}
	return out
}
