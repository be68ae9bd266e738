package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agora/backend/internal/config"
	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
)

// Client speaks JSON to the relay gateway sidecar, which owns the wire-level
// relay protocol. Partial or empty results on timeout are normal; a single
// unreachable destination never fails a call.
type Client struct {
	gatewayURL string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg config.RelayConfig, log *logger.Logger) *Client {
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

type queryRequest struct {
	Category    string            `json:"category"`
	RequesterID string            `json:"requester_id"`
	Filters     map[string]string `json:"filters,omitempty"`
}

type queryResponse struct {
	Records []domain.JSONB `json:"records"`
}

func (c *Client) QueryByCategory(ctx context.Context, category domain.DataField, requesterID string, filters map[string]string, timeout time.Duration) ([]domain.JSONB, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var resp queryResponse
	err := c.postJSON(ctx, "/v1/query", queryRequest{
		Category:    string(category),
		RequesterID: requesterID,
		Filters:     filters,
	}, &resp)
	if err != nil {
		c.log.Warnw("relay_query_failed", "category", category, "error", err)
		return nil, err
	}
	return resp.Records, nil
}

type publishRequest struct {
	Record domain.JSONB `json:"record"`
}

type publishResponse struct {
	Results []ports.PublishResult `json:"results"`
}

func (c *Client) Publish(ctx context.Context, record domain.JSONB, timeout time.Duration) ([]ports.PublishResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var resp publishResponse
	if err := c.postJSON(ctx, "/v1/publish", publishRequest{Record: record}, &resp); err != nil {
		c.log.Warnw("relay_publish_failed", "error", err)
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("relay gateway returned %d: %s", resp.StatusCode, raw)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
