package push

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
	"github.com/agora/backend/internal/infrastructure/logger"
)

// Notifier hands results to the store-and-forward push provider when the
// requester has no live connection. Subscriptions the provider reports as
// gone are dropped without surfacing an error.
type Notifier struct {
	providerURL string
	apiKey      string
	httpClient  *http.Client
	log         *logger.Logger
}

func NewNotifier(cfg config.PushConfig, log *logger.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		providerURL: cfg.ProviderURL,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

type notifyRequest struct {
	RequesterID string `json:"requester_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	DeepLink    string `json:"deep_link,omitempty"`
}

type notifyResponse struct {
	Delivered bool     `json:"delivered"`
	Count     int      `json:"count"`
	Gone      []string `json:"gone,omitempty"`
}

func (n *Notifier) Notify(ctx context.Context, requesterID string, notification ports.Notification) (*ports.NotifyResult, error) {
	payload, err := json.Marshal(notifyRequest{
		RequesterID: requesterID,
		Title:       notification.Title,
		Body:        notification.Body,
		DeepLink:    notification.DeepLink,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.providerURL+"/v1/notify", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("push provider returned %d: %s", resp.StatusCode, raw)
	}

	var decoded notifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	if len(decoded.Gone) > 0 {
		// Dead subscriptions are expected churn, not a delivery failure
		n.log.Infow("push_subscriptions_gone", "requester_id", requesterID, "count", len(decoded.Gone))
	}

	return &ports.NotifyResult{Delivered: decoded.Delivered, Count: decoded.Count}, nil
}
