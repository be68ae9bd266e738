package ports

import (
	"context"
	"time"

	"github.com/agora/backend/internal/domain"
)

// RelayQuerier is the relay-gateway collaborator. It may return partial or
// empty results on timeout and never fails hard for a single unreachable
// destination.
type RelayQuerier interface {
	QueryByCategory(ctx context.Context, category domain.DataField, requesterID string, filters map[string]string, timeout time.Duration) ([]domain.JSONB, error)
	Publish(ctx context.Context, record domain.JSONB, timeout time.Duration) ([]PublishResult, error)
}

type PublishResult struct {
	Destination string `json:"destination"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// BalanceQuerier resolves wallet balances in one batched round trip.
// Responses are correlated to requests by position; a missing response
// yields an error entry.
type BalanceQuerier interface {
	BatchBalances(ctx context.Context, addresses []string, timeout time.Duration) ([]domain.BalanceEntry, error)
}

// CompletionResult is one language-model call's output.
type CompletionResult struct {
	Text  string
	Usage domain.TokenUsage
}

// Completer is the language-completion collaborator. Failures propagate as
// hard stage failures; the pipeline's fallback policy deals with them.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (*CompletionResult, error)
	Model() string
}

// ConnectionRegistry reports and serves live delivery connections. The
// engine only reads it; connection lifecycle belongs to the transport layer.
type ConnectionRegistry interface {
	IsLive(requesterID string) bool
	PushTo(requesterID string, payload interface{}) error
}

// Notification is the store-and-forward message handed to the push provider.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	DeepLink string `json:"deep_link,omitempty"`
}

type NotifyResult struct {
	Delivered bool `json:"delivered"`
	Count     int  `json:"count"`
}

// Notifier is the store-and-forward collaborator used when no live
// connection exists. Subscriptions the provider reports as gone are dropped
// silently.
type Notifier interface {
	Notify(ctx context.Context, requesterID string, n Notification) (*NotifyResult, error)
}

// RateSource supplies the current pricing exchange rate for the periodic
// system-parameter refresh.
type RateSource interface {
	CurrentRate(ctx context.Context) (float64, error)
}
