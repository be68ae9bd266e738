package services

import (
	"context"
	"fmt"
	"time"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"golang.org/x/sync/errgroup"
)

// EnrichmentService fans out to the external data collaborators for every
// field a task is still missing. Field categories are independent: partial
// success is expected and a single failing source never aborts the batch.
type EnrichmentService struct {
	relay   ports.RelayQuerier
	balance ports.BalanceQuerier
	logger  *logger.Logger
	timeout time.Duration
}

func NewEnrichmentService(relay ports.RelayQuerier, balance ports.BalanceQuerier, log *logger.Logger, timeout time.Duration) *EnrichmentService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EnrichmentService{
		relay:   relay,
		balance: balance,
		logger:  log,
		timeout: timeout,
	}
}

// Enrich fetches each missing field concurrently with its own timeout and
// returns one tagged result per field. Absent keys never occur: every
// requested field reports a state, even if it is just "error".
func (s *EnrichmentService) Enrich(ctx context.Context, task *domain.Task) map[domain.DataField]domain.EnrichmentResult {
	fields := make([]domain.DataField, 0, len(task.MissingFields))
	for _, f := range task.MissingFields {
		fields = append(fields, domain.DataField(f))
	}

	results := make([]domain.EnrichmentResult, len(fields))
	var g errgroup.Group
	for i, field := range fields {
		i, field := i, field
		g.Go(func() error {
			fieldCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = s.enrichField(fieldCtx, field, task)
			return nil
		})
	}
	g.Wait()

	out := make(map[domain.DataField]domain.EnrichmentResult, len(results))
	for _, r := range results {
		out[r.Field] = r
		s.logger.Infow("enrichment_field_done",
			"task_id", task.ID,
			"field", r.Field,
			"state", r.State,
			"records", len(r.Records),
		)
	}
	return out
}

func (s *EnrichmentService) enrichField(ctx context.Context, field domain.DataField, task *domain.Task) domain.EnrichmentResult {
	switch field {
	case domain.FieldWalletHoldings:
		return s.enrichHoldings(ctx, field, task)
	default:
		return s.enrichFromRelay(ctx, field, task)
	}
}

func (s *EnrichmentService) enrichHoldings(ctx context.Context, field domain.DataField, task *domain.Task) domain.EnrichmentResult {
	addresses := walletAddresses(task)
	entries, err := s.balance.BatchBalances(ctx, addresses, s.timeout)
	if err != nil {
		s.logger.Warnw("enrichment_balance_failed", "task_id", task.ID, "error", err)
		return domain.EnrichmentResult{Field: field, State: domain.EnrichmentError, Err: err.Error()}
	}

	records := make([]domain.JSONB, 0, len(entries))
	errored := 0
	for _, e := range entries {
		if e.Status != "ok" {
			errored++
			continue
		}
		records = append(records, domain.JSONB{
			"address": e.Address,
			"amount":  e.Amount,
			"status":  e.Status,
		})
	}

	switch {
	case len(records) > 0:
		return domain.EnrichmentResult{Field: field, State: domain.EnrichmentOK, Records: records}
	case errored > 0:
		return domain.EnrichmentResult{
			Field: field,
			State: domain.EnrichmentError,
			Err:   fmt.Sprintf("%d of %d balance lookups failed", errored, len(entries)),
		}
	default:
		return domain.EnrichmentResult{Field: field, State: domain.EnrichmentEmpty}
	}
}

func (s *EnrichmentService) enrichFromRelay(ctx context.Context, field domain.DataField, task *domain.Task) domain.EnrichmentResult {
	records, err := s.relay.QueryByCategory(ctx, field, task.RequesterID, nil, s.timeout)
	if err != nil {
		s.logger.Warnw("enrichment_relay_failed", "task_id", task.ID, "field", field, "error", err)
		return domain.EnrichmentResult{Field: field, State: domain.EnrichmentError, Err: err.Error()}
	}

	usable := make([]domain.JSONB, 0, len(records))
	for _, rec := range records {
		if len(rec) > 0 {
			usable = append(usable, rec)
		}
	}
	if len(usable) == 0 {
		return domain.EnrichmentResult{Field: field, State: domain.EnrichmentEmpty}
	}
	return domain.EnrichmentResult{Field: field, State: domain.EnrichmentOK, Records: usable}
}

// HasProgress applies the sufficiency check: at least one field must have
// produced a usable, non-empty payload for the pass to count as progress.
func HasProgress(results map[domain.DataField]domain.EnrichmentResult) bool {
	for _, r := range results {
		if r.Usable() {
			return true
		}
	}
	return false
}

// walletAddresses resolves the addresses to query balances for. Addresses
// already present in the partial context win; otherwise the requester's own
// identity doubles as their primary wallet address.
func walletAddresses(task *domain.Task) []string {
	if raw, ok := task.PartialContext["wallet_addresses"]; ok {
		if list, ok := raw.([]interface{}); ok {
			addresses := make([]string, 0, len(list))
			for _, v := range list {
				if s, ok := v.(string); ok && s != "" {
					addresses = append(addresses, s)
				}
			}
			if len(addresses) > 0 {
				return addresses
			}
		}
	}
	return []string{task.RequesterID}
}
