package services

import (
	"context"
	"sync"
	"time"

	"github.com/agora/backend/internal/config"
	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
)

// Engine is the process-wide heartbeat scheduler. Each tick it performs
// queue maintenance and pulls a bounded batch of due tasks through
// enrichment, reasoning and delivery. All collaborators are injected; the
// engine holds no ambient global state.
type Engine struct {
	tasks      ports.TaskRepository
	usage      ports.UsageRepository
	knowledge  ports.KnowledgeRepository
	enrichment *EnrichmentService
	reasoning  *ReasoningService
	delivery   *DeliveryService
	logger     *logger.Logger
	cfg        config.EngineConfig

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewEngine(
	tasks ports.TaskRepository,
	usage ports.UsageRepository,
	knowledge ports.KnowledgeRepository,
	enrichment *EnrichmentService,
	reasoning *ReasoningService,
	delivery *DeliveryService,
	log *logger.Logger,
	cfg config.EngineConfig,
) *Engine {
	cfg.Normalize()
	return &Engine{
		tasks:      tasks,
		usage:      usage,
		knowledge:  knowledge,
		enrichment: enrichment,
		reasoning:  reasoning,
		delivery:   delivery,
		logger:     log,
		cfg:        cfg,
	}
}

// Start launches the heartbeat loop. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.stop = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()
		e.logger.Infow("engine_started", "tick_interval", e.cfg.TickInterval, "batch_size", e.cfg.BatchSize)
		for {
			select {
			case <-e.stop:
				e.logger.Info("engine stopped")
				return
			case <-ctx.Done():
				e.logger.Info("engine stopped")
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
}

// Stop drains the current tick and halts the timer. The stop signal is
// separate from the tick's context so in-flight processing and its tail
// writes complete before Stop returns.
func (e *Engine) Stop() {
	if e.stop != nil {
		close(e.stop)
	}
	e.wg.Wait()
}

// Tick runs one maintenance-and-processing pass: expire stale pending tasks,
// reclaim stuck processing tasks, then claim and process a batch. A failing
// task never blocks the rest of the batch or the next tick.
func (e *Engine) Tick(ctx context.Context) {
	start := time.Now()

	expired, err := e.tasks.ExpireStale(ctx, e.cfg.PendingAgeLimit)
	if err != nil {
		e.logger.Errorw("engine_expire_stale_failed", "error", err)
	}

	reclaimed, err := e.tasks.ReclaimStuck(ctx, e.cfg.ProcessingAgeLimit)
	if err != nil {
		e.logger.Errorw("engine_reclaim_stuck_failed", "error", err)
	}

	batch, err := e.tasks.ClaimDueBatch(ctx, e.cfg.BatchSize)
	if err != nil {
		e.logger.Errorw("engine_claim_failed", "error", err)
		return
	}

	for i := range batch {
		e.processTask(ctx, &batch[i])
	}

	if expired > 0 || reclaimed > 0 || len(batch) > 0 {
		e.logger.Infow("engine_tick_done",
			"expired", expired,
			"reclaimed", reclaimed,
			"processed", len(batch),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (e *Engine) processTask(ctx context.Context, task *domain.Task) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("engine_task_panic", "task_id", task.ID, "panic", r)
			if _, err := e.tasks.Fail(ctx, task.ID); err != nil {
				e.logger.Errorw("engine_task_fail_mark_failed", "task_id", task.ID, "error", err)
			}
		}
	}()

	enriched := e.enrichment.Enrich(ctx, task)

	if !HasProgress(enriched) {
		// No usable new data; reasoning would be wasted
		status, err := e.tasks.RetryOrExpire(ctx, task.ID)
		if err != nil {
			e.logger.Errorw("engine_retry_or_expire_failed", "task_id", task.ID, "error", err)
			return
		}
		e.logger.Infow("engine_task_no_progress", "task_id", task.ID, "status", status)
		return
	}

	kb, err := e.knowledge.GetActive(ctx)
	if err != nil {
		// Knowledge is grounding material, not a dependency; reason without it
		kb = nil
	}
	kb = rankKnowledge(kb, task.Question, task.Language, e.cfg.KnowledgeTopN)

	answer, tokens, runErr := e.reasoning.Run(ctx, task, enriched, kb)
	e.recordUsage(ctx, task, tokens)
	if runErr != nil {
		e.logger.Errorw("engine_pipeline_failed", "task_id", task.ID, "error", runErr)
		if _, err := e.tasks.Fail(ctx, task.ID); err != nil {
			e.logger.Errorw("engine_task_fail_mark_failed", "task_id", task.ID, "error", err)
		}
		return
	}

	fullAnswer, err := answer.AsJSONB()
	if err != nil {
		e.logger.Errorw("engine_answer_encode_failed", "task_id", task.ID, "error", err)
		if _, err := e.tasks.Fail(ctx, task.ID); err != nil {
			e.logger.Errorw("engine_task_fail_mark_failed", "task_id", task.ID, "error", err)
		}
		return
	}

	if err := e.tasks.Complete(ctx, task.ID, fullAnswer); err != nil {
		e.logger.Errorw("engine_complete_failed", "task_id", task.ID, "error", err)
		if _, err := e.tasks.Fail(ctx, task.ID); err != nil {
			e.logger.Errorw("engine_task_fail_mark_failed", "task_id", task.ID, "error", err)
		}
		return
	}

	e.delivery.Deliver(ctx, task, answer)
}

// recordUsage persists token accounting for the run whether or not the
// pipeline succeeded.
func (e *Engine) recordUsage(ctx context.Context, task *domain.Task, tokens domain.TokenUsage) {
	if tokens.Total() == 0 {
		return
	}
	record := &domain.UsageRecord{
		RequesterID:      task.RequesterID,
		TaskID:           task.ID,
		Model:            e.reasoning.Model(),
		PromptTokens:     tokens.PromptTokens,
		CompletionTokens: tokens.CompletionTokens,
		CostUSD:          e.reasoning.Cost(tokens, task.ExchangeRate),
	}
	if err := e.usage.Append(ctx, record); err != nil {
		e.logger.Errorw("engine_usage_append_failed", "task_id", task.ID, "error", err)
	}
}
