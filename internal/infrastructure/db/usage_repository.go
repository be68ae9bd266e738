package db

import (
	"context"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type usageRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageRepository(db *gorm.DB, log *logger.Logger) ports.UsageRepository {
	return &usageRepository{db: db, log: log}
}

func (r *usageRepository) Append(ctx context.Context, record *domain.UsageRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		r.log.Errorw("usage_repo_append_failed", "requester_id", record.RequesterID, "error", err)
		return err
	}
	r.log.Infow("usage_repo_append_ok",
		"requester_id", record.RequesterID,
		"task_id", record.TaskID,
		"model", record.Model,
		"prompt_tokens", record.PromptTokens,
		"completion_tokens", record.CompletionTokens,
		"cost_usd", record.CostUSD,
	)
	return nil
}

func (r *usageRepository) TotalsByRequester(ctx context.Context, requesterID string) (*domain.UsageRecord, error) {
	var totals domain.UsageRecord
	err := r.db.WithContext(ctx).Model(&domain.UsageRecord{}).
		Select("COALESCE(SUM(prompt_tokens),0) AS prompt_tokens, COALESCE(SUM(completion_tokens),0) AS completion_tokens, COALESCE(SUM(cost_usd),0) AS cost_usd").
		Where("requester_id = ?", requesterID).
		Scan(&totals).Error
	if err != nil {
		r.log.Errorw("usage_repo_totals_failed", "requester_id", requesterID, "error", err)
		return nil, err
	}
	totals.RequesterID = requesterID
	return &totals, nil
}
