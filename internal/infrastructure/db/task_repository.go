package db

import (
	"context"
	"errors"
	"time"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type taskRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepository(db *gorm.DB, log *logger.Logger) ports.TaskRepository {
	return &taskRepository{db: db, log: log}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Last request wins: a newer question supersedes the older pending one
		res := tx.Model(&domain.Task{}).
			Where("requester_id = ? AND status = ?", task.RequesterID, domain.TaskStatusPending).
			Update("status", domain.TaskStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			r.log.Infow("task_repo_cancelled_prior_pending", "requester_id", task.RequesterID, "count", res.RowsAffected)
		}
		return tx.Create(task).Error
	})
	if err != nil {
		r.log.Errorw("task_repo_create_failed", "requester_id", task.RequesterID, "error", err)
		return err
	}
	r.log.Infow("task_repo_create_ok", "id", task.ID, "requester_id", task.RequesterID, "missing_fields", task.MissingFields)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		r.log.Errorw("task_repo_get_failed", "id", id, "error", err)
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) GetLatestByRequester(ctx context.Context, requesterID string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("task_repo_get_latest_failed", "requester_id", requesterID, "error", err)
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) ClaimDueBatch(ctx context.Context, limit int) ([]domain.Task, error) {
	var claimed []domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []domain.Task
		// SKIP LOCKED keeps concurrent ticks from claiming the same rows
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", domain.TaskStatusPending).
			Order("created_at ASC").
			Limit(limit).
			Find(&due).Error
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]string, 0, len(due))
		for _, t := range due {
			ids = append(ids, t.ID)
		}
		if err := tx.Model(&domain.Task{}).
			Where("id IN ?", ids).
			Update("status", domain.TaskStatusProcessing).Error; err != nil {
			return err
		}

		for i := range due {
			due[i].Status = domain.TaskStatusProcessing
		}
		claimed = due
		return nil
	})
	if err != nil {
		r.log.Errorw("task_repo_claim_failed", "limit", limit, "error", err)
		return nil, err
	}
	if len(claimed) > 0 {
		r.log.Infow("task_repo_claim_ok", "count", len(claimed))
	}
	return claimed, nil
}

func (r *taskRepository) ExpireStale(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("status = ? AND created_at < ?", domain.TaskStatusPending, cutoff).
		Update("status", domain.TaskStatusExpired)
	if res.Error != nil {
		r.log.Errorw("task_repo_expire_stale_failed", "error", res.Error)
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Infow("task_repo_expire_stale_ok", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (r *taskRepository) ReclaimStuck(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	// Crash recovery: no retry increment, the task simply gets another turn
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("status = ? AND updated_at < ?", domain.TaskStatusProcessing, cutoff).
		Update("status", domain.TaskStatusPending)
	if res.Error != nil {
		r.log.Errorw("task_repo_reclaim_stuck_failed", "error", res.Error)
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warnw("task_repo_reclaim_stuck_ok", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (r *taskRepository) Complete(ctx context.Context, id string, fullAnswer domain.JSONB) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domain.TaskStatusCompleted,
			"full_answer":  fullAnswer,
			"completed_at": &now,
		}).Error
	if err != nil {
		r.log.Errorw("task_repo_complete_failed", "id", id, "error", err)
		return err
	}
	r.log.Infow("task_repo_complete_ok", "id", id)
	return nil
}

func (r *taskRepository) RetryOrExpire(ctx context.Context, id string) (domain.TaskStatus, error) {
	return r.bumpRetry(ctx, id, "task_repo_retry_or_expire")
}

func (r *taskRepository) Fail(ctx context.Context, id string) (domain.TaskStatus, error) {
	return r.bumpRetry(ctx, id, "task_repo_fail")
}

func (r *taskRepository) bumpRetry(ctx context.Context, id, event string) (domain.TaskStatus, error) {
	var next domain.TaskStatus
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task domain.Task
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&task).Error; err != nil {
			return err
		}

		task.RetryCount++
		if task.RetryCount >= task.MaxRetries {
			next = domain.TaskStatusExpired
		} else {
			next = domain.TaskStatusPending
		}

		return tx.Model(&domain.Task{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"retry_count": task.RetryCount,
				"status":      next,
			}).Error
	})
	if err != nil {
		r.log.Errorw(event+"_failed", "id", id, "error", err)
		return "", err
	}
	r.log.Infow(event+"_ok", "id", id, "status", next)
	return next, nil
}
