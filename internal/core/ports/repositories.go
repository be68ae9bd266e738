package ports

import (
	"context"
	"time"

	"github.com/agora/backend/internal/domain"
)

type TaskRepository interface {
	// Create persists a new pending task. Any prior pending task for the same
	// requester is transitioned to cancelled in the same transaction.
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	GetLatestByRequester(ctx context.Context, requesterID string) (*domain.Task, error)

	// ClaimDueBatch atomically selects up to limit pending tasks, oldest
	// first, and transitions them to processing. At most one claimer ever
	// holds a given task.
	ClaimDueBatch(ctx context.Context, limit int) ([]domain.Task, error)

	// ExpireStale transitions pending tasks older than age to expired.
	ExpireStale(ctx context.Context, age time.Duration) (int64, error)

	// ReclaimStuck returns processing tasks untouched longer than age to
	// pending without incrementing their retry count.
	ReclaimStuck(ctx context.Context, age time.Duration) (int64, error)

	Complete(ctx context.Context, id string, fullAnswer domain.JSONB) error

	// RetryOrExpire increments the retry count and returns the resulting
	// status: expired once the budget is exhausted, pending otherwise.
	RetryOrExpire(ctx context.Context, id string) (domain.TaskStatus, error)

	// Fail records an unexpected processing failure: retry count is
	// incremented and the task returns to pending (or expires at the limit).
	Fail(ctx context.Context, id string) (domain.TaskStatus, error)
}

type UsageRepository interface {
	Append(ctx context.Context, record *domain.UsageRecord) error
	TotalsByRequester(ctx context.Context, requesterID string) (*domain.UsageRecord, error)
}

type KnowledgeRepository interface {
	GetActive(ctx context.Context) ([]domain.KnowledgeEntry, error)
}

type SystemSettingRepository interface {
	Get(ctx context.Context, key string) (*domain.SystemSetting, error)
	Set(ctx context.Context, setting *domain.SystemSetting) error
	GetByCategory(ctx context.Context, category string) ([]domain.SystemSetting, error)
	Delete(ctx context.Context, key string) error
}
