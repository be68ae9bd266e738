package db

import (
	"context"
	"testing"
	"time"

	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	// a second pooled conn would get its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, RunMigrations(database))
	return database
}

func seedTask(t *testing.T, database *gorm.DB, id, requester string, status domain.TaskStatus, updatedAt time.Time) {
	t.Helper()
	task := &domain.Task{
		ID:          id,
		RequesterID: requester,
		Question:    "q",
		Language:    "en",
		Status:      status,
		MaxRetries:  5,
	}
	require.NoError(t, database.Create(task).Error)
	require.NoError(t, database.Model(&domain.Task{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", updatedAt).Error)
}

func TestReclaimStuckWithNewerPendingSibling(t *testing.T) {
	database := openTestDB(t)
	repo := NewTaskRepository(database, testLogger())
	ctx := context.Background()
	stale := time.Now().Add(-time.Hour)

	// requester-r already has a newer pending question queued behind its
	// stuck in-flight task; requester-s has an unrelated stuck task
	seedTask(t, database, "task-a", "requester-r", domain.TaskStatusProcessing, stale)
	seedTask(t, database, "task-b", "requester-r", domain.TaskStatusPending, time.Now())
	seedTask(t, database, "task-c", "requester-s", domain.TaskStatusProcessing, stale)

	n, err := repo.ReclaimStuck(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	a, err := repo.GetByID(ctx, "task-a")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, a.Status)
	assert.Zero(t, a.RetryCount)

	b, err := repo.GetByID(ctx, "task-b")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, b.Status)

	c, err := repo.GetByID(ctx, "task-c")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, c.Status)
}

func TestCreateCancelsOnlyPendingPredecessor(t *testing.T) {
	database := openTestDB(t)
	repo := NewTaskRepository(database, testLogger())
	ctx := context.Background()
	stale := time.Now().Add(-time.Hour)

	seedTask(t, database, "task-a", "requester-r", domain.TaskStatusProcessing, stale)
	seedTask(t, database, "task-b", "requester-r", domain.TaskStatusPending, time.Now())

	require.NoError(t, repo.Create(ctx, &domain.Task{
		ID:          "task-d",
		RequesterID: "requester-r",
		Question:    "newer question",
		Language:    "en",
		Status:      domain.TaskStatusPending,
		MaxRetries:  5,
	}))

	b, err := repo.GetByID(ctx, "task-b")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, b.Status)

	a, err := repo.GetByID(ctx, "task-a")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, a.Status)

	// the in-flight task later stalls; the maintenance pass must still
	// recover it even though task-d is pending for the same requester
	require.NoError(t, database.Model(&domain.Task{}).
		Where("id = ?", "task-a").
		UpdateColumn("updated_at", stale).Error)

	n, err := repo.ReclaimStuck(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExpireStaleLeavesFreshPending(t *testing.T) {
	database := openTestDB(t)
	repo := NewTaskRepository(database, testLogger())
	ctx := context.Background()

	seedTask(t, database, "task-old", "requester-r", domain.TaskStatusPending, time.Now())
	require.NoError(t, database.Model(&domain.Task{}).
		Where("id = ?", "task-old").
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)
	seedTask(t, database, "task-new", "requester-s", domain.TaskStatusPending, time.Now())

	n, err := repo.ExpireStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, err := repo.GetByID(ctx, "task-old")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusExpired, old.Status)

	fresh, err := repo.GetByID(ctx, "task-new")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, fresh.Status)
}
