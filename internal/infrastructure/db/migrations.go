package db

import (
	"github.com/agora/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// AutoMigrate all models
	err := db.AutoMigrate(
		&domain.Task{},
		&domain.UsageRecord{},
		&domain.KnowledgeEntry{},
		&domain.SystemSetting{},
	)
	if err != nil {
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		return err
	}

	return nil
}

func createCustomIndexes(db *gorm.DB) error {
	// The claim query scans pending tasks oldest-first on every tick
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_status_created
		ON tasks (status, created_at)
	`).Error; err != nil {
		return err
	}

	// Create's supersede scan and the recovery passes filter on requester and
	// status. Pending uniqueness is not a storage constraint: recovery can
	// return a stuck task to pending while a newer question is already queued,
	// and a unique index would abort the whole maintenance statement.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_requester_status
		ON tasks (requester_id, status)
	`).Error; err != nil {
		return err
	}

	// Usage reporting aggregates per requester over time
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_usage_records_requester_created
		ON usage_records (requester_id, created_at)
	`).Error; err != nil {
		return err
	}

	return nil
}
