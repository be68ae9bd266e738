package db

import (
	"context"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type knowledgeRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKnowledgeRepository(db *gorm.DB, log *logger.Logger) ports.KnowledgeRepository {
	return &knowledgeRepository{db: db, log: log}
}

func (r *knowledgeRepository) GetActive(ctx context.Context) ([]domain.KnowledgeEntry, error) {
	var entries []domain.KnowledgeEntry
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&entries).Error; err != nil {
		r.log.Errorw("knowledge_repo_list_failed", "error", err)
		return nil, err
	}
	return entries, nil
}
