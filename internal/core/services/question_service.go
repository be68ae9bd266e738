package services

import (
	"context"
	"errors"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// QuestionService is the intake path: it turns a user question that cannot
// be answered yet into a pending task for the engine.
type QuestionService struct {
	tasks      ports.TaskRepository
	rates      *RatesService
	logger     *logger.Logger
	maxRetries int
}

func NewQuestionService(tasks ports.TaskRepository, rates *RatesService, log *logger.Logger, maxRetries int) *QuestionService {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &QuestionService{
		tasks:      tasks,
		rates:      rates,
		logger:     log,
		maxRetries: maxRetries,
	}
}

type AskInput struct {
	RequesterID    string
	Question       string
	Language       string
	PartialContext domain.JSONB
	PartialAnswer  *string
	MissingFields  []domain.DataField
}

// Ask creates a new task. The exchange rate is captured now and frozen for
// the task's lifetime; any prior pending task for this requester is
// superseded by the store.
func (s *QuestionService) Ask(ctx context.Context, input AskInput) (*domain.Task, error) {
	if input.RequesterID == "" {
		return nil, errors.New("requester id is required")
	}
	if input.Question == "" {
		return nil, errors.New("question is required")
	}

	language := input.Language
	if language == "" {
		language = "en"
	}

	missing := input.MissingFields
	if len(missing) == 0 {
		missing = missingFromContext(input.PartialContext)
	}
	fields := make(domain.StringList, 0, len(missing))
	for _, f := range missing {
		fields = append(fields, string(f))
	}

	task := &domain.Task{
		ID:             uuid.New().String(),
		RequesterID:    input.RequesterID,
		Question:       input.Question,
		Language:       language,
		Status:         domain.TaskStatusPending,
		MissingFields:  fields,
		PartialContext: input.PartialContext,
		PartialAnswer:  input.PartialAnswer,
		MaxRetries:     s.maxRetries,
		ExchangeRate:   s.rates.Current(ctx),
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Infow("question_task_created",
		"task_id", task.ID,
		"requester_id", task.RequesterID,
		"missing_fields", task.MissingFields,
	)
	return task, nil
}

// Latest returns the requester's most recent task regardless of status.
func (s *QuestionService) Latest(ctx context.Context, requesterID string) (*domain.Task, error) {
	return s.tasks.GetLatestByRequester(ctx, requesterID)
}

// missingFromContext treats any known category absent from the snapshot as
// missing data to be enriched.
func missingFromContext(partial domain.JSONB) []domain.DataField {
	missing := make([]domain.DataField, 0, len(domain.KnownDataFields))
	for _, field := range domain.KnownDataFields {
		if _, ok := partial[string(field)]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}
