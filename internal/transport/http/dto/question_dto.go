package dto

import (
	"time"

	"github.com/agora/backend/internal/domain"
)

type AskRequest struct {
	RequesterID    string       `json:"requester_id" validate:"required"`
	Question       string       `json:"question" validate:"required"`
	Language       string       `json:"language,omitempty"`
	PartialContext domain.JSONB `json:"partial_context,omitempty"`
	PartialAnswer  string       `json:"partial_answer,omitempty"`
	MissingFields  []string     `json:"missing_fields,omitempty"`
}

func (r *AskRequest) Validate() []string {
	var errors []string

	if r.RequesterID == "" {
		errors = append(errors, "requester_id is required")
	}
	if r.Question == "" {
		errors = append(errors, "question is required")
	}
	for _, f := range r.MissingFields {
		if !isKnownField(f) {
			errors = append(errors, "unknown missing field: "+f)
		}
	}

	return errors
}

func isKnownField(name string) bool {
	for _, f := range domain.KnownDataFields {
		if string(f) == name {
			return true
		}
	}
	return false
}

type TaskResponse struct {
	ID            string            `json:"id"`
	Status        domain.TaskStatus `json:"status"`
	Question      string            `json:"question"`
	Language      string            `json:"language"`
	MissingFields []string          `json:"missing_fields"`
	PartialAnswer *string           `json:"partial_answer,omitempty"`
	FullAnswer    domain.JSONB      `json:"full_answer,omitempty"`
	RetryCount    int               `json:"retry_count"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

func NewTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:            task.ID,
		Status:        task.Status,
		Question:      task.Question,
		Language:      task.Language,
		MissingFields: task.MissingFields,
		PartialAnswer: task.PartialAnswer,
		FullAnswer:    task.FullAnswer,
		RetryCount:    task.RetryCount,
		CreatedAt:     task.CreatedAt,
		CompletedAt:   task.CompletedAt,
	}
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
