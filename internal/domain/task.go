package domain

import "time"

// TaskStatus represents the current state of a deferred question task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusExpired    TaskStatus = "expired"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusExpired, TaskStatusCancelled:
		return true
	}
	return false
}

// Task is one deferred question-answering unit. It is created when a user's
// question cannot be answered with the data at hand, and is driven through
// the state machine by the engine heartbeat.
type Task struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	RequesterID string     `gorm:"size:64;not null;index" json:"requester_id"`
	Question    string     `gorm:"type:text;not null" json:"question"`
	Language    string     `gorm:"size:10;not null;default:'en'" json:"language"`
	Status      TaskStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`

	// MissingFields is fixed at creation; fields are consumed, never added.
	MissingFields StringList `gorm:"type:jsonb" json:"missing_fields"`

	// PartialContext is the immutable snapshot of data known at creation.
	PartialContext JSONB   `gorm:"type:jsonb" json:"partial_context"`
	PartialAnswer  *string `gorm:"type:text" json:"partial_answer,omitempty"`

	FullAnswer JSONB `gorm:"type:jsonb" json:"full_answer,omitempty"`

	RetryCount int `gorm:"default:0" json:"retry_count"`
	MaxRetries int `gorm:"default:5" json:"max_retries"`

	// ExchangeRate is the pricing parameter captured at creation and frozen
	// for the task's lifetime.
	ExchangeRate float64 `gorm:"default:0" json:"exchange_rate"`
}
