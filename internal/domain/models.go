package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONB: invalid type")
	}
	return json.Unmarshal(bytes, j)
}

// StringList is stored as a jsonb array column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan StringList: invalid type")
	}
	return json.Unmarshal(bytes, s)
}

// ==================== ENTITIES ====================

// KnowledgeEntry is a curated knowledge-base article offered to the reasoning
// pipeline as grounding material.
type KnowledgeEntry struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title    string     `gorm:"size:255;not null" json:"title"`
	Body     string     `gorm:"type:text;not null" json:"body"`
	Language string     `gorm:"size:10;not null;default:'en'" json:"language"`
	Tags     StringList `gorm:"type:jsonb" json:"tags"`
	IsActive bool       `gorm:"default:true" json:"is_active"`
}

// UsageRecord is one appended row per reasoning-pipeline run, successful or
// not. Cost is derived from the task's frozen exchange rate.
type UsageRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	RequesterID      string  `gorm:"size:64;not null;index" json:"requester_id"`
	TaskID           string  `gorm:"size:36;index" json:"task_id"`
	Model            string  `gorm:"size:64;not null" json:"model"`
	PromptTokens     int     `gorm:"default:0" json:"prompt_tokens"`
	CompletionTokens int     `gorm:"default:0" json:"completion_tokens"`
	CostUSD          float64 `gorm:"default:0" json:"cost_usd"`
}

type SystemSetting struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Key      string `gorm:"size:255;uniqueIndex;not null" json:"key"`
	Value    string `gorm:"type:text" json:"value"`
	Type     string `gorm:"size:50;default:'string'" json:"type"`
	Category string `gorm:"size:100;index" json:"category"`
}

// Well-known system setting keys.
const (
	SettingExchangeRate = "pricing.exchange_rate"
)
