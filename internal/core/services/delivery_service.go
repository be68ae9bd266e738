package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
)

// DeliveryService routes a completed task's answer to the requester: over
// the live connection when one exists, otherwise through the store-and-forward
// push provider. Exactly one path fires per completed task.
type DeliveryService struct {
	registry ports.ConnectionRegistry
	notifier ports.Notifier
	logger   *logger.Logger
}

func NewDeliveryService(registry ports.ConnectionRegistry, notifier ports.Notifier, log *logger.Logger) *DeliveryService {
	return &DeliveryService{
		registry: registry,
		notifier: notifier,
		logger:   log,
	}
}

// ResultPayload is the shape pushed over a live connection.
type ResultPayload struct {
	Type     string             `json:"type"`
	TaskID   string             `json:"task_id"`
	Question string             `json:"question"`
	Answer   domain.FinalAnswer `json:"answer"`
}

func (s *DeliveryService) Deliver(ctx context.Context, task *domain.Task, answer *domain.FinalAnswer) {
	if s.registry.IsLive(task.RequesterID) {
		payload := ResultPayload{
			Type:     "task_result",
			TaskID:   task.ID,
			Question: task.Question,
			Answer:   *answer,
		}
		// Fire-and-forget: no acknowledgment expected from the connection
		if err := s.registry.PushTo(task.RequesterID, payload); err != nil {
			s.logger.Warnw("delivery_push_failed", "task_id", task.ID, "requester_id", task.RequesterID, "error", err)
			return
		}
		s.logger.Infow("delivery_push_ok", "task_id", task.ID, "requester_id", task.RequesterID)
		return
	}

	notification := ports.Notification{
		Title:    "Your answer is ready",
		Body:     truncate(answer.Answer, 160),
		DeepLink: fmt.Sprintf("agora://tasks/%s", task.ID),
	}
	result, err := s.notifier.Notify(ctx, task.RequesterID, notification)
	if err != nil {
		s.logger.Warnw("delivery_notify_failed", "task_id", task.ID, "requester_id", task.RequesterID, "error", err)
		return
	}
	s.logger.Infow("delivery_notify_ok",
		"task_id", task.ID,
		"requester_id", task.RequesterID,
		"delivered", result.Delivered,
		"count", result.Count,
	)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	// back up to a rune boundary so a multi-byte character is never split
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
