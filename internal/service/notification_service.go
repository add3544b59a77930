package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/event"
)

// NotificationService is the delivery sink behind notification.request.
// The current transport is structured logging; a real channel (push,
// email) slots in behind the same method.
type NotificationService struct {
	logger *zap.SugaredLogger
}

func NewNotificationService(logger *zap.SugaredLogger) *NotificationService {
	return &NotificationService{logger: logger}
}

// Notify delivers one message to one user.
func (s *NotificationService) Notify(ctx context.Context, payload event.NotificationRequestPayload) error {
	s.logger.Infow("notification sent",
		"userId", payload.UserID,
		"type", payload.Type,
		"title", payload.Title,
		"message", payload.Message,
		"data", payload.Data,
	)
	return nil
}
