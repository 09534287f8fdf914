package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shs-portal/enrollment-api/pkg/jobs"
	"github.com/shs-portal/enrollment-api/pkg/mailer"
)

// notifier dispatches a notification without blocking the caller. Delivery is
// best effort; failures never propagate back to the request path.
type notifier interface {
	Notify(msg mailer.Message)
}

// NotificationService delivers emails through a background worker queue.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService wires the mailer behind a worker queue.
func NewNotificationService(m mailer.Mailer, cfg jobs.QueueConfig) *NotificationService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{logger: logger}
	svc.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return m.Send(ctx, msg)
	}, cfg)
	return svc
}

// Start begins background delivery.
func (s *NotificationService) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop drains the workers.
func (s *NotificationService) Stop() { s.queue.Stop() }

// Notify enqueues a message for delivery. Errors are logged, never returned.
func (s *NotificationService) Notify(msg mailer.Message) {
	job := jobs.Job{ID: uuid.NewString(), Type: "email", Payload: msg}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("to", msg.ToAddress), zap.Error(err))
	}
}
