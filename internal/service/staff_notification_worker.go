package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/pkg/jobs"
)

type staffRecipientResolver interface {
	StaffRecipients(ctx context.Context) ([]string, error)
}

type staffNotifier interface {
	NotifyStaff(ctx context.Context, campaign *models.Campaign, recipients []string) FanoutResult
}

// StaffNotificationWorker runs the creation-time staff fan-out off the request path.
// Failures are logged and never retried.
type StaffNotificationWorker struct {
	recipients staffRecipientResolver
	notifier   staffNotifier
	logger     *zap.Logger
}

// NewStaffNotificationWorker constructs a worker.
func NewStaffNotificationWorker(recipients staffRecipientResolver, notifier staffNotifier, logger *zap.Logger) *StaffNotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffNotificationWorker{recipients: recipients, notifier: notifier, logger: logger}
}

// Handle processes one queued job.
func (w *StaffNotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != StaffNotifyJobType {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	campaign, ok := job.Payload.(*models.Campaign)
	if !ok || campaign == nil {
		return fmt.Errorf("job %s has no campaign payload", job.ID)
	}

	recipients, err := w.recipients.StaffRecipients(ctx)
	if err != nil {
		w.logger.Error("staff recipients unavailable", zap.String("campaign_id", campaign.ID), zap.Error(err))
		return err
	}
	if len(recipients) == 0 {
		w.logger.Info("no staff to notify", zap.String("campaign_id", campaign.ID))
		return nil
	}

	result := w.notifier.NotifyStaff(ctx, campaign, recipients)
	for _, failure := range result.Failures {
		w.logger.Warn("staff notification failed",
			zap.String("campaign_id", campaign.ID),
			zap.String("user_id", failure.UserID),
			zap.String("reason", failure.Reason),
		)
	}
	return nil
}
