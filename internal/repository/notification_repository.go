package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-health-api/internal/models"
)

// NotificationRepository stores per-user notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts one notification row. Each call is its own statement so one failed recipient
// never rolls back another.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notification.SentAt.IsZero() {
		notification.SentAt = now
	}
	if notification.Status == "" {
		notification.Status = models.NotificationStatusSent
	}
	notification.CreatedAt = now
	const query = `INSERT INTO notifications (id, user_id, title, message, type, status, sent_at, campaign_id, created_at)
VALUES (:id, :user_id, :title, :message, :type, :status, :sent_at, :campaign_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CountByCampaign returns how many notifications reference the campaign.
func (r *NotificationRepository) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE campaign_id = $1`, campaignID); err != nil {
		return 0, fmt.Errorf("count campaign notifications: %w", err)
	}
	return total, nil
}
