package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/dto"
	"github.com/noah-isme/sma-health-api/internal/models"
)

// NotificationCreatedEvent is the routing key of events published per stored notification.
const NotificationCreatedEvent = "notification.created"

const campaignDateLayout = "2006-01-02"

// Reasons reported to callers for failed recipients. Causes stay in the logs.
const (
	FailureReasonNotStored   = "notification could not be stored"
	FailureReasonNotPrepared = "notification could not be prepared"
)

var errNotificationNotBuilt = errors.New("no notification built for recipient")

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

type fanoutMetrics interface {
	ObserveNotificationFanout(mode string, sent, failed int, duration time.Duration)
}

// FanoutResult aggregates the outcome of writing one notification per recipient.
type FanoutResult struct {
	Sent     int
	Failures []dto.RecipientFailure
}

// Failed returns the number of recipients whose write did not succeed.
func (r FanoutResult) Failed() int { return len(r.Failures) }

type notificationEvent struct {
	ID         string                  `json:"id"`
	UserID     string                  `json:"userId"`
	Type       models.NotificationType `json:"type"`
	Title      string                  `json:"title"`
	CampaignID *string                 `json:"campaignId,omitempty"`
	SentAt     time.Time               `json:"sentAt"`
}

// NotificationFanoutEngine writes one notification per recipient concurrently.
// A failure for one recipient never affects another, and the call as a whole never fails.
type NotificationFanoutEngine struct {
	store     notificationStore
	publisher eventPublisher
	metrics   fanoutMetrics
	clock     Clock
	logger    *zap.Logger
}

// NewNotificationFanoutEngine constructs the engine. publisher and metrics may be nil.
func NewNotificationFanoutEngine(store notificationStore, publisher eventPublisher, metrics fanoutMetrics, clock Clock, logger *zap.Logger) *NotificationFanoutEngine {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationFanoutEngine{store: store, publisher: publisher, metrics: metrics, clock: clock, logger: logger}
}

// Fanout builds and stores a notification for every recipient and joins before returning.
func (e *NotificationFanoutEngine) Fanout(ctx context.Context, recipients []string, build func(userID string) *models.Notification) FanoutResult {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result FanoutResult
	)
	for _, userID := range recipients {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			reason := e.deliver(ctx, userID, build)

			mu.Lock()
			defer mu.Unlock()
			if reason != "" {
				result.Failures = append(result.Failures, dto.RecipientFailure{UserID: userID, Reason: reason})
				return
			}
			result.Sent++
		}(userID)
	}
	wg.Wait()

	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].UserID < result.Failures[j].UserID })
	return result
}

// deliver returns an empty reason on success.
func (e *NotificationFanoutEngine) deliver(ctx context.Context, userID string, build func(userID string) *models.Notification) (reason string) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("notification write panicked", zap.String("user_id", userID), zap.Any("panic", rec))
			reason = FailureReasonNotStored
		}
	}()

	notification := build(userID)
	if notification == nil {
		e.logger.Warn("notification write skipped", zap.String("user_id", userID), zap.Error(errNotificationNotBuilt))
		return FailureReasonNotPrepared
	}
	if err := e.store.Create(ctx, notification); err != nil {
		e.logger.Warn("notification write failed", zap.String("user_id", userID), zap.Error(err))
		return FailureReasonNotStored
	}
	e.publish(ctx, notification)
	return ""
}

func (e *NotificationFanoutEngine) publish(ctx context.Context, notification *models.Notification) {
	if e.publisher == nil {
		return
	}
	event := notificationEvent{
		ID:         notification.ID,
		UserID:     notification.UserID,
		Type:       notification.Type,
		Title:      notification.Title,
		CampaignID: notification.CampaignID,
		SentAt:     notification.SentAt,
	}
	if err := e.publisher.Publish(ctx, NotificationCreatedEvent, event); err != nil {
		e.logger.Warn("notification event publish failed", zap.String("notification_id", notification.ID), zap.Error(err))
	}
}

// NotifyStaff tells every staff recipient that campaign was created.
func (e *NotificationFanoutEngine) NotifyStaff(ctx context.Context, campaign *models.Campaign, recipients []string) FanoutResult {
	return e.notify(ctx, FanoutModeStaff, campaign, recipients, func(userID string) *models.Notification {
		return e.newNotification(userID, campaign, models.NotificationTypeCampaignCreated,
			fmt.Sprintf("New health campaign: %s", campaign.Name),
			fmt.Sprintf("A new health campaign has been created, starting on %s.", campaign.ScheduledDate.Format(campaignDateLayout)),
		)
	})
}

// NotifyParents informs each parent recipient about campaign.
func (e *NotificationFanoutEngine) NotifyParents(ctx context.Context, campaign *models.Campaign, recipients []string) FanoutResult {
	return e.notify(ctx, FanoutModeParents, campaign, recipients, func(userID string) *models.Notification {
		return e.newNotification(userID, campaign, models.NotificationTypeCampaignParent,
			fmt.Sprintf("Health campaign notice: %s", campaign.Name),
			parentMessage(campaign),
		)
	})
}

func (e *NotificationFanoutEngine) notify(ctx context.Context, mode string, campaign *models.Campaign, recipients []string, build func(string) *models.Notification) FanoutResult {
	start := e.clock.Now()
	result := e.Fanout(ctx, recipients, build)
	duration := e.clock.Now().Sub(start)
	if e.metrics != nil {
		e.metrics.ObserveNotificationFanout(mode, result.Sent, result.Failed(), duration)
	}
	e.logger.Info("notification fan-out finished",
		zap.String("campaign_id", campaign.ID),
		zap.String("mode", mode),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed()),
		zap.Duration("duration", duration),
	)
	return result
}

func (e *NotificationFanoutEngine) newNotification(userID string, campaign *models.Campaign, kind models.NotificationType, title, message string) *models.Notification {
	campaignID := campaign.ID
	return &models.Notification{
		UserID:     userID,
		Title:      title,
		Message:    message,
		Type:       kind,
		Status:     models.NotificationStatusSent,
		SentAt:     e.clock.Now().UTC(),
		CampaignID: &campaignID,
	}
}

func parentMessage(campaign *models.Campaign) string {
	return fmt.Sprintf(
		"The school is holding the health campaign %q from %s to %s for students in grades %s. "+
			"The check covers physical fitness, vision, hearing and other basic health indicators. "+
			"Please help your child take part so their health can be followed fully.",
		campaign.Name,
		campaign.ScheduledDate.Format(campaignDateLayout),
		campaign.Deadline.Format(campaignDateLayout),
		strings.Join(campaign.TargetGrades, ", "),
	)
}
