package models

import "time"

// NotificationType tags the category of a notification for client-side routing.
type NotificationType string

const (
	NotificationTypeCampaignCreated NotificationType = "medical_check_campaign"
	NotificationTypeCampaignParent  NotificationType = "medical_campaign"
)

// NotificationStatus tracks delivery and reading progress.
type NotificationStatus string

const (
	NotificationStatusSent      NotificationStatus = "SENT"
	NotificationStatusDelivered NotificationStatus = "DELIVERED"
	NotificationStatusRead      NotificationStatus = "READ"
	NotificationStatusArchived  NotificationStatus = "ARCHIVED"
)

// Notification is a message addressed to one user. CampaignID is a lookup key, not an ownership edge.
type Notification struct {
	ID         string             `db:"id" json:"id"`
	UserID     string             `db:"user_id" json:"userId"`
	Title      string             `db:"title" json:"title"`
	Message    string             `db:"message" json:"message"`
	Type       NotificationType   `db:"type" json:"type"`
	Status     NotificationStatus `db:"status" json:"status"`
	SentAt     time.Time          `db:"sent_at" json:"sentAt"`
	CampaignID *string            `db:"campaign_id" json:"campaignId,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"createdAt"`
}
