package models

import (
	"time"

	"github.com/lib/pq"
)

// CampaignStatus captures the lifecycle state of a health campaign.
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusFinished  CampaignStatus = "FINISHED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusFinished || s == CampaignStatusCancelled
}

// CampaignMinWindow is the minimum distance between scheduled date and deadline.
const CampaignMinWindow = 7 * 24 * time.Hour

// Campaign is a time-boxed medical check campaign targeting one or more grades.
type Campaign struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Description   *string        `db:"description" json:"description"`
	TargetGrades  pq.StringArray `db:"target_grades" json:"targetGrades"`
	ScheduledDate time.Time      `db:"scheduled_date" json:"scheduledDate"`
	Deadline      time.Time      `db:"deadline" json:"deadline"`
	Status        CampaignStatus `db:"status" json:"status"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`

	// AcademicYear is derived from ScheduledDate on read and never persisted.
	AcademicYear string `db:"-" json:"academicYear,omitempty"`
}

// CampaignFilter constrains campaign listing. Zero bounds are ignored.
type CampaignFilter struct {
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
}
