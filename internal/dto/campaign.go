package dto

// CreateCampaignRequest is the payload for creating a campaign. Dates accept YYYY-MM-DD or RFC3339.
type CreateCampaignRequest struct {
	Name          string   `json:"name" validate:"required"`
	Description   *string  `json:"description"`
	TargetGrades  []string `json:"targetGrades" validate:"required,min=1"`
	ScheduledDate string   `json:"scheduledDate" validate:"required"`
	Deadline      string   `json:"deadline" validate:"required"`
	// IsActive is accepted for compatibility with older clients and ignored: campaigns always start ACTIVE.
	IsActive *bool `json:"isActive,omitempty"`
}

// UpdateCampaignRequest carries a partial update; only fields present in the payload are applied.
type UpdateCampaignRequest struct {
	Name          Optional[string]   `json:"name"`
	Description   Optional[string]   `json:"description"`
	TargetGrades  Optional[[]string] `json:"targetGrades"`
	ScheduledDate Optional[string]   `json:"scheduledDate"`
	Deadline      Optional[string]   `json:"deadline"`
	// Status is decoded only so that attempts to change it here can be rejected.
	Status Optional[string] `json:"status"`
}

// Empty reports whether no updatable field was supplied.
func (r UpdateCampaignRequest) Empty() bool {
	return !r.Name.Set && !r.Description.Set && !r.TargetGrades.Set && !r.ScheduledDate.Set && !r.Deadline.Set
}

// TransitionCampaignRequest moves a campaign to a terminal status.
type TransitionCampaignRequest struct {
	Status string `json:"status" validate:"required"`
}

// CampaignFilter mirrors supported listing filters.
type CampaignFilter struct {
	AcademicYear string `form:"academicYear"`
}

// RecipientFailure describes a recipient whose notification could not be stored.
type RecipientFailure struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// NotifyResult summarises an explicit notification fan-out.
type NotifyResult struct {
	CampaignID  string             `json:"campaignId"`
	SentCount   int                `json:"sentCount"`
	FailedCount int                `json:"failedCount"`
	Failures    []RecipientFailure `json:"failures,omitempty"`
}

// CampaignStudent is a student covered by a campaign's target grades.
type CampaignStudent struct {
	StudentID string `json:"studentId"`
	FullName  string `json:"fullName"`
	Grade     string `json:"grade"`
}

// ExportFormat enumerates roster export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// RosterExport is a rendered roster file.
type RosterExport struct {
	Filename    string
	ContentType string
	Content     []byte
}
