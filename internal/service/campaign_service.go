package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/dto"
	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/repository"
	"github.com/noah-isme/sma-health-api/pkg/academicyear"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
	"github.com/noah-isme/sma-health-api/pkg/jobs"
)

// StaffNotifyJobType identifies queued creation-time staff notifications.
const StaffNotifyJobType = "campaign.staff_notify"

const (
	campaignCachePattern = "campaigns:*"
	campaignListCacheKey = "campaigns:list:"
	minCampaignWindow    = 7
)

type campaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (*models.Campaign, error)
	DeleteWithNotifications(ctx context.Context, id string) (int64, error)
}

type campaignRecipientResolver interface {
	ParentRecipients(ctx context.Context, campaign *models.Campaign) (RecipientSet, error)
}

type parentNotifier interface {
	NotifyParents(ctx context.Context, campaign *models.Campaign, recipients []string) FanoutResult
}

type campaignStudentDirectory interface {
	ListByGrades(ctx context.Context, grades []string) ([]models.Student, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type campaignMetrics interface {
	RecordCampaignTransition(status string)
	RecordDroppedJob()
}

// CampaignServiceConfig tunes campaign behaviour.
type CampaignServiceConfig struct {
	// Location decides which calendar day "today" is. Defaults to UTC.
	Location *time.Location
	CacheTTL time.Duration
}

// CampaignServiceParams groups constructor dependencies.
type CampaignServiceParams struct {
	Repo       campaignRepository
	Recipients campaignRecipientResolver
	Notifier   parentNotifier
	Students   campaignStudentDirectory
	Queue      jobDispatcher
	Cache      *CacheService
	Metrics    campaignMetrics
	Exporter   *RosterExporter
	Validator  *validator.Validate
	Clock      Clock
	Logger     *zap.Logger
	Config     CampaignServiceConfig
}

// CampaignService owns the campaign lifecycle: validation, persistence, status transitions and notification.
type CampaignService struct {
	repo       campaignRepository
	recipients campaignRecipientResolver
	notifier   parentNotifier
	students   campaignStudentDirectory
	queue      jobDispatcher
	cache      *CacheService
	metrics    campaignMetrics
	exporter   *RosterExporter
	validator  *validator.Validate
	clock      Clock
	logger     *zap.Logger
	cfg        CampaignServiceConfig
}

// NewCampaignService constructs a CampaignService with defaults for optional collaborators.
func NewCampaignService(params CampaignServiceParams) *CampaignService {
	cfg := params.Config
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	clock := params.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		repo:       params.Repo,
		recipients: params.Recipients,
		notifier:   params.Notifier,
		students:   params.Students,
		queue:      params.Queue,
		cache:      params.Cache,
		metrics:    params.Metrics,
		exporter:   params.Exporter,
		validator:  validate,
		clock:      clock,
		logger:     logger,
		cfg:        cfg,
	}
}

// Create validates and stores a new ACTIVE campaign, then queues the staff notification.
func (s *CampaignService) Create(ctx context.Context, req dto.CreateCampaignRequest) (*models.Campaign, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name, targetGrades, scheduledDate and deadline are required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Invalid("name", "name must not be blank")
	}
	scheduled, err := parseCampaignDate(req.ScheduledDate, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Invalid("scheduledDate", "scheduledDate must be a date (YYYY-MM-DD)")
	}
	deadline, err := parseCampaignDate(req.Deadline, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Invalid("deadline", "deadline must be a date (YYYY-MM-DD)")
	}
	if scheduled.Before(s.today()) {
		return nil, appErrors.Invalid("scheduledDate", "scheduledDate cannot be in the past")
	}
	if err := checkWindow(scheduled, deadline); err != nil {
		return nil, err
	}
	grades, err := normalizeGrades(req.TargetGrades)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameAvailable(ctx, name, ""); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   optionalDescription(req.Description),
		TargetGrades:  grades,
		ScheduledDate: scheduled,
		Deadline:      deadline,
		Status:        models.CampaignStatusActive,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		if errors.Is(err, repository.ErrCampaignNameTaken) {
			return nil, appErrors.Clone(appErrors.ErrCampaignNameTaken, "a campaign with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create campaign")
	}
	s.cache.Invalidate(ctx, campaignCachePattern)
	s.queueStaffNotification(campaign)

	campaign.AcademicYear = academicyear.LabelFor(campaign.ScheduledDate)
	return campaign, nil
}

// queueStaffNotification hands the creation fan-out to the job queue. It never fails the caller.
func (s *CampaignService) queueStaffNotification(campaign *models.Campaign) {
	if s.queue == nil {
		return
	}
	snapshot := *campaign
	job := jobs.Job{ID: campaign.ID, Type: StaffNotifyJobType, Payload: &snapshot, Enqueued: s.clock.Now().UTC()}
	if err := s.queue.Enqueue(job); err != nil {
		if s.metrics != nil {
			s.metrics.RecordDroppedJob()
		}
		s.logger.Error("failed to queue staff notification", zap.String("campaign_id", campaign.ID), zap.Error(err))
	}
}

// Get returns one campaign with its academic year.
func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	campaign.AcademicYear = academicyear.LabelFor(campaign.ScheduledDate)
	return campaign, nil
}

// List returns campaigns newest first, optionally restricted to one academic year.
// The second return value reports whether the result came from cache.
func (s *CampaignService) List(ctx context.Context, filter dto.CampaignFilter) ([]models.Campaign, bool, error) {
	label := strings.TrimSpace(filter.AcademicYear)
	query := models.CampaignFilter{}
	if label != "" {
		start, end, err := academicyear.RangeFor(label, time.UTC)
		if err != nil {
			return nil, false, appErrors.Invalid("academicYear", "academicYear must look like 2024-2025")
		}
		query.ScheduledFrom = &start
		query.ScheduledTo = &end
	}

	cacheKey := campaignListCacheKey + "all"
	if label != "" {
		cacheKey = campaignListCacheKey + label
	}
	var cached []models.Campaign
	if s.cache.Get(ctx, cacheKey, &cached) {
		return withAcademicYear(cached), true, nil
	}

	campaigns, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list campaigns")
	}
	campaigns = withAcademicYear(campaigns)
	s.cache.Set(ctx, cacheKey, campaigns, s.cfg.CacheTTL)
	return campaigns, false, nil
}

// Update applies the fields present in req. Status is never changed here.
func (s *CampaignService) Update(ctx context.Context, id string, req dto.UpdateCampaignRequest) (*models.Campaign, error) {
	if req.Status.Set {
		return nil, appErrors.Invalid("status", "status cannot be changed here; use the status endpoint")
	}
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		campaign.AcademicYear = academicyear.LabelFor(campaign.ScheduledDate)
		return campaign, nil
	}

	if req.Name.Set {
		name := strings.TrimSpace(req.Name.Value)
		if req.Name.Null || name == "" {
			return nil, appErrors.Invalid("name", "name must not be blank")
		}
		if name != campaign.Name {
			if err := s.ensureNameAvailable(ctx, name, campaign.ID); err != nil {
				return nil, err
			}
			campaign.Name = name
		}
	}

	if req.Description.Set {
		if req.Description.Null {
			campaign.Description = nil
		} else {
			description := req.Description.Value
			campaign.Description = &description
		}
	}

	if req.TargetGrades.Set {
		if req.TargetGrades.Null {
			return nil, appErrors.Invalid("targetGrades", "targetGrades must contain at least one grade")
		}
		grades, err := normalizeGrades(req.TargetGrades.Value)
		if err != nil {
			return nil, err
		}
		campaign.TargetGrades = grades
	}

	if req.ScheduledDate.Set || req.Deadline.Set {
		scheduled := campaign.ScheduledDate
		deadline := campaign.Deadline
		if req.ScheduledDate.Set {
			parsed, err := parseCampaignDate(req.ScheduledDate.Value, s.cfg.Location)
			if req.ScheduledDate.Null || err != nil {
				return nil, appErrors.Invalid("scheduledDate", "scheduledDate must be a date (YYYY-MM-DD)")
			}
			if parsed.Before(s.today()) {
				return nil, appErrors.Invalid("scheduledDate", "scheduledDate cannot be in the past")
			}
			scheduled = parsed
		}
		if req.Deadline.Set {
			parsed, err := parseCampaignDate(req.Deadline.Value, s.cfg.Location)
			if req.Deadline.Null || err != nil {
				return nil, appErrors.Invalid("deadline", "deadline must be a date (YYYY-MM-DD)")
			}
			deadline = parsed
		}
		if err := checkWindow(scheduled, deadline); err != nil {
			return nil, err
		}
		campaign.ScheduledDate = scheduled
		campaign.Deadline = deadline
	}

	if err := s.repo.Update(ctx, campaign); err != nil {
		switch {
		case errors.Is(err, repository.ErrCampaignNameTaken):
			return nil, appErrors.Clone(appErrors.ErrCampaignNameTaken, "a campaign with this name already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update campaign")
	}
	s.cache.Invalidate(ctx, campaignCachePattern)

	campaign.AcademicYear = academicyear.LabelFor(campaign.ScheduledDate)
	return campaign, nil
}

// Transition moves an ACTIVE campaign to FINISHED or CANCELLED.
func (s *CampaignService) Transition(ctx context.Context, id string, req dto.TransitionCampaignRequest) (*models.Campaign, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status is required")
	}
	target := models.CampaignStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !target.IsTerminal() {
		return nil, appErrors.Invalid("status", "status must be FINISHED or CANCELLED")
	}
	if campaign.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrCampaignTerminal, "campaign is already "+strings.ToLower(string(campaign.Status)))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, models.CampaignStatusActive, target)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignStatusChanged) {
			return nil, appErrors.Clone(appErrors.ErrCampaignTerminal, "campaign status was changed by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update campaign status")
	}
	if s.metrics != nil {
		s.metrics.RecordCampaignTransition(string(target))
	}
	s.cache.Invalidate(ctx, campaignCachePattern)
	s.logger.Info("campaign status changed",
		zap.String("campaign_id", id),
		zap.String("from", string(models.CampaignStatusActive)),
		zap.String("to", string(target)),
	)

	updated.AcademicYear = academicyear.LabelFor(updated.ScheduledDate)
	return updated, nil
}

// Delete removes the campaign together with every notification that references it.
func (s *CampaignService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	removed, err := s.repo.DeleteWithNotifications(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete campaign")
	}
	s.cache.Invalidate(ctx, campaignCachePattern)
	s.logger.Info("campaign deleted", zap.String("campaign_id", id), zap.Int64("notifications_removed", removed))
	return nil
}

// NotifyParents sends the campaign notice to every parent of a targeted student, once per parent.
func (s *CampaignService) NotifyParents(ctx context.Context, id string) (*dto.NotifyResult, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	set, err := s.recipients.ParentRecipients(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if set.Empty() {
		if set.Reason == RecipientsNoStudents {
			return nil, appErrors.Clone(appErrors.ErrNoMatchingStudents, appErrors.ErrNoMatchingStudents.Message)
		}
		return nil, appErrors.Clone(appErrors.ErrNoParentRecipients, appErrors.ErrNoParentRecipients.Message)
	}

	result := s.notifier.NotifyParents(ctx, campaign, set.UserIDs)
	return &dto.NotifyResult{
		CampaignID:  campaign.ID,
		SentCount:   result.Sent,
		FailedCount: result.Failed(),
		Failures:    result.Failures,
	}, nil
}

// ListStudents returns the students covered by the campaign's target grades.
func (s *CampaignService) ListStudents(ctx context.Context, id string) ([]dto.CampaignStudent, error) {
	campaign, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.campaignStudents(ctx, campaign)
}

func (s *CampaignService) campaignStudents(ctx context.Context, campaign *models.Campaign) ([]dto.CampaignStudent, error) {
	students, err := s.students.ListByGrades(ctx, campaign.TargetGrades)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list campaign students")
	}
	out := make([]dto.CampaignStudent, 0, len(students))
	for _, student := range students {
		out = append(out, dto.CampaignStudent{StudentID: student.ID, FullName: student.FullName, Grade: student.Grade})
	}
	return out, nil
}

func (s *CampaignService) load(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load campaign")
	}
	return campaign, nil
}

func (s *CampaignService) ensureNameAvailable(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check campaign name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrCampaignNameTaken, "a campaign with this name already exists")
	}
	return nil
}

// today is the current calendar day in the configured location, as a UTC date.
func (s *CampaignService) today() time.Time {
	return calendarDate(s.clock.Now().In(s.cfg.Location))
}

func withAcademicYear(campaigns []models.Campaign) []models.Campaign {
	for i := range campaigns {
		campaigns[i].AcademicYear = academicyear.LabelFor(campaigns[i].ScheduledDate)
	}
	return campaigns
}

// parseCampaignDate accepts YYYY-MM-DD or RFC3339 and returns the calendar day as midnight UTC.
// RFC3339 instants are first moved into loc so the day matches what the school sees.
func parseCampaignDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return calendarDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return calendarDate(t.In(loc)), nil
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkWindow(scheduled, deadline time.Time) error {
	days := int(calendarDate(deadline).Sub(calendarDate(scheduled)).Hours() / 24)
	if days < minCampaignWindow {
		return appErrors.Invalid("deadline", "deadline must be at least 7 days after scheduledDate")
	}
	return nil
}

// optionalDescription stores an empty description as NULL.
func optionalDescription(description *string) *string {
	if description == nil || *description == "" {
		return nil
	}
	return description
}

var gradePattern = regexp.MustCompile(`^[0-9]+$`)

// normalizeGrades checks every grade is a positive whole number written in digits only
// and sorts them numerically. Labels are stored as given; duplicates are kept.
func normalizeGrades(grades []string) ([]string, error) {
	if len(grades) == 0 {
		return nil, appErrors.Invalid("targetGrades", "targetGrades must contain at least one grade")
	}
	type grade struct {
		label string
		value int
	}
	parsed := make([]grade, 0, len(grades))
	for _, raw := range grades {
		if !gradePattern.MatchString(raw) {
			return nil, appErrors.Invalid("targetGrades", "targetGrades must be positive whole numbers")
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			return nil, appErrors.Invalid("targetGrades", "targetGrades must be positive whole numbers")
		}
		parsed = append(parsed, grade{label: raw, value: value})
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].value < parsed[j].value })

	out := make([]string, len(parsed))
	for i, g := range parsed {
		out[i] = g.label
	}
	return out, nil
}
