package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/models"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

type recipientUserRepository interface {
	ListIDsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

type recipientStudentRepository interface {
	ListByGrades(ctx context.Context, grades []string) ([]models.Student, error)
}

type recipientParentRepository interface {
	ListLinks(ctx context.Context, studentIDs []string) ([]models.StudentParentLink, error)
}

// RecipientReason explains why a recipient set came back empty.
type RecipientReason string

const (
	RecipientsNoStudents RecipientReason = "NO_MATCHING_STUDENTS"
	RecipientsNoParents  RecipientReason = "NO_PARENT_RECIPIENTS"
)

// RecipientSet is the resolved audience of a parent notification.
type RecipientSet struct {
	UserIDs         []string
	MatchedStudents int
	Reason          RecipientReason
}

// Empty reports whether there is nobody to notify.
func (s RecipientSet) Empty() bool { return len(s.UserIDs) == 0 }

// RecipientResolver turns a campaign into the users who should hear about it.
type RecipientResolver struct {
	users    recipientUserRepository
	students recipientStudentRepository
	parents  recipientParentRepository
	logger   *zap.Logger
}

// NewRecipientResolver constructs a RecipientResolver.
func NewRecipientResolver(users recipientUserRepository, students recipientStudentRepository, parents recipientParentRepository, logger *zap.Logger) *RecipientResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipientResolver{users: users, students: students, parents: parents, logger: logger}
}

// StaffRecipients returns every nurse, regardless of account state.
func (r *RecipientResolver) StaffRecipients(ctx context.Context) ([]string, error) {
	ids, err := r.users.ListIDsByRole(ctx, models.RoleNurse)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staff recipients")
	}
	return dedupe(ids), nil
}

// ParentRecipients returns the parents of students in the campaign's target grades,
// each parent once, in the order their first child was found.
func (r *RecipientResolver) ParentRecipients(ctx context.Context, campaign *models.Campaign) (RecipientSet, error) {
	students, err := r.students.ListByGrades(ctx, campaign.TargetGrades)
	if err != nil {
		return RecipientSet{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve campaign students")
	}
	if len(students) == 0 {
		return RecipientSet{Reason: RecipientsNoStudents}, nil
	}

	studentIDs := make([]string, 0, len(students))
	for _, student := range students {
		studentIDs = append(studentIDs, student.ID)
	}
	links, err := r.parents.ListLinks(ctx, studentIDs)
	if err != nil {
		return RecipientSet{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve parent recipients")
	}

	parentIDs := make([]string, 0, len(links))
	for _, link := range links {
		parentIDs = append(parentIDs, link.ParentUserID)
	}
	set := RecipientSet{UserIDs: dedupe(parentIDs), MatchedStudents: len(students)}
	if set.Empty() {
		set.Reason = RecipientsNoParents
	}
	r.logger.Debug("parent recipients resolved",
		zap.String("campaign_id", campaign.ID),
		zap.Int("students", set.MatchedStudents),
		zap.Int("parents", len(set.UserIDs)),
	)
	return set, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
