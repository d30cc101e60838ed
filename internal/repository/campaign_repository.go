package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/pkg/database"
)

const campaignNameConstraint = "campaigns_name_key"

var (
	// ErrCampaignNameTaken is returned when the store rejects a duplicate campaign name.
	ErrCampaignNameTaken = errors.New("campaign name already exists")
	// ErrCampaignStatusChanged is returned when a status update lost a race with another transition.
	ErrCampaignStatusChanged = errors.New("campaign status changed concurrently")
)

const campaignColumns = `id, name, description, target_grades, scheduled_date, deadline, status, created_at, updated_at`

// CampaignRepository persists medical check campaigns.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs the repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign. The UNIQUE(name) constraint is the authoritative duplicate guard.
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}
	campaign.UpdatedAt = now
	const query = `INSERT INTO campaigns (id, name, description, target_grades, scheduled_date, deadline, status, created_at, updated_at)
VALUES (:id, :name, :description, :target_grades, :scheduled_date, :deadline, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, campaign); err != nil {
		if database.IsUniqueViolation(err, campaignNameConstraint) {
			return ErrCampaignNameTaken
		}
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// GetByID returns a campaign by identifier or sql.ErrNoRows.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	var campaign models.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &campaign, nil
}

// ExistsByName checks for a campaign with exactly this name, ignoring excludeID when set.
func (r *CampaignRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM campaigns WHERE name = $1`
	args := []interface{}{name}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check campaign name: %w", err)
	}
	return exists, nil
}

// List returns campaigns, most recently created first.
func (r *CampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + campaignColumns + ` FROM campaigns`)

	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.ScheduledFrom != nil {
		args = append(args, *filter.ScheduledFrom)
		conditions = append(conditions, fmt.Sprintf("scheduled_date >= $%d", len(args)))
	}
	if filter.ScheduledTo != nil {
		args = append(args, *filter.ScheduledTo)
		conditions = append(conditions, fmt.Sprintf("scheduled_date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	campaigns := make([]models.Campaign, 0)
	if err := r.db.SelectContext(ctx, &campaigns, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// Update persists every non-status column of campaign.
func (r *CampaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	campaign.UpdatedAt = time.Now().UTC()
	const query = `UPDATE campaigns SET name = :name, description = :description, target_grades = :target_grades,
scheduled_date = :scheduled_date, deadline = :deadline, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, campaign)
	if err != nil {
		if database.IsUniqueViolation(err, campaignNameConstraint) {
			return ErrCampaignNameTaken
		}
		return fmt.Errorf("update campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a campaign from one status to another as a compare-and-set.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (*models.Campaign, error) {
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 RETURNING ` + campaignColumns
	var campaign models.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, to, time.Now().UTC(), id, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCampaignStatusChanged
		}
		return nil, fmt.Errorf("update campaign status: %w", err)
	}
	return &campaign, nil
}

// DeleteWithNotifications removes the notifications referencing the campaign and the campaign itself
// in one transaction. It returns the number of notifications removed.
func (r *CampaignRepository) DeleteWithNotifications(ctx context.Context, id string) (removed int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin campaign delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE campaign_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete campaign notifications: %w", err)
	}
	removed, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete campaign notifications rows: %w", err)
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete campaign rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit campaign delete: %w", err)
	}
	return removed, nil
}
