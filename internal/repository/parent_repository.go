package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-health-api/internal/models"
)

// ParentRepository reads student to parent links.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository constructs a ParentRepository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

// ListLinks returns the parent links of the given students.
// Rows keep the order of studentIDs so callers can dedupe by first occurrence.
func (r *ParentRepository) ListLinks(ctx context.Context, studentIDs []string) ([]models.StudentParentLink, error) {
	links := make([]models.StudentParentLink, 0)
	if len(studentIDs) == 0 {
		return links, nil
	}
	const query = `SELECT sp.student_id, sp.parent_user_id
FROM student_parents sp
WHERE sp.student_id = ANY($1::text[])
ORDER BY array_position($1::text[], sp.student_id), sp.parent_user_id`
	if err := r.db.SelectContext(ctx, &links, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list parent links: %w", err)
	}
	return links, nil
}
