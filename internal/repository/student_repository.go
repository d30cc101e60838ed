package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-health-api/internal/models"
)

// StudentRepository reads students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByGrades returns students whose grade is one of grades, ordered by name.
func (r *StudentRepository) ListByGrades(ctx context.Context, grades []string) ([]models.Student, error) {
	students := make([]models.Student, 0)
	if len(grades) == 0 {
		return students, nil
	}
	const query = `SELECT s.id, s.user_id, u.full_name, s.grade
FROM students s
JOIN users u ON u.id = s.user_id
WHERE s.grade = ANY($1)
ORDER BY u.full_name ASC, s.id ASC`
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(grades)); err != nil {
		return nil, fmt.Errorf("list students by grade: %w", err)
	}
	return students, nil
}
