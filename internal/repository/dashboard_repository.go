package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shs-portal/enrollment-api/internal/models"
)

// DashboardRepository runs the grouped counts behind registrar statistics.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountApplicantsByStatus groups applicants by lifecycle status.
func (r *DashboardRepository) CountApplicantsByStatus(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error) {
	return r.grouped(ctx, "applicants", "status_registration", rng)
}

// CountStudentsByStatus groups students by lifecycle status.
func (r *DashboardRepository) CountStudentsByStatus(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error) {
	return r.grouped(ctx, "students", "status", rng)
}

// CountStudentsByGrade groups students by grade level.
func (r *DashboardRepository) CountStudentsByGrade(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error) {
	return r.grouped(ctx, "students", "grade_level::text", rng)
}

// CountStudentsByStrand groups students by strand.
func (r *DashboardRepository) CountStudentsByStrand(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error) {
	return r.grouped(ctx, "students", "strand", rng)
}

func (r *DashboardRepository) grouped(ctx context.Context, table, column string, rng models.DashboardRange) ([]models.StatusCount, error) {
	query := fmt.Sprintf("SELECT %s AS key, COUNT(*) AS count FROM %s WHERE 1=1", column, table)
	var args []interface{}
	if rng.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *rng.From)
	}
	if rng.To != nil {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, *rng.To)
	}
	query += fmt.Sprintf(" GROUP BY %s ORDER BY count DESC", column)

	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("grouped count %s.%s: %w", table, column, err)
	}
	return counts, nil
}

// SectionHeadcounts reports roster size per section.
func (r *DashboardRepository) SectionHeadcounts(ctx context.Context) ([]models.SectionHeadcount, error) {
	const query = `SELECT name AS section, grade_level, jsonb_array_length(students) AS count
		FROM sections ORDER BY grade_level, name`
	var counts []models.SectionHeadcount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("section headcounts: %w", err)
	}
	return counts, nil
}
