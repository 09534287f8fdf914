package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shs-portal/enrollment-api/internal/models"
)

const sectionColumns = `id, name, grade_level, track, strand, semester, capacity, open_enrollment,
	students, confirmed_students, created_at, updated_at`

// SectionRepository manages persistence for sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections matching the provided filters.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error) {
	base := "FROM sections"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.GradeLevel > 0 {
		conditions = append(conditions, fmt.Sprintf("grade_level = $%d", len(args)+1))
		args = append(args, filter.GradeLevel)
	}
	if filter.Strand != "" {
		conditions = append(conditions, fmt.Sprintf("strand = $%d", len(args)+1))
		args = append(args, filter.Strand)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	column := "name"
	if filter.SortBy == "created_at" {
		column = "created_at"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", sectionColumns, base+clause, column, order, size, offset)

	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID fetches a section by ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE id = $1", sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindByName fetches a section by its unique name.
func (r *SectionRepository) FindByName(ctx context.Context, name string) (*models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE name = $1", sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, name); err != nil {
		return nil, err
	}
	return &section, nil
}

// ExistsByName checks section name uniqueness.
func (r *SectionRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM sections WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section name: %w", err)
	}
	return true, nil
}

// Create inserts a new section record.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, name, grade_level, track, strand, semester, capacity, open_enrollment,
		students, confirmed_students, created_at, updated_at)
		VALUES (:id, :name, :grade_level, :track, :strand, :semester, :capacity, :open_enrollment,
		:students, :confirmed_students, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update rewrites a section record.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET name = :name, grade_level = :grade_level, track = :track, strand = :strand,
		semester = :semester, capacity = :capacity, open_enrollment = :open_enrollment,
		students = :students, confirmed_students = :confirmed_students, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// AddStudent idempotently appends a student to the section roster.
func (r *SectionRepository) AddStudent(ctx context.Context, sectionID, studentID string) error {
	const query = `UPDATE sections SET students = CASE WHEN students @> to_jsonb($2::text)
		THEN students ELSE students || to_jsonb($2::text) END, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sectionID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add section student: %w", err)
	}
	return nil
}

// RemoveStudent strips a student from the roster and the confirmed list.
func (r *SectionRepository) RemoveStudent(ctx context.Context, sectionID, studentID string) error {
	const query = `UPDATE sections SET students = students - $2, confirmed_students = confirmed_students - $2,
		updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sectionID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove section student: %w", err)
	}
	return nil
}

// RemoveStudentFromAll strips a student from every section roster.
func (r *SectionRepository) RemoveStudentFromAll(ctx context.Context, studentID string) error {
	const query = `UPDATE sections SET students = students - $1, confirmed_students = confirmed_students - $1,
		updated_at = $2 WHERE students @> to_jsonb($1::text) OR confirmed_students @> to_jsonb($1::text)`
	if _, err := r.db.ExecContext(ctx, query, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove student from sections: %w", err)
	}
	return nil
}

// ConfirmStudent idempotently marks a roster member as confirmed enrolled.
func (r *SectionRepository) ConfirmStudent(ctx context.Context, sectionID, studentID string) error {
	const query = `UPDATE sections SET confirmed_students = CASE WHEN confirmed_students @> to_jsonb($2::text)
		THEN confirmed_students ELSE confirmed_students || to_jsonb($2::text) END, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sectionID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("confirm section student: %w", err)
	}
	return nil
}

// Delete removes a section record.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sections WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}
