package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shs-portal/enrollment-api/internal/models"
)

const subjectColumns = `id, code, name, grade_level, strand, track, semester, type,
	teacher_id, teacher_name, students, offerings, created_at, updated_at`

// SubjectRepository manages persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects matching the provided filters.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects"
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
	if filter.Track != "" {
		conditions = append(conditions, fmt.Sprintf("track = $%d", len(args)+1))
		args = append(args, filter.Track)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	column := "code"
	if filter.SortBy == "name" {
		column = "name"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", subjectColumns, base+clause, column, order, size, offset)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindMatching returns the candidate subject set for a placement.
func (r *SubjectRepository) FindMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE grade_level = $1 AND strand = $2 AND semester = $3", subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, gradeLevel, strand, semester); err != nil {
		return nil, fmt.Errorf("find matching subjects: %w", err)
	}
	return subjects, nil
}

// FindByCodes returns every subject whose code appears in the given set.
func (r *SubjectRepository) FindByCodes(ctx context.Context, codes []string) ([]models.Subject, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE code = ANY($1)", subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("find subjects by code: %w", err)
	}
	return subjects, nil
}

// ExistsByCode checks subject code uniqueness.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM subjects WHERE LOWER(code) = LOWER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return true, nil
}

// Create inserts a new subject record.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, code, name, grade_level, strand, track, semester, type,
		teacher_id, teacher_name, students, offerings, created_at, updated_at)
		VALUES (:id, :code, :name, :grade_level, :strand, :track, :semester, :type,
		:teacher_id, :teacher_name, :students, :offerings, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update rewrites a subject record.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET code = :code, name = :name, grade_level = :grade_level, strand = :strand,
		track = :track, semester = :semester, type = :type, teacher_id = :teacher_id, teacher_name = :teacher_name,
		students = :students, offerings = :offerings, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// AddStudents idempotently appends students to the subject roster in one write.
func (r *SubjectRepository) AddStudents(ctx context.Context, subjectID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `UPDATE subjects SET students = (
		SELECT COALESCE(jsonb_agg(DISTINCT elem), '[]'::jsonb)
		FROM jsonb_array_elements(students || $2::jsonb) AS elem
	), updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, subjectID, models.StringList(studentIDs), time.Now().UTC()); err != nil {
		return fmt.Errorf("add subject students: %w", err)
	}
	return nil
}

// AddStudent idempotently appends one student to the subject roster.
func (r *SubjectRepository) AddStudent(ctx context.Context, subjectID, studentID string) error {
	const query = `UPDATE subjects SET students = CASE WHEN students @> to_jsonb($2::text)
		THEN students ELSE students || to_jsonb($2::text) END, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, subjectID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add subject student: %w", err)
	}
	return nil
}

// RemoveStudent strips one student from the subject roster.
func (r *SubjectRepository) RemoveStudent(ctx context.Context, subjectID, studentID string) error {
	const query = `UPDATE subjects SET students = students - $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, subjectID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove subject student: %w", err)
	}
	return nil
}

// RemoveStudentFromAll strips a student from every subject roster.
func (r *SubjectRepository) RemoveStudentFromAll(ctx context.Context, studentID string) error {
	const query = `UPDATE subjects SET students = students - $1, updated_at = $2
		WHERE students @> to_jsonb($1::text)`
	if _, err := r.db.ExecContext(ctx, query, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove student from subjects: %w", err)
	}
	return nil
}

// Delete removes a subject record.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
