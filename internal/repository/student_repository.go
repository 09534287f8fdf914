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

const studentColumns = `id, student_number, lrn, last_name, first_name, middle_name, extension,
	birth_date, sex, email, contact_number, address, grade_level, track, strand, semester, section,
	status, student_type, subjects, registration_history, carryover_subjects,
	vacated_section, enrollment_requested, password_hash, created_at, updated_at`

const studentUpdateSet = `student_number = :student_number, lrn = :lrn, last_name = :last_name,
	first_name = :first_name, middle_name = :middle_name, extension = :extension, birth_date = :birth_date,
	sex = :sex, email = :email, contact_number = :contact_number, address = :address,
	grade_level = :grade_level, track = :track, strand = :strand, semester = :semester, section = :section,
	status = :status, student_type = :student_type, subjects = :subjects,
	registration_history = :registration_history, carryover_subjects = :carryover_subjects,
	vacated_section = :vacated_section, enrollment_requested = :enrollment_requested,
	password_hash = :password_hash, updated_at = :updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students"
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
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("student_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(last_name) LIKE $%d OR LOWER(first_name) LIKE $%d OR student_number LIKE $%d OR lrn LIKE $%d)", idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"last_name":      "last_name",
		"student_number": "student_number",
		"created_at":     "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base+clause, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByLogin fetches a student by email or student number for authentication.
func (r *StudentRepository) FindByLogin(ctx context.Context, login string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE LOWER(email) = LOWER($1) OR student_number = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, login); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindBySection returns every student currently assigned to the section name.
func (r *StudentRepository) FindBySection(ctx context.Context, sectionName string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE section = $1", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, sectionName); err != nil {
		return nil, fmt.Errorf("find section students: %w", err)
	}
	return students, nil
}

// FindEnrolledMatching returns enrolled students whose placement matches the
// given grade, strand and semester.
func (r *StudentRepository) FindEnrolledMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE status = $1 AND grade_level = $2 AND strand = $3 AND semester = $4", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, models.StudentStatusEnrolled, gradeLevel, strand, semester); err != nil {
		return nil, fmt.Errorf("find matching students: %w", err)
	}
	return students, nil
}

// FindHoldingSubject returns students whose live subject list contains the subject.
func (r *StudentRepository) FindHoldingSubject(ctx context.Context, subjectID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE subjects @> $1::jsonb`, studentColumns)
	needle := fmt.Sprintf(`[{"subject_id": %q}]`, subjectID)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, needle); err != nil {
		return nil, fmt.Errorf("find subject holders: %w", err)
	}
	return students, nil
}

// ExistsByEmail checks whether a student already uses this email.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER($1)", email, excludeID)
}

// ExistsByLRN checks whether a student already uses this LRN.
func (r *StudentRepository) ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error) {
	return r.exists(ctx, "lrn = $1", lrn, excludeID)
}

// ExistsByStudentNumber checks whether a student number is already assigned.
func (r *StudentRepository) ExistsByStudentNumber(ctx context.Context, number, excludeID string) (bool, error) {
	return r.exists(ctx, "student_number = $1", number, excludeID)
}

func (r *StudentRepository) exists(ctx context.Context, condition string, value, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE " + condition
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}

// NextStudentNumber atomically allocates the next ordinal for the given year.
func (r *StudentRepository) NextStudentNumber(ctx context.Context, year int) (int, error) {
	const query = `INSERT INTO student_number_counters (year, last) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last = student_number_counters.last + 1
		RETURNING last`
	var ordinal int
	if err := r.db.GetContext(ctx, &ordinal, query, year); err != nil {
		return 0, fmt.Errorf("allocate student number: %w", err)
	}
	return ordinal, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_number, lrn, last_name, first_name, middle_name, extension,
		birth_date, sex, email, contact_number, address, grade_level, track, strand, semester, section,
		status, student_type, subjects, registration_history, carryover_subjects,
		vacated_section, enrollment_requested, password_hash, created_at, updated_at)
		VALUES (:id, :student_number, :lrn, :last_name, :first_name, :middle_name, :extension,
		:birth_date, :sex, :email, :contact_number, :address, :grade_level, :track, :strand, :semester, :section,
		:status, :student_type, :subjects, :registration_history, :carryover_subjects,
		:vacated_section, :enrollment_requested, :password_hash, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites a student record.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf("UPDATE students SET %s WHERE id = :id", studentUpdateSet)
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateBatch rewrites multiple student records in a single transaction. This
// backs the cascade engines' final write pass.
func (r *StudentRepository) UpdateBatch(ctx context.Context, students []*models.Student) error {
	if len(students) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student batch: %w", err)
	}
	query := fmt.Sprintf("UPDATE students SET %s WHERE id = :id", studentUpdateSet)
	now := time.Now().UTC()
	for _, student := range students {
		student.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch update student %s: %w", student.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student batch: %w", err)
	}
	return nil
}

// UpdatePassword stores a new credential hash.
func (r *StudentRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE students SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student password: %w", err)
	}
	return nil
}

// Delete removes a student record.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
