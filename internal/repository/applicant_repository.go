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

const applicantColumns = `id, school_year, grade_level, has_lrn, lrn, returning_learner, psa_birth_cert_no,
	last_name, first_name, middle_name, extension, birth_date, sex, place_of_birth, email, contact_number,
	is_indigenous, indigenous_community, is_4ps, household_4ps_id, has_disability, disability_type,
	current_address, same_as_current, permanent_address, family, returning_type, last_school,
	semester, track, strand, documents, registration_complete, status_registration,
	rejection_reason, rejected_at, created_at, updated_at`

// ApplicantRepository manages persistence for enrollment applications.
type ApplicantRepository struct {
	db *sqlx.DB
}

// NewApplicantRepository constructs an ApplicantRepository.
func NewApplicantRepository(db *sqlx.DB) *ApplicantRepository {
	return &ApplicantRepository{db: db}
}

// List returns applicants matching the provided filters.
func (r *ApplicantRepository) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error) {
	base := "FROM applicants"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status_registration = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.GradeLevel > 0 {
		conditions = append(conditions, fmt.Sprintf("grade_level = $%d", len(args)+1))
		args = append(args, filter.GradeLevel)
	}
	if filter.Strand != "" {
		conditions = append(conditions, fmt.Sprintf("strand = $%d", len(args)+1))
		args = append(args, filter.Strand)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(last_name) LIKE $%d OR LOWER(first_name) LIKE $%d OR LOWER(email) LIKE $%d OR lrn LIKE $%d)", idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"last_name":  "last_name",
		"created_at": "created_at",
		"status":     "status_registration",
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", applicantColumns, base+clause, column, order, size, offset)

	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applicants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applicants: %w", err)
	}
	return applicants, total, nil
}

// FindByID fetches an applicant by ID.
func (r *ApplicantRepository) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	query := fmt.Sprintf("SELECT %s FROM applicants WHERE id = $1", applicantColumns)
	var applicant models.Applicant
	if err := r.db.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// ExistsByEmail checks whether an applicant already uses this email.
func (r *ApplicantRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := "SELECT 1 FROM applicants WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check applicant email: %w", err)
	}
	return true, nil
}

// ExistsByLRN checks whether an applicant already uses this LRN.
func (r *ApplicantRepository) ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error) {
	query := "SELECT 1 FROM applicants WHERE lrn = $1"
	args := []interface{}{lrn}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check applicant lrn: %w", err)
	}
	return true, nil
}

// Create inserts a new applicant record.
func (r *ApplicantRepository) Create(ctx context.Context, applicant *models.Applicant) error {
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = now
	}
	applicant.UpdatedAt = now
	const query = `INSERT INTO applicants (id, school_year, grade_level, has_lrn, lrn, returning_learner, psa_birth_cert_no,
		last_name, first_name, middle_name, extension, birth_date, sex, place_of_birth, email, contact_number,
		is_indigenous, indigenous_community, is_4ps, household_4ps_id, has_disability, disability_type,
		current_address, same_as_current, permanent_address, family, returning_type, last_school,
		semester, track, strand, documents, registration_complete, status_registration,
		rejection_reason, rejected_at, created_at, updated_at)
		VALUES (:id, :school_year, :grade_level, :has_lrn, :lrn, :returning_learner, :psa_birth_cert_no,
		:last_name, :first_name, :middle_name, :extension, :birth_date, :sex, :place_of_birth, :email, :contact_number,
		:is_indigenous, :indigenous_community, :is_4ps, :household_4ps_id, :has_disability, :disability_type,
		:current_address, :same_as_current, :permanent_address, :family, :returning_type, :last_school,
		:semester, :track, :strand, :documents, :registration_complete, :status_registration,
		:rejection_reason, :rejected_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, applicant); err != nil {
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

// Update rewrites the applicant record.
func (r *ApplicantRepository) Update(ctx context.Context, applicant *models.Applicant) error {
	applicant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applicants SET school_year = :school_year, grade_level = :grade_level, has_lrn = :has_lrn,
		lrn = :lrn, returning_learner = :returning_learner, psa_birth_cert_no = :psa_birth_cert_no,
		last_name = :last_name, first_name = :first_name, middle_name = :middle_name, extension = :extension,
		birth_date = :birth_date, sex = :sex, place_of_birth = :place_of_birth, email = :email,
		contact_number = :contact_number, is_indigenous = :is_indigenous, indigenous_community = :indigenous_community,
		is_4ps = :is_4ps, household_4ps_id = :household_4ps_id, has_disability = :has_disability,
		disability_type = :disability_type, current_address = :current_address, same_as_current = :same_as_current,
		permanent_address = :permanent_address, family = :family, returning_type = :returning_type,
		last_school = :last_school, semester = :semester, track = :track, strand = :strand,
		documents = :documents, registration_complete = :registration_complete,
		status_registration = :status_registration, rejection_reason = :rejection_reason,
		rejected_at = :rejected_at, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, applicant); err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	return nil
}

// UpdateStatus sets lifecycle status plus optional rejection metadata.
func (r *ApplicantRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus, reason *string, rejectedAt *time.Time) error {
	const query = `UPDATE applicants SET status_registration = $2, rejection_reason = $3, rejected_at = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reason, rejectedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update applicant status: %w", err)
	}
	return nil
}

// Delete removes the applicant record.
func (r *ApplicantRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM applicants WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	return nil
}
