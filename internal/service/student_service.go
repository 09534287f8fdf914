package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
)

type transitionStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type transitionSectionRepository interface {
	FindByName(ctx context.Context, name string) (*models.Section, error)
	AddStudent(ctx context.Context, sectionID, studentID string) error
	RemoveStudent(ctx context.Context, sectionID, studentID string) error
	RemoveStudentFromAll(ctx context.Context, studentID string) error
}

type transitionSubjectRepository interface {
	FindMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Subject, error)
	FindByCodes(ctx context.Context, codes []string) ([]models.Subject, error)
	AddStudent(ctx context.Context, subjectID, studentID string) error
	RemoveStudentFromAll(ctx context.Context, studentID string) error
}

// UpdateStudentRequest describes an administrative student edit. Absent
// pointers leave the stored value untouched.
type UpdateStudentRequest struct {
	LRN           *string `json:"lrn"`
	LastName      *string `json:"last_name"`
	FirstName     *string `json:"first_name"`
	MiddleName    *string `json:"middle_name"`
	Extension     *string `json:"extension"`
	Email         *string `json:"email" validate:"omitempty,email"`
	ContactNumber *string `json:"contact_number"`

	GradeLevel *int    `json:"grade_level" validate:"omitempty,oneof=11 12"`
	Track      *string `json:"track"`
	Strand     *string `json:"strand"`
	Semester   *string `json:"semester" validate:"omitempty,oneof=1 2"`
	Section    *string `json:"section"`

	Status      *models.StudentStatus `json:"status" validate:"omitempty,oneof=pending enrolled unenrolled dropped graduated"`
	StudentType *models.StudentType   `json:"student_type" validate:"omitempty,oneof=regular repeater graduated"`

	CarryoverSubjects *models.CarryoverSubjects `json:"carryover_subjects"`
}

// StudentService runs the enrollment transition engine for student records.
type StudentService struct {
	students  transitionStudentRepository
	sections  transitionSectionRepository
	subjects  transitionSubjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(students transitionStudentRepository, sections transitionSectionRepository, subjects transitionSubjectRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, sections: sections, subjects: subjects, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// allowedStatusTransition encodes the enrollment state machine.
func allowedStatusTransition(from, to models.StudentStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.StudentStatusPending:
		return to == models.StudentStatusEnrolled
	case models.StudentStatusEnrolled:
		return to == models.StudentStatusUnenrolled || to == models.StudentStatusDropped || to == models.StudentStatusGraduated
	case models.StudentStatusUnenrolled:
		return to == models.StudentStatusPending || to == models.StudentStatusEnrolled
	}
	return false
}

// Update applies an administrative edit, replaying the placement cascade when
// any critical attribute changes.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if req.LRN != nil && !lrnIsEmpty(*req.LRN) {
		if !twelveDigits.MatchString(*req.LRN) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lrn must be exactly 12 digits")
		}
		exists, err := s.students.ExistsByLRN(ctx, *req.LRN, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate lrn")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "lrn already belongs to another student")
		}
	}

	effectiveLRN := student.LRN
	if req.LRN != nil {
		effectiveLRN = *req.LRN
	}
	hasValidLRN := !lrnIsEmpty(effectiveLRN) && twelveDigits.MatchString(effectiveLRN)

	targetStatus := student.Status
	if req.Status != nil {
		targetStatus = *req.Status
	}
	targetSection := student.Section
	if req.Section != nil {
		targetSection = strings.TrimSpace(*req.Section)
	}
	if !hasValidLRN {
		if targetSection != "" {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot assign a section to a student without a valid lrn")
		}
		if targetStatus == models.StudentStatusEnrolled {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot enroll a student without a valid lrn")
		}
	}
	if req.Status != nil && !allowedStatusTransition(student.Status, targetStatus) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "status transition not permitted")
	}

	oldSection := student.Section
	oldStatus := student.Status
	targetType := student.StudentType
	if req.StudentType != nil {
		targetType = *req.StudentType
	}

	criticalChange := (req.StudentType != nil && *req.StudentType != student.StudentType) ||
		(req.GradeLevel != nil && *req.GradeLevel != student.GradeLevel) ||
		(req.Track != nil && *req.Track != student.Track) ||
		(req.Strand != nil && *req.Strand != student.Strand) ||
		(req.Semester != nil && *req.Semester != student.Semester)

	applyScalarEdits(student, req)
	student.Status = targetStatus
	student.StudentType = targetType
	if req.CarryoverSubjects != nil {
		student.CarryoverSubjects = *req.CarryoverSubjects
	}

	now := time.Now().UTC()
	schoolYear := CurrentSchoolYear(now)

	switch targetType {
	case models.StudentTypeRepeater:
		if targetStatus == models.StudentStatusEnrolled {
			if err := s.transitionRepeaterEnrolled(ctx, student, oldSection, targetSection, schoolYear, now); err != nil {
				return nil, err
			}
		} else {
			if err := s.transitionRepeaterUnenrolled(ctx, student, oldSection); err != nil {
				return nil, err
			}
		}
	case models.StudentTypeRegular:
		student.CarryoverSubjects = models.CarryoverSubjects{}
		student.EnrollmentRequested = false
		if targetStatus == models.StudentStatusEnrolled && (criticalChange || targetSection != oldSection || oldStatus != models.StudentStatusEnrolled) {
			if err := s.transitionRegularEnrolled(ctx, student, oldSection, targetSection, schoolYear, now, criticalChange); err != nil {
				return nil, err
			}
		} else {
			student.Section = targetSection
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "student type does not support administrative transitions")
	}

	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// transitionRepeaterEnrolled reassigns a repeater against their carryover
// list for the semester derived from it.
func (s *StudentService) transitionRepeaterEnrolled(ctx context.Context, student *models.Student, oldSection, targetSection, schoolYear string, now time.Time) error {
	student.Semester = deriveRepeaterSemester(student.CarryoverSubjects, student.Semester)

	if err := s.subjects.RemoveStudentFromAll(ctx, student.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student subjects")
	}

	candidates, err := s.subjects.FindMatching(ctx, student.GradeLevel, student.Strand, student.Semester)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate subjects")
	}
	matched := matchCarryover(student.CarryoverSubjects, candidates, student.Semester)

	assignments := make(models.SubjectAssignments, 0, len(matched))
	for i := range matched {
		assignments = append(assignments, buildAssignment(&matched[i], targetSection))
		if err := s.subjects.AddStudent(ctx, matched[i].ID, student.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject roster")
		}
	}
	student.Subjects = assignments

	if err := s.swapSection(ctx, student.ID, oldSection, targetSection); err != nil {
		return err
	}
	student.Section = targetSection
	student.VacatedSection = nil
	student.EnrollmentRequested = false

	upsertHistory(student, schoolYear, now)
	return nil
}

// transitionRepeaterUnenrolled records a pending re-enrollment request: the
// student leaves their section and subjects but keeps the carryover list.
func (s *StudentService) transitionRepeaterUnenrolled(ctx context.Context, student *models.Student, oldSection string) error {
	if len(student.CarryoverSubjects) > 0 {
		codes := make([]string, 0, len(student.CarryoverSubjects))
		for _, c := range student.CarryoverSubjects {
			codes = append(codes, c.Code)
		}
		known, err := s.subjects.FindByCodes(ctx, codes)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate carryover subjects")
		}
		var unmatched []string
		for _, c := range student.CarryoverSubjects {
			found := false
			for i := range known {
				if known[i].Code == c.Code && known[i].Name == c.Name && known[i].Semester == c.Semester {
					found = true
					break
				}
			}
			if !found {
				unmatched = append(unmatched, c.Code)
			}
		}
		if len(unmatched) > 0 {
			return appErrors.Clone(appErrors.ErrValidation, "carryover subjects not found: "+strings.Join(unmatched, ", "))
		}
	}
	student.Semester = deriveRepeaterSemester(student.CarryoverSubjects, student.Semester)

	if err := s.subjects.RemoveStudentFromAll(ctx, student.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student subjects")
	}
	if err := s.sections.RemoveStudentFromAll(ctx, student.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student section")
	}

	if oldSection != "" {
		vacated := oldSection
		student.VacatedSection = &vacated
	}
	student.Section = ""
	student.Subjects = models.SubjectAssignments{}
	student.EnrollmentRequested = true
	return nil
}

// transitionRegularEnrolled assigns the full matching subject set and swaps
// section membership. A critical attribute change invalidates the existing
// assignments first, so stale-placement subjects never survive.
func (s *StudentService) transitionRegularEnrolled(ctx context.Context, student *models.Student, oldSection, targetSection, schoolYear string, now time.Time, invalidate bool) error {
	if invalidate {
		if err := s.subjects.RemoveStudentFromAll(ctx, student.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student subjects")
		}
		student.Subjects = models.SubjectAssignments{}
	}

	if err := s.swapSection(ctx, student.ID, oldSection, targetSection); err != nil {
		return err
	}
	student.Section = targetSection

	candidates, err := s.subjects.FindMatching(ctx, student.GradeLevel, student.Strand, student.Semester)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate subjects")
	}
	for i := range candidates {
		if candidates[i].Track != "" && student.Track != "" && candidates[i].Track != student.Track {
			continue
		}
		if student.Subjects.Holds(candidates[i].ID) {
			continue
		}
		student.Subjects = append(student.Subjects, buildAssignment(&candidates[i], targetSection))
		if err := s.subjects.AddStudent(ctx, candidates[i].ID, student.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject roster")
		}
	}

	student.VacatedSection = nil
	upsertHistory(student, schoolYear, now)
	return nil
}

// swapSection moves roster membership from the old section to the new one.
func (s *StudentService) swapSection(ctx context.Context, studentID, oldSection, newSection string) error {
	if oldSection != "" && oldSection != newSection {
		old, err := s.sections.FindByName(ctx, oldSection)
		if err != nil && err != sql.ErrNoRows {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous section")
		}
		if err == nil {
			if err := s.sections.RemoveStudent(ctx, old.ID, studentID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave previous section")
			}
		}
	}
	if newSection != "" {
		target, err := s.sections.FindByName(ctx, newSection)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "target section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target section")
		}
		if err := s.sections.AddStudent(ctx, target.ID, studentID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join target section")
		}
	}
	return nil
}

// Delete removes a student and unlinks them from every roster.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.students.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.subjects.RemoveStudentFromAll(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student subjects")
	}
	if err := s.sections.RemoveStudentFromAll(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student section")
	}
	if err := s.students.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

func applyScalarEdits(student *models.Student, req UpdateStudentRequest) {
	if req.LRN != nil {
		student.LRN = *req.LRN
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.MiddleName != nil {
		student.MiddleName = *req.MiddleName
	}
	if req.Extension != nil {
		student.Extension = *req.Extension
	}
	if req.Email != nil {
		student.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.ContactNumber != nil {
		student.ContactNumber = *req.ContactNumber
	}
	if req.GradeLevel != nil {
		student.GradeLevel = *req.GradeLevel
	}
	if req.Track != nil {
		student.Track = *req.Track
	}
	if req.Strand != nil {
		student.Strand = *req.Strand
	}
	if req.Semester != nil {
		student.Semester = *req.Semester
	}
}
