package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
)

const firstSemester = "1"

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	ConfirmStudent(ctx context.Context, sectionID, studentID string) error
	Delete(ctx context.Context, id string) error
}

type cascadeStudentRepository interface {
	FindBySection(ctx context.Context, sectionName string) ([]models.Student, error)
	UpdateBatch(ctx context.Context, students []*models.Student) error
}

type cascadeSubjectRepository interface {
	FindMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Subject, error)
	AddStudents(ctx context.Context, subjectID string, studentIDs []string) error
	RemoveStudentFromAll(ctx context.Context, studentID string) error
}

// CreateSectionRequest describes section creation.
type CreateSectionRequest struct {
	Name           string `json:"name" validate:"required"`
	GradeLevel     int    `json:"grade_level" validate:"required,oneof=11 12"`
	Track          string `json:"track" validate:"required"`
	Strand         string `json:"strand" validate:"required"`
	Semester       string `json:"semester" validate:"required,oneof=1 2"`
	Capacity       int    `json:"capacity" validate:"required,min=1"`
	OpenEnrollment bool   `json:"open_enrollment"`
}

// UpdateSectionRequest describes a section update. Grade level and semester
// are critical fields whose change cascades student reassignment.
type UpdateSectionRequest struct {
	Name           *string `json:"name"`
	GradeLevel     *int    `json:"grade_level" validate:"omitempty,oneof=11 12"`
	Track          *string `json:"track"`
	Strand         *string `json:"strand"`
	Semester       *string `json:"semester" validate:"omitempty,oneof=1 2"`
	Capacity       *int    `json:"capacity" validate:"omitempty,min=1"`
	OpenEnrollment *bool   `json:"open_enrollment"`
}

// SectionService manages section lifecycle including the reassignment cascade
// triggered by critical field changes.
type SectionService struct {
	sections      sectionRepository
	students      cascadeStudentRepository
	subjects      cascadeSubjectRepository
	terminalGrade int
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(sections sectionRepository, students cascadeStudentRepository, subjects cascadeSubjectRepository, terminalGrade int, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if terminalGrade <= 0 {
		terminalGrade = 12
	}
	return &SectionService{sections: sections, students: students, subjects: subjects, terminalGrade: terminalGrade, validator: validate, logger: logger}
}

// List returns sections with pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, *models.Pagination, error) {
	sections, total, err := s.sections.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one section.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// Create registers a new section.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	exists, err := s.sections.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate section name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "section name already exists")
	}
	section := &models.Section{
		Name:              req.Name,
		GradeLevel:        req.GradeLevel,
		Track:             req.Track,
		Strand:            req.Strand,
		Semester:          req.Semester,
		Capacity:          req.Capacity,
		OpenEnrollment:    req.OpenEnrollment,
		Students:          models.StringList{},
		ConfirmedStudents: models.StringList{},
	}
	if err := s.sections.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return section, nil
}

// Update applies field changes. When grade level or semester change, every
// member student is reassigned against the new placement.
func (s *SectionService) Update(ctx context.Context, id string, req UpdateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	if req.Name != nil && *req.Name != section.Name {
		exists, err := s.sections.ExistsByName(ctx, *req.Name, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate section name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "section name already exists")
		}
	}

	oldName := section.Name
	oldGrade := section.GradeLevel
	oldSemester := section.Semester

	if req.Name != nil {
		section.Name = *req.Name
	}
	if req.GradeLevel != nil {
		section.GradeLevel = *req.GradeLevel
	}
	if req.Track != nil {
		section.Track = *req.Track
	}
	if req.Strand != nil {
		section.Strand = *req.Strand
	}
	if req.Semester != nil {
		section.Semester = *req.Semester
	}
	if req.Capacity != nil {
		section.Capacity = *req.Capacity
	}
	if req.OpenEnrollment != nil {
		section.OpenEnrollment = *req.OpenEnrollment
	}

	critical := section.GradeLevel != oldGrade || section.Semester != oldSemester
	if critical {
		if err := s.cascade(ctx, section, oldName); err != nil {
			return nil, err
		}
	}

	if err := s.sections.Update(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return section, nil
}

// cascade reassigns every member student after a critical section change.
// Advancing into the terminal grade's first semester instead resets members
// to pending so they re-enroll from scratch.
func (s *SectionService) cascade(ctx context.Context, section *models.Section, oldName string) error {
	members, err := s.students.FindBySection(ctx, oldName)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section students")
	}
	if len(members) == 0 {
		return nil
	}

	now := time.Now().UTC()
	schoolYear := CurrentSchoolYear(now)

	if section.GradeLevel == s.terminalGrade && section.Semester == firstSemester {
		updates := make([]*models.Student, 0, len(members))
		for i := range members {
			student := &members[i]
			if err := s.subjects.RemoveStudentFromAll(ctx, student.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student subjects")
			}
			student.Status = models.StudentStatusPending
			student.Subjects = models.SubjectAssignments{}
			student.GradeLevel = section.GradeLevel
			student.Semester = section.Semester
			student.Section = section.Name
			updates = append(updates, student)
		}
		if err := s.students.UpdateBatch(ctx, updates); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist student resets")
		}
		return nil
	}

	for i := range members {
		if err := s.subjects.RemoveStudentFromAll(ctx, members[i].ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student subjects")
		}
	}

	candidates, err := s.subjects.FindMatching(ctx, section.GradeLevel, section.Strand, section.Semester)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate subjects")
	}

	rosterAdds := make(map[string][]string)
	updates := make([]*models.Student, 0, len(members))
	for i := range members {
		student := &members[i]

		var assigned []models.Subject
		if student.StudentType == models.StudentTypeRepeater && len(student.CarryoverSubjects) > 0 {
			assigned = matchCarryover(student.CarryoverSubjects, candidates, section.Semester)
		} else {
			assigned = candidates
		}

		assignments := make(models.SubjectAssignments, 0, len(assigned))
		for j := range assigned {
			assignments = append(assignments, buildAssignment(&assigned[j], section.Name))
			rosterAdds[assigned[j].ID] = append(rosterAdds[assigned[j].ID], student.ID)
		}

		student.GradeLevel = section.GradeLevel
		student.Semester = section.Semester
		student.Section = section.Name
		student.Subjects = assignments
		if student.Status == models.StudentStatusEnrolled {
			upsertHistory(student, schoolYear, now)
		}
		updates = append(updates, student)
	}

	for subjectID, studentIDs := range rosterAdds {
		if err := s.subjects.AddStudents(ctx, subjectID, studentIDs); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject roster")
		}
	}
	if err := s.students.UpdateBatch(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist student reassignments")
	}
	return nil
}

// ConfirmStudent marks a roster member as confirmed enrolled.
func (s *SectionService) ConfirmStudent(ctx context.Context, sectionID, studentID string) error {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if !section.Students.Contains(studentID) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not a member of this section")
	}
	if err := s.sections.ConfirmStudent(ctx, sectionID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm student")
	}
	return nil
}

// Delete removes a section. Member students keep their record but lose the
// section reference.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	members, err := s.students.FindBySection(ctx, section.Name)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section students")
	}
	if len(members) > 0 {
		updates := make([]*models.Student, 0, len(members))
		for i := range members {
			members[i].Section = ""
			updates = append(updates, &members[i])
		}
		if err := s.students.UpdateBatch(ctx, updates); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink section students")
		}
	}
	if err := s.sections.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	return nil
}
