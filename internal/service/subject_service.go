package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
)

type syncSubjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	AddStudents(ctx context.Context, subjectID string, studentIDs []string) error
	RemoveStudent(ctx context.Context, subjectID, studentID string) error
	Delete(ctx context.Context, id string) error
}

type syncStudentRepository interface {
	FindEnrolledMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Student, error)
	FindHoldingSubject(ctx context.Context, subjectID string) ([]models.Student, error)
	UpdateBatch(ctx context.Context, students []*models.Student) error
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

// CreateSubjectRequest describes subject creation.
type CreateSubjectRequest struct {
	Code        string             `json:"code" validate:"required"`
	Name        string             `json:"name" validate:"required"`
	GradeLevel  int                `json:"grade_level" validate:"required,oneof=11 12"`
	Strand      string             `json:"strand" validate:"required"`
	Track       string             `json:"track" validate:"required"`
	Semester    string             `json:"semester" validate:"required,oneof=1 2"`
	Type        models.SubjectType `json:"type" validate:"required,oneof=core specialized applied"`
	TeacherID   *string            `json:"teacher_id"`
	TeacherName string             `json:"teacher_name"`
}

// UpdateSubjectRequest describes a subject update. Semester, grade level,
// strand and track are critical fields whose change resynchronises rosters.
type UpdateSubjectRequest struct {
	Code        *string             `json:"code"`
	Name        *string             `json:"name"`
	GradeLevel  *int                `json:"grade_level" validate:"omitempty,oneof=11 12"`
	Strand      *string             `json:"strand"`
	Track       *string             `json:"track"`
	Semester    *string             `json:"semester" validate:"omitempty,oneof=1 2"`
	Type        *models.SubjectType `json:"type" validate:"omitempty,oneof=core specialized applied"`
	TeacherID   *string             `json:"teacher_id"`
	TeacherName *string             `json:"teacher_name"`
}

// SectionOfferingRequest schedules a subject for a section.
type SectionOfferingRequest struct {
	SectionID string `json:"section_id" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Room      string `json:"room" validate:"required"`
}

// UpdateSectionOfferingRequest patches one offering.
type UpdateSectionOfferingRequest struct {
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Room      *string `json:"room"`
}

// SubjectService keeps subject rosters and student subject lists mutually
// consistent across subject lifecycle events.
type SubjectService struct {
	subjects  syncSubjectRepository
	students  syncStudentRepository
	sections  sectionReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(subjects syncSubjectRepository, students syncStudentRepository, sections sectionReader, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{subjects: subjects, students: students, sections: sections, validator: validate, logger: logger}
}

// List returns subjects with pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.subjects.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one subject.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create persists a new subject and assigns it to every enrolled student
// whose placement matches.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	exists, err := s.subjects.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
	}

	subject := &models.Subject{
		Code:        req.Code,
		Name:        req.Name,
		GradeLevel:  req.GradeLevel,
		Strand:      req.Strand,
		Track:       req.Track,
		Semester:    req.Semester,
		Type:        req.Type,
		TeacherID:   req.TeacherID,
		TeacherName: req.TeacherName,
		Students:    models.StringList{},
		Offerings:   models.SectionOfferings{},
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	if err := s.assignToMatchingStudents(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// BulkCreate persists multiple subjects, stopping at the first failure.
func (s *SubjectService) BulkCreate(ctx context.Context, reqs []CreateSubjectRequest) ([]models.Subject, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one subject is required")
	}
	created := make([]models.Subject, 0, len(reqs))
	for _, req := range reqs {
		subject, err := s.Create(ctx, req)
		if err != nil {
			return created, err
		}
		created = append(created, *subject)
	}
	return created, nil
}

// Update applies field changes and resynchronises rosters when a critical
// attribute changed.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if req.Code != nil && *req.Code != subject.Code {
		exists, err := s.subjects.ExistsByCode(ctx, *req.Code, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject code")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
		}
		subject.Code = *req.Code
	}

	oldGrade := subject.GradeLevel
	oldStrand := subject.Strand
	oldTrack := subject.Track
	oldSemester := subject.Semester

	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.GradeLevel != nil {
		subject.GradeLevel = *req.GradeLevel
	}
	if req.Strand != nil {
		subject.Strand = *req.Strand
	}
	if req.Track != nil {
		subject.Track = *req.Track
	}
	if req.Semester != nil {
		subject.Semester = *req.Semester
	}
	if req.Type != nil {
		subject.Type = *req.Type
	}
	if req.TeacherID != nil {
		subject.TeacherID = req.TeacherID
	}
	if req.TeacherName != nil {
		subject.TeacherName = *req.TeacherName
	}

	critical := subject.GradeLevel != oldGrade || subject.Strand != oldStrand ||
		subject.Track != oldTrack || subject.Semester != oldSemester

	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	if critical {
		if err := s.evictMismatchedHolders(ctx, subject); err != nil {
			return nil, err
		}
	}
	if err := s.refreshAndAssign(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// Delete strips the subject from every holding student, then removes it.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	holders, err := s.students.FindHoldingSubject(ctx, subject.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject holders")
	}
	updates := make([]*models.Student, 0, len(holders))
	for i := range holders {
		student := &holders[i]
		student.Subjects = stripSubjectEntry(student.Subjects, subject.ID)
		if latest := student.RegistrationHistory.Latest(); latest != nil {
			latest.Subjects = stripSubjectEntry(latest.Subjects, subject.ID)
		}
		updates = append(updates, student)
	}
	if err := s.students.UpdateBatch(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink subject holders")
	}
	if err := s.subjects.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

// AddSectionOffering schedules the subject for a section and propagates the
// schedule to enrolled section members already holding the subject.
func (s *SubjectService) AddSectionOffering(ctx context.Context, subjectID string, req SectionOfferingRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if subject.Offerings.ForSection(section.Name) != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject is already offered to this section")
	}

	offering := models.SectionOffering{
		ID:          uuid.NewString(),
		SectionID:   section.ID,
		SectionName: section.Name,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Room:        req.Room,
	}
	subject.Offerings = append(subject.Offerings, offering)
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	if err := s.propagateSchedule(ctx, subject, offering); err != nil {
		return nil, err
	}
	return subject, nil
}

// UpdateSectionOffering patches schedule fields on one offering.
func (s *SubjectService) UpdateSectionOffering(ctx context.Context, subjectID, offeringID string, req UpdateSectionOfferingRequest) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	found := false
	for i := range subject.Offerings {
		if subject.Offerings[i].ID != offeringID {
			continue
		}
		if req.StartTime != nil {
			subject.Offerings[i].StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			subject.Offerings[i].EndTime = *req.EndTime
		}
		if req.Room != nil {
			subject.Offerings[i].Room = *req.Room
		}
		found = true
		break
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section offering not found")
	}
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// DeleteSectionOffering removes one offering from the subject.
func (s *SubjectService) DeleteSectionOffering(ctx context.Context, subjectID, offeringID string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	kept := make(models.SectionOfferings, 0, len(subject.Offerings))
	found := false
	for _, o := range subject.Offerings {
		if o.ID == offeringID {
			found = true
			continue
		}
		kept = append(kept, o)
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section offering not found")
	}
	subject.Offerings = kept
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// placementMatches reports whether a student's placement matches the subject.
func placementMatches(student *models.Student, subject *models.Subject) bool {
	if student.GradeLevel != subject.GradeLevel || student.Strand != subject.Strand || student.Semester != subject.Semester {
		return false
	}
	if subject.Track != "" && student.Track != "" && subject.Track != student.Track {
		return false
	}
	return true
}

// assignToMatchingStudents pushes a new subject onto every enrolled student
// whose placement matches, mirroring the membership on the subject roster.
func (s *SubjectService) assignToMatchingStudents(ctx context.Context, subject *models.Subject) error {
	matching, err := s.students.FindEnrolledMatching(ctx, subject.GradeLevel, subject.Strand, subject.Semester)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matching students")
	}

	var rosterIDs []string
	var updates []*models.Student
	for i := range matching {
		student := &matching[i]
		if !placementMatches(student, subject) || student.Subjects.Holds(subject.ID) {
			continue
		}
		assignment := buildAssignment(subject, student.Section)
		student.Subjects = append(student.Subjects, assignment)
		if latest := student.RegistrationHistory.Latest(); latest != nil {
			latest.Subjects = append(latest.Subjects, assignment)
		}
		rosterIDs = append(rosterIDs, student.ID)
		updates = append(updates, student)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.subjects.AddStudents(ctx, subject.ID, rosterIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject roster")
	}
	if err := s.students.UpdateBatch(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist student assignments")
	}
	return nil
}

// evictMismatchedHolders strips the subject from students whose placement no
// longer matches its critical attributes.
func (s *SubjectService) evictMismatchedHolders(ctx context.Context, subject *models.Subject) error {
	holders, err := s.students.FindHoldingSubject(ctx, subject.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject holders")
	}
	var updates []*models.Student
	for i := range holders {
		student := &holders[i]
		if placementMatches(student, subject) {
			continue
		}
		student.Subjects = stripSubjectEntry(student.Subjects, subject.ID)
		if latest := student.RegistrationHistory.Latest(); latest != nil {
			latest.Subjects = stripSubjectEntry(latest.Subjects, subject.ID)
		}
		if err := s.subjects.RemoveStudent(ctx, subject.ID, student.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject roster")
		}
		updates = append(updates, student)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.students.UpdateBatch(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist student evictions")
	}
	return nil
}

// refreshAndAssign refreshes denormalised fields on matching holders and
// assigns the subject to matching students who do not hold it yet.
func (s *SubjectService) refreshAndAssign(ctx context.Context, subject *models.Subject) error {
	matching, err := s.students.FindEnrolledMatching(ctx, subject.GradeLevel, subject.Strand, subject.Semester)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matching students")
	}

	var rosterIDs []string
	var updates []*models.Student
	for i := range matching {
		student := &matching[i]
		if !placementMatches(student, subject) {
			continue
		}
		if student.Subjects.Holds(subject.ID) {
			refreshAssignment(student.Subjects, subject)
			if latest := student.RegistrationHistory.Latest(); latest != nil {
				refreshAssignment(latest.Subjects, subject)
			}
			updates = append(updates, student)
			continue
		}
		assignment := buildAssignment(subject, student.Section)
		student.Subjects = append(student.Subjects, assignment)
		if latest := student.RegistrationHistory.Latest(); latest != nil &&
			latest.GradeLevel == student.GradeLevel && latest.Semester == student.Semester {
			latest.Subjects = append(latest.Subjects, assignment)
		}
		rosterIDs = append(rosterIDs, student.ID)
		updates = append(updates, student)
	}
	if len(rosterIDs) > 0 {
		if err := s.subjects.AddStudents(ctx, subject.ID, rosterIDs); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject roster")
		}
	}
	if len(updates) > 0 {
		if err := s.students.UpdateBatch(ctx, updates); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist student refresh")
		}
	}
	return nil
}

// propagateSchedule patches the new offering's schedule onto enrolled section
// members already holding the subject.
func (s *SubjectService) propagateSchedule(ctx context.Context, subject *models.Subject, offering models.SectionOffering) error {
	holders, err := s.students.FindHoldingSubject(ctx, subject.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject holders")
	}
	schedule := models.ScheduleInfo{StartTime: offering.StartTime, EndTime: offering.EndTime, Room: offering.Room}
	var updates []*models.Student
	for i := range holders {
		student := &holders[i]
		if student.Section != offering.SectionName || student.Status != models.StudentStatusEnrolled {
			continue
		}
		patchSchedule(student.Subjects, subject.ID, schedule)
		if latest := student.RegistrationHistory.Latest(); latest != nil {
			patchSchedule(latest.Subjects, subject.ID, schedule)
		}
		updates = append(updates, student)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.students.UpdateBatch(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule propagation")
	}
	return nil
}

func refreshAssignment(assignments models.SubjectAssignments, subject *models.Subject) {
	for i := range assignments {
		if assignments[i].SubjectID == subject.ID {
			assignments[i].Code = subject.Code
			assignments[i].Name = subject.Name
			assignments[i].Teacher = subject.TeacherName
			assignments[i].Semester = subject.Semester
			return
		}
	}
}

func patchSchedule(assignments models.SubjectAssignments, subjectID string, schedule models.ScheduleInfo) {
	for i := range assignments {
		if assignments[i].SubjectID == subjectID {
			assignments[i].Schedule = schedule
			return
		}
	}
}
