package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
)

type mockTransitionStudents struct {
	students map[string]models.Student
	lrns     map[string]bool
	updated  *models.Student
	deleted  []string
}

func (m *mockTransitionStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var list []models.Student
	for _, s := range m.students {
		list = append(list, s)
	}
	return list, len(list), nil
}

func (m *mockTransitionStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTransitionStudents) ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error) {
	return m.lrns[lrn], nil
}

func (m *mockTransitionStudents) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	m.updated = student
	return nil
}

func (m *mockTransitionStudents) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.students, id)
	return nil
}

type mockTransitionSections struct {
	byName      map[string]models.Section
	added       map[string][]string
	removed     map[string][]string
	unlinkedAll []string
}

func (m *mockTransitionSections) FindByName(ctx context.Context, name string) (*models.Section, error) {
	if s, ok := m.byName[name]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTransitionSections) AddStudent(ctx context.Context, sectionID, studentID string) error {
	if m.added == nil {
		m.added = make(map[string][]string)
	}
	m.added[sectionID] = append(m.added[sectionID], studentID)
	return nil
}

func (m *mockTransitionSections) RemoveStudent(ctx context.Context, sectionID, studentID string) error {
	if m.removed == nil {
		m.removed = make(map[string][]string)
	}
	m.removed[sectionID] = append(m.removed[sectionID], studentID)
	return nil
}

func (m *mockTransitionSections) RemoveStudentFromAll(ctx context.Context, studentID string) error {
	m.unlinkedAll = append(m.unlinkedAll, studentID)
	return nil
}

type mockTransitionSubjects struct {
	matching map[string][]models.Subject
	byCode   map[string]models.Subject
	added    map[string][]string
	unlinked []string
}

func (m *mockTransitionSubjects) FindMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Subject, error) {
	return m.matching[cascadeKey(gradeLevel, strand, semester)], nil
}

func (m *mockTransitionSubjects) FindByCodes(ctx context.Context, codes []string) ([]models.Subject, error) {
	var out []models.Subject
	for _, code := range codes {
		if s, ok := m.byCode[code]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockTransitionSubjects) AddStudent(ctx context.Context, subjectID, studentID string) error {
	if m.added == nil {
		m.added = make(map[string][]string)
	}
	m.added[subjectID] = append(m.added[subjectID], studentID)
	return nil
}

func (m *mockTransitionSubjects) RemoveStudentFromAll(ctx context.Context, studentID string) error {
	m.unlinked = append(m.unlinked, studentID)
	return nil
}

func baseStudent(id string) models.Student {
	return models.Student{
		ID:            id,
		StudentNumber: "2026-00001",
		LRN:           "123456789012",
		LastName:      "Reyes",
		FirstName:     "Ana",
		GradeLevel:    11,
		Track:         "Academic",
		Strand:        "STEM",
		Semester:      "1",
		Status:        models.StudentStatusPending,
		StudentType:   models.StudentTypeRegular,
	}
}

func newStudentService(students *mockTransitionStudents, sections *mockTransitionSections, subjects *mockTransitionSubjects) *StudentService {
	if sections == nil {
		sections = &mockTransitionSections{}
	}
	if subjects == nil {
		subjects = &mockTransitionSubjects{}
	}
	return NewStudentService(students, sections, subjects, nil, nil)
}

func statusPtr(s models.StudentStatus) *models.StudentStatus { return &s }
func typePtr(t models.StudentType) *models.StudentType       { return &t }

func TestStudentUpdateBlocksEnrollmentWithoutValidLRN(t *testing.T) {
	student := baseStudent("stu-1")
	student.LRN = "N/A"
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	svc := newStudentService(students, nil, nil)

	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Status: statusPtr(models.StudentStatusEnrolled),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Section: strPtr("Rizal"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdateRejectsIllegalStatusTransition(t *testing.T) {
	student := baseStudent("stu-1")
	student.Status = models.StudentStatusDropped
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	svc := newStudentService(students, nil, nil)

	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Status: statusPtr(models.StudentStatusEnrolled),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdateRejectsDuplicateLRN(t *testing.T) {
	students := &mockTransitionStudents{
		students: map[string]models.Student{"stu-1": baseStudent("stu-1")},
		lrns:     map[string]bool{"999999999999": true},
	}
	svc := newStudentService(students, nil, nil)

	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{LRN: strPtr("999999999999")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegularEnrollmentAssignsMatchingSubjects(t *testing.T) {
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": baseStudent("stu-1")}}
	sections := &mockTransitionSections{byName: map[string]models.Section{
		"Rizal": {ID: "sec-1", Name: "Rizal"},
	}}
	subjects := &mockTransitionSubjects{matching: map[string][]models.Subject{
		cascadeKey(11, "STEM", "1"): {
			subjectFor("sub-1", "GEN-1", "1"),
			{ID: "sub-2", Code: "ACA-1", Name: "ACA-1 name", Semester: "1", Strand: "STEM", Track: "TVL"},
		},
	}}
	svc := newStudentService(students, sections, subjects)

	updated, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Status:  statusPtr(models.StudentStatusEnrolled),
		Section: strPtr("Rizal"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StudentStatusEnrolled, updated.Status)
	assert.Equal(t, "Rizal", updated.Section)

	// the TVL-track subject is filtered out for an Academic-track student
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, "sub-1", updated.Subjects[0].SubjectID)
	assert.Equal(t, []string{"stu-1"}, subjects.added["sub-1"])
	assert.Equal(t, []string{"stu-1"}, sections.added["sec-1"])

	require.Len(t, updated.RegistrationHistory, 1)
	assert.Equal(t, 11, updated.RegistrationHistory[0].GradeLevel)
}

func TestRegularCriticalChangeReplacesAssignments(t *testing.T) {
	student := baseStudent("stu-1")
	student.Status = models.StudentStatusEnrolled
	student.Section = "Rizal"
	student.Subjects = models.SubjectAssignments{{SubjectID: "sub-old", Code: "GEN-1", Semester: "1"}}
	student.RegistrationHistory = models.RegistrationHistory{{
		GradeLevel: 11,
		Semester:   "1",
		Section:    "Rizal",
		Subjects:   models.SubjectAssignments{{SubjectID: "sub-old"}},
	}}

	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	sections := &mockTransitionSections{byName: map[string]models.Section{
		"Rizal": {ID: "sec-1", Name: "Rizal"},
	}}
	subjects := &mockTransitionSubjects{matching: map[string][]models.Subject{
		cascadeKey(11, "STEM", "2"): {subjectFor("sub-new", "GEN-2", "2")},
	}}
	svc := newStudentService(students, sections, subjects)

	updated, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{Semester: strPtr("2")})
	require.NoError(t, err)

	// the stale first-semester assignment is gone from the student and from
	// the old subject rosters before the new set is assigned
	assert.Equal(t, []string{"stu-1"}, subjects.unlinked)
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, "sub-new", updated.Subjects[0].SubjectID)
	assert.Equal(t, []string{"stu-1"}, subjects.added["sub-new"])

	require.Len(t, updated.RegistrationHistory, 2)
	latest := updated.RegistrationHistory.Latest()
	assert.Equal(t, "2", latest.Semester)
	require.Len(t, latest.Subjects, 1)
	assert.Equal(t, "sub-new", latest.Subjects[0].SubjectID)
}

func TestRegularEnrollmentFailsWhenSectionMissing(t *testing.T) {
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": baseStudent("stu-1")}}
	svc := newStudentService(students, &mockTransitionSections{}, &mockTransitionSubjects{})

	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Status:  statusPtr(models.StudentStatusEnrolled),
		Section: strPtr("Ghost"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHistoryUpsertDoesNotDuplicateSameTerm(t *testing.T) {
	student := baseStudent("stu-1")
	student.Status = models.StudentStatusEnrolled
	student.Section = "Rizal"
	student.RegistrationHistory = models.RegistrationHistory{
		{GradeLevel: 11, Semester: "1", Section: "Rizal"},
	}
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	sections := &mockTransitionSections{byName: map[string]models.Section{
		"Mabini": {ID: "sec-2", Name: "Mabini"},
		"Rizal":  {ID: "sec-1", Name: "Rizal"},
	}}
	subjects := &mockTransitionSubjects{}
	svc := newStudentService(students, sections, subjects)

	updated, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Section: strPtr("Mabini"),
	})
	require.NoError(t, err)

	require.Len(t, updated.RegistrationHistory, 1)
	assert.Equal(t, "Mabini", updated.RegistrationHistory[0].Section)
	assert.Equal(t, []string{"stu-1"}, sections.removed["sec-1"])
	assert.Equal(t, []string{"stu-1"}, sections.added["sec-2"])
}

func TestRepeaterEnrollmentUsesCarryoverOnly(t *testing.T) {
	student := baseStudent("stu-1")
	student.StudentType = models.StudentTypeRepeater
	student.CarryoverSubjects = models.CarryoverSubjects{
		{Code: "GEN-1", Name: "GEN-1 name", Semester: "1"},
	}
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	sections := &mockTransitionSections{byName: map[string]models.Section{
		"Rizal": {ID: "sec-1", Name: "Rizal"},
	}}
	subjects := &mockTransitionSubjects{matching: map[string][]models.Subject{
		cascadeKey(11, "STEM", "1"): {
			subjectFor("sub-1", "GEN-1", "1"),
			subjectFor("sub-2", "GEN-2", "1"),
		},
	}}
	svc := newStudentService(students, sections, subjects)

	updated, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Status:  statusPtr(models.StudentStatusEnrolled),
		Section: strPtr("Rizal"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"stu-1"}, subjects.unlinked)
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, "sub-1", updated.Subjects[0].SubjectID)
	assert.Nil(t, updated.VacatedSection)
	assert.False(t, updated.EnrollmentRequested)
}

func TestRepeaterUnenrollmentRecordsRequest(t *testing.T) {
	student := baseStudent("stu-1")
	student.Status = models.StudentStatusEnrolled
	student.Section = "Rizal"
	student.Subjects = models.SubjectAssignments{{SubjectID: "sub-1"}}
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	sections := &mockTransitionSections{}
	subjects := &mockTransitionSubjects{byCode: map[string]models.Subject{
		"GEN-2": {Code: "GEN-2", Name: "GEN-2 name", Semester: "2"},
	}}
	svc := newStudentService(students, sections, subjects)

	carryover := models.CarryoverSubjects{{Code: "GEN-2", Name: "GEN-2 name", Semester: "2"}}
	updated, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		StudentType:       typePtr(models.StudentTypeRepeater),
		Status:            statusPtr(models.StudentStatusUnenrolled),
		Section:           strPtr(""),
		CarryoverSubjects: &carryover,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StudentStatusUnenrolled, updated.Status)
	assert.Empty(t, updated.Section)
	assert.Empty(t, updated.Subjects)
	require.NotNil(t, updated.VacatedSection)
	assert.Equal(t, "Rizal", *updated.VacatedSection)
	assert.True(t, updated.EnrollmentRequested)
	assert.Equal(t, "2", updated.Semester)
	assert.Equal(t, []string{"stu-1"}, subjects.unlinked)
	assert.Equal(t, []string{"stu-1"}, sections.unlinkedAll)
}

func TestRepeaterUnenrollmentRejectsUnknownCarryover(t *testing.T) {
	student := baseStudent("stu-1")
	student.Status = models.StudentStatusEnrolled
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	svc := newStudentService(students, &mockTransitionSections{}, &mockTransitionSubjects{})

	carryover := models.CarryoverSubjects{{Code: "NOPE-1", Name: "missing", Semester: "1"}}
	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		StudentType:       typePtr(models.StudentTypeRepeater),
		Status:            statusPtr(models.StudentStatusUnenrolled),
		Section:           strPtr(""),
		CarryoverSubjects: &carryover,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE-1")
}

func TestGraduatedTypeRejectsTransitions(t *testing.T) {
	student := baseStudent("stu-1")
	student.StudentType = models.StudentTypeGraduated
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": student}}
	svc := newStudentService(students, nil, nil)

	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{LastName: strPtr("Cruz")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentDeleteUnlinksEverywhere(t *testing.T) {
	students := &mockTransitionStudents{students: map[string]models.Student{"stu-1": baseStudent("stu-1")}}
	sections := &mockTransitionSections{}
	subjects := &mockTransitionSubjects{}
	svc := newStudentService(students, sections, subjects)

	require.NoError(t, svc.Delete(context.Background(), "stu-1"))
	assert.Equal(t, []string{"stu-1"}, subjects.unlinked)
	assert.Equal(t, []string{"stu-1"}, sections.unlinkedAll)
	assert.Equal(t, []string{"stu-1"}, students.deleted)
}
