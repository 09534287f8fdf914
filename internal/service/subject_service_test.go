package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
)

type mockSyncSubjects struct {
	subjects map[string]models.Subject
	codes    map[string]bool
	rosters  map[string][]string
	removed  map[string][]string
	deleted  []string
	nextID   int
}

func (m *mockSyncSubjects) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var list []models.Subject
	for _, s := range m.subjects {
		list = append(list, s)
	}
	return list, len(list), nil
}

func (m *mockSyncSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSyncSubjects) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return m.codes[code], nil
}

func (m *mockSyncSubjects) Create(ctx context.Context, subject *models.Subject) error {
	if m.subjects == nil {
		m.subjects = make(map[string]models.Subject)
	}
	if m.codes == nil {
		m.codes = make(map[string]bool)
	}
	m.nextID++
	subject.ID = fmt.Sprintf("sub-%d", m.nextID)
	m.subjects[subject.ID] = *subject
	m.codes[subject.Code] = true
	return nil
}

func (m *mockSyncSubjects) Update(ctx context.Context, subject *models.Subject) error {
	m.subjects[subject.ID] = *subject
	return nil
}

func (m *mockSyncSubjects) AddStudents(ctx context.Context, subjectID string, studentIDs []string) error {
	if m.rosters == nil {
		m.rosters = make(map[string][]string)
	}
	m.rosters[subjectID] = append(m.rosters[subjectID], studentIDs...)
	return nil
}

func (m *mockSyncSubjects) RemoveStudent(ctx context.Context, subjectID, studentID string) error {
	if m.removed == nil {
		m.removed = make(map[string][]string)
	}
	m.removed[subjectID] = append(m.removed[subjectID], studentID)
	return nil
}

func (m *mockSyncSubjects) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.subjects, id)
	return nil
}

type mockSyncStudents struct {
	enrolled map[string][]models.Student
	holders  map[string][]models.Student
	updated  []*models.Student
}

func (m *mockSyncStudents) FindEnrolledMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Student, error) {
	return m.enrolled[cascadeKey(gradeLevel, strand, semester)], nil
}

func (m *mockSyncStudents) FindHoldingSubject(ctx context.Context, subjectID string) ([]models.Student, error) {
	return m.holders[subjectID], nil
}

func (m *mockSyncStudents) UpdateBatch(ctx context.Context, students []*models.Student) error {
	m.updated = append(m.updated, students...)
	return nil
}

func stemSubject(id, code string) models.Subject {
	return models.Subject{
		ID:          id,
		Code:        code,
		Name:        code + " name",
		GradeLevel:  11,
		Track:       "Academic",
		Strand:      "STEM",
		Semester:    "1",
		Type:        models.SubjectTypeCore,
		TeacherName: "Mr. Cruz",
		Students:    models.StringList{},
		Offerings:   models.SectionOfferings{},
	}
}

func enrolledStudent(id string) models.Student {
	return models.Student{
		ID:         id,
		GradeLevel: 11,
		Track:      "Academic",
		Strand:     "STEM",
		Semester:   "1",
		Section:    "Rizal",
		Status:     models.StudentStatusEnrolled,
		RegistrationHistory: models.RegistrationHistory{{
			GradeLevel: 11,
			Semester:   "1",
			Section:    "Rizal",
		}},
	}
}

func createSubjectRequest(code string) CreateSubjectRequest {
	return CreateSubjectRequest{
		Code:       code,
		Name:       code + " name",
		GradeLevel: 11,
		Strand:     "STEM",
		Track:      "Academic",
		Semester:   "1",
		Type:       models.SubjectTypeCore,
	}
}

func TestSubjectCreateAssignsToMatchingStudents(t *testing.T) {
	tvl := enrolledStudent("stu-tvl")
	tvl.Track = "TVL"
	students := &mockSyncStudents{enrolled: map[string][]models.Student{
		cascadeKey(11, "STEM", "1"): {enrolledStudent("stu-1"), tvl},
	}}
	subjects := &mockSyncSubjects{}
	svc := NewSubjectService(subjects, students, &mockSectionRepo{}, nil, nil)

	subject, err := svc.Create(context.Background(), createSubjectRequest("GEN-1"))
	require.NoError(t, err)

	// the TVL student fails the track check and stays untouched
	assert.Equal(t, []string{"stu-1"}, subjects.rosters[subject.ID])
	require.Len(t, students.updated, 1)

	updated := students.updated[0]
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, subject.ID, updated.Subjects[0].SubjectID)
	assert.Equal(t, "GEN-1", updated.Subjects[0].Code)
	require.NotNil(t, updated.RegistrationHistory.Latest())
	assert.True(t, updated.RegistrationHistory.Latest().Subjects.Holds(subject.ID))
}

func TestSubjectCreateRejectsDuplicateCode(t *testing.T) {
	subjects := &mockSyncSubjects{codes: map[string]bool{"GEN-1": true}}
	svc := NewSubjectService(subjects, &mockSyncStudents{}, &mockSectionRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), createSubjectRequest("GEN-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubjectBulkCreateStopsAtFirstFailure(t *testing.T) {
	subjects := &mockSyncSubjects{codes: map[string]bool{"GEN-2": true}}
	svc := NewSubjectService(subjects, &mockSyncStudents{}, &mockSectionRepo{}, nil, nil)

	created, err := svc.BulkCreate(context.Background(), []CreateSubjectRequest{
		createSubjectRequest("GEN-1"),
		createSubjectRequest("GEN-2"),
		createSubjectRequest("GEN-3"),
	})
	require.Error(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "GEN-1", created[0].Code)
}

func TestSubjectUpdateCriticalChangeEvictsAndReassigns(t *testing.T) {
	subject := stemSubject("sub-1", "GEN-1")
	holder := enrolledStudent("stu-old")
	holder.Subjects = models.SubjectAssignments{{SubjectID: "sub-1", Code: "GEN-1"}}
	holder.RegistrationHistory.Latest().Subjects = models.SubjectAssignments{{SubjectID: "sub-1", Code: "GEN-1"}}

	newcomer := enrolledStudent("stu-new")
	newcomer.Semester = "2"
	newcomer.RegistrationHistory.Latest().Semester = "2"

	subjects := &mockSyncSubjects{subjects: map[string]models.Subject{"sub-1": subject}}
	students := &mockSyncStudents{
		holders: map[string][]models.Student{"sub-1": {holder}},
		enrolled: map[string][]models.Student{
			cascadeKey(11, "STEM", "2"): {newcomer},
		},
	}
	svc := NewSubjectService(subjects, students, &mockSectionRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), "sub-1", UpdateSubjectRequest{Semester: strPtr("2")})
	require.NoError(t, err)

	assert.Equal(t, []string{"stu-old"}, subjects.removed["sub-1"])
	assert.Equal(t, []string{"stu-new"}, subjects.rosters["sub-1"])

	byID := map[string]*models.Student{}
	for _, s := range students.updated {
		byID[s.ID] = s
	}
	require.Contains(t, byID, "stu-old")
	require.Contains(t, byID, "stu-new")
	assert.Empty(t, byID["stu-old"].Subjects)
	assert.Empty(t, byID["stu-old"].RegistrationHistory.Latest().Subjects)
	assert.True(t, byID["stu-new"].Subjects.Holds("sub-1"))
}

func TestSubjectUpdateRefreshesDenormalisedFields(t *testing.T) {
	subject := stemSubject("sub-1", "GEN-1")
	holder := enrolledStudent("stu-1")
	holder.Subjects = models.SubjectAssignments{{SubjectID: "sub-1", Code: "GEN-1", Name: "GEN-1 name"}}

	subjects := &mockSyncSubjects{subjects: map[string]models.Subject{"sub-1": subject}}
	students := &mockSyncStudents{
		holders: map[string][]models.Student{"sub-1": {holder}},
		enrolled: map[string][]models.Student{
			cascadeKey(11, "STEM", "1"): {holder},
		},
	}
	svc := NewSubjectService(subjects, students, &mockSectionRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), "sub-1", UpdateSubjectRequest{
		Name:        strPtr("Oral Communication"),
		TeacherName: strPtr("Ms. Santos"),
	})
	require.NoError(t, err)

	assert.Empty(t, subjects.removed)
	require.Len(t, students.updated, 1)
	assignment := students.updated[0].Subjects[0]
	assert.Equal(t, "Oral Communication", assignment.Name)
	assert.Equal(t, "Ms. Santos", assignment.Teacher)
}

func TestSubjectDeleteStripsHoldersAndHistory(t *testing.T) {
	subject := stemSubject("sub-1", "GEN-1")
	holder := enrolledStudent("stu-1")
	holder.Subjects = models.SubjectAssignments{
		{SubjectID: "sub-1"},
		{SubjectID: "sub-2"},
	}
	holder.RegistrationHistory.Latest().Subjects = models.SubjectAssignments{{SubjectID: "sub-1"}}

	subjects := &mockSyncSubjects{subjects: map[string]models.Subject{"sub-1": subject}}
	students := &mockSyncStudents{holders: map[string][]models.Student{"sub-1": {holder}}}
	svc := NewSubjectService(subjects, students, &mockSectionRepo{}, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "sub-1"))

	assert.Equal(t, []string{"sub-1"}, subjects.deleted)
	require.Len(t, students.updated, 1)
	updated := students.updated[0]
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, "sub-2", updated.Subjects[0].SubjectID)
	assert.Empty(t, updated.RegistrationHistory.Latest().Subjects)
}

func TestAddSectionOfferingPropagatesSchedule(t *testing.T) {
	subject := stemSubject("sub-1", "GEN-1")
	member := enrolledStudent("stu-1")
	member.Subjects = models.SubjectAssignments{{SubjectID: "sub-1"}}
	member.RegistrationHistory.Latest().Subjects = models.SubjectAssignments{{SubjectID: "sub-1"}}

	outsider := enrolledStudent("stu-2")
	outsider.Section = "Mabini"
	outsider.Subjects = models.SubjectAssignments{{SubjectID: "sub-1"}}

	subjects := &mockSyncSubjects{subjects: map[string]models.Subject{"sub-1": subject}}
	students := &mockSyncStudents{holders: map[string][]models.Student{"sub-1": {member, outsider}}}
	sections := &mockSectionRepo{sections: map[string]models.Section{"sec-1": testSection("sec-1")}}
	svc := NewSubjectService(subjects, students, sections, nil, nil)

	updated, err := svc.AddSectionOffering(context.Background(), "sub-1", SectionOfferingRequest{
		SectionID: "sec-1",
		StartTime: "07:30",
		EndTime:   "08:30",
		Room:      "201",
	})
	require.NoError(t, err)

	require.Len(t, updated.Offerings, 1)
	assert.Equal(t, "Rizal", updated.Offerings[0].SectionName)

	// only the enrolled Rizal member receives the schedule
	require.Len(t, students.updated, 1)
	patched := students.updated[0]
	assert.Equal(t, "stu-1", patched.ID)
	assert.Equal(t, "201", patched.Subjects[0].Schedule.Room)
	assert.Equal(t, "201", patched.RegistrationHistory.Latest().Subjects[0].Schedule.Room)
}

func TestAddSectionOfferingRejectsDuplicateSection(t *testing.T) {
	subject := stemSubject("sub-1", "GEN-1")
	subject.Offerings = models.SectionOfferings{{ID: "off-1", SectionID: "sec-1", SectionName: "Rizal"}}

	subjects := &mockSyncSubjects{subjects: map[string]models.Subject{"sub-1": subject}}
	sections := &mockSectionRepo{sections: map[string]models.Section{"sec-1": testSection("sec-1")}}
	svc := NewSubjectService(subjects, &mockSyncStudents{}, sections, nil, nil)

	_, err := svc.AddSectionOffering(context.Background(), "sub-1", SectionOfferingRequest{
		SectionID: "sec-1",
		StartTime: "07:30",
		EndTime:   "08:30",
		Room:      "201",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdateSectionOfferingPatchesSchedule(t *testing.T) {
	subject := stemSubject("sub-1", "GEN-1")
	subject.Offerings = models.SectionOfferings{{ID: "off-1", SectionName: "Rizal", Room: "201"}}
	subjects := &mockSyncSubjects{subjects: map[string]models.Subject{"sub-1": subject}}
	svc := NewSubjectService(subjects, &mockSyncStudents{}, &mockSectionRepo{}, nil, nil)

	updated, err := svc.UpdateSectionOffering(context.Background(), "sub-1", "off-1", UpdateSectionOfferingRequest{Room: strPtr("305")})
	require.NoError(t, err)
	assert.Equal(t, "305", updated.Offerings[0].Room)

	_, err = svc.UpdateSectionOffering(context.Background(), "sub-1", "missing", UpdateSectionOfferingRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteSectionOfferingRemovesEntry(t *testing.T) {
	subject := stemSubject("sub-1", "GEN-1")
	subject.Offerings = models.SectionOfferings{
		{ID: "off-1", SectionName: "Rizal"},
		{ID: "off-2", SectionName: "Mabini"},
	}
	subjects := &mockSyncSubjects{subjects: map[string]models.Subject{"sub-1": subject}}
	svc := NewSubjectService(subjects, &mockSyncStudents{}, &mockSectionRepo{}, nil, nil)

	updated, err := svc.DeleteSectionOffering(context.Background(), "sub-1", "off-1")
	require.NoError(t, err)
	require.Len(t, updated.Offerings, 1)
	assert.Equal(t, "off-2", updated.Offerings[0].ID)
}
