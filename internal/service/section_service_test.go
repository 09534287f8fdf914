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

type mockSectionRepo struct {
	sections  map[string]models.Section
	names     map[string]bool
	confirmed map[string][]string
	deleted   []string
}

func (m *mockSectionRepo) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error) {
	var list []models.Section
	for _, s := range m.sections {
		list = append(list, s)
	}
	return list, len(list), nil
}

func (m *mockSectionRepo) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSectionRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	return m.names[name], nil
}

func (m *mockSectionRepo) Create(ctx context.Context, section *models.Section) error {
	if m.sections == nil {
		m.sections = make(map[string]models.Section)
	}
	if section.ID == "" {
		section.ID = "sec-new"
	}
	m.sections[section.ID] = *section
	return nil
}

func (m *mockSectionRepo) Update(ctx context.Context, section *models.Section) error {
	m.sections[section.ID] = *section
	return nil
}

func (m *mockSectionRepo) ConfirmStudent(ctx context.Context, sectionID, studentID string) error {
	if m.confirmed == nil {
		m.confirmed = make(map[string][]string)
	}
	m.confirmed[sectionID] = append(m.confirmed[sectionID], studentID)
	return nil
}

func (m *mockSectionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.sections, id)
	return nil
}

type mockCascadeStudents struct {
	bySection map[string][]models.Student
	updated   []*models.Student
}

func (m *mockCascadeStudents) FindBySection(ctx context.Context, sectionName string) ([]models.Student, error) {
	return m.bySection[sectionName], nil
}

func (m *mockCascadeStudents) UpdateBatch(ctx context.Context, students []*models.Student) error {
	m.updated = append(m.updated, students...)
	return nil
}

type mockCascadeSubjects struct {
	matching map[string][]models.Subject
	rosters  map[string][]string
	unlinked []string
}

func cascadeKey(gradeLevel int, strand, semester string) string {
	return strand + "/" + semester + "/" + string(rune('0'+gradeLevel))
}

func (m *mockCascadeSubjects) FindMatching(ctx context.Context, gradeLevel int, strand, semester string) ([]models.Subject, error) {
	return m.matching[cascadeKey(gradeLevel, strand, semester)], nil
}

func (m *mockCascadeSubjects) AddStudents(ctx context.Context, subjectID string, studentIDs []string) error {
	if m.rosters == nil {
		m.rosters = make(map[string][]string)
	}
	m.rosters[subjectID] = append(m.rosters[subjectID], studentIDs...)
	return nil
}

func (m *mockCascadeSubjects) RemoveStudentFromAll(ctx context.Context, studentID string) error {
	m.unlinked = append(m.unlinked, studentID)
	return nil
}

func testSection(id string) models.Section {
	return models.Section{
		ID:         id,
		Name:       "Rizal",
		GradeLevel: 11,
		Track:      "Academic",
		Strand:     "STEM",
		Semester:   "1",
		Capacity:   40,
		Students:   models.StringList{"stu-1", "stu-2"},
	}
}

func subjectFor(id, code, semester string) models.Subject {
	return models.Subject{
		ID:       id,
		Code:     code,
		Name:     code + " name",
		Semester: semester,
		Strand:   "STEM",
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestSectionCreateRejectsDuplicateName(t *testing.T) {
	repo := &mockSectionRepo{names: map[string]bool{"Rizal": true}}
	svc := NewSectionService(repo, &mockCascadeStudents{}, &mockCascadeSubjects{}, 12, nil, nil)

	_, err := svc.Create(context.Background(), CreateSectionRequest{
		Name: "Rizal", GradeLevel: 11, Track: "Academic", Strand: "STEM", Semester: "1", Capacity: 40,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSectionUpdateNonCriticalSkipsCascade(t *testing.T) {
	repo := &mockSectionRepo{sections: map[string]models.Section{"sec-1": testSection("sec-1")}}
	students := &mockCascadeStudents{bySection: map[string][]models.Student{
		"Rizal": {{ID: "stu-1", Section: "Rizal", Status: models.StudentStatusEnrolled}},
	}}
	subjects := &mockCascadeSubjects{}
	svc := NewSectionService(repo, students, subjects, 12, nil, nil)

	section, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{Capacity: intPtr(45)})
	require.NoError(t, err)

	assert.Equal(t, 45, section.Capacity)
	assert.Empty(t, subjects.unlinked)
	assert.Empty(t, students.updated)
}

func TestSectionUpdateSemesterChangeReplacesAssignments(t *testing.T) {
	repo := &mockSectionRepo{sections: map[string]models.Section{"sec-1": testSection("sec-1")}}
	students := &mockCascadeStudents{bySection: map[string][]models.Student{
		"Rizal": {{
			ID:       "stu-1",
			Section:  "Rizal",
			Status:   models.StudentStatusEnrolled,
			Semester: "1",
			Subjects: models.SubjectAssignments{{SubjectID: "sub-old", Code: "GEN-1"}},
		}},
	}}
	subjects := &mockCascadeSubjects{matching: map[string][]models.Subject{
		cascadeKey(11, "STEM", "2"): {subjectFor("sub-new", "GEN-2", "2")},
	}}
	svc := NewSectionService(repo, students, subjects, 12, nil, nil)

	_, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{Semester: strPtr("2")})
	require.NoError(t, err)

	assert.Equal(t, []string{"stu-1"}, subjects.unlinked)
	assert.Equal(t, []string{"stu-1"}, subjects.rosters["sub-new"])
	require.Len(t, students.updated, 1)

	updated := students.updated[0]
	assert.Equal(t, "2", updated.Semester)
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, "sub-new", updated.Subjects[0].SubjectID)

	// enrolled member gets a history snapshot for the new placement
	require.Len(t, updated.RegistrationHistory, 1)
	assert.Equal(t, "2", updated.RegistrationHistory[0].Semester)
}

func TestSectionUpdateRepeaterKeepsOnlyCarryoverMatches(t *testing.T) {
	repo := &mockSectionRepo{sections: map[string]models.Section{"sec-1": testSection("sec-1")}}
	students := &mockCascadeStudents{bySection: map[string][]models.Student{
		"Rizal": {{
			ID:          "stu-1",
			Section:     "Rizal",
			Status:      models.StudentStatusPending,
			StudentType: models.StudentTypeRepeater,
			CarryoverSubjects: models.CarryoverSubjects{
				{Code: "GEN-2", Name: "GEN-2 name", Semester: "2"},
			},
		}},
	}}
	subjects := &mockCascadeSubjects{matching: map[string][]models.Subject{
		cascadeKey(11, "STEM", "2"): {
			subjectFor("sub-a", "GEN-2", "2"),
			subjectFor("sub-b", "GEN-3", "2"),
		},
	}}
	svc := NewSectionService(repo, students, subjects, 12, nil, nil)

	_, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{Semester: strPtr("2")})
	require.NoError(t, err)

	require.Len(t, students.updated, 1)
	updated := students.updated[0]
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, "sub-a", updated.Subjects[0].SubjectID)
	assert.Empty(t, subjects.rosters["sub-b"])
}

func TestSectionUpdateTerminalGradeFirstSemesterResetsMembers(t *testing.T) {
	section := testSection("sec-1")
	section.GradeLevel = 11
	section.Semester = "2"
	repo := &mockSectionRepo{sections: map[string]models.Section{"sec-1": section}}
	students := &mockCascadeStudents{bySection: map[string][]models.Student{
		"Rizal": {{
			ID:       "stu-1",
			Section:  "Rizal",
			Status:   models.StudentStatusEnrolled,
			Subjects: models.SubjectAssignments{{SubjectID: "sub-old"}},
		}},
	}}
	subjects := &mockCascadeSubjects{}
	svc := NewSectionService(repo, students, subjects, 12, nil, nil)

	_, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{
		GradeLevel: intPtr(12),
		Semester:   strPtr("1"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"stu-1"}, subjects.unlinked)
	require.Len(t, students.updated, 1)

	updated := students.updated[0]
	assert.Equal(t, models.StudentStatusPending, updated.Status)
	assert.Empty(t, updated.Subjects)
	assert.Equal(t, 12, updated.GradeLevel)
	assert.Equal(t, "1", updated.Semester)
	assert.Empty(t, subjects.rosters)
}

func TestConfirmStudentRequiresMembership(t *testing.T) {
	repo := &mockSectionRepo{sections: map[string]models.Section{"sec-1": testSection("sec-1")}}
	svc := NewSectionService(repo, &mockCascadeStudents{}, &mockCascadeSubjects{}, 12, nil, nil)

	err := svc.ConfirmStudent(context.Background(), "sec-1", "stranger")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ConfirmStudent(context.Background(), "sec-1", "stu-1"))
	assert.Equal(t, []string{"stu-1"}, repo.confirmed["sec-1"])
}

func TestSectionDeleteUnlinksMembers(t *testing.T) {
	repo := &mockSectionRepo{sections: map[string]models.Section{"sec-1": testSection("sec-1")}}
	students := &mockCascadeStudents{bySection: map[string][]models.Student{
		"Rizal": {{ID: "stu-1", Section: "Rizal"}},
	}}
	svc := NewSectionService(repo, students, &mockCascadeSubjects{}, 12, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "sec-1"))
	require.Len(t, students.updated, 1)
	assert.Empty(t, students.updated[0].Section)
	assert.Equal(t, []string{"sec-1"}, repo.deleted)
}
