package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/storage"
)

type mockApplicantRepo struct {
	applicants map[string]models.Applicant
	emails     map[string]bool
	lrns       map[string]bool
	nextID     int
}

func (m *mockApplicantRepo) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error) {
	var list []models.Applicant
	for _, a := range m.applicants {
		list = append(list, a)
	}
	return list, len(list), nil
}

func (m *mockApplicantRepo) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	if a, ok := m.applicants[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicantRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return m.emails[email], nil
}

func (m *mockApplicantRepo) ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error) {
	return m.lrns[lrn], nil
}

func (m *mockApplicantRepo) Create(ctx context.Context, applicant *models.Applicant) error {
	if m.applicants == nil {
		m.applicants = make(map[string]models.Applicant)
	}
	if applicant.ID == "" {
		m.nextID++
		applicant.ID = fmt.Sprintf("app-%d", m.nextID)
	}
	m.applicants[applicant.ID] = *applicant
	return nil
}

func (m *mockApplicantRepo) Update(ctx context.Context, applicant *models.Applicant) error {
	m.applicants[applicant.ID] = *applicant
	return nil
}

type mockPersonChecker struct {
	emails map[string]bool
	lrns   map[string]bool
}

func (m *mockPersonChecker) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return m.emails[email], nil
}

func (m *mockPersonChecker) ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error) {
	return m.lrns[lrn], nil
}

type mockStaffChecker struct {
	emails map[string]bool
}

func (m *mockStaffChecker) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return m.emails[email], nil
}

type mockBlobStore struct {
	uploads   int
	deleted   []string
	failAfter int
}

func (m *mockBlobStore) Upload(data []byte, originalFilename, folder string) (*storage.StoredObject, error) {
	if m.failAfter > 0 && m.uploads >= m.failAfter {
		return nil, fmt.Errorf("disk full")
	}
	m.uploads++
	id := fmt.Sprintf("blob-%d", m.uploads)
	return &storage.StoredObject{URL: "/files/" + id, StorageID: id, CreatedAt: time.Now()}, nil
}

func (m *mockBlobStore) Delete(storageID string) error {
	m.deleted = append(m.deleted, storageID)
	return nil
}

func validStep1() IntakeStep1Request {
	return IntakeStep1Request{
		GradeLevel:       11,
		HasLRN:           "Yes",
		LRN:              "123456789012",
		ReturningLearner: "No",
		LastName:         "Reyes",
		FirstName:        "Ana",
		BirthDate:        "2009-03-15",
		Sex:              "Female",
		PlaceOfBirth:     "Quezon City",
		Email:            "ana.reyes@example.com",
		ContactNumber:    "09171234567",
		IsIndigenous:     "No",
		Is4Ps:            "No",
		HasDisability:    "No",
	}
}

func newEnrollmentService(repo *mockApplicantRepo, students *mockPersonChecker, staff *mockStaffChecker, blobs *mockBlobStore) *EnrollmentService {
	if repo == nil {
		repo = &mockApplicantRepo{}
	}
	if students == nil {
		students = &mockPersonChecker{}
	}
	if staff == nil {
		staff = &mockStaffChecker{}
	}
	if blobs == nil {
		blobs = &mockBlobStore{}
	}
	return NewEnrollmentService(repo, students, staff, blobs, nil, nil)
}

func TestSubmitStep1CreatesIncompleteApplicant(t *testing.T) {
	repo := &mockApplicantRepo{}
	svc := newEnrollmentService(repo, nil, nil, nil)

	applicant, err := svc.SubmitStep1(context.Background(), validStep1())
	require.NoError(t, err)

	assert.Equal(t, models.ApplicantStatusIncomplete, applicant.StatusRegistration)
	assert.Equal(t, CurrentSchoolYear(time.Now()), applicant.SchoolYear)
	assert.Equal(t, "ana.reyes@example.com", applicant.Email)
	assert.False(t, applicant.RegistrationComplete)
	assert.NotEmpty(t, applicant.ID)
}

func TestSubmitStep1NormalisesOptionalFields(t *testing.T) {
	svc := newEnrollmentService(nil, nil, nil, nil)

	req := validStep1()
	req.MiddleName = ""
	req.Extension = ""
	req.PSABirthCertNo = ""

	applicant, err := svc.SubmitStep1(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "N/A", applicant.MiddleName)
	assert.Equal(t, "N/A", applicant.Extension)
	assert.Equal(t, "N/A", applicant.PSABirthCertNo)
}

func TestSubmitStep1RequiresLRNWhenClaimed(t *testing.T) {
	svc := newEnrollmentService(nil, nil, nil, nil)

	req := validStep1()
	req.LRN = "N/A"

	_, err := svc.SubmitStep1(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitStep1RejectsMalformedLRN(t *testing.T) {
	svc := newEnrollmentService(nil, nil, nil, nil)

	req := validStep1()
	req.LRN = "12345"

	_, err := svc.SubmitStep1(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitStep1RejectsDuplicateEmailAcrossStudents(t *testing.T) {
	students := &mockPersonChecker{emails: map[string]bool{"ana.reyes@example.com": true}}
	svc := newEnrollmentService(nil, students, nil, nil)

	_, err := svc.SubmitStep1(context.Background(), validStep1())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitStep1SkipsLRNCollisionWhenEmpty(t *testing.T) {
	students := &mockPersonChecker{lrns: map[string]bool{"": true, "N/A": true}}
	svc := newEnrollmentService(nil, students, nil, nil)

	req := validStep1()
	req.HasLRN = "No"
	req.LRN = ""

	applicant, err := svc.SubmitStep1(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "N/A", applicant.LRN)
}

func step2For(applicantID string) IntakeStep2Request {
	addr := models.Address{
		HouseNo: "12", Street: "Mabini St", Barangay: "San Isidro",
		Municipality: "Quezon City", Province: "Metro Manila", ZipCode: "1100",
	}
	return IntakeStep2Request{
		ApplicantID:    applicantID,
		CurrentAddress: addr,
		SameAsCurrent:  true,
		Family: models.FamilyInfo{
			GuardianLastName:  "Reyes",
			GuardianFirstName: "Maria",
		},
		Semester: "1",
		Track:    "Academic",
		Strand:   "STEM",
	}
}

func TestSubmitStep2CopiesPermanentAddress(t *testing.T) {
	repo := &mockApplicantRepo{}
	svc := newEnrollmentService(repo, nil, nil, nil)

	created, err := svc.SubmitStep1(context.Background(), validStep1())
	require.NoError(t, err)

	applicant, err := svc.SubmitStep2(context.Background(), step2For(created.ID))
	require.NoError(t, err)

	assert.Equal(t, applicant.CurrentAddress, applicant.PermanentAddress)
	assert.Equal(t, "STEM", applicant.Strand)
	assert.Equal(t, "N/A", applicant.Family.FatherLastName)
}

func TestSubmitStep2RequiresPriorSchoolForReturningLearners(t *testing.T) {
	repo := &mockApplicantRepo{}
	svc := newEnrollmentService(repo, nil, nil, nil)

	step1 := validStep1()
	step1.ReturningLearner = "Yes"
	created, err := svc.SubmitStep1(context.Background(), step1)
	require.NoError(t, err)

	req := step2For(created.ID)
	req.ReturningType = "transferee"

	_, err = svc.SubmitStep2(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req.LastSchool = models.PriorSchool{Name: "Old NHS", GradeLevel: "10", SchoolYear: "2024-2025"}
	applicant, err := svc.SubmitStep2(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "transferee", applicant.ReturningType)
}

func docUpload(kind string) DocumentUpload {
	return DocumentUpload{
		Kind:        kind,
		Filename:    kind + ".jpg",
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8},
	}
}

func TestSubmitStep3FinalisesApplication(t *testing.T) {
	repo := &mockApplicantRepo{}
	blobs := &mockBlobStore{}
	svc := newEnrollmentService(repo, nil, nil, blobs)

	created, err := svc.SubmitStep1(context.Background(), validStep1())
	require.NoError(t, err)
	_, err = svc.SubmitStep2(context.Background(), step2For(created.ID))
	require.NoError(t, err)

	applicant, err := svc.SubmitStep3(context.Background(), IntakeStep3Request{
		ApplicantID: created.ID,
		Documents: []DocumentUpload{
			docUpload("birth_certificate"),
			docUpload("report_card"),
			docUpload("id_picture"),
		},
	})
	require.NoError(t, err)

	assert.True(t, applicant.RegistrationComplete)
	assert.Equal(t, models.ApplicantStatusPending, applicant.StatusRegistration)
	assert.Len(t, applicant.Documents, 3)
	assert.Empty(t, blobs.deleted)
}

func TestSubmitStep3RollsBackWhenRequiredDocumentMissing(t *testing.T) {
	repo := &mockApplicantRepo{}
	blobs := &mockBlobStore{}
	svc := newEnrollmentService(repo, nil, nil, blobs)

	created, err := svc.SubmitStep1(context.Background(), validStep1())
	require.NoError(t, err)

	_, err = svc.SubmitStep3(context.Background(), IntakeStep3Request{
		ApplicantID: created.ID,
		Documents: []DocumentUpload{
			docUpload("birth_certificate"),
			docUpload("report_card"),
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// both stored uploads are compensated
	assert.Len(t, blobs.deleted, 2)

	stored := repo.applicants[created.ID]
	assert.False(t, stored.RegistrationComplete)
	assert.Equal(t, models.ApplicantStatusIncomplete, stored.StatusRegistration)
}

func TestSubmitStep3RollsBackWhenUploadFails(t *testing.T) {
	repo := &mockApplicantRepo{}
	blobs := &mockBlobStore{failAfter: 2}
	svc := newEnrollmentService(repo, nil, nil, blobs)

	created, err := svc.SubmitStep1(context.Background(), validStep1())
	require.NoError(t, err)

	_, err = svc.SubmitStep3(context.Background(), IntakeStep3Request{
		ApplicantID: created.ID,
		Documents: []DocumentUpload{
			docUpload("birth_certificate"),
			docUpload("report_card"),
			docUpload("id_picture"),
		},
	})
	require.Error(t, err)
	assert.Len(t, blobs.deleted, 2)
}

func TestSubmitStep3RejectsNonImageUploads(t *testing.T) {
	repo := &mockApplicantRepo{}
	blobs := &mockBlobStore{}
	svc := newEnrollmentService(repo, nil, nil, blobs)

	created, err := svc.SubmitStep1(context.Background(), validStep1())
	require.NoError(t, err)

	upload := docUpload("birth_certificate")
	upload.ContentType = "application/pdf"
	upload.Filename = "birth.pdf"

	_, err = svc.SubmitStep3(context.Background(), IntakeStep3Request{
		ApplicantID: created.ID,
		Documents:   []DocumentUpload{upload},
	})
	require.Error(t, err)
	assert.Zero(t, blobs.uploads)
}

func TestSubmitStep3AcceptsPreviouslyStoredRequiredDocuments(t *testing.T) {
	repo := &mockApplicantRepo{}
	blobs := &mockBlobStore{}
	svc := newEnrollmentService(repo, nil, nil, blobs)

	created, err := svc.SubmitStep1(context.Background(), validStep1())
	require.NoError(t, err)

	stored := repo.applicants[created.ID]
	stored.Documents = models.DocumentSet{
		"birth_certificate": {StorageID: "prior-1"},
		"report_card":       {StorageID: "prior-2"},
	}
	repo.applicants[created.ID] = stored

	applicant, err := svc.SubmitStep3(context.Background(), IntakeStep3Request{
		ApplicantID: created.ID,
		Documents:   []DocumentUpload{docUpload("id_picture")},
	})
	require.NoError(t, err)
	assert.Len(t, applicant.Documents, 3)
	assert.Equal(t, models.ApplicantStatusPending, applicant.StatusRegistration)
}

func TestCurrentSchoolYearFormat(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-2026", CurrentSchoolYear(now))
}
