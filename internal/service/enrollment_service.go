package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/storage"
)

const documentsFolder = "enrollment-documents"

var (
	twelveDigits = regexp.MustCompile(`^\d{12}$`)

	requiredDocumentKinds = []string{"birth_certificate", "report_card", "id_picture"}
	optionalDocumentKinds = []string{"good_moral"}

	allowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
	}
	allowedImageExts = map[string]bool{
		".jpeg": true,
		".jpg":  true,
		".png":  true,
	}
)

type applicantRepository interface {
	List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error)
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error)
	Create(ctx context.Context, applicant *models.Applicant) error
	Update(ctx context.Context, applicant *models.Applicant) error
}

type personUniquenessChecker interface {
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error)
}

type staffUniquenessChecker interface {
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
}

type blobStore interface {
	Upload(data []byte, originalFilename, folder string) (*storage.StoredObject, error)
	Delete(storageID string) error
}

// IntakeStep1Request covers identity and eligibility fields.
type IntakeStep1Request struct {
	ApplicantID         string `json:"applicant_id"`
	GradeLevel          int    `json:"grade_level" validate:"required,oneof=11 12"`
	HasLRN              string `json:"has_lrn" validate:"required,oneof=Yes No"`
	LRN                 string `json:"lrn"`
	ReturningLearner    string `json:"returning_learner" validate:"required,oneof=Yes No"`
	PSABirthCertNo      string `json:"psa_birth_cert_no"`
	LastName            string `json:"last_name" validate:"required"`
	FirstName           string `json:"first_name" validate:"required"`
	MiddleName          string `json:"middle_name"`
	Extension           string `json:"extension"`
	BirthDate           string `json:"birth_date" validate:"required"`
	Sex                 string `json:"sex" validate:"required,oneof=Male Female"`
	PlaceOfBirth        string `json:"place_of_birth" validate:"required"`
	Email               string `json:"email" validate:"required,email"`
	ContactNumber       string `json:"contact_number" validate:"required"`
	IsIndigenous        string `json:"is_indigenous" validate:"required,oneof=Yes No"`
	IndigenousCommunity string `json:"indigenous_community"`
	Is4Ps               string `json:"is_4ps" validate:"required,oneof=Yes No"`
	Household4PsID      string `json:"household_4ps_id"`
	HasDisability       string `json:"has_disability" validate:"required,oneof=Yes No"`
	DisabilityType      string `json:"disability_type"`
}

// IntakeStep2Request covers address, family and prior-school fields.
type IntakeStep2Request struct {
	ApplicantID      string             `json:"applicant_id" validate:"required"`
	CurrentAddress   models.Address     `json:"current_address"`
	SameAsCurrent    bool               `json:"same_as_current"`
	PermanentAddress models.Address     `json:"permanent_address"`
	Family           models.FamilyInfo  `json:"family"`
	ReturningType    string             `json:"returning_type"`
	LastSchool       models.PriorSchool `json:"last_school"`
	Semester         string             `json:"semester" validate:"required,oneof=1 2"`
	Track            string             `json:"track" validate:"required"`
	Strand           string             `json:"strand" validate:"required"`
}

// DocumentUpload is one file received on the finalisation step.
type DocumentUpload struct {
	Kind        string
	Filename    string
	ContentType string
	Data        []byte
}

// IntakeStep3Request finalises the application with document uploads.
type IntakeStep3Request struct {
	ApplicantID string `json:"applicant_id" validate:"required"`
	Documents   []DocumentUpload
}

// EnrollmentService runs the three-step applicant intake wizard.
type EnrollmentService struct {
	applicants applicantRepository
	students   personUniquenessChecker
	staff      staffUniquenessChecker
	blobs      blobStore
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(applicants applicantRepository, students personUniquenessChecker, staff staffUniquenessChecker, blobs blobStore, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{applicants: applicants, students: students, staff: staff, blobs: blobs, validator: validate, logger: logger}
}

// CurrentSchoolYear renders the school year for intake records started now.
func CurrentSchoolYear(now time.Time) string {
	year := now.Year()
	return fmt.Sprintf("%d-%d", year, year+1)
}

// lrnIsEmpty reports whether the value carries no real LRN.
func lrnIsEmpty(lrn string) bool {
	switch strings.TrimSpace(lrn) {
	case "", "N/A", "null", "undefined":
		return true
	}
	return false
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}

// SubmitStep1 validates identity fields and upserts the applicant. Resubmitting
// with the same applicant id fully overwrites prior step-1 fields.
func (s *EnrollmentService) SubmitStep1(ctx context.Context, req IntakeStep1Request) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid step 1 payload")
	}
	if req.HasLRN == "Yes" && lrnIsEmpty(req.LRN) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lrn is required when has_lrn is Yes")
	}
	if !lrnIsEmpty(req.LRN) && !twelveDigits.MatchString(req.LRN) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lrn must be exactly 12 digits")
	}
	if req.PSABirthCertNo != "" && req.PSABirthCertNo != "N/A" && !twelveDigits.MatchString(req.PSABirthCertNo) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "psa_birth_cert_no must be exactly 12 digits")
	}
	if req.IsIndigenous == "Yes" && strings.TrimSpace(req.IndigenousCommunity) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "indigenous_community is required when is_indigenous is Yes")
	}
	if req.Is4Ps == "Yes" && !twelveDigits.MatchString(req.Household4PsID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "household_4ps_id must be exactly 12 digits when is_4ps is Yes")
	}
	if req.HasDisability == "Yes" && strings.TrimSpace(req.DisabilityType) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "disability_type is required when has_disability is Yes")
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be formatted as YYYY-MM-DD")
	}

	if err := s.checkPersonUniqueness(ctx, req.Email, req.LRN, req.ApplicantID); err != nil {
		return nil, err
	}

	var applicant *models.Applicant
	if req.ApplicantID != "" {
		applicant, err = s.applicants.FindByID(ctx, req.ApplicantID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
		}
	} else {
		applicant = &models.Applicant{
			SchoolYear:         CurrentSchoolYear(time.Now()),
			StatusRegistration: models.ApplicantStatusIncomplete,
			Documents:          models.DocumentSet{},
		}
	}

	applicant.GradeLevel = req.GradeLevel
	applicant.HasLRN = req.HasLRN
	applicant.LRN = orNA(req.LRN)
	applicant.ReturningLearner = req.ReturningLearner
	applicant.PSABirthCertNo = orNA(req.PSABirthCertNo)
	applicant.LastName = req.LastName
	applicant.FirstName = req.FirstName
	applicant.MiddleName = orNA(req.MiddleName)
	applicant.Extension = orNA(req.Extension)
	applicant.BirthDate = birthDate
	applicant.Sex = req.Sex
	applicant.PlaceOfBirth = req.PlaceOfBirth
	applicant.Email = strings.ToLower(strings.TrimSpace(req.Email))
	applicant.ContactNumber = req.ContactNumber
	applicant.IsIndigenous = req.IsIndigenous
	applicant.IndigenousCommunity = orNA(req.IndigenousCommunity)
	applicant.Is4Ps = req.Is4Ps
	applicant.Household4PsID = orNA(req.Household4PsID)
	applicant.HasDisability = req.HasDisability
	applicant.DisabilityType = orNA(req.DisabilityType)

	if req.ApplicantID != "" {
		if err := s.applicants.Update(ctx, applicant); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update applicant")
		}
	} else {
		if err := s.applicants.Create(ctx, applicant); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create applicant")
		}
	}
	return applicant, nil
}

// SubmitStep2 merges address, family and prior-school fields into the applicant.
func (s *EnrollmentService) SubmitStep2(ctx context.Context, req IntakeStep2Request) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid step 2 payload")
	}
	if err := validateAddress("current_address", req.CurrentAddress); err != nil {
		return nil, err
	}
	if !req.SameAsCurrent {
		if err := validateAddress("permanent_address", req.PermanentAddress); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(req.Family.GuardianLastName) == "" || strings.TrimSpace(req.Family.GuardianFirstName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "guardian last and first name are required")
	}

	applicant, err := s.applicants.FindByID(ctx, req.ApplicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}

	if applicant.ReturningLearner == "Yes" {
		if req.ReturningType != "transferee" && req.ReturningType != "returnee" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "returning_type must be transferee or returnee")
		}
		if strings.TrimSpace(req.LastSchool.Name) == "" || strings.TrimSpace(req.LastSchool.GradeLevel) == "" || strings.TrimSpace(req.LastSchool.SchoolYear) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "last school name, grade level and school year are required for returning learners")
		}
	}

	family := req.Family
	family.FatherLastName = orNA(family.FatherLastName)
	family.FatherFirstName = orNA(family.FatherFirstName)
	family.FatherMiddleName = orNA(family.FatherMiddleName)
	family.FatherContact = orNA(family.FatherContact)
	family.MotherLastName = orNA(family.MotherLastName)
	family.MotherFirstName = orNA(family.MotherFirstName)
	family.MotherMiddleName = orNA(family.MotherMiddleName)
	family.MotherContact = orNA(family.MotherContact)
	family.GuardianContact = orNA(family.GuardianContact)

	lastSchool := req.LastSchool
	lastSchool.Name = orNA(lastSchool.Name)
	lastSchool.SchoolID = orNA(lastSchool.SchoolID)
	lastSchool.GradeLevel = orNA(lastSchool.GradeLevel)
	lastSchool.SchoolYear = orNA(lastSchool.SchoolYear)
	lastSchool.Address = orNA(lastSchool.Address)

	applicant.CurrentAddress = req.CurrentAddress
	applicant.SameAsCurrent = req.SameAsCurrent
	if req.SameAsCurrent {
		applicant.PermanentAddress = req.CurrentAddress
	} else {
		applicant.PermanentAddress = req.PermanentAddress
	}
	applicant.Family = family
	applicant.ReturningType = orNA(req.ReturningType)
	applicant.LastSchool = lastSchool
	applicant.Semester = req.Semester
	applicant.Track = req.Track
	applicant.Strand = req.Strand

	if err := s.applicants.Update(ctx, applicant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update applicant")
	}
	return applicant, nil
}

// SubmitStep3 validates and stores uploaded documents, then finalises the
// application. If any required document is still missing after the uploads,
// every document stored by this call is deleted again before failing.
func (s *EnrollmentService) SubmitStep3(ctx context.Context, req IntakeStep3Request) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid step 3 payload")
	}
	applicant, err := s.applicants.FindByID(ctx, req.ApplicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}

	for _, upload := range req.Documents {
		if !isDocumentKind(upload.Kind) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document kind %q", upload.Kind))
		}
		if !allowedImageTypes[strings.ToLower(upload.ContentType)] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: only JPEG and PNG images are accepted", upload.Kind))
		}
		if !allowedImageExts[strings.ToLower(filepath.Ext(upload.Filename))] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: file extension must be .jpg, .jpeg or .png", upload.Kind))
		}
	}

	uploaded := make(map[string]models.DocumentRef, len(req.Documents))
	for _, upload := range req.Documents {
		obj, err := s.blobs.Upload(upload.Data, upload.Filename, documentsFolder)
		if err != nil {
			s.rollbackUploads(uploaded)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to store %s", upload.Kind))
		}
		uploaded[upload.Kind] = models.DocumentRef{URL: obj.URL, StorageID: obj.StorageID, UploadedAt: obj.CreatedAt}
	}

	var missing []string
	for _, kind := range requiredDocumentKinds {
		if _, ok := uploaded[kind]; ok {
			continue
		}
		if _, ok := applicant.Documents[kind]; ok {
			continue
		}
		missing = append(missing, kind)
	}
	if len(missing) > 0 {
		s.rollbackUploads(uploaded)
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required documents: "+strings.Join(missing, ", "))
	}

	if applicant.Documents == nil {
		applicant.Documents = models.DocumentSet{}
	}
	for kind, ref := range uploaded {
		applicant.Documents[kind] = ref
	}
	applicant.RegistrationComplete = true
	applicant.StatusRegistration = models.ApplicantStatusPending

	if err := s.applicants.Update(ctx, applicant); err != nil {
		s.rollbackUploads(uploaded)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalise application")
	}
	return applicant, nil
}

// List returns applicants with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, *models.Pagination, error) {
	applicants, total, err := s.applicants.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applicants")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return applicants, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single applicant.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Applicant, error) {
	applicant, err := s.applicants.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	return applicant, nil
}

func (s *EnrollmentService) checkPersonUniqueness(ctx context.Context, email, lrn, excludeApplicantID string) error {
	exists, err := s.applicants.ExistsByEmail(ctx, email, excludeApplicantID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if !exists {
		if exists, err = s.students.ExistsByEmail(ctx, email, ""); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
		}
	}
	if !exists {
		if exists, err = s.staff.ExistsByEmail(ctx, email, ""); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
		}
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	if lrnIsEmpty(lrn) {
		return nil
	}
	exists, err = s.applicants.ExistsByLRN(ctx, lrn, excludeApplicantID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate lrn")
	}
	if !exists {
		if exists, err = s.students.ExistsByLRN(ctx, lrn, ""); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate lrn")
		}
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "lrn is already registered")
	}
	return nil
}

func (s *EnrollmentService) rollbackUploads(uploaded map[string]models.DocumentRef) {
	for kind, ref := range uploaded {
		if err := s.blobs.Delete(ref.StorageID); err != nil {
			s.logger.Warn("failed to remove uploaded document during rollback",
				zap.String("kind", kind), zap.String("storage_id", ref.StorageID), zap.Error(err))
		}
	}
}

func validateAddress(prefix string, addr models.Address) error {
	if strings.TrimSpace(addr.HouseNo) == "" || strings.TrimSpace(addr.Street) == "" ||
		strings.TrimSpace(addr.Barangay) == "" || strings.TrimSpace(addr.Municipality) == "" ||
		strings.TrimSpace(addr.Province) == "" || strings.TrimSpace(addr.ZipCode) == "" {
		return appErrors.Clone(appErrors.ErrValidation, prefix+" requires house no, street, barangay, municipality, province and zip code")
	}
	return nil
}

func isDocumentKind(kind string) bool {
	for _, k := range requiredDocumentKinds {
		if k == kind {
			return true
		}
	}
	for _, k := range optionalDocumentKinds {
		if k == kind {
			return true
		}
	}
	return false
}
