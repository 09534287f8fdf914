package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/mailer"
)

type admissionApplicantRepository interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus, reason *string, rejectedAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type admissionStudentRepository interface {
	ExistsByLRN(ctx context.Context, lrn, excludeID string) (bool, error)
	ExistsByStudentNumber(ctx context.Context, number, excludeID string) (bool, error)
	NextStudentNumber(ctx context.Context, year int) (int, error)
	Create(ctx context.Context, student *models.Student) error
}

// RejectApplicantRequest carries the rejection payload.
type RejectApplicantRequest struct {
	Reason string `json:"reason" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

// AdmissionConfig holds school-level admission settings.
type AdmissionConfig struct {
	SchoolName        string
	TempPasswordBytes int
}

// AdmissionService converts approved applicants into student accounts and
// handles rejections.
type AdmissionService struct {
	applicants admissionApplicantRepository
	students   admissionStudentRepository
	blobs      blobStore
	notify     notifier
	cfg        AdmissionConfig
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAdmissionService constructs AdmissionService.
func NewAdmissionService(applicants admissionApplicantRepository, students admissionStudentRepository, blobs blobStore, notify notifier, cfg AdmissionConfig, validate *validator.Validate, logger *zap.Logger) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TempPasswordBytes <= 0 {
		cfg.TempPasswordBytes = 6
	}
	return &AdmissionService{applicants: applicants, students: students, blobs: blobs, notify: notify, cfg: cfg, validator: validate, logger: logger}
}

// Approve mints a student account from a pending applicant. Credential
// delivery is dispatched in the background and never blocks or rolls back
// the approval.
func (s *AdmissionService) Approve(ctx context.Context, applicantID string) (*models.Student, error) {
	applicant, err := s.applicants.FindByID(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if applicant.StatusRegistration == models.ApplicantStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "applicant already approved")
	}

	if !lrnIsEmpty(applicant.LRN) {
		exists, err := s.students.ExistsByLRN(ctx, applicant.LRN, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate lrn")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "lrn already belongs to an enrolled student")
		}
	}

	year := time.Now().Year()
	ordinal, err := s.students.NextStudentNumber(ctx, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate student number")
	}
	studentNumber := fmt.Sprintf("%d-%05d", year, ordinal)
	taken, err := s.students.ExistsByStudentNumber(ctx, studentNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number collision, retry approval")
	}

	tempPassword, err := generatePassword(s.cfg.TempPasswordBytes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credentials")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credentials")
	}

	student := &models.Student{
		StudentNumber: studentNumber,
		LRN:           applicant.LRN,
		LastName:      applicant.LastName,
		FirstName:     applicant.FirstName,
		MiddleName:    applicant.MiddleName,
		Extension:     applicant.Extension,
		BirthDate:     applicant.BirthDate,
		Sex:           applicant.Sex,
		Email:         applicant.Email,
		ContactNumber: applicant.ContactNumber,
		Address:       applicant.CurrentAddress,
		GradeLevel:    applicant.GradeLevel,
		Track:         applicant.Track,
		Strand:        applicant.Strand,
		Semester:      applicant.Semester,
		Status:        models.StudentStatusPending,
		StudentType:   models.StudentTypeRegular,
		PasswordHash:  string(hash),
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	if err := s.applicants.UpdateStatus(ctx, applicantID, models.ApplicantStatusApproved, nil, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark applicant approved")
	}

	s.notify.Notify(mailer.Message{
		ToName:    applicant.FullName(),
		ToAddress: applicant.Email,
		Subject:   fmt.Sprintf("%s Enrollment Approved", s.cfg.SchoolName),
		HTMLBody: fmt.Sprintf(
			"<p>Good day %s,</p><p>Your enrollment application has been approved.</p>"+
				"<p>Student Number: <strong>%s</strong><br>Temporary Password: <strong>%s</strong></p>"+
				"<p>Please log in to the student portal and change your password.</p>",
			applicant.FirstName, studentNumber, tempPassword),
	})

	return student, nil
}

// Reject marks an applicant rejected and dispatches the notice.
func (s *AdmissionService) Reject(ctx context.Context, applicantID string, req RejectApplicantRequest) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	applicant, err := s.applicants.FindByID(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}

	reason := strings.TrimSpace(req.Reason)
	rejectedAt := time.Now().UTC()
	if err := s.applicants.UpdateStatus(ctx, applicantID, models.ApplicantStatusRejected, &reason, &rejectedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark applicant rejected")
	}
	applicant.StatusRegistration = models.ApplicantStatusRejected
	applicant.RejectionReason = &reason
	applicant.RejectedAt = &rejectedAt

	s.notify.Notify(mailer.Message{
		ToName:    applicant.FullName(),
		ToAddress: req.Email,
		Subject:   fmt.Sprintf("%s Enrollment Application", s.cfg.SchoolName),
		HTMLBody: fmt.Sprintf(
			"<p>Good day %s,</p><p>We regret to inform you that your enrollment application was not approved.</p>"+
				"<p>Reason: %s</p>",
			applicant.FullName(), reason),
	})

	return applicant, nil
}

// Delete removes an applicant together with their stored documents.
func (s *AdmissionService) Delete(ctx context.Context, applicantID string) error {
	applicant, err := s.applicants.FindByID(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	for kind, ref := range applicant.Documents {
		if err := s.blobs.Delete(ref.StorageID); err != nil {
			s.logger.Warn("failed to delete applicant document",
				zap.String("applicant_id", applicantID), zap.String("kind", kind), zap.Error(err))
		}
	}
	if err := s.applicants.Delete(ctx, applicantID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete applicant")
	}
	return nil
}

func generatePassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
