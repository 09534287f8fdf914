package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/shs-portal/enrollment-api/internal/models"
	"github.com/shs-portal/enrollment-api/internal/service"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/response"
)

// EnrollmentHandler exposes the public intake wizard and applicant listing.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
	maxFileSize int64
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, metrics *service.MetricsService, maxFileSize int64) *EnrollmentHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	return &EnrollmentHandler{enrollments: enrollments, metrics: metrics, maxFileSize: maxFileSize}
}

// Submit godoc
// @Summary Submit an intake wizard step
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param step body int true "Wizard step (1 or 2)"
// @Success 200 {object} response.Envelope
// @Router /enrollment [post]
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	var probe struct {
		Step int `json:"step"`
	}
	if err := c.ShouldBindBodyWith(&probe, binding.JSON); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	switch probe.Step {
	case 1:
		var req service.IntakeStep1Request
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
		applicant, err := h.enrollments.SubmitStep1(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		h.metrics.CountEnrollmentEvent("application_step_1")
		response.JSON(c, http.StatusOK, applicant, nil)
	case 2:
		var req service.IntakeStep2Request
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
		applicant, err := h.enrollments.SubmitStep2(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		h.metrics.CountEnrollmentEvent("application_step_2")
		response.JSON(c, http.StatusOK, applicant, nil)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "step must be 1 or 2; submit documents via the multipart endpoint"))
	}
}

// SubmitDocuments godoc
// @Summary Upload enrollment documents and finalise the application
// @Tags Enrollment
// @Accept multipart/form-data
// @Produce json
// @Param applicant_id formData string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment/documents [post]
func (h *EnrollmentHandler) SubmitDocuments(c *gin.Context) {
	req := service.IntakeStep3Request{ApplicantID: c.PostForm("applicant_id")}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}
	for _, kind := range []string{"birth_certificate", "report_card", "id_picture", "good_moral"} {
		files := form.File[kind]
		if len(files) == 0 {
			continue
		}
		header := files[0]
		if header.Size > h.maxFileSize {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, kind+" exceeds the maximum file size"))
			return
		}
		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read "+kind))
			return
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read "+kind))
			return
		}
		req.Documents = append(req.Documents, service.DocumentUpload{
			Kind:        kind,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	applicant, err := h.enrollments.SubmitStep3(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountEnrollmentEvent("application_completed")
	response.JSON(c, http.StatusOK, applicant, nil)
}

// List godoc
// @Summary List applicants
// @Tags Applicants
// @Produce json
// @Param status query string false "Filter by status"
// @Param schoolYear query string false "Filter by school year"
// @Param gradeLevel query int false "Filter by grade level"
// @Param strand query string false "Filter by strand"
// @Param search query string false "Search by name, email or LRN"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applicants [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.ApplicantFilter
	filter.Status = models.ApplicantStatus(c.Query("status"))
	filter.SchoolYear = c.Query("schoolYear")
	if grade, err := strconv.Atoi(c.Query("gradeLevel")); err == nil {
		filter.GradeLevel = grade
	}
	filter.Strand = c.Query("strand")
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	applicants, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicants, pagination)
}

// Get godoc
// @Summary Get applicant by ID
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	applicant, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}
