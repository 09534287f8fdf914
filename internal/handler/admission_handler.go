package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shs-portal/enrollment-api/internal/service"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/response"
)

// AdmissionHandler covers registrar decisions on pending applicants.
type AdmissionHandler struct {
	admissions *service.AdmissionService
	metrics    *service.MetricsService
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions *service.AdmissionService, metrics *service.MetricsService) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions, metrics: metrics}
}

// Approve godoc
// @Summary Approve an applicant and mint the student account
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 201 {object} response.Envelope
// @Router /applicants/{id}/approve [post]
// @Security BearerAuth
func (h *AdmissionHandler) Approve(c *gin.Context) {
	student, err := h.admissions.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountEnrollmentEvent("approval")
	response.Created(c, student)
}

// Reject godoc
// @Summary Reject an applicant with a reason
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param request body service.RejectApplicantRequest true "Rejection details"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/reject [post]
// @Security BearerAuth
func (h *AdmissionHandler) Reject(c *gin.Context) {
	var req service.RejectApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	applicant, err := h.admissions.Reject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountEnrollmentEvent("rejection")
	response.JSON(c, http.StatusOK, applicant, nil)
}

// Delete godoc
// @Summary Delete an applicant and their uploaded documents
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 204
// @Router /applicants/{id} [delete]
// @Security BearerAuth
func (h *AdmissionHandler) Delete(c *gin.Context) {
	if err := h.admissions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
