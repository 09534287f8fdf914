package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shs-portal/enrollment-api/internal/models"
	"github.com/shs-portal/enrollment-api/internal/service"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/response"
)

// SubjectHandler covers the subject catalogue and section offerings.
type SubjectHandler struct {
	subjects *service.SubjectService
}

// NewSubjectHandler constructs SubjectHandler.
func NewSubjectHandler(subjects *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param gradeLevel query int false "Filter by grade level"
// @Param strand query string false "Filter by strand"
// @Param track query string false "Filter by track"
// @Param semester query string false "Filter by semester"
// @Param type query string false "Filter by subject type"
// @Param search query string false "Search by code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
// @Security BearerAuth
func (h *SubjectHandler) List(c *gin.Context) {
	var filter models.SubjectFilter
	if grade, err := strconv.Atoi(c.Query("gradeLevel")); err == nil {
		filter.GradeLevel = grade
	}
	filter.Strand = c.Query("strand")
	filter.Track = c.Query("track")
	filter.Semester = c.Query("semester")
	filter.Type = models.SubjectType(c.Query("type"))
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	subjects, pagination, err := h.subjects.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// Get godoc
// @Summary Get subject by ID
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [get]
// @Security BearerAuth
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.subjects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Create godoc
// @Summary Create a subject and assign it to matching enrolled students
// @Tags Subjects
// @Accept json
// @Produce json
// @Param request body service.CreateSubjectRequest true "Subject details"
// @Success 201 {object} response.Envelope
// @Router /subjects [post]
// @Security BearerAuth
func (h *SubjectHandler) Create(c *gin.Context) {
	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	subject, err := h.subjects.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// BulkCreate godoc
// @Summary Create multiple subjects in one request
// @Tags Subjects
// @Accept json
// @Produce json
// @Param request body []service.CreateSubjectRequest true "Subjects"
// @Success 201 {object} response.Envelope
// @Router /subjects/bulk [post]
// @Security BearerAuth
func (h *SubjectHandler) BulkCreate(c *gin.Context) {
	var reqs []service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	subjects, err := h.subjects.BulkCreate(c.Request.Context(), reqs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subjects)
}

// Update godoc
// @Summary Update a subject and resync student assignments
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param request body service.UpdateSubjectRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [put]
// @Security BearerAuth
func (h *SubjectHandler) Update(c *gin.Context) {
	var req service.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	subject, err := h.subjects.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Delete godoc
// @Summary Delete a subject and strip it from holders
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 204
// @Router /subjects/{id} [delete]
// @Security BearerAuth
func (h *SubjectHandler) Delete(c *gin.Context) {
	if err := h.subjects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddSectionOffering godoc
// @Summary Add a section offering with its schedule
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param request body service.SectionOfferingRequest true "Offering details"
// @Success 201 {object} response.Envelope
// @Router /subjects/{id}/offerings [post]
// @Security BearerAuth
func (h *SubjectHandler) AddSectionOffering(c *gin.Context) {
	var req service.SectionOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	subject, err := h.subjects.AddSectionOffering(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// UpdateSectionOffering godoc
// @Summary Update an offering's schedule
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param offeringId path string true "Offering ID"
// @Param request body service.UpdateSectionOfferingRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/offerings/{offeringId} [put]
// @Security BearerAuth
func (h *SubjectHandler) UpdateSectionOffering(c *gin.Context) {
	var req service.UpdateSectionOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	subject, err := h.subjects.UpdateSectionOffering(c.Request.Context(), c.Param("id"), c.Param("offeringId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// DeleteSectionOffering godoc
// @Summary Remove a section offering
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Param offeringId path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/offerings/{offeringId} [delete]
// @Security BearerAuth
func (h *SubjectHandler) DeleteSectionOffering(c *gin.Context) {
	subject, err := h.subjects.DeleteSectionOffering(c.Request.Context(), c.Param("id"), c.Param("offeringId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}
