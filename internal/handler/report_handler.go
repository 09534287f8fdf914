package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/shs-portal/enrollment-api/internal/service"
	"github.com/shs-portal/enrollment-api/pkg/response"
)

// ReportHandler streams exported enrollment lists.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// SectionEnrollmentList godoc
// @Summary Export a section's enrollment list as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Section ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /sections/{id}/enrollment-list [get]
// @Security BearerAuth
func (h *ReportHandler) SectionEnrollmentList(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	file, err := h.reports.SectionEnrollmentList(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(200, file.ContentType, file.Data)
}
