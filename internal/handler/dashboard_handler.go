package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shs-portal/enrollment-api/internal/models"
	"github.com/shs-portal/enrollment-api/internal/service"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/response"
)

// DashboardHandler serves registrar statistics.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Aggregate enrollment statistics
// @Tags Dashboard
// @Produce json
// @Param from query string false "Lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Upper bound (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
// @Security BearerAuth
func (h *DashboardHandler) Stats(c *gin.Context) {
	var rng models.DashboardRange

	if raw := c.Query("from"); raw != "" {
		parsed, err := parseBoundary(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from parameter"))
			return
		}
		rng.From = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := parseBoundary(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to parameter"))
			return
		}
		rng.To = parsed
	}

	stats, err := h.dashboard.Stats(c.Request.Context(), rng)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func parseBoundary(raw string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, appErrors.ErrValidation
}
