package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shs-portal/enrollment-api/internal/service"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/response"
	"github.com/shs-portal/enrollment-api/pkg/storage"
)

// FilesHandler issues short-lived signed URLs for applicant documents and
// serves the downloads they point at.
type FilesHandler struct {
	enrollments *service.EnrollmentService
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
}

// NewFilesHandler constructs FilesHandler.
func NewFilesHandler(enrollments *service.EnrollmentService, store *storage.LocalStorage, signer *storage.SignedURLSigner) *FilesHandler {
	return &FilesHandler{enrollments: enrollments, store: store, signer: signer}
}

// SignDocumentURL godoc
// @Summary Issue a signed download URL for an applicant document
// @Tags Files
// @Produce json
// @Param id path string true "Applicant ID"
// @Param kind path string true "Document kind"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/documents/{kind}/url [get]
// @Security BearerAuth
func (h *FilesHandler) SignDocumentURL(c *gin.Context) {
	applicant, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, ok := applicant.Documents[c.Param("kind")]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
		return
	}

	token, expiresAt, err := h.signer.Generate(doc.StorageID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to sign document URL"))
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/files/signed?token=" + token,
		"expires_at": expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a file referenced by a signed token
// @Tags Files
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /files/signed [get]
func (h *FilesHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	storageID, _, err := h.signer.Parse(token)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid or expired download token"))
		return
	}

	c.File(h.store.Path(storageID))
}
