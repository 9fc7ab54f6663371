package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/credassure/credassure-api/internal/models"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
	"github.com/credassure/credassure-api/pkg/response"
)

type attachmentService interface {
	Attach(ctx context.Context, evidenceID, fileName, mimeType string, data []byte) (*models.EvidenceAttachment, error)
	List(ctx context.Context, evidenceID string) ([]models.EvidenceAttachment, error)
	DownloadURL(ctx context.Context, attachmentID, apiPrefix string) (string, time.Time, error)
	OpenByToken(token string) (*os.File, error)
}

// AttachmentHandler manages scanned-letter files attached to evidence records.
type AttachmentHandler struct {
	service   attachmentService
	apiPrefix string
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(svc attachmentService, apiPrefix string) *AttachmentHandler {
	return &AttachmentHandler{service: svc, apiPrefix: apiPrefix}
}

// Upload godoc
// @Summary Attach a scanned document to an evidence record
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Evidence ID"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /evidence/{id}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
		return
	}

	attachment, err := h.service.Attach(c.Request.Context(), c.Param("id"), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, attachment)
}

// List godoc
// @Summary List attachments on an evidence record
// @Tags Evidence
// @Produce json
// @Param id path string true "Evidence ID"
// @Success 200 {object} response.Envelope
// @Router /evidence/{id}/attachments [get]
func (h *AttachmentHandler) List(c *gin.Context) {
	attachments, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attachments, nil)
}

// SignedURL godoc
// @Summary Issue a signed download URL for an attachment
// @Tags Evidence
// @Produce json
// @Param id path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Router /attachments/{id}/url [get]
func (h *AttachmentHandler) SignedURL(c *gin.Context) {
	url, expiresAt, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"), h.apiPrefix)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url, "expires_at": expiresAt}, nil)
}

// Download godoc
// @Summary Download an attachment via signed token
// @Tags Evidence
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /attachments/download/{token} [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, err := h.service.OpenByToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat attachment"))
		return
	}

	filename := filepath.Base(file.Name())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(filename), file, nil)
}
