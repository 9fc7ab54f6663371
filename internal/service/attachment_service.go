package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/pkg/config"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
	"github.com/credassure/credassure-api/pkg/storage"
)

type attachmentStore interface {
	GetByID(ctx context.Context, id string) (*models.MailEvidence, error)
	CreateAttachment(ctx context.Context, attachment *models.EvidenceAttachment) error
	GetAttachment(ctx context.Context, id string) (*models.EvidenceAttachment, error)
	ListAttachments(ctx context.Context, evidenceID string) ([]models.EvidenceAttachment, error)
}

// AttachmentService stores scanned letters and other files alongside mail
// evidence rows and hands out signed download URLs.
type AttachmentService struct {
	evidence attachmentStore
	storage  fileStorage
	signer   *storage.SignedURLSigner
	cfg      config.AttachmentsConfig
	logger   *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(
	evidence attachmentStore,
	fileStore fileStorage,
	signer *storage.SignedURLSigner,
	cfg config.AttachmentsConfig,
	logger *zap.Logger,
) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		evidence: evidence,
		storage:  fileStore,
		signer:   signer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Attach stores the file and records the attachment against the evidence row.
func (s *AttachmentService) Attach(ctx context.Context, evidenceID, fileName, mimeType string, data []byte) (*models.EvidenceAttachment, error) {
	if _, err := s.evidence.GetByID(ctx, evidenceID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence not found")
	}
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	if len(s.cfg.AllowedMIMEs) > 0 && !mimeAllowed(s.cfg.AllowedMIMEs, mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not accepted", mimeType))
	}

	stored := path.Join(evidenceID, sanitizeFilename(fileName))
	relPath, err := s.storage.Save(stored, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}

	attachment := &models.EvidenceAttachment{
		EvidenceID: evidenceID,
		FileName:   fileName,
		MIMEType:   mimeType,
		SizeBytes:  int64(len(data)),
		StoredPath: relPath,
	}
	if err := s.evidence.CreateAttachment(ctx, attachment); err != nil {
		return nil, appErrors.FromError(err)
	}

	s.logger.Info("attachment stored",
		zap.String("evidenceId", evidenceID),
		zap.String("fileName", fileName),
		zap.Int64("sizeBytes", attachment.SizeBytes))
	return attachment, nil
}

// List returns attachment metadata for an evidence row.
func (s *AttachmentService) List(ctx context.Context, evidenceID string) ([]models.EvidenceAttachment, error) {
	attachments, err := s.evidence.ListAttachments(ctx, evidenceID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return attachments, nil
}

// DownloadURL issues a signed token URL for one attachment.
func (s *AttachmentService) DownloadURL(ctx context.Context, attachmentID, apiPrefix string) (string, time.Time, error) {
	attachment, err := s.evidence.GetAttachment(ctx, attachmentID)
	if err != nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	token, expiresAt, err := s.signer.Generate(attachment.ID, attachment.StoredPath)
	if err != nil {
		return "", time.Time{}, appErrors.FromError(err)
	}
	return fmt.Sprintf("%s/attachments/download/%s", apiPrefix, token), expiresAt, nil
}

// OpenByToken validates a download token and opens the underlying file.
func (s *AttachmentService) OpenByToken(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return s.storage.Open(relPath)
}

func mimeAllowed(allowed []string, mimeType string) bool {
	for _, m := range allowed {
		if m == mimeType {
			return true
		}
	}
	return false
}
