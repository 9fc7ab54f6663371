package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/credassure/credassure-api/internal/models"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
	"github.com/credassure/credassure-api/pkg/response"
)

type verificationService interface {
	Status(ctx context.Context, memberID string, bureau models.Bureau) (*models.IdentityVerification, error)
	MarkVerified(ctx context.Context, actorID, memberID string, bureau models.Bureau) error
}

// VerificationHandler exposes identity verification state per member/bureau.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(svc verificationService) *VerificationHandler {
	return &VerificationHandler{service: svc}
}

// Status godoc
// @Summary Identity verification status
// @Tags Verification
// @Produce json
// @Param memberId path string true "Member ID"
// @Param bureau path string true "Bureau"
// @Success 200 {object} response.Envelope
// @Router /members/{memberId}/verification/{bureau} [get]
func (h *VerificationHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	memberID := scopeMemberID(claims, c.Param("memberId"))
	bureau := models.Bureau(strings.ToUpper(c.Param("bureau")))

	status, err := h.service.Status(c.Request.Context(), memberID, bureau)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// MarkVerified godoc
// @Summary Mark a member as identity-verified with a bureau
// @Description Releases dispute items held in identity verification for the pair.
// @Tags Verification
// @Produce json
// @Param memberId path string true "Member ID"
// @Param bureau path string true "Bureau"
// @Success 204 {object} response.Envelope
// @Router /members/{memberId}/verification/{bureau} [post]
func (h *VerificationHandler) MarkVerified(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	bureau := models.Bureau(strings.ToUpper(c.Param("bureau")))
	if err := h.service.MarkVerified(c.Request.Context(), claims.UserID, c.Param("memberId"), bureau); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
