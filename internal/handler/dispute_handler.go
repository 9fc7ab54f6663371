package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/middleware"
	"github.com/credassure/credassure-api/internal/models"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
	"github.com/credassure/credassure-api/pkg/response"
)

type disputeService interface {
	Create(ctx context.Context, actorID string, req dto.CreateDisputeRequest) (*models.DisputeItem, error)
	Get(ctx context.Context, itemID, memberID string) (*models.DisputeItem, error)
	List(ctx context.Context, query dto.DisputeQuery) ([]models.DisputeItem, error)
	AdvanceRound(ctx context.Context, itemID, actorID string, req dto.AdvanceRoundRequest) (*models.DisputeItem, error)
}

type enforcementService interface {
	Ingest(ctx context.Context, itemID, memberID, actorID string, req dto.IngestEvidenceRequest) (*dto.IngestResult, error)
	View(ctx context.Context, itemID, memberID string) (*models.EnforcementView, bool, error)
	Timeline(ctx context.Context, itemID, memberID string) ([]models.MailEvidence, error)
	Summary(ctx context.Context, memberID string) (*models.EnforcementSummary, error)
	Reinsert(ctx context.Context, itemID, actorID string) (*models.DisputeItem, error)
}

// DisputeHandler exposes dispute and enforcement endpoints.
type DisputeHandler struct {
	disputes    disputeService
	enforcement enforcementService
}

// NewDisputeHandler constructs the handler.
func NewDisputeHandler(disputes disputeService, enforcement enforcementService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, enforcement: enforcement}
}

// Create godoc
// @Summary File a new dispute item
// @Tags Disputes
// @Accept json
// @Produce json
// @Param payload body dto.CreateDisputeRequest true "Dispute payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /disputes [post]
func (h *DisputeHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dispute payload"))
		return
	}
	if claims.Role == models.RoleMember {
		req.MemberID = claims.MemberID
	}

	item, err := h.disputes.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, item)
}

// List godoc
// @Summary List dispute items
// @Tags Disputes
// @Produce json
// @Param memberId query string false "Member filter"
// @Param bureau query string false "Bureau filter"
// @Param status query []string false "Round status filter"
// @Param overdue query bool false "Only overdue awaiting items"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /disputes [get]
func (h *DisputeHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.DisputeQuery{
		MemberID:    strings.TrimSpace(c.Query("memberId")),
		OnlyOverdue: c.Query("overdue") == "true",
	}
	if bureau := c.Query("bureau"); bureau != "" {
		query.Bureau = models.Bureau(strings.ToUpper(bureau))
	}
	for _, raw := range c.QueryArray("status") {
		if raw = strings.TrimSpace(raw); raw != "" {
			query.Status = append(query.Status, models.RoundStatus(strings.ToUpper(raw)))
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}
	query.MemberID = scopeMemberID(claims, query.MemberID)

	items, err := h.disputes.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get one dispute item
// @Tags Disputes
// @Produce json
// @Param id path string true "Dispute item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /disputes/{id} [get]
func (h *DisputeHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	item, err := h.disputes.Get(c.Request.Context(), c.Param("id"), scopeMemberID(claims, ""))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Ingest godoc
// @Summary Ingest bureau response evidence
// @Description Classify a bureau letter, detect violations and advance the dispute round.
// @Tags Enforcement
// @Accept json
// @Produce json
// @Param id path string true "Dispute item ID"
// @Param payload body dto.IngestEvidenceRequest true "Evidence payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /disputes/{id}/evidence [post]
func (h *DisputeHandler) Ingest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.IngestEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evidence payload"))
		return
	}

	result, err := h.enforcement.Ingest(c.Request.Context(), c.Param("id"), scopeMemberID(claims, ""), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Timeline godoc
// @Summary Evidence timeline for a dispute item
// @Tags Enforcement
// @Produce json
// @Param id path string true "Dispute item ID"
// @Success 200 {object} response.Envelope
// @Router /disputes/{id}/evidence [get]
func (h *DisputeHandler) Timeline(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	records, err := h.enforcement.Timeline(c.Request.Context(), c.Param("id"), scopeMemberID(claims, ""))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// View godoc
// @Summary Enforcement view of a dispute item
// @Description Current status, deadline posture and advised next action.
// @Tags Enforcement
// @Produce json
// @Param id path string true "Dispute item ID"
// @Success 200 {object} response.Envelope
// @Router /disputes/{id}/enforcement [get]
func (h *DisputeHandler) View(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, cached, err := h.enforcement.View(c.Request.Context(), c.Param("id"), scopeMemberID(claims, ""))
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Advance godoc
// @Summary Start the next escalation round
// @Tags Disputes
// @Accept json
// @Produce json
// @Param id path string true "Dispute item ID"
// @Param payload body dto.AdvanceRoundRequest true "Expected version"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /disputes/{id}/advance [post]
func (h *DisputeHandler) Advance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AdvanceRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "expectedVersion required"))
		return
	}

	item, err := h.disputes.AdvanceRound(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Reinsert godoc
// @Summary Record a bureau reinsertion
// @Description Flags a previously deleted item that reappeared on the report.
// @Tags Enforcement
// @Produce json
// @Param id path string true "Dispute item ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /disputes/{id}/reinsert [post]
func (h *DisputeHandler) Reinsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	item, err := h.enforcement.Reinsert(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Summary godoc
// @Summary Enforcement summary for a member
// @Tags Enforcement
// @Produce json
// @Param memberId path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Router /members/{memberId}/enforcement [get]
func (h *DisputeHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	memberID := scopeMemberID(claims, c.Param("memberId"))
	if memberID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "memberId is required"))
		return
	}

	summary, err := h.enforcement.Summary(c.Request.Context(), memberID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
