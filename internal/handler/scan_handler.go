package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/pkg/response"
)

type scanRunner interface {
	Scan(ctx context.Context, now time.Time) (*dto.ScanReport, error)
}

type rulesProvider interface {
	Rules() enforcement.RuleSet
}

// ScanHandler exposes the deadline scanner to operators.
type ScanHandler struct {
	scanner scanRunner
	rules   rulesProvider
}

// NewScanHandler constructs the handler.
func NewScanHandler(scanner scanRunner, rules rulesProvider) *ScanHandler {
	return &ScanHandler{scanner: scanner, rules: rules}
}

// Run godoc
// @Summary Run a deadline scan now
// @Description Sweeps items past the response deadline and records synthetic no-response evidence.
// @Tags Enforcement
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enforcement/scan [post]
func (h *ScanHandler) Run(c *gin.Context) {
	report, err := h.scanner.Scan(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Rules godoc
// @Summary Active enforcement rule set
// @Tags Enforcement
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enforcement/rules [get]
func (h *ScanHandler) Rules(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.rules.Rules(), nil)
}
