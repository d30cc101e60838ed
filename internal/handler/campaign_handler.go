package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/dto"
	"github.com/noah-isme/sma-health-api/internal/middleware"
	"github.com/noah-isme/sma-health-api/internal/models"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
	"github.com/noah-isme/sma-health-api/pkg/response"
)

type campaignService interface {
	Create(ctx context.Context, req dto.CreateCampaignRequest) (*models.Campaign, error)
	Get(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, filter dto.CampaignFilter) ([]models.Campaign, bool, error)
	Update(ctx context.Context, id string, req dto.UpdateCampaignRequest) (*models.Campaign, error)
	Transition(ctx context.Context, id string, req dto.TransitionCampaignRequest) (*models.Campaign, error)
	Delete(ctx context.Context, id string) error
	NotifyParents(ctx context.Context, id string) (*dto.NotifyResult, error)
	ListStudents(ctx context.Context, id string) ([]dto.CampaignStudent, error)
	ExportStudents(ctx context.Context, id string, format string) (*dto.RosterExport, error)
}

// CampaignHandler exposes health campaign endpoints.
type CampaignHandler struct {
	service campaignService
	logger  *zap.Logger
}

// NewCampaignHandler constructs the handler.
func NewCampaignHandler(service campaignService, logger *zap.Logger) *CampaignHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignHandler{service: service, logger: logger}
}

// Create godoc
// @Summary Create health campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param payload body dto.CreateCampaignRequest true "Campaign payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /campaigns [post]
func (h *CampaignHandler) Create(c *gin.Context) {
	var req dto.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid campaign payload"))
		return
	}
	campaign, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "campaign created", campaign.ID)
	response.Created(c, campaign)
}

// List godoc
// @Summary List health campaigns
// @Tags Campaigns
// @Produce json
// @Param academicYear query string false "Academic year label, e.g. 2024-2025"
// @Success 200 {object} response.Envelope
// @Router /campaigns [get]
func (h *CampaignHandler) List(c *gin.Context) {
	var filter dto.CampaignFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	campaigns, cacheHit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMeta(c, "count", len(campaigns))
	response.JSON(c, http.StatusOK, campaigns, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get health campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id} [get]
func (h *CampaignHandler) Get(c *gin.Context) {
	campaign, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign)
}

// Update godoc
// @Summary Update health campaign
// @Description Applies only the fields present in the payload. Status changes go through the status endpoint.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param payload body dto.UpdateCampaignRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /campaigns/{id} [patch]
func (h *CampaignHandler) Update(c *gin.Context) {
	var req dto.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid campaign payload"))
		return
	}
	campaign, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "campaign updated", campaign.ID)
	response.JSON(c, http.StatusOK, campaign)
}

// Transition godoc
// @Summary Finish or cancel a health campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param payload body dto.TransitionCampaignRequest true "Target status (FINISHED or CANCELLED)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /campaigns/{id}/status [patch]
func (h *CampaignHandler) Transition(c *gin.Context) {
	var req dto.TransitionCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	campaign, err := h.service.Transition(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "campaign status changed", campaign.ID, zap.String("status", string(campaign.Status)))
	response.JSON(c, http.StatusOK, campaign)
}

// Delete godoc
// @Summary Delete health campaign
// @Description Removes the campaign and every notification referencing it.
// @Tags Campaigns
// @Param id path string true "Campaign ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id} [delete]
func (h *CampaignHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "campaign deleted", id)
	response.NoContent(c)
}

// NotifyParents godoc
// @Summary Notify parents of targeted students
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id}/notify-parents [post]
func (h *CampaignHandler) NotifyParents(c *gin.Context) {
	result, err := h.service.NotifyParents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "campaign parents notified", result.CampaignID,
		zap.Int("sent", result.SentCount),
		zap.Int("failed", result.FailedCount),
	)
	response.JSON(c, http.StatusOK, result)
}

// Students godoc
// @Summary List students targeted by a campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id}/students [get]
func (h *CampaignHandler) Students(c *gin.Context) {
	students, err := h.service.ListStudents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(students))
	response.JSON(c, http.StatusOK, students, middleware.ExtractMeta(c))
}

// ExportStudents godoc
// @Summary Download campaign roster
// @Tags Campaigns
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Campaign ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id}/students/export [get]
func (h *CampaignHandler) ExportStudents(c *gin.Context) {
	file, err := h.service.ExportStudents(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

func (h *CampaignHandler) audit(c *gin.Context, msg, campaignID string, fields ...zap.Field) {
	fields = append(fields, zap.String("campaign_id", campaignID))
	if claims := claimsFromContext(c); claims != nil {
		fields = append(fields, zap.String("actor_id", claims.UserID), zap.String("actor_role", strings.ToLower(string(claims.Role))))
	}
	h.logger.Info(msg, fields...)
}
