package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"github.com/learnloop/campaign-engine/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

// AdminHandler handles operator HTTP requests
type AdminHandler struct {
	jobs          *services.Jobs
	notifications services.NotificationService
	stats         services.StatsService
	enrollment    services.EnrollmentService
	campaignRepo  repositories.CampaignRepository
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	jobs *services.Jobs,
	notifications services.NotificationService,
	stats services.StatsService,
	enrollment services.EnrollmentService,
	campaignRepo repositories.CampaignRepository,
) *AdminHandler {
	return &AdminHandler{
		jobs:          jobs,
		notifications: notifications,
		stats:         stats,
		enrollment:    enrollment,
		campaignRepo:  campaignRepo,
	}
}

// ListJobs handles GET /admin/jobs
func (h *AdminHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.Names()})
}

// RunJob handles POST /admin/jobs/:name/run
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	report, err := h.jobs.Run(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	slog.Info("job run on demand", "job", name, "runId", report.RunID, "userId", c.GetString("userID"))
	c.JSON(http.StatusOK, report)
}

// RequeueNotification handles POST /admin/notifications/:id/requeue
func (h *AdminHandler) RequeueNotification(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	if err := h.notifications.Requeue(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification requeued"})
}

// RequeueFailed handles POST /admin/campaigns/:id/notifications/requeue-failed
func (h *AdminHandler) RequeueFailed(c *gin.Context) {
	c.JSON(http.StatusOK, h.notifications.RequeueFailed(c.Request.Context(), c.Param("id")))
}

// RecomputeStats handles POST /admin/campaigns/:id/stats/recompute
func (h *AdminHandler) RecomputeStats(c *gin.Context) {
	stats, err := h.stats.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// EnrollCampaign handles POST /admin/campaigns/:id/enroll.
// It re-runs auto-enrollment for a published campaign, e.g. after new users join.
func (h *AdminHandler) EnrollCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	campaign, err := h.campaignRepo.FindByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !campaign.Metadata.IsPublished {
		respondError(c, apperrors.ErrNotPublished)
		return
	}
	c.JSON(http.StatusOK, h.enrollment.EnrollCampaign(ctx, campaign))
}
