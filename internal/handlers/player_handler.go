package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnloop/campaign-engine/internal/middleware"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/services"
)

// ProgressFeed streams enrollment updates
type ProgressFeed interface {
	Subscribe(ctx context.Context, enrollmentID string) (<-chan *models.Enrollment, error)
}

// PlayerHandler handles learner-facing HTTP requests
type PlayerHandler struct {
	player   services.PlayerService
	progress services.ProgressService
	feed     ProgressFeed
}

// NewPlayerHandler creates a new PlayerHandler
func NewPlayerHandler(player services.PlayerService, progress services.ProgressService, feed ProgressFeed) *PlayerHandler {
	return &PlayerHandler{
		player:   player,
		progress: progress,
		feed:     feed,
	}
}

type videoProgressRequest struct {
	ItemID          string  `json:"itemId" binding:"required"`
	VideoID         string  `json:"videoId" binding:"required"`
	WatchedDuration float64 `json:"watchedDuration" binding:"gte=0"`
	TotalDuration   float64 `json:"totalDuration" binding:"gte=0"`
}

type answerRequest struct {
	ItemID           string `json:"itemId" binding:"required"`
	VideoID          string `json:"videoId" binding:"required"`
	QuestionID       string `json:"questionId" binding:"required"`
	Value            string `json:"value"`
	SelectedOptionID string `json:"selectedOptionId"`
}

// GetPlayer handles GET /campaigns/:id/player
func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	view, err := h.player.Load(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RecordAccess handles POST /campaigns/:id/access
func (h *PlayerHandler) RecordAccess(c *gin.Context) {
	enrollment, err := h.progress.RecordAccess(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollment)
}

// RecordVideoCompletion handles POST /campaigns/:id/progress/video
func (h *PlayerHandler) RecordVideoCompletion(c *gin.Context) {
	var request videoProgressRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.progress.RecordVideoCompletion(c.Request.Context(), services.VideoCompletion{
		CampaignID:      c.Param("id"),
		UserID:          middleware.UserID(c),
		ItemID:          request.ItemID,
		VideoID:         request.VideoID,
		WatchedDuration: request.WatchedDuration,
		TotalDuration:   request.TotalDuration,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Video progress recorded"})
}

// RecordAnswer handles POST /campaigns/:id/progress/answer
func (h *PlayerHandler) RecordAnswer(c *gin.Context) {
	var request answerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.progress.RecordAnswer(c.Request.Context(), services.Answer{
		CampaignID:       c.Param("id"),
		UserID:           middleware.UserID(c),
		ItemID:           request.ItemID,
		VideoID:          request.VideoID,
		QuestionID:       request.QuestionID,
		Value:            request.Value,
		SelectedOptionID: request.SelectedOptionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Answer recorded"})
}

// StreamProgress handles GET /campaigns/:id/progress/stream as server-sent events.
// Each event carries the learner's enrollment after a write.
func (h *PlayerHandler) StreamProgress(c *gin.Context) {
	ctx := c.Request.Context()
	enrollmentID := models.EnrollmentID(c.Param("id"), middleware.UserID(c))

	updates, err := h.feed.Subscribe(ctx, enrollmentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case enrollment, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("progress", gin.H{
				"status":         enrollment.Status,
				"moduleProgress": enrollment.ModuleProgress,
				"xpEarned":       enrollment.XPEarned,
			})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
