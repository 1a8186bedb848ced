package presence

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	OpenStay(c *gin.Context)
	CloseStay(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	tracker *Tracker
}

func NewHandler(cfg *config.Configuration, tracker *Tracker) Handler {
	return &handler{
		config:  cfg,
		tracker: tracker,
	}
}

type stayRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OpenStay records the start of a presence interval. Fire-and-forget for
// the client: storage failures are logged and answered with 202 anyway,
// since presence is telemetry and must never block the session flow.
func (h *handler) OpenStay(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	roomID := c.Param("id")
	userID := c.GetString("user_id")

	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	stayID, err := h.tracker.OpenStay(ctx, roomID, userID, req.Reason)
	if err != nil {
		if errors.Is(err, models.ErrInvalidStayReason) {
			h.sendErrorResponse(c, http.StatusBadRequest, "Invalid reason", "Unknown stay reason")
			return
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"user_id": userID,
		}).Warn("Failed to open stay")
		c.JSON(http.StatusAccepted, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"stayId":  stayID,
	})
}

func (h *handler) CloseStay(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	roomID := c.Param("id")
	userID := c.GetString("user_id")

	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.tracker.CloseStay(ctx, roomID, userID, req.Reason); err != nil {
		if errors.Is(err, models.ErrInvalidStayReason) {
			h.sendErrorResponse(c, http.StatusBadRequest, "Invalid reason", "Unknown stay reason")
			return
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"user_id": userID,
		}).Warn("Failed to close stay")
		c.JSON(http.StatusAccepted, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) sendErrorResponse(c *gin.Context, statusCode int, error, message string) {
	c.JSON(statusCode, gin.H{
		"error":   error,
		"success": false,
		"message": message,
	})
}
