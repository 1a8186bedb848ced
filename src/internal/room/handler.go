package room

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"
	"studyhall-session-svc/src/internal/ranking"
	"studyhall-session-svc/src/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	CreateRoom(c *gin.Context)
	GetRoom(c *gin.Context)
	JoinRoom(c *gin.Context)
	EndRoom(c *gin.Context)
	GetLeaderboard(c *gin.Context)
	SaveRanking(c *gin.Context)
	GetResults(c *gin.Context)
	Terminate(c *gin.Context)
}

type handler struct {
	config     *config.Configuration
	service    Service
	ranking    ranking.Service
	settlement settlement.Service
}

func NewHandler(cfg *config.Configuration, service Service, rankingService ranking.Service, settlementService settlement.Service) Handler {
	return &handler{
		config:     cfg,
		service:    service,
		ranking:    rankingService,
		settlement: settlementService,
	}
}

type createRoomRequest struct {
	Tag            string `json:"tag"`
	PlannedMinutes int    `json:"plannedMinutes" binding:"required"`
}

type terminateRequest struct {
	RoomID string `json:"room_id" binding:"required"`
	Token  string `json:"token"`
}

func (h *handler) CreateRoom(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	room, err := h.service.CreateRoom(ctx, userID, req.Tag, req.PlannedMinutes)
	if err != nil {
		if errors.Is(err, models.ErrInvalidDuration) {
			h.sendErrorResponse(c, http.StatusBadRequest, "Invalid planned duration", "Planned minutes out of allowed range")
			return
		}
		logrus.WithError(err).Error("Failed to create room")
		h.sendErrorResponse(c, http.StatusInternalServerError, "Failed to create room", err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    room,
		"message": "Room created successfully",
	})
}

func (h *handler) GetRoom(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	room, ok := h.loadRoom(ctx, c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    room,
	})
}

func (h *handler) JoinRoom(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")
	roomID := c.Param("id")

	err := h.service.JoinRoom(ctx, roomID, userID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRoomNotFound):
			h.sendErrorResponse(c, http.StatusNotFound, "Room not found", "No room found with the provided ID")
		case errors.Is(err, models.ErrRoomAlreadyEnded):
			h.sendErrorResponse(c, http.StatusConflict, "Room already ended", "Cannot join an ended room")
		case errors.Is(err, models.ErrRoomFull):
			h.sendErrorResponse(c, http.StatusConflict, "Room full", "Member limit reached")
		default:
			logrus.WithError(err).WithField("room_id", roomID).Error("Failed to join room")
			h.sendErrorResponse(c, http.StatusInternalServerError, "Failed to join room", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Joined room successfully",
	})
}

// EndRoom is the host's forced-end trigger.
func (h *handler) EndRoom(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")
	roomID := c.Param("id")

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": userID,
	}).Info("Forced end requested")

	alreadyEnded, err := h.service.EndForced(ctx, roomID, userID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRoomNotFound):
			h.sendErrorResponse(c, http.StatusNotFound, "Room not found", "No room found with the provided ID")
		case errors.Is(err, models.ErrNotRoomHost):
			h.sendErrorResponse(c, http.StatusForbidden, "Forbidden", "Only the host can end the room")
		default:
			logrus.WithError(err).WithField("room_id", roomID).Error("Failed to end room")
			h.sendErrorResponse(c, http.StatusInternalServerError, "Failed to end room", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"alreadyEnded": alreadyEnded,
		"message":      "Room ended",
	})
}

// Terminate is the inbound dispatch callback for external deferred-task
// dispatchers. 200 on success-or-already-ended, 403 on a bad token, 500
// otherwise so the dispatcher retries.
func (h *handler) Terminate(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req terminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	alreadyEnded, err := h.service.EndExternal(ctx, req.RoomID, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTaskToken):
			h.sendErrorResponse(c, http.StatusForbidden, "Invalid token", "Termination token mismatch")
		case errors.Is(err, models.ErrRoomNotFound):
			h.sendErrorResponse(c, http.StatusNotFound, "Room not found", "No room found with the provided ID")
		default:
			logrus.WithError(err).WithField("room_id", req.RoomID).Error("External termination failed")
			h.sendErrorResponse(c, http.StatusInternalServerError, "Termination failed", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"alreadyEnded": alreadyEnded,
	})
}

func (h *handler) GetLeaderboard(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	room, ok := h.loadRoom(ctx, c)
	if !ok {
		return
	}

	entries, err := h.ranking.LiveLeaderboard(ctx, room)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to build leaderboard")
		h.sendErrorResponse(c, http.StatusInternalServerError, "Failed to build leaderboard", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
	})
}

func (h *handler) SaveRanking(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")

	room, ok := h.loadRoom(ctx, c)
	if !ok {
		return
	}

	if room.HostID != userID {
		h.sendErrorResponse(c, http.StatusForbidden, "Forbidden", "Only the host can save the ranking")
		return
	}

	snapshot, err := h.ranking.SaveSnapshot(ctx, room, userID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to save ranking snapshot")
		h.sendErrorResponse(c, http.StatusInternalServerError, "Failed to save ranking", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
		"message": "Ranking saved",
	})
}

// GetResults returns the caller's settlement outcome for the room. A
// missing ledger entry on an ended room reads as "processing" rather than
// an error, since settlement may still be in flight.
func (h *handler) GetResults(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")

	room, ok := h.loadRoom(ctx, c)
	if !ok {
		return
	}

	if !room.HasMember(userID) {
		h.sendErrorResponse(c, http.StatusForbidden, "Forbidden", "Only room members can view results")
		return
	}

	if !room.IsEnded() {
		h.sendErrorResponse(c, http.StatusConflict, "Room not ended", "Results are available after the room ends")
		return
	}

	result, err := h.settlement.GetResult(ctx, room, userID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to get settlement result")
		h.sendErrorResponse(c, http.StatusInternalServerError, "Failed to get results", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

func (h *handler) loadRoom(ctx context.Context, c *gin.Context) (*models.Room, bool) {
	roomID := c.Param("id")
	if roomID == "" {
		h.sendErrorResponse(c, http.StatusBadRequest, "Room ID is required", "Please provide a valid room ID")
		return nil, false
	}

	room, err := h.service.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			h.sendErrorResponse(c, http.StatusNotFound, "Room not found", "No room found with the provided ID")
		} else {
			logrus.WithError(err).WithField("room_id", roomID).Error("Failed to get room")
			h.sendErrorResponse(c, http.StatusInternalServerError, "Failed to get room", err.Error())
		}
		return nil, false
	}

	return room, true
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
