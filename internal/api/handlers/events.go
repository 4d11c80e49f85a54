package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/engageflow/backend/internal/models"
	"github.com/engageflow/backend/internal/services"
)

type EventHandler struct {
	services *services.Container
}

func NewEventHandler(s *services.Container) *EventHandler {
	return &EventHandler{services: s}
}

// Ingest is the ingress point for the webhook/poller layer. The event is
// evaluated synchronously so the caller sees the engine's decision.
func (h *EventHandler) Ingest(c *gin.Context) {
	workspaceID := getWorkspaceID(c)

	var event models.EngagementEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event.WorkspaceID = workspaceID

	switch event.Type {
	case models.EventComment, models.EventDM, models.EventFollow:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	outcome, err := h.services.Event.HandleEvent(c.Request.Context(), &event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

type StatsHandler struct {
	services *services.Container
}

func NewStatsHandler(s *services.Container) *StatsHandler {
	return &StatsHandler{services: s}
}

func (h *StatsHandler) Workspace(c *gin.Context) {
	workspaceID := getWorkspaceID(c)

	stats, err := h.services.Stats.Workspace(workspaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
