package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/engageflow/backend/internal/models"
	"github.com/engageflow/backend/internal/services"
)

type LogHandler struct {
	services *services.Container
}

func NewLogHandler(s *services.Container) *LogHandler {
	return &LogHandler{services: s}
}

func (h *LogHandler) List(c *gin.Context) {
	workspaceID := getWorkspaceID(c)

	filter := services.ListLogsFilter{
		Status: models.DispatchStatus(c.Query("status")),
	}
	if ruleParam := c.Query("rule_id"); ruleParam != "" {
		ruleID, err := uuid.Parse(ruleParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule_id"})
			return
		}
		filter.RuleID = &ruleID
	}
	if sinceParam := c.Query("since"); sinceParam != "" {
		since, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = &since
	}
	if limitParam := c.Query("limit"); limitParam != "" {
		if limit, err := strconv.Atoi(limitParam); err == nil {
			filter.Limit = limit
		}
	}

	logs, err := h.services.Log.List(workspaceID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
