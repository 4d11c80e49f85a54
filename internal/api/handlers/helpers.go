package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func getWorkspaceID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get("workspace_id"); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
