package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/engageflow/backend/internal/models"
)

// LogService is the activity log: one row per dispatch attempt, a single
// status transition at delivery or cancellation time, and a websocket push
// for each change so the UI feed stays current.
type LogService struct {
	container *Container
}

func NewLogService(c *Container) *LogService {
	return &LogService{container: c}
}

type ListLogsFilter struct {
	RuleID *uuid.UUID
	Status models.DispatchStatus
	Since  *time.Time
	Limit  int
}

func (s *LogService) List(workspaceID uuid.UUID, filter ListLogsFilter) ([]models.AutomationLog, error) {
	query := s.container.DB.Where("workspace_id = ?", workspaceID)

	if filter.RuleID != nil {
		query = query.Where("rule_id = ?", *filter.RuleID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AutomationLog
	err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// CreatePending records a freshly scheduled dispatch so activity feeds
// show in-flight work immediately.
func (s *LogService) CreatePending(ctx context.Context, entry *models.AutomationLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Status = models.DispatchPending

	if err := s.container.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.broadcast(entry.WorkspaceID, "log.created", entry)
	return nil
}

func (s *LogService) MarkSent(ctx context.Context, logID uuid.UUID) error {
	now := time.Now()
	return s.transition(ctx, logID, map[string]interface{}{
		"status":  models.DispatchSent,
		"sent_at": &now,
	})
}

func (s *LogService) MarkFailed(ctx context.Context, logID uuid.UUID, message string) error {
	return s.transition(ctx, logID, map[string]interface{}{
		"status":        models.DispatchFailed,
		"error_message": message,
	})
}

func (s *LogService) MarkCancelled(ctx context.Context, logID uuid.UUID, reason string) error {
	return s.transition(ctx, logID, map[string]interface{}{
		"status":        models.DispatchCancelled,
		"error_message": reason,
	})
}

// transition applies the single allowed status change. The pending guard
// keeps a cancelled log from later flipping to sent if a fire races the
// cancellation.
func (s *LogService) transition(ctx context.Context, logID uuid.UUID, updates map[string]interface{}) error {
	result := s.container.DB.WithContext(ctx).
		Model(&models.AutomationLog{}).
		Where("id = ? AND status = ?", logID, models.DispatchPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Already transitioned; nothing to do.
		return nil
	}

	var entry models.AutomationLog
	if err := s.container.DB.WithContext(ctx).First(&entry, "id = ?", logID).Error; err == nil {
		s.broadcast(entry.WorkspaceID, "log.updated", &entry)
	}
	return nil
}

func (s *LogService) broadcast(workspaceID uuid.UUID, msgType string, entry *models.AutomationLog) {
	if s.container.Hub != nil {
		s.container.Hub.BroadcastLog(workspaceID.String(), msgType, entry)
	}
}
