package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/engageflow/backend/internal/models"
)

// StatsService backs the dashboard's automation overview.
type StatsService struct {
	container *Container
}

func NewStatsService(c *Container) *StatsService {
	return &StatsService{container: c}
}

type WorkspaceStats struct {
	TotalRules    int64 `json:"total_rules"`
	ActiveRules   int64 `json:"active_rules"`
	SentToday     int64 `json:"sent_today"`
	FailedToday   int64 `json:"failed_today"`
	PendingNow    int64 `json:"pending_now"`
	SentAllTime   int64 `json:"sent_all_time"`
	FailedAllTime int64 `json:"failed_all_time"`
}

func (s *StatsService) Workspace(workspaceID uuid.UUID) (*WorkspaceStats, error) {
	stats := &WorkspaceStats{}
	db := s.container.DB
	startOfDay := startOfLocalDay(time.Now())

	if err := db.Model(&models.AutomationRule{}).
		Where("workspace_id = ?", workspaceID).
		Count(&stats.TotalRules).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AutomationRule{}).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Count(&stats.ActiveRules).Error; err != nil {
		return nil, err
	}

	logCounts := []struct {
		status models.DispatchStatus
		since  *time.Time
		dest   *int64
	}{
		{models.DispatchSent, &startOfDay, &stats.SentToday},
		{models.DispatchFailed, &startOfDay, &stats.FailedToday},
		{models.DispatchPending, nil, &stats.PendingNow},
		{models.DispatchSent, nil, &stats.SentAllTime},
		{models.DispatchFailed, nil, &stats.FailedAllTime},
	}
	for _, lc := range logCounts {
		query := db.Model(&models.AutomationLog{}).
			Where("workspace_id = ? AND status = ?", workspaceID, lc.status)
		if lc.since != nil {
			query = query.Where("created_at >= ?", *lc.since)
		}
		if err := query.Count(lc.dest).Error; err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// startOfLocalDay buckets "today" on the local calendar day rather than
// the UTC one, matching how rule schedules read the clock.
func startOfLocalDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
