package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/engageflow/backend/internal/models"
)

func scheduledRule(at models.ActiveTime, d models.RuleDuration) *models.AutomationRule {
	return &models.AutomationRule{
		ID:         uuid.New(),
		Type:       models.RuleTypeComment,
		IsActive:   true,
		ActiveTime: at,
		Duration:   d,
	}
}

func TestIsLiveInactiveRule(t *testing.T) {
	rule := scheduledRule(models.ActiveTime{}, models.RuleDuration{})
	rule.IsActive = false
	assert.False(t, IsLive(rule, time.Now()))
}

func TestIsLiveActiveWindow(t *testing.T) {
	tests := []struct {
		name string
		at   models.ActiveTime
		now  time.Time
		want bool
	}{
		{
			name: "disabled schedule always live",
			at:   models.ActiveTime{Enabled: false},
			now:  time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "inside plain window",
			at:   models.ActiveTime{Enabled: true, StartTime: "09:00", EndTime: "17:00"},
			now:  time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "outside plain window",
			at:   models.ActiveTime{Enabled: true, StartTime: "09:00", EndTime: "17:00"},
			now:  time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "window end is exclusive",
			at:   models.ActiveTime{Enabled: true, StartTime: "09:00", EndTime: "17:00"},
			now:  time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "window start is inclusive",
			at:   models.ActiveTime{Enabled: true, StartTime: "09:00", EndTime: "17:00"},
			now:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "wrapping window late evening",
			at:   models.ActiveTime{Enabled: true, StartTime: "22:00", EndTime: "06:00"},
			now:  time.Date(2026, 3, 2, 23, 15, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "wrapping window early morning",
			at:   models.ActiveTime{Enabled: true, StartTime: "22:00", EndTime: "06:00"},
			now:  time.Date(2026, 3, 2, 5, 59, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "wrapping window midday gap",
			at:   models.ActiveTime{Enabled: true, StartTime: "22:00", EndTime: "06:00"},
			now:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "equal start and end means all day",
			at:   models.ActiveTime{Enabled: true, StartTime: "08:00", EndTime: "08:00"},
			now:  time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			// 17:00 UTC is 22:30 in Asia/Kolkata (+05:30), inside 22:00-06:00.
			name: "window evaluated in rule timezone",
			at: models.ActiveTime{
				Enabled:   true,
				StartTime: "22:00",
				EndTime:   "06:00",
				Timezone:  "Asia/Kolkata",
			},
			now:  time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "same instant read as UTC misses the window",
			at: models.ActiveTime{
				Enabled:   true,
				StartTime: "22:00",
				EndTime:   "06:00",
			},
			now:  time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			// Saturday 20:00 UTC is already Sunday 01:30 in Asia/Kolkata.
			name: "weekday taken from rule timezone",
			at: models.ActiveTime{
				Enabled:    true,
				StartTime:  "00:00",
				EndTime:    "23:59",
				Timezone:   "Asia/Kolkata",
				ActiveDays: []string{"sunday"},
			},
			now:  time.Date(2026, 3, 7, 20, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "weekday not in active days",
			at: models.ActiveTime{
				Enabled:    true,
				StartTime:  "00:00",
				EndTime:    "23:59",
				ActiveDays: []string{"monday", "tuesday"},
			},
			now:  time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), // Saturday
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := scheduledRule(tt.at, models.RuleDuration{})
			assert.Equal(t, tt.want, IsLive(rule, tt.now))
		})
	}
}

func TestIsLiveDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		d    models.RuleDuration
		now  time.Time
		want bool
	}{
		{
			name: "auto expire off ignores dates",
			d:    models.RuleDuration{StartDate: &start, EndDate: &end, AutoExpire: false},
			now:  end.AddDate(0, 1, 0),
			want: true,
		},
		{
			name: "before start date",
			d:    models.RuleDuration{StartDate: &start, EndDate: &end, AutoExpire: true},
			now:  start.Add(-time.Hour),
			want: false,
		},
		{
			name: "inside explicit window",
			d:    models.RuleDuration{StartDate: &start, EndDate: &end, AutoExpire: true},
			now:  start.AddDate(0, 0, 5),
			want: true,
		},
		{
			name: "after end date",
			d:    models.RuleDuration{StartDate: &start, EndDate: &end, AutoExpire: true},
			now:  end.Add(time.Hour),
			want: false,
		},
		{
			name: "duration days computes expiry",
			d:    models.RuleDuration{StartDate: &start, DurationDays: 7, AutoExpire: true},
			now:  start.AddDate(0, 0, 8),
			want: false,
		},
		{
			name: "within duration days",
			d:    models.RuleDuration{StartDate: &start, DurationDays: 7, AutoExpire: true},
			now:  start.AddDate(0, 0, 6),
			want: true,
		},
		{
			name: "end date wins over duration days",
			d:    models.RuleDuration{StartDate: &start, DurationDays: 30, EndDate: &end, AutoExpire: true},
			now:  end.Add(time.Hour),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := scheduledRule(models.ActiveTime{}, tt.d)
			assert.Equal(t, tt.want, IsLive(rule, tt.now))
		})
	}
}
