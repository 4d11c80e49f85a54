package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/engageflow/backend/internal/engine"
	"github.com/engageflow/backend/internal/models"
)

func TestCreateRuleDefaults(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	workspaceID := uuid.New()

	rule, err := c.Rule.Create(workspaceID, keywordRuleRequest())
	require.NoError(t, err)

	assert.True(t, rule.IsActive)
	assert.Equal(t, models.DefaultDailyLimit, rule.AIConfig.DailyLimit)
	assert.Equal(t, 2, rule.AIConfig.ResponseDelay)
	assert.Equal(t, models.LanguageAuto, rule.AIConfig.Language)
	assert.Equal(t, models.ResponseLengthMedium, rule.AIConfig.ResponseLength)
	assert.Equal(t, models.PersonalityFriendly, rule.AIConfig.Personality)
	assert.Equal(t, -1, rule.LastResponseIndex)
}

func TestCreateRuleExplicitZeroDelay(t *testing.T) {
	c := newTestContainer(t, nil, nil)

	req := keywordRuleRequest()
	req.AIConfig.ResponseDelay = intPtr(0)

	rule, err := c.Rule.Create(uuid.New(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, rule.AIConfig.ResponseDelay, "an explicit zero delay means fire immediately")
}

func TestCreateRuleValidation(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	workspaceID := uuid.New()

	tests := []struct {
		name   string
		mutate func(*SaveRuleRequest)
	}{
		{"unknown type", func(r *SaveRuleRequest) { r.Type = "story" }},
		{"unknown ai mode", func(r *SaveRuleRequest) { r.Triggers.AIMode = "psychic" }},
		{"contextual_mode flag disagrees", func(r *SaveRuleRequest) { r.AIConfig.ContextualMode = true }},
		{"keyword mode without keywords", func(r *SaveRuleRequest) { r.Triggers.Keywords = nil }},
		{"keyword mode without responses", func(r *SaveRuleRequest) { r.Responses = nil }},
		{"zero daily limit", func(r *SaveRuleRequest) { r.AIConfig.DailyLimit = intPtr(0) }},
		{"negative response delay", func(r *SaveRuleRequest) { r.AIConfig.ResponseDelay = intPtr(-1) }},
		{"negative min followers", func(r *SaveRuleRequest) { r.Conditions.MinFollowers = -5 }},
		{"negative max_per_day", func(r *SaveRuleRequest) { r.Conditions.MaxPerDay = -1 }},
		{"bad clock", func(r *SaveRuleRequest) {
			r.ActiveTime = models.ActiveTime{Enabled: true, StartTime: "25:00", EndTime: "17:00"}
		}},
		{"unknown timezone", func(r *SaveRuleRequest) {
			r.ActiveTime = models.ActiveTime{
				Enabled: true, StartTime: "09:00", EndTime: "17:00", Timezone: "Mars/Olympus",
			}
		}},
		{"auto expire without bounds", func(r *SaveRuleRequest) {
			r.Duration = models.RuleDuration{AutoExpire: true}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := keywordRuleRequest()
			tt.mutate(req)
			_, err := c.Rule.Create(workspaceID, req)
			assert.ErrorIs(t, err, engine.ErrValidation)
		})
	}
}

func TestCreateRuleZeroMaxPerDayMeansAbsent(t *testing.T) {
	c := newTestContainer(t, nil, nil)

	req := keywordRuleRequest()
	req.Conditions.MaxPerDay = 0

	rule, err := c.Rule.Create(uuid.New(), req)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDailyLimit, rule.EffectiveDailyLimit())

	req = keywordRuleRequest()
	req.Conditions.MaxPerDay = -1
	_, err = c.Rule.Create(uuid.New(), req)
	require.ErrorIs(t, err, engine.ErrValidation)
	assert.ErrorContains(t, err, "must not be negative")
}

func TestUpdateRuleResetsRotationWhenResponsesChange(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	workspaceID := uuid.New()

	rule, err := c.Rule.Create(workspaceID, keywordRuleRequest())
	require.NoError(t, err)

	c.Rule.SaveRotation(rule.ID, 0)

	req := keywordRuleRequest()
	req.Responses = []string{"New answer A", "New answer B"}
	updated, err := c.Rule.Update(context.Background(), workspaceID, rule.ID, req)
	require.NoError(t, err)
	assert.Equal(t, -1, updated.LastResponseIndex)

	// Unchanged responses keep the cursor.
	c.Rule.SaveRotation(rule.ID, 1)
	updated, err = c.Rule.Update(context.Background(), workspaceID, rule.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.LastResponseIndex)
}

func TestDeactivateCancelsPendingDispatches(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	workspaceID := uuid.New()

	rule, err := c.Rule.Create(workspaceID, keywordRuleRequest())
	require.NoError(t, err)

	entry := &models.AutomationLog{
		RuleID:        rule.ID,
		WorkspaceID:   workspaceID,
		Type:          rule.Type,
		CorrelationID: uuid.New(),
		Message:       "queued",
	}
	require.NoError(t, c.Log.CreatePending(context.Background(), entry))

	c.Dispatcher.Schedule(scheduledAction(rule, entry.ID, time.Now().Add(time.Hour)))
	require.Equal(t, 1, c.Dispatcher.PendingCount(rule.ID))

	require.NoError(t, c.Rule.Deactivate(context.Background(), workspaceID, rule.ID))

	got, err := c.Rule.Get(workspaceID, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 0, c.Dispatcher.PendingCount(rule.ID))

	logs, err := c.Log.List(workspaceID, ListLogsFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.DispatchCancelled, logs[0].Status)
	assert.Equal(t, "rule deactivated", logs[0].ErrorMessage)
}

func TestDeleteRuleIsSoft(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	workspaceID := uuid.New()

	rule, err := c.Rule.Create(workspaceID, keywordRuleRequest())
	require.NoError(t, err)

	entry := &models.AutomationLog{
		RuleID:        rule.ID,
		WorkspaceID:   workspaceID,
		Type:          rule.Type,
		CorrelationID: uuid.New(),
	}
	require.NoError(t, c.Log.CreatePending(context.Background(), entry))

	require.NoError(t, c.Rule.Delete(context.Background(), workspaceID, rule.ID))

	_, err = c.Rule.Get(workspaceID, rule.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The log row survives the rule.
	logs, err := c.Log.List(workspaceID, ListLogsFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestWorkspaceIsolation(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	wsA, wsB := uuid.New(), uuid.New()

	rule, err := c.Rule.Create(wsA, keywordRuleRequest())
	require.NoError(t, err)

	_, err = c.Rule.Get(wsB, rule.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = c.Rule.Deactivate(context.Background(), wsB, rule.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	rules, err := c.Rule.List(wsB)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestExpireSweep(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	workspaceID := uuid.New()

	start := time.Now().AddDate(0, 0, -10)
	end := time.Now().AddDate(0, 0, -1)

	expiredReq := keywordRuleRequest()
	expiredReq.Duration = models.RuleDuration{StartDate: &start, EndDate: &end, AutoExpire: true}
	expired, err := c.Rule.Create(workspaceID, expiredReq)
	require.NoError(t, err)

	// Same dates but auto-expire off: the sweep must leave it alone.
	openReq := keywordRuleRequest()
	openReq.Duration = models.RuleDuration{StartDate: &start, EndDate: &end, AutoExpire: false}
	open, err := c.Rule.Create(workspaceID, openReq)
	require.NoError(t, err)

	count, err := c.Rule.ExpireSweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := c.Rule.Get(workspaceID, expired.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = c.Rule.Get(workspaceID, open.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	// Sweep is idempotent.
	count, err = c.Rule.ExpireSweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSaveRotationPersists(t *testing.T) {
	c := newTestContainer(t, nil, nil)
	workspaceID := uuid.New()

	rule, err := c.Rule.Create(workspaceID, keywordRuleRequest())
	require.NoError(t, err)

	c.Rule.SaveRotation(rule.ID, 2)

	got, err := c.Rule.Get(workspaceID, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LastResponseIndex)
}
