package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/engageflow/backend/internal/engine"
	"github.com/engageflow/backend/internal/logger"
	"github.com/engageflow/backend/internal/models"
)

// RuleService owns AutomationRule CRUD and enforces the structural
// invariants the engine relies on. Rules are soft-deleted so logs keep a
// valid reference.
type RuleService struct {
	container *Container
}

func NewRuleService(c *Container) *RuleService {
	return &RuleService{container: c}
}

type SaveRuleRequest struct {
	Name       string                `json:"name"`
	Type       models.RuleType       `json:"type"`
	IsActive   *bool                 `json:"is_active"`
	Triggers   models.RuleTriggers   `json:"triggers"`
	Responses  []string              `json:"responses"`
	AIConfig   AIConfigRequest       `json:"ai_config"`
	Conditions models.RuleConditions `json:"conditions"`
	ActiveTime models.ActiveTime     `json:"active_time"`
	Duration   models.RuleDuration   `json:"duration"`
	DMMessage  string                `json:"dm_message"`
}

// AIConfigRequest uses pointers for the numeric knobs so an explicit zero
// (fire immediately) is distinguishable from an absent field (use the
// default).
type AIConfigRequest struct {
	Personality    models.Personality    `json:"personality"`
	ResponseLength models.ResponseLength `json:"response_length"`
	DailyLimit     *int                  `json:"daily_limit"`
	ResponseDelay  *int                  `json:"response_delay"`
	Language       models.Language       `json:"language"`
	ContextualMode bool                  `json:"contextual_mode"`
}

func (s *RuleService) List(workspaceID uuid.UUID) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := s.container.DB.
		Where("workspace_id = ?", workspaceID).
		Order("updated_at DESC").
		Find(&rules).Error
	return rules, err
}

func (s *RuleService) Get(workspaceID, ruleID uuid.UUID) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := s.container.DB.
		Where("id = ? AND workspace_id = ?", ruleID, workspaceID).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *RuleService) Create(workspaceID uuid.UUID, req *SaveRuleRequest) (*models.AutomationRule, error) {
	if err := validateRule(req); err != nil {
		return nil, err
	}

	rule := &models.AutomationRule{
		ID:                uuid.New(),
		WorkspaceID:       workspaceID,
		Name:              req.Name,
		Type:              req.Type,
		IsActive:          true,
		Triggers:          req.Triggers,
		Responses:         req.Responses,
		AIConfig:          applyAIDefaults(req.AIConfig),
		Conditions:        req.Conditions,
		ActiveTime:        req.ActiveTime,
		Duration:          req.Duration,
		DMMessage:         req.DMMessage,
		LastResponseIndex: -1,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := s.container.DB.Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *RuleService) Update(ctx context.Context, workspaceID, ruleID uuid.UUID, req *SaveRuleRequest) (*models.AutomationRule, error) {
	rule, err := s.Get(workspaceID, ruleID)
	if err != nil {
		return nil, err
	}

	if err := validateRule(req); err != nil {
		return nil, err
	}

	responsesChanged := !equalStrings(rule.Responses, req.Responses)

	rule.Name = req.Name
	rule.Type = req.Type
	rule.Triggers = req.Triggers
	rule.Responses = req.Responses
	rule.AIConfig = applyAIDefaults(req.AIConfig)
	rule.Conditions = req.Conditions
	rule.ActiveTime = req.ActiveTime
	rule.Duration = req.Duration
	rule.DMMessage = req.DMMessage
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if responsesChanged {
		rule.LastResponseIndex = -1
	}

	if err := s.container.DB.Save(rule).Error; err != nil {
		return nil, err
	}

	if responsesChanged {
		s.container.Selector.Forget(rule.ID)
	}
	if !rule.IsActive {
		s.container.Dispatcher.CancelRule(ctx, rule.ID, "rule deactivated")
	}

	return rule, nil
}

// Deactivate flips a rule inactive and cancels its pending dispatches,
// used by both the API and the auto-expire sweep.
func (s *RuleService) Deactivate(ctx context.Context, workspaceID, ruleID uuid.UUID) error {
	result := s.container.DB.Model(&models.AutomationRule{}).
		Where("id = ? AND workspace_id = ?", ruleID, workspaceID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	s.container.Dispatcher.CancelRule(ctx, ruleID, "rule deactivated")
	return nil
}

// Delete soft-deletes the rule and cancels everything still scheduled.
func (s *RuleService) Delete(ctx context.Context, workspaceID, ruleID uuid.UUID) error {
	rule, err := s.Get(workspaceID, ruleID)
	if err != nil {
		return err
	}

	if err := s.container.DB.Delete(rule).Error; err != nil {
		return err
	}

	s.container.Dispatcher.CancelRule(ctx, ruleID, "rule deleted")
	s.container.Selector.Forget(ruleID)
	return nil
}

// ListLive returns the active rules of a workspace that can answer the
// given rule type. Liveness beyond is_active (duration, active hours) is
// the matcher's concern.
func (s *RuleService) ListLive(workspaceID uuid.UUID, ruleType models.RuleType) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := s.container.DB.
		Where("workspace_id = ? AND type = ? AND is_active = ?", workspaceID, ruleType, true).
		Find(&rules).Error
	return rules, err
}

// SaveRotation persists the response rotation cursor. Best effort: the
// in-memory cursor is authoritative, the column only seeds restarts.
func (s *RuleService) SaveRotation(ruleID uuid.UUID, index int) {
	err := s.container.DB.Model(&models.AutomationRule{}).
		Where("id = ?", ruleID).
		UpdateColumn("last_response_index", index).Error
	if err != nil {
		logger.Warn().Err(err).Str("rule_id", ruleID.String()).Msg("Failed to persist rotation cursor")
	}
}

// ExpireSweep deactivates rules whose auto-expire window elapsed,
// cancelling their pending dispatches. Returns the number expired.
func (s *RuleService) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	var rules []models.AutomationRule
	err := s.container.DB.
		Where("is_active = ?", true).
		Find(&rules).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range rules {
		rule := &rules[i]
		if !rule.Duration.AutoExpire || !durationElapsed(rule, now) {
			continue
		}
		if err := s.container.DB.Model(rule).Update("is_active", false).Error; err != nil {
			logger.Error().Err(err).Str("rule_id", rule.ID.String()).Msg("Failed to expire rule")
			continue
		}
		s.container.Dispatcher.CancelRule(ctx, rule.ID, "rule expired")
		expired++
	}
	return expired, nil
}

func durationElapsed(rule *models.AutomationRule, now time.Time) bool {
	d := rule.Duration
	switch {
	case d.EndDate != nil:
		return now.After(*d.EndDate)
	case d.StartDate != nil && d.DurationDays > 0:
		return now.After(d.StartDate.AddDate(0, 0, d.DurationDays))
	default:
		return false
	}
}

func validateRule(req *SaveRuleRequest) error {
	if req.Type != models.RuleTypeComment && req.Type != models.RuleTypeDM {
		return fmt.Errorf("%w: unknown rule type %q", engine.ErrValidation, req.Type)
	}

	mode := req.Triggers.AIMode
	if mode != models.AIModeContextual && mode != models.AIModeKeyword {
		return fmt.Errorf("%w: unknown ai mode %q", engine.ErrValidation, mode)
	}
	if req.AIConfig.ContextualMode != (mode == models.AIModeContextual) {
		return fmt.Errorf("%w: ai_config.contextual_mode disagrees with triggers.ai_mode", engine.ErrValidation)
	}

	if mode == models.AIModeKeyword {
		if len(req.Triggers.Keywords) == 0 {
			return fmt.Errorf("%w: keyword mode requires at least one keyword", engine.ErrValidation)
		}
		if len(req.Responses) == 0 {
			return fmt.Errorf("%w: keyword mode requires at least one response", engine.ErrValidation)
		}
	}

	if req.AIConfig.DailyLimit != nil && *req.AIConfig.DailyLimit <= 0 {
		return fmt.Errorf("%w: daily_limit must be positive", engine.ErrValidation)
	}
	if req.AIConfig.ResponseDelay != nil && *req.AIConfig.ResponseDelay < 0 {
		return fmt.Errorf("%w: response_delay must not be negative", engine.ErrValidation)
	}
	if req.Conditions.MinFollowers < 0 {
		return fmt.Errorf("%w: min_followers must not be negative", engine.ErrValidation)
	}
	if req.Conditions.MaxPerDay < 0 {
		return fmt.Errorf("%w: max_per_day must not be negative", engine.ErrValidation)
	}

	if req.ActiveTime.Enabled {
		if !validClock(req.ActiveTime.StartTime) || !validClock(req.ActiveTime.EndTime) {
			return fmt.Errorf("%w: active_time requires start_time and end_time as HH:MM", engine.ErrValidation)
		}
		if req.ActiveTime.Timezone != "" {
			if _, err := time.LoadLocation(req.ActiveTime.Timezone); err != nil {
				return fmt.Errorf("%w: unknown timezone %q", engine.ErrValidation, req.ActiveTime.Timezone)
			}
		}
	}

	if req.Duration.AutoExpire {
		if req.Duration.EndDate == nil && (req.Duration.StartDate == nil || req.Duration.DurationDays <= 0) {
			return fmt.Errorf("%w: auto_expire requires an end_date or a start_date with duration_days", engine.ErrValidation)
		}
	}

	return nil
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func applyAIDefaults(req AIConfigRequest) models.AIConfig {
	cfg := models.AIConfig{
		Personality:    req.Personality,
		ResponseLength: req.ResponseLength,
		DailyLimit:     models.DefaultDailyLimit,
		ResponseDelay:  2,
		Language:       req.Language,
		ContextualMode: req.ContextualMode,
	}
	if req.DailyLimit != nil {
		cfg.DailyLimit = *req.DailyLimit
	}
	if req.ResponseDelay != nil {
		cfg.ResponseDelay = *req.ResponseDelay
	}
	if cfg.Language == "" {
		cfg.Language = models.LanguageAuto
	}
	if cfg.ResponseLength == "" {
		cfg.ResponseLength = models.ResponseLengthMedium
	}
	if cfg.Personality == "" {
		cfg.Personality = models.PersonalityFriendly
	}
	return cfg
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
