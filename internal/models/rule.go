package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleType string

const (
	RuleTypeComment RuleType = "comment"
	RuleTypeDM      RuleType = "dm"
)

type AIMode string

const (
	AIModeContextual AIMode = "contextual"
	AIModeKeyword    AIMode = "keyword"
)

type Personality string

const (
	PersonalityFriendly     Personality = "friendly"
	PersonalityProfessional Personality = "professional"
	PersonalityWitty        Personality = "witty"
	PersonalitySupportive   Personality = "supportive"
	PersonalityEnthusiastic Personality = "enthusiastic"
	PersonalityCasual       Personality = "casual"
)

type ResponseLength string

const (
	ResponseLengthShort  ResponseLength = "short"
	ResponseLengthMedium ResponseLength = "medium"
	ResponseLengthLong   ResponseLength = "long"
)

type Language string

const (
	LanguageAuto     Language = "auto"
	LanguageEnglish  Language = "english"
	LanguageHindi    Language = "hindi"
	LanguageHinglish Language = "hinglish"
)

const DefaultDailyLimit = 50

// RuleTriggers describes what kinds of inbound activity fire a rule.
// Keyword and contextual matching are mutually exclusive via AIMode;
// the boolean sources are compatible with either.
type RuleTriggers struct {
	AIMode          AIMode   `json:"ai_mode"`
	Keywords        []string `json:"keywords,omitempty"`
	Hashtags        []string `json:"hashtags,omitempty"`
	Mentions        bool     `json:"mentions"`
	NewFollowers    bool     `json:"new_followers"`
	PostInteraction bool     `json:"post_interaction"`
}

type AIConfig struct {
	Personality    Personality    `json:"personality"`
	ResponseLength ResponseLength `json:"response_length"`
	DailyLimit     int            `json:"daily_limit"`
	ResponseDelay  int            `json:"response_delay"` // minutes
	Language       Language       `json:"language"`
	ContextualMode bool           `json:"contextual_mode"`
}

type RuleConditions struct {
	// MaxPerDay is a legacy alias of AIConfig.DailyLimit kept for rules
	// authored before the AI config existed. When both are set the lower
	// value wins.
	MaxPerDay       int      `json:"max_per_day,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
	MinFollowers    int      `json:"min_followers"`
}

// ActiveTime restricts a rule to a daily window in the workspace timezone.
// A window whose end is before its start wraps past midnight.
type ActiveTime struct {
	Enabled    bool     `json:"enabled"`
	StartTime  string   `json:"start_time,omitempty"` // "HH:MM"
	EndTime    string   `json:"end_time,omitempty"`   // "HH:MM"
	Timezone   string   `json:"timezone,omitempty"`   // IANA name
	ActiveDays []string `json:"active_days,omitempty"`
}

type RuleDuration struct {
	StartDate    *time.Time `json:"start_date,omitempty"`
	DurationDays int        `json:"duration_days,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	AutoExpire   bool       `json:"auto_expire"`
}

type AutomationRule struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string    `gorm:"size:200" json:"name"`
	Type        RuleType  `gorm:"size:20;not null;index" json:"type"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`

	Triggers   RuleTriggers   `gorm:"serializer:json" json:"triggers"`
	Responses  []string       `gorm:"serializer:json" json:"responses"`
	AIConfig   AIConfig       `gorm:"serializer:json" json:"ai_config"`
	Conditions RuleConditions `gorm:"serializer:json" json:"conditions"`
	ActiveTime ActiveTime     `gorm:"serializer:json" json:"active_time"`
	Duration   RuleDuration   `gorm:"serializer:json" json:"duration"`

	// DMMessage enables the reply-then-DM flow on comment rules: after the
	// public comment reply is sent, a direct message with this text is
	// scheduled as a second, independently cancellable step.
	DMMessage string `gorm:"type:text" json:"dm_message,omitempty"`

	// LastResponseIndex is the rotation cursor for the canned response
	// list. -1 means no response has been used yet.
	LastResponseIndex int `gorm:"default:-1" json:"last_response_index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// EffectiveDailyLimit resolves the daily_limit/max_per_day alias pair once
// so the rest of the engine never branches on which field is present.
func (r *AutomationRule) EffectiveDailyLimit() int {
	limit := r.AIConfig.DailyLimit
	legacy := r.Conditions.MaxPerDay

	switch {
	case limit > 0 && legacy > 0:
		if legacy < limit {
			return legacy
		}
		return limit
	case limit > 0:
		return limit
	case legacy > 0:
		return legacy
	default:
		return DefaultDailyLimit
	}
}

// Location returns the rule's schedule timezone, falling back to UTC when
// none is configured or the name is unknown.
func (r *AutomationRule) Location() *time.Location {
	if r.ActiveTime.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.ActiveTime.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDay returns the rule-local calendar date for the given instant,
// used to key daily rate-limit counters.
func (r *AutomationRule) LocalDay(t time.Time) string {
	return t.In(r.Location()).Format("2006-01-02")
}

// ActiveOnWeekday reports whether the rule's schedule includes the given
// weekday. An empty ActiveDays list means every day.
func (a *ActiveTime) ActiveOnWeekday(day time.Weekday) bool {
	if len(a.ActiveDays) == 0 {
		return true
	}
	name := strings.ToLower(day.String())
	for _, d := range a.ActiveDays {
		if strings.ToLower(d) == name {
			return true
		}
	}
	return false
}
