package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/engageflow/backend/internal/engine/limiter"
	"github.com/engageflow/backend/internal/models"
)

// Matcher evaluates inbound events against a workspace's rules and selects
// the single rule allowed to answer, claiming its daily budget atomically.
type Matcher struct {
	limiter limiter.Limiter
}

func NewMatcher(l limiter.Limiter) *Matcher {
	return &Matcher{limiter: l}
}

// Match returns the best eligible rule for the event, or nil when nothing
// matches. Rules passed in are expected to belong to the event's workspace;
// everything else (type, liveness, filters, trigger test, rate limit) is
// checked here. When the best candidate's daily budget is exhausted the
// matcher degrades to the next candidate instead of dropping the event.
func (m *Matcher) Match(ctx context.Context, event *models.EngagementEvent, rules []models.AutomationRule) (*models.AutomationRule, error) {
	candidates := make([]*models.AutomationRule, 0, len(rules))

	for i := range rules {
		rule := &rules[i]
		if rule.Type != event.RuleType() {
			continue
		}
		if !IsLive(rule, event.ReceivedAt) {
			continue
		}
		if event.AuthorFollowerCount < rule.Conditions.MinFollowers {
			continue
		}
		// Exclusion wins even over contextual mode.
		if containsAnyFold(event.Text, rule.Conditions.ExcludeKeywords) {
			continue
		}
		if !triggerMatches(rule, event) {
			continue
		}
		candidates = append(candidates, rule)
	}

	sortCandidates(candidates, event)

	for _, rule := range candidates {
		key := RateKey(rule, event.ReceivedAt)
		ok, err := m.limiter.TryConsume(ctx, key, rule.EffectiveDailyLimit())
		if err != nil {
			return nil, err
		}
		if ok {
			return rule, nil
		}
		// Budget exhausted: fall through to the next candidate.
	}

	return nil, nil
}

// RateKey builds the per-rule, per-local-day counter key. The day is taken
// in the rule's schedule timezone, UTC when none is set.
func RateKey(rule *models.AutomationRule, at time.Time) string {
	return rule.ID.String() + ":" + rule.LocalDay(at)
}

func triggerMatches(rule *models.AutomationRule, event *models.EngagementEvent) bool {
	// Follow events have no text to match; they fire rules listening for
	// new followers, plus contextual rules which match unconditionally.
	if event.Type == models.EventFollow {
		return rule.Triggers.NewFollowers || rule.Triggers.AIMode == models.AIModeContextual
	}

	if rule.Triggers.AIMode == models.AIModeContextual {
		return true
	}

	if rule.Triggers.Mentions && event.Mentioned {
		return true
	}
	if containsAnyFold(event.Text, rule.Triggers.Keywords) {
		return true
	}
	return containsAnyFold(event.Text, rule.Triggers.Hashtags)
}

// sortCandidates orders passing rules best-first: trigger-source
// specificity, then most recently updated, then lowest ID for determinism.
func sortCandidates(candidates []*models.AutomationRule, event *models.EngagementEvent) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := specificity(candidates[i], event), specificity(candidates[j], event)
		if si != sj {
			return si > sj
		}
		if !candidates[i].UpdatedAt.Equal(candidates[j].UpdatedAt) {
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
}

// specificity ranks rules whose trigger source names the event's origin
// above generic rules, so e.g. a new-followers rule beats a catch-all
// contextual DM rule for follow events.
func specificity(rule *models.AutomationRule, event *models.EngagementEvent) int {
	switch event.Type {
	case models.EventFollow:
		if rule.Triggers.NewFollowers {
			return 1
		}
	case models.EventComment:
		if rule.Triggers.PostInteraction {
			return 1
		}
		if rule.Triggers.Mentions && event.Mentioned {
			return 1
		}
	}
	return 0
}

func containsAnyFold(text string, subs []string) bool {
	if len(subs) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, s := range subs {
		if s == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
