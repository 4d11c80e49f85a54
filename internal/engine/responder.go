package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/engageflow/backend/internal/ai"
	"github.com/engageflow/backend/internal/models"
)

// RotationSink receives best-effort persistence of rotation cursors so a
// restarted engine resumes roughly where the cycle left off.
type RotationSink interface {
	SaveRotation(ruleID uuid.UUID, index int)
}

// Selector produces the outbound message for a matched rule: round-robin
// over the canned response list in keyword mode, or a call to the AI
// collaborator in contextual mode. The rotation cursor advances
// synchronously at selection time, before the possibly slow send, so
// concurrent dispatches from one rule never repeat a slot.
type Selector struct {
	gen  ai.Generator
	sink RotationSink

	mu      sync.Mutex
	cursors map[uuid.UUID]int
}

func NewSelector(gen ai.Generator, sink RotationSink) *Selector {
	return &Selector{
		gen:     gen,
		sink:    sink,
		cursors: make(map[uuid.UUID]int),
	}
}

func (s *Selector) Select(ctx context.Context, rule *models.AutomationRule, event *models.EngagementEvent) (string, error) {
	if rule.Triggers.AIMode == models.AIModeKeyword {
		if len(rule.Responses) == 0 {
			return "", fmt.Errorf("%w: keyword rule %s has no responses", ErrValidation, rule.ID)
		}
		idx := s.advance(rule)
		return rule.Responses[idx], nil
	}

	text, err := s.gen.Generate(ctx, ai.GenerateRequest{
		Personality: rule.AIConfig.Personality,
		Length:      rule.AIConfig.ResponseLength,
		Language:    rule.AIConfig.Language,
		SourceText:  event.Text,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseGeneration, err)
	}
	return text, nil
}

func (s *Selector) advance(rule *models.AutomationRule) int {
	s.mu.Lock()
	cur, ok := s.cursors[rule.ID]
	if !ok {
		// Seed from the persisted cursor; -1 means the cycle starts at
		// the first slot.
		cur = rule.LastResponseIndex
		if cur < -1 || cur >= len(rule.Responses) {
			cur = -1
		}
	}
	next := (cur + 1) % len(rule.Responses)
	s.cursors[rule.ID] = next
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.SaveRotation(rule.ID, next)
	}
	return next
}

// Forget drops the in-memory cursor for a rule, used when a rule is
// deleted or its response list rewritten.
func (s *Selector) Forget(ruleID uuid.UUID) {
	s.mu.Lock()
	delete(s.cursors, ruleID)
	s.mu.Unlock()
}
