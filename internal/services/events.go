package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engageflow/backend/internal/dispatch"
	"github.com/engageflow/backend/internal/logger"
	"github.com/engageflow/backend/internal/models"
)

// EventService is the single ingress point for inbound engagement events:
// match against the workspace's rules, select a response, and hand the
// send to the delayed dispatcher. Failures during dispatch are recorded on
// the log row and never propagate back into event ingestion.
type EventService struct {
	container *Container

	events  chan *models.EngagementEvent
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewEventService(c *Container) *EventService {
	return &EventService{
		container: c,
		events:    make(chan *models.EngagementEvent, 512),
		stopCh:    make(chan struct{}),
	}
}

type DispatchOutcome struct {
	Matched     bool       `json:"matched"`
	Reason      string     `json:"reason,omitempty"`
	RuleID      *uuid.UUID `json:"rule_id,omitempty"`
	LogID       *uuid.UUID `json:"log_id,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// HandleEvent evaluates one event and schedules a dispatch when a rule
// matches. The daily budget is claimed here, at match time; a send that
// later fails still counts against it.
func (s *EventService) HandleEvent(ctx context.Context, event *models.EngagementEvent) (*DispatchOutcome, error) {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	rules, err := s.container.Rule.ListLive(event.WorkspaceID, event.RuleType())
	if err != nil {
		return nil, err
	}

	rule, err := s.container.Matcher.Match(ctx, event, rules)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return &DispatchOutcome{Matched: false, Reason: "no eligible rule"}, nil
	}

	correlationID := uuid.New()
	entry := &models.AutomationLog{
		ID:             uuid.New(),
		RuleID:         rule.ID,
		WorkspaceID:    event.WorkspaceID,
		Type:           rule.Type,
		CorrelationID:  correlationID,
		TargetUserID:   event.AuthorID,
		TargetUsername: event.AuthorUsername,
		Status:         models.DispatchPending,
	}

	// The budget is already claimed, so a generation failure becomes a
	// failed dispatch rather than an error to the caller.
	message, selErr := s.container.Selector.Select(ctx, rule, event)
	entry.Message = message

	if err := s.container.Log.CreatePending(ctx, entry); err != nil {
		return nil, err
	}

	if selErr != nil {
		if markErr := s.container.Log.MarkFailed(ctx, entry.ID, selErr.Error()); markErr != nil {
			logger.Error().Err(markErr).Str("log_id", entry.ID.String()).Msg("Failed to record generation failure")
		}
		return &DispatchOutcome{
			Matched: true,
			Reason:  "response generation failed",
			RuleID:  &rule.ID,
			LogID:   &entry.ID,
		}, nil
	}

	delay := time.Duration(rule.AIConfig.ResponseDelay) * time.Minute
	fireAt := event.ReceivedAt.Add(delay)

	action := &dispatch.Action{
		LogID:          entry.ID,
		RuleID:         rule.ID,
		WorkspaceID:    event.WorkspaceID,
		CorrelationID:  correlationID,
		TargetUserID:   event.AuthorID,
		TargetUsername: event.AuthorUsername,
		Message:        message,
		FireAt:         fireAt,
		Delay:          delay,
	}
	if rule.Type == models.RuleTypeComment {
		action.Kind = dispatch.KindCommentReply
		action.PostID = event.SourcePostID
		action.FollowUpDM = rule.DMMessage
	} else {
		action.Kind = dispatch.KindDirectMessage
	}

	s.container.Dispatcher.Schedule(action)

	return &DispatchOutcome{
		Matched:     true,
		RuleID:      &rule.ID,
		LogID:       &entry.ID,
		ScheduledAt: &fireAt,
	}, nil
}

// Submit queues an event for the worker pool, dropping it when the buffer
// is full (the platform will redeliver webhooks).
func (s *EventService) Submit(event *models.EngagementEvent) bool {
	select {
	case s.events <- event:
		return true
	default:
		logger.Warn().Str("workspace_id", event.WorkspaceID.String()).Msg("Event buffer full, dropping event")
		return false
	}
}

// Start launches the event-processing workers that drain Submit's queue.
func (s *EventService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	workers := s.container.Config.EventWorkers
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.processLoop()
	}
	logger.Info().Int("workers", workers).Msg("Event workers started")
}

func (s *EventService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *EventService) processLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case event := <-s.events:
			if _, err := s.HandleEvent(context.Background(), event); err != nil {
				logger.Error().
					Err(err).
					Str("workspace_id", event.WorkspaceID.String()).
					Str("type", string(event.Type)).
					Msg("Event processing failed")
			}
		}
	}
}
