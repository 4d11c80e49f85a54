package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engageflow/backend/internal/logger"
	"github.com/engageflow/backend/internal/models"
	"github.com/engageflow/backend/internal/platform"
)

type Kind string

const (
	KindCommentReply  Kind = "comment_reply"
	KindDirectMessage Kind = "direct_message"
)

// Action is one scheduled send. Its life cycle is
// Scheduled -> Fired -> Sent|Failed, with Cancelled reachable only from
// Scheduled. A comment reply with FollowUpDM set chains a second action
// (the DM) sharing its correlation ID once the reply is sent.
type Action struct {
	ID            uuid.UUID
	LogID         uuid.UUID
	RuleID        uuid.UUID
	WorkspaceID   uuid.UUID
	CorrelationID uuid.UUID
	Kind          Kind

	PostID         string
	TargetUserID   string
	TargetUsername string
	Message        string

	FireAt     time.Time
	Delay      time.Duration // used for the chained DM step
	FollowUpDM string
}

// Recorder persists dispatch outcomes onto AutomationLog rows. The
// dispatcher never touches the database directly.
type Recorder interface {
	CreatePending(ctx context.Context, entry *models.AutomationLog) error
	MarkSent(ctx context.Context, logID uuid.UUID) error
	MarkFailed(ctx context.Context, logID uuid.UUID, message string) error
	MarkCancelled(ctx context.Context, logID uuid.UUID, reason string) error
}

type pendingAction struct {
	action *Action
	timer  *time.Timer
}

// Dispatcher fires scheduled actions after their delay on a bounded worker
// pool, and supports cancelling everything still Scheduled for a rule
// without touching actions already in flight.
type Dispatcher struct {
	sender   platform.Client
	recorder Recorder
	workers  int

	mu      sync.Mutex
	pending map[uuid.UUID]map[uuid.UUID]*pendingAction // rule ID -> action ID
	running bool

	fireCh chan *Action
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(sender platform.Client, recorder Recorder, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		sender:   sender,
		recorder: recorder,
		workers:  workers,
		pending:  make(map[uuid.UUID]map[uuid.UUID]*pendingAction),
		fireCh:   make(chan *Action, 256),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the send workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.sendLoop()
	}
	logger.Info().Int("workers", d.workers).Msg("Dispatcher started")
}

// Stop halts timers and workers. Actions still Scheduled keep their
// pending log rows; a restart may reconcile them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	for _, actions := range d.pending {
		for _, p := range actions {
			p.timer.Stop()
		}
	}
	d.pending = make(map[uuid.UUID]map[uuid.UUID]*pendingAction)
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
	logger.Info().Msg("Dispatcher stopped")
}

// Schedule registers an action to fire at its FireAt time. A FireAt in the
// past fires immediately.
func (d *Dispatcher) Schedule(a *Action) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	delay := time.Until(a.FireAt)
	if delay < 0 {
		delay = 0
	}

	d.mu.Lock()
	actions, ok := d.pending[a.RuleID]
	if !ok {
		actions = make(map[uuid.UUID]*pendingAction)
		d.pending[a.RuleID] = actions
	}
	p := &pendingAction{action: a}
	p.timer = time.AfterFunc(delay, func() { d.fire(a) })
	actions[a.ID] = p
	d.mu.Unlock()

	logger.Debug().
		Str("rule_id", a.RuleID.String()).
		Str("log_id", a.LogID.String()).
		Str("kind", string(a.Kind)).
		Dur("delay", delay).
		Msg("Dispatch scheduled")
}

// fire transitions the action from Scheduled to Fired. After this point
// cancellation no longer reaches it.
func (d *Dispatcher) fire(a *Action) {
	d.mu.Lock()
	actions, ok := d.pending[a.RuleID]
	if ok {
		if _, still := actions[a.ID]; !still {
			ok = false
		}
		delete(actions, a.ID)
		if len(actions) == 0 {
			delete(d.pending, a.RuleID)
		}
	}
	running := d.running
	d.mu.Unlock()

	if !ok || !running {
		return
	}

	select {
	case d.fireCh <- a:
	case <-d.stopCh:
	}
}

func (d *Dispatcher) sendLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case a := <-d.fireCh:
			d.send(a)
		}
	}
}

func (d *Dispatcher) send(a *Action) {
	ctx := context.Background()

	var err error
	switch a.Kind {
	case KindCommentReply:
		err = d.sender.SendComment(ctx, a.PostID, a.Message)
	default:
		err = d.sender.SendDirectMessage(ctx, a.TargetUserID, a.Message)
	}

	if err != nil {
		logger.Warn().
			Err(err).
			Str("rule_id", a.RuleID.String()).
			Str("log_id", a.LogID.String()).
			Msg("Dispatch failed")
		if recErr := d.recorder.MarkFailed(ctx, a.LogID, err.Error()); recErr != nil {
			logger.Error().Err(recErr).Str("log_id", a.LogID.String()).Msg("Failed to record dispatch failure")
		}
		return
	}

	if recErr := d.recorder.MarkSent(ctx, a.LogID); recErr != nil {
		logger.Error().Err(recErr).Str("log_id", a.LogID.String()).Msg("Failed to record dispatch success")
	}

	logger.Info().
		Str("rule_id", a.RuleID.String()).
		Str("log_id", a.LogID.String()).
		Str("kind", string(a.Kind)).
		Msg("Dispatch sent")

	if a.Kind == KindCommentReply && a.FollowUpDM != "" {
		d.scheduleFollowUp(ctx, a)
	}
}

// scheduleFollowUp chains the DM step of a reply-then-DM flow: a fresh
// pending log and a second Scheduled action under the same correlation ID,
// independently cancellable.
func (d *Dispatcher) scheduleFollowUp(ctx context.Context, a *Action) {
	entry := &models.AutomationLog{
		ID:             uuid.New(),
		RuleID:         a.RuleID,
		WorkspaceID:    a.WorkspaceID,
		Type:           models.RuleTypeDM,
		CorrelationID:  a.CorrelationID,
		TargetUserID:   a.TargetUserID,
		TargetUsername: a.TargetUsername,
		Message:        a.FollowUpDM,
		Status:         models.DispatchPending,
	}
	if err := d.recorder.CreatePending(ctx, entry); err != nil {
		logger.Error().Err(err).Str("rule_id", a.RuleID.String()).Msg("Failed to create follow-up DM log")
		return
	}

	d.Schedule(&Action{
		LogID:          entry.ID,
		RuleID:         a.RuleID,
		WorkspaceID:    a.WorkspaceID,
		CorrelationID:  a.CorrelationID,
		Kind:           KindDirectMessage,
		TargetUserID:   a.TargetUserID,
		TargetUsername: a.TargetUsername,
		Message:        a.FollowUpDM,
		FireAt:         time.Now().Add(a.Delay),
		Delay:          a.Delay,
	})
}

// CancelRule cancels every action still Scheduled for the rule and returns
// how many were cancelled. Actions already handed to a send worker are in
// flight and unaffected.
func (d *Dispatcher) CancelRule(ctx context.Context, ruleID uuid.UUID, reason string) int {
	d.mu.Lock()
	actions := d.pending[ruleID]
	delete(d.pending, ruleID)
	d.mu.Unlock()

	for _, p := range actions {
		p.timer.Stop()
		if err := d.recorder.MarkCancelled(ctx, p.action.LogID, reason); err != nil {
			logger.Error().Err(err).Str("log_id", p.action.LogID.String()).Msg("Failed to record cancellation")
		}
	}

	if len(actions) > 0 {
		logger.Info().
			Str("rule_id", ruleID.String()).
			Int("cancelled", len(actions)).
			Str("reason", reason).
			Msg("Pending dispatches cancelled")
	}
	return len(actions)
}

// PendingCount reports how many actions are still Scheduled for a rule.
func (d *Dispatcher) PendingCount(ruleID uuid.UUID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending[ruleID])
}

// PendingTotal reports how many actions are still Scheduled across all rules.
func (d *Dispatcher) PendingTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, actions := range d.pending {
		total += len(actions)
	}
	return total
}
