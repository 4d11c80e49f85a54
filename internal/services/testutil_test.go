package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/engageflow/backend/internal/ai"
	"github.com/engageflow/backend/internal/config"
	"github.com/engageflow/backend/internal/dispatch"
	"github.com/engageflow/backend/internal/models"
)

type stubSender struct {
	mu       sync.Mutex
	comments []string
	dms      []string
	err      error
}

func (s *stubSender) SendComment(_ context.Context, postID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.comments = append(s.comments, text)
	return nil
}

func (s *stubSender) SendDirectMessage(_ context.Context, userID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.dms = append(s.dms, text)
	return nil
}

func (s *stubSender) sent() (comments, dms []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.comments...), append([]string(nil), s.dms...)
}

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate(_ context.Context, _ ai.GenerateRequest) (string, error) {
	return g.text, g.err
}

// newTestContainer wires a full container against an in-memory sqlite
// database, a stub platform client, and a stub AI generator.
func newTestContainer(t *testing.T, sender *stubSender, gen *stubGenerator) *Container {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.AutomationRule{}, &models.AutomationLog{}))

	if sender == nil {
		sender = &stubSender{}
	}
	if gen == nil {
		gen = &stubGenerator{text: "generated reply"}
	}

	cfg := &config.Config{
		EventWorkers:     2,
		DispatchWorkers:  2,
		CounterRetention: 2,
	}
	return NewContainer(cfg, db, nil, nil, sender, gen)
}

func keywordRuleRequest() *SaveRuleRequest {
	return &SaveRuleRequest{
		Name: "price question",
		Type: models.RuleTypeComment,
		Triggers: models.RuleTriggers{
			AIMode:   models.AIModeKeyword,
			Keywords: []string{"price"},
		},
		Responses: []string{"Check your DMs!"},
	}
}

func commentEvent(workspaceID uuid.UUID, text string) *models.EngagementEvent {
	return &models.EngagementEvent{
		WorkspaceID:         workspaceID,
		Type:                models.EventComment,
		SourcePostID:        "post-1",
		AuthorID:            "author-1",
		AuthorUsername:      "someone",
		AuthorFollowerCount: 100,
		Text:                text,
		ReceivedAt:          time.Now(),
	}
}

func scheduledAction(rule *models.AutomationRule, logID uuid.UUID, fireAt time.Time) *dispatch.Action {
	return &dispatch.Action{
		LogID:         logID,
		RuleID:        rule.ID,
		WorkspaceID:   rule.WorkspaceID,
		CorrelationID: uuid.New(),
		Kind:          dispatch.KindCommentReply,
		PostID:        "post-1",
		TargetUserID:  "author-1",
		Message:       "queued",
		FireAt:        fireAt,
	}
}

func intPtr(v int) *int { return &v }
