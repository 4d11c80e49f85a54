package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventComment EventType = "comment"
	EventDM      EventType = "dm"
	EventFollow  EventType = "follow"
)

// EngagementEvent is one inbound comment, direct message, or follow as
// delivered by the webhook/poller layer. Events are evaluated and dropped;
// the engine never persists them.
type EngagementEvent struct {
	WorkspaceID         uuid.UUID `json:"workspace_id"`
	Type                EventType `json:"type"`
	SourcePostID        string    `json:"source_post_id,omitempty"`
	AuthorID            string    `json:"author_id"`
	AuthorUsername      string    `json:"author_username"`
	AuthorFollowerCount int       `json:"author_follower_count"`
	Text                string    `json:"text"`
	// Mentioned is set by the ingress layer when the text @-mentions the
	// workspace's connected account.
	Mentioned  bool      `json:"mentioned"`
	ReceivedAt time.Time `json:"received_at"`
}

// RuleType maps the event onto the rule type that can answer it. Follow
// events are answered with a DM; there is no public surface to reply on.
func (e *EngagementEvent) RuleType() RuleType {
	if e.Type == EventComment {
		return RuleTypeComment
	}
	return RuleTypeDM
}
