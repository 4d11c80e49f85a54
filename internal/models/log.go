package models

import (
	"time"

	"github.com/google/uuid"
)

type DispatchStatus string

const (
	DispatchPending   DispatchStatus = "pending"
	DispatchSent      DispatchStatus = "sent"
	DispatchFailed    DispatchStatus = "failed"
	DispatchCancelled DispatchStatus = "cancelled"
)

// AutomationLog records one dispatch attempt. Rows are append-only except
// for the single status transition at delivery (or cancellation) time.
type AutomationLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	RuleID      uuid.UUID `gorm:"type:uuid;not null;index" json:"rule_id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Type        RuleType  `gorm:"size:20;not null" json:"type"`

	// CorrelationID ties the two steps of a comment-reply-then-DM flow
	// together; standalone dispatches carry their own ID here.
	CorrelationID uuid.UUID `gorm:"type:uuid;index" json:"correlation_id"`

	TargetUserID   string `gorm:"size:200" json:"target_user_id"`
	TargetUsername string `gorm:"size:200" json:"target_username"`
	Message        string `gorm:"type:text" json:"message"`

	Status       DispatchStatus `gorm:"size:20;not null;index" json:"status"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
