package models

import (
	"time"

	"github.com/google/uuid"
)

type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// ConversationTurn is one entry of the rolling per-user history.
type ConversationTurn struct {
	Role    ConversationRole `json:"role"`
	Content string           `json:"content"`
}

// PendingCorrection is the HITL ticket. One per user; a newer ticket
// overwrites the previous one.
type PendingCorrection struct {
	LastInput      string      `json:"last_input"`
	OriginalAIJSON string      `json:"original_ai_json"`
	Confidence     float64     `json:"confidence"`
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}
