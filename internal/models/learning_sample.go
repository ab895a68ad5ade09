package models

import (
	"time"

	"github.com/google/uuid"
)

// LearningSample records a user's rejection of an extraction. Append-only;
// consumed offline for prompt and model tuning.
type LearningSample struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	OriginalInput    string    `db:"original_input" json:"original_input"`
	OriginalAIAnswer string    `db:"original_ai_answer" json:"original_ai_answer"`
	UserCorrection   string    `db:"user_correction" json:"user_correction"`
	Confidence       float64   `db:"confidence" json:"confidence"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
