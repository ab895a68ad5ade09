package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GoalType string

const (
	GoalMonthlyBudget GoalType = "monthly_budget"
	GoalSavings       GoalType = "savings"
)

// UserProfile stores the financial goals a user set through the assistant.
type UserProfile struct {
	UserID        string          `db:"user_id" json:"user_id"`
	MonthlyBudget decimal.Decimal `db:"monthly_budget" json:"monthly_budget"`
	SavingsGoal   decimal.Decimal `db:"savings_goal" json:"savings_goal"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
