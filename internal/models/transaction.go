package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionCategory string

const (
	CategoryFood          TransactionCategory = "Food"
	CategoryTransport     TransactionCategory = "Transport"
	CategoryHousing       TransactionCategory = "Housing"
	CategoryUtilities     TransactionCategory = "Utilities"
	CategoryHealth        TransactionCategory = "Health"
	CategoryEducation     TransactionCategory = "Education"
	CategoryLeisure       TransactionCategory = "Leisure"
	CategoryShopping      TransactionCategory = "Shopping"
	CategorySubscriptions TransactionCategory = "Subscriptions"
	CategorySalary        TransactionCategory = "Salary"
	CategoryInvestments   TransactionCategory = "Investments"
	CategoryInvoice       TransactionCategory = "Invoice"
	CategoryOther         TransactionCategory = "Other"
)

// Categories is the closed list offered to the model, in prompt order.
var Categories = []TransactionCategory{
	CategoryFood,
	CategoryTransport,
	CategoryHousing,
	CategoryUtilities,
	CategoryHealth,
	CategoryEducation,
	CategoryLeisure,
	CategoryShopping,
	CategorySubscriptions,
	CategorySalary,
	CategoryInvestments,
	CategoryInvoice,
	CategoryOther,
}

// ParseCategory matches name case-insensitively against Categories and falls
// back to CategoryOther.
func ParseCategory(name string) TransactionCategory {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(string(c), name) {
			return c
		}
	}
	return CategoryOther
}

type TransactionKind string

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

type TransactionStatus string

const (
	StatusPendingReview TransactionStatus = "pending_review"
	StatusConfirmed     TransactionStatus = "confirmed"
)

// Transaction is a persisted line item. Amount is always positive and in the
// base currency; Kind carries the direction.
type Transaction struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	UserID           string              `db:"user_id" json:"user_id"`
	Description      string              `db:"description" json:"description"`
	Amount           decimal.Decimal     `db:"amount" json:"amount"`
	Currency         string              `db:"currency" json:"currency"`
	OriginalAmount   decimal.Decimal     `db:"original_amount" json:"original_amount"`
	OriginalCurrency string              `db:"original_currency" json:"original_currency"`
	ExchangeRate     decimal.Decimal     `db:"exchange_rate" json:"exchange_rate"`
	Category         TransactionCategory `db:"category" json:"category"`
	Kind             TransactionKind     `db:"type" json:"type"`
	Date             time.Time           `db:"date" json:"date"`
	ConfidenceScore  float64             `db:"confidence_score" json:"confidence_score"`
	Status           TransactionStatus   `db:"status" json:"status"`
	IsValidated      bool                `db:"is_validated" json:"is_validated"`
	PromptVersion    string              `db:"prompt_version" json:"prompt_version"`
	Embedding        []float32           `db:"embedding" json:"-"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// CategoryTotal is one row of a per-category aggregation.
type CategoryTotal struct {
	Category TransactionCategory `db:"category"`
	Kind     TransactionKind     `db:"type"`
	Total    decimal.Decimal     `db:"total"`
	Count    int                 `db:"count"`
}
