package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"finbot/internal/models"
	"finbot/pkg/metrics"

	"github.com/shopspring/decimal"
)

// ExtractionPayload is the structured answer the prompts ask for.
type ExtractionPayload struct {
	Reasoning          string           `json:"reasoning,omitempty"`
	Question           string           `json:"question,omitempty"`
	Ignore             bool             `json:"ignore,omitempty"`
	Reply              string           `json:"reply,omitempty"`
	ConfidenceScore    *float64         `json:"confidence_score,omitempty"`
	Transactions       []LineItem       `json:"transactions"`
	TotalInvoiceAmount *decimal.Decimal `json:"total_invoice_amount,omitempty"`
	DueDate            string           `json:"due_date,omitempty"`
}

type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	Date        string          `json:"date"`
}

// Interpretation is the classified model output. The concrete types are
// FreeText, Question, NoOp, TechnicalError, InvalidPayload and Extraction.
type Interpretation interface {
	kind() string
}

type FreeText struct{ Text string }

type Question struct{ Text string }

type NoOp struct{ Reply string }

// TechnicalError is a transaction attempt that did not parse as JSON.
type TechnicalError struct {
	Raw string
	Err error
}

// InvalidPayload is a transaction attempt that parsed but failed validation.
type InvalidPayload struct {
	Raw string
	Err error
}

type Extraction struct {
	Payload *ExtractionPayload
	Raw     string
}

func (FreeText) kind() string       { return "free_text" }
func (Question) kind() string       { return "question" }
func (NoOp) kind() string           { return "noop" }
func (TechnicalError) kind() string { return "technical_error" }
func (InvalidPayload) kind() string { return "invalid_payload" }
func (Extraction) kind() string     { return "extraction" }

var transactionMarkers = []string{`"transactions"`, `"total_invoice_amount"`}

func hasTransactionMarker(s string) bool {
	for _, m := range transactionMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// jsonCandidate slices from the first '{' to the last '}', or returns the
// whole text when there is no such pair.
func jsonCandidate(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// Interpret classifies the model's final text.
func Interpret(raw string) Interpretation {
	result := interpret(raw)
	metrics.Interpretations.WithLabelValues(result.kind()).Inc()
	return result
}

func interpret(raw string) Interpretation {
	text := strings.TrimSpace(raw)
	marked := hasTransactionMarker(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonCandidate(text)), &fields); err != nil {
		if marked {
			return TechnicalError{Raw: raw, Err: err}
		}
		return FreeText{Text: text}
	}

	var payload ExtractionPayload
	if err := json.Unmarshal([]byte(jsonCandidate(text)), &payload); err != nil {
		if marked {
			return InvalidPayload{Raw: raw, Err: err}
		}
		return FreeText{Text: text}
	}

	if q := strings.TrimSpace(payload.Question); q != "" {
		return Question{Text: q}
	}
	if payload.Ignore {
		return NoOp{Reply: strings.TrimSpace(payload.Reply)}
	}

	_, hasItems := fields["transactions"]
	_, hasInvoice := fields["total_invoice_amount"]
	if !hasItems && !hasInvoice {
		// prefer the reply field; anything else passes through as written
		if reply := strings.TrimSpace(payload.Reply); reply != "" {
			return FreeText{Text: reply}
		}
		return FreeText{Text: text}
	}

	for i := range payload.Transactions {
		payload.Transactions[i].Currency = normalizeCurrency(payload.Transactions[i].Currency)
	}
	if err := payload.Validate(); err != nil {
		return InvalidPayload{Raw: raw, Err: err}
	}
	return Extraction{Payload: &payload, Raw: raw}
}

// currencySymbols maps the symbols models tend to echo back to ISO codes.
var currencySymbols = map[string]string{
	"R$":  "BRL",
	"$":   "USD",
	"US$": "USD",
	"U$":  "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
}

func normalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if iso, ok := currencySymbols[strings.ToUpper(code)]; ok {
		return iso
	}
	return strings.ToUpper(code)
}

// Validate checks the structural rules a payload must meet before it reaches
// the extraction pipeline.
func (p *ExtractionPayload) Validate() error {
	if p.ConfidenceScore != nil && (*p.ConfidenceScore < 0 || *p.ConfidenceScore > 1) {
		return fmt.Errorf("%w: confidence_score %v out of range", ErrInvalidPayload, *p.ConfidenceScore)
	}
	if len(p.Transactions) == 0 && p.TotalInvoiceAmount == nil {
		return fmt.Errorf("%w: no transactions", ErrInvalidPayload)
	}
	for i, item := range p.Transactions {
		switch models.TransactionKind(strings.ToLower(strings.TrimSpace(item.Type))) {
		case "", models.KindExpense, models.KindIncome:
		default:
			return fmt.Errorf("%w: transaction %d has type %q", ErrInvalidPayload, i, item.Type)
		}
		if len(item.Currency) > 0 && len(strings.TrimSpace(item.Currency)) != 3 {
			return fmt.Errorf("%w: transaction %d has currency %q", ErrInvalidPayload, i, item.Currency)
		}
	}
	return nil
}
