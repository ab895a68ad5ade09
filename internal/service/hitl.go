package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"finbot/internal/models"
	"finbot/pkg/logger"
	"finbot/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	correctionKeyPrefix = "correction:"
	correctionSigil     = "!"
	shortDenialLen      = 10
)

var (
	affirmativeWords = map[string]bool{
		"yes": true, "y": true, "yep": true, "yeah": true, "ok": true, "okay": true,
		"correct": true, "right": true, "confirm": true, "sim": true, "s": true,
		"isso": true, "certo": true, "correto": true, "confirmo": true, "👍": true,
	}
	negativeWords = map[string]bool{
		"no": true, "n": true, "nope": true, "não": true, "nao": true,
		"wrong": true, "errado": true, "incorrect": true, "incorreto": true,
	}
	// accepted as a resend request even without an open ticket
	correctionTriggers = map[string]bool{
		correctionSigil: true, "wrong": true, "errado": true, "incorrect": true, "incorreto": true,
	}
)

type HITLAction int

const (
	// HITLNone means the message is not about a ticket; process it normally.
	HITLNone HITLAction = iota
	HITLConfirmed
	HITLAskResend
	// HITLReprocess means the denial text carries the correction and must go
	// through the pipeline as new input.
	HITLReprocess
	HITLFailed
)

func (a HITLAction) String() string {
	switch a {
	case HITLConfirmed:
		return "confirmed"
	case HITLAskResend:
		return "ask_resend"
	case HITLReprocess:
		return "reprocess"
	case HITLFailed:
		return "failed"
	default:
		return "none"
	}
}

// HITLOutcome tells the message handler what to do next. Reply is sent for
// Confirmed, AskResend and Failed; Input is the text to reprocess.
type HITLOutcome struct {
	Action HITLAction
	Reply  string
	Input  string
}

// HITLReconciler parks low-confidence extractions until the user confirms or
// denies them. One ticket per user; a new ticket replaces the old one.
type HITLReconciler struct {
	store        SessionStore
	transactions TransactionStore
	learning     LearningStore
	ttl          time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

func NewHITLReconciler(store SessionStore, transactions TransactionStore, learning LearningStore, ttl time.Duration, logger *zap.Logger) *HITLReconciler {
	return &HITLReconciler{
		store:        store,
		transactions: transactions,
		learning:     learning,
		ttl:          ttl,
		now:          time.Now,
		logger:       logger,
	}
}

// Open stores a ticket for a pending_review result and returns the
// confirmation prompt for the user.
func (h *HITLReconciler) Open(ctx context.Context, userID, input string, result *ProcessResult) string {
	ids := make([]uuid.UUID, len(result.Transactions))
	for i, t := range result.Transactions {
		ids[i] = t.ID
	}
	ticket := models.PendingCorrection{
		LastInput:      input,
		OriginalAIJSON: result.OriginalData,
		Confidence:     result.Confidence,
		TransactionIDs: ids,
		CreatedAt:      h.now(),
	}

	raw, err := json.Marshal(ticket)
	if err == nil {
		err = h.store.Set(ctx, correctionKeyPrefix+userID, raw, h.ttl)
	}
	if err != nil {
		h.logger.Error("Failed to store correction ticket", logger.User(userID), zap.Error(err))
	}

	first := result.Transactions[0]
	var b strings.Builder
	b.WriteString("🤔 I'm not completely sure about this one:\n")
	fmt.Fprintf(&b, "*%s*: %s %s", first.Description, first.Amount.StringFixed(2), first.Currency)
	if n := len(result.Transactions); n > 1 {
		fmt.Fprintf(&b, " (+%d more)", n-1)
	}
	b.WriteString("\nDid I get this right? Yes/No")
	return b.String()
}

// Resolve handles a message that may answer an open ticket.
func (h *HITLReconciler) Resolve(ctx context.Context, userID, text string) HITLOutcome {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	ticket, ok := h.load(ctx, userID)
	if !ok {
		if correctionTriggers[lower] {
			return h.outcome(HITLOutcome{Action: HITLAskResend, Reply: MsgAskResend})
		}
		return HITLOutcome{Action: HITLNone}
	}

	switch {
	case affirmativeWords[normalizeAnswer(lower)]:
		if err := h.transactions.MarkConfirmed(ctx, ticket.TransactionIDs); err != nil {
			h.logger.Error("Failed to confirm transactions", logger.User(userID), zap.Error(err))
			return h.outcome(HITLOutcome{Action: HITLFailed, Reply: MsgTechnicalError})
		}
		h.clear(ctx, userID)
		return h.outcome(HITLOutcome{Action: HITLConfirmed, Reply: MsgConfirmed})

	case strings.HasPrefix(trimmed, correctionSigil) || negativeWords[firstWord(lower)]:
		sample := &models.LearningSample{
			ID:               uuid.New(),
			UserID:           userID,
			OriginalInput:    ticket.LastInput,
			OriginalAIAnswer: ticket.OriginalAIJSON,
			UserCorrection:   trimmed,
			Confidence:       ticket.Confidence,
			CreatedAt:        h.now(),
		}
		if err := h.learning.Append(ctx, sample); err != nil {
			h.logger.Warn("Failed to record learning sample", logger.User(userID), zap.Error(err))
		}
		h.clear(ctx, userID)

		if utf8.RuneCountInString(trimmed) < shortDenialLen {
			return h.outcome(HITLOutcome{Action: HITLAskResend, Reply: MsgAskResend})
		}
		input := strings.TrimSpace(strings.TrimPrefix(trimmed, correctionSigil))
		return h.outcome(HITLOutcome{Action: HITLReprocess, Input: input})
	}

	return HITLOutcome{Action: HITLNone}
}

func (h *HITLReconciler) outcome(o HITLOutcome) HITLOutcome {
	metrics.HITLOutcomes.WithLabelValues(o.Action.String()).Inc()
	return o
}

func (h *HITLReconciler) load(ctx context.Context, userID string) (*models.PendingCorrection, bool) {
	raw, ok, err := h.store.Get(ctx, correctionKeyPrefix+userID)
	if err != nil {
		h.logger.Warn("Failed to load correction ticket", logger.User(userID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var ticket models.PendingCorrection
	if err := json.Unmarshal(raw, &ticket); err != nil {
		h.logger.Warn("Discarding corrupt correction ticket", logger.User(userID), zap.Error(err))
		h.clear(ctx, userID)
		return nil, false
	}
	return &ticket, true
}

func (h *HITLReconciler) clear(ctx context.Context, userID string) {
	if err := h.store.Delete(ctx, correctionKeyPrefix+userID); err != nil {
		h.logger.Warn("Failed to clear correction ticket", logger.User(userID), zap.Error(err))
	}
}

func normalizeAnswer(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func firstWord(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
