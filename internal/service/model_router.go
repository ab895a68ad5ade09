package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"finbot/pkg/metrics"
)

type ModelTier string

const (
	TierLowCost       ModelTier = "low_cost"
	TierHighReasoning ModelTier = "high_reasoning"
)

// RouteContext carries message traits other than the text.
type RouteContext struct {
	HasAttachment bool
}

const (
	shortTransactionMaxLen = 100
	trivialMaxLen          = 20
)

// words followed by an amount, or an amount followed by words
var simpleTransactionPattern = regexp.MustCompile(
	`^(?:[\p{L}][\p{L}\s'-]*\s+(?:r\$\s*|\$\s*)?\d+(?:[.,]\d{1,2})?|(?:r\$\s*|\$\s*)?\d+(?:[.,]\d{1,2})?\s+[\p{L}][\p{L}\s'-]*)$`,
)

// ModelRouter picks the cheapest tier that can handle a message.
type ModelRouter struct {
	lowCostModel       string
	highReasoningModel string
}

func NewModelRouter(lowCostModel, highReasoningModel string) *ModelRouter {
	return &ModelRouter{lowCostModel: lowCostModel, highReasoningModel: highReasoningModel}
}

// Route classifies text. Attachments always need the high-reasoning tier.
func (r *ModelRouter) Route(text string, rc RouteContext) ModelTier {
	tier := routeTier(text, rc)
	metrics.RouteDecisions.WithLabelValues(string(tier)).Inc()
	return tier
}

// Model maps a tier to the configured provider model name.
func (r *ModelRouter) Model(tier ModelTier) string {
	if tier == TierLowCost {
		return r.lowCostModel
	}
	return r.highReasoningModel
}

func routeTier(text string, rc RouteContext) ModelTier {
	if rc.HasAttachment {
		return TierHighReasoning
	}
	trimmed := strings.ToLower(strings.TrimSpace(text))
	n := utf8.RuneCountInString(trimmed)
	if n < shortTransactionMaxLen && simpleTransactionPattern.MatchString(trimmed) {
		return TierLowCost
	}
	if n < trivialMaxLen {
		return TierLowCost
	}
	return TierHighReasoning
}
