package service

import (
	"regexp"

	"finbot/pkg/logger"
	"finbot/pkg/metrics"

	"go.uber.org/zap"
)

// injectionPatterns is a known-phrase blocklist in English and Portuguese.
// It does not catch paraphrases or other languages.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(ignore|disregard|forget)\b.{0,30}\b(previous|prior|above|all)\b.{0,20}\b(instructions?|rules|prompts?)\b`),
	regexp.MustCompile(`(?i)\b(ignore|ignora|esque[cç]a|desconsidere)\s.{0,30}\b(as )?(instru[cç][oõ]es|regras)\b`),
	regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|tell me)\b.{0,30}\bsystem prompt\b`),
	regexp.MustCompile(`(?i)\b(mostre|revele|repita|qual)\b.{0,30}\bprompt (do|de) sistema\b`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)\bDAN\b.{0,20}\bmode\b|\bdo anything now\b`),
	regexp.MustCompile(`(?i)\b(developer|god) mode\b|\bmodo (desenvolvedor|deus)\b`),
	regexp.MustCompile(`(?i)\b(act|pretend|aja|finja)\b.{0,40}\b(without|sem) (any )?(restrictions|limits|filters|restri[cç][oõ]es|limites|filtros)\b`),
	regexp.MustCompile(`(?i)you are no longer\b|voc[eê] n[aã]o [eé] mais\b`),
	regexp.MustCompile(`(?i)<\|im_start\|>|\[/?INST\]|###\s*system\b`),
}

// Guardrail rejects messages matching known prompt-injection phrases.
type Guardrail struct {
	patterns []*regexp.Regexp
	logger   *zap.Logger
}

func NewGuardrail(logger *zap.Logger) *Guardrail {
	return &Guardrail{patterns: injectionPatterns, logger: logger}
}

// IsMalicious reports whether text matches any blocklisted pattern. It never
// logs the text itself.
func (g *Guardrail) IsMalicious(userID, text string) bool {
	for i, p := range g.patterns {
		if p.MatchString(text) {
			metrics.GuardrailBlocked.Inc()
			g.logger.Warn("Prompt injection attempt blocked",
				logger.User(userID),
				zap.Int("pattern", i),
			)
			return true
		}
	}
	return false
}
