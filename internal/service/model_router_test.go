package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelRouter(t *testing.T) {
	r := NewModelRouter("GigaChat", "GigaChat-Max")

	tests := []struct {
		name string
		text string
		rc   RouteContext
		want ModelTier
	}{
		{"words then amount", "Lunch 20", RouteContext{}, TierLowCost},
		{"amount then word", "20 Lunch", RouteContext{}, TierLowCost},
		{"decimal comma", "Coffee 3,50", RouteContext{}, TierLowCost},
		{"two items", "I spent 20 on lunch and 30 on dinner", RouteContext{}, TierHighReasoning},
		{"greeting", "Hi", RouteContext{}, TierLowCost},
		{"amount then words", "25,90 almoço no centro", RouteContext{}, TierLowCost},
		{"currency prefix", "uber R$ 32", RouteContext{}, TierLowCost},
		{"attachment wins", "Lunch 25.90", RouteContext{HasAttachment: true}, TierHighReasoning},
		{"question", "How much did I spend on restaurants compared to last month?", RouteContext{}, TierHighReasoning},
		{"long transaction-like", "dinner " + strings.Repeat("with friends ", 10) + "120", RouteContext{}, TierHighReasoning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(tt.text, tt.rc))
		})
	}

	assert.Equal(t, "GigaChat", r.Model(TierLowCost))
	assert.Equal(t, "GigaChat-Max", r.Model(TierHighReasoning))
}
