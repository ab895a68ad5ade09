package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Padaria", "Padaria"},
		{"collapses whitespace", "  Uber\t\n trip  ", "Uber trip"},
		{"drops invalid bytes", "Caf\xc3\x28e", "Caf(e"},
		{"drops control chars", "Mercado\x00 Livre", "Mercado Livre"},
		{"keeps accents", "Pão de Açúcar", "Pão de Açúcar"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "açú…", truncateRunes("açúcar", 4))
	assert.Equal(t, "", truncateRunes("anything", 0))
}
