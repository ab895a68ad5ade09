package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func TestResolveDate(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2026, 1, 10, 14, 30, 0, 0, loc)

	tests := []struct {
		raw  string
		want string
	}{
		{"yesterday", "2026-01-09"},
		{"Yesterday", "2026-01-09"},
		{"the day before yesterday", "2026-01-08"},
		{"day before yesterday", "2026-01-08"},
		{"ontem", "2026-01-09"},
		{"anteontem", "2026-01-08"},
		{"", "2026-01-10"},
		{"today", "2026-01-10"},
		{"2025-12-31", "2025-12-31"},
		{"05/01/2026", "2026-01-05"},
		{"03/01", "2026-01-03"},
		{"2026-01-07T23:30:00-03:00", "2026-01-07"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := resolveDate(tt.raw, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestResolveDateUsesFixedTimezone(t *testing.T) {
	loc := saoPaulo(t)
	// 01:30 UTC on the 10th is still the 9th in São Paulo
	now := time.Date(2026, 1, 10, 1, 30, 0, 0, time.UTC).In(loc)

	got, err := resolveDate("yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-08", got.Format("2006-01-02"))
}

func TestResolveDateRejectsGarbage(t *testing.T) {
	_, err := resolveDate("someday", time.Now())
	assert.ErrorIs(t, err, ErrUnresolvableDate)
}
