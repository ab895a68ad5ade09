package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T, reporter *fakeReporter) (*ToolDispatcher, *fakeProfileStore) {
	t.Helper()
	loc := saoPaulo(t)
	profiles := newFakeProfileStore()
	d := NewToolDispatcher(profiles, reporter, loc, zap.NewNop())
	d.now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, loc) }
	return d, profiles
}

func TestToolDefinitions(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeReporter{})
	var names []string
	for _, def := range d.Definitions() {
		names = append(names, def.Name)
		_, err := json.Marshal(def.Parameters)
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{ToolGetProfileGoals, ToolSetProfileGoal, ToolGetSpendingReport, ToolGenerateReport}, names)
}

func TestToolSetAndGetGoals(t *testing.T) {
	ctx := context.Background()
	d, profiles := newTestDispatcher(t, &fakeReporter{})

	res := d.Run(ctx, ToolCall{Name: ToolSetProfileGoal, Arguments: json.RawMessage(`{"goal_type":"monthly_budget","amount":3000}`)}, "u1")
	assert.Equal(t, "monthly_budget set to 3000.00", res.Content)
	assert.Nil(t, res.Media)

	p, _ := profiles.Get(ctx, "u1")
	assert.Equal(t, "3000.00", p.MonthlyBudget.StringFixed(2))

	res = d.Run(ctx, ToolCall{Name: ToolGetProfileGoals}, "u1")
	assert.Equal(t, "monthly_budget: 3000.00, savings_goal: 0.00", res.Content)
}

func TestToolSpendingSummaryDefaultsToCurrentMonth(t *testing.T) {
	reporter := &fakeReporter{summary: "Food: 100.00"}
	d, _ := newTestDispatcher(t, reporter)

	res := d.Run(context.Background(), ToolCall{Name: ToolGetSpendingReport, Arguments: json.RawMessage(`{}`)}, "u1")
	assert.Equal(t, "Food: 100.00", res.Content)
	assert.Equal(t, 1, reporter.summaries)

	month, year, err := d.period(nil)
	require.NoError(t, err)
	assert.Equal(t, time.January, month)
	assert.Equal(t, 2026, year)
}

func TestToolGenerateReportReturnsMedia(t *testing.T) {
	reporter := &fakeReporter{report: &Report{Filename: "report-2026-01.pdf", Data: []byte("%PDF"), Caption: "January 2026"}}
	d, _ := newTestDispatcher(t, reporter)

	res := d.Run(context.Background(), ToolCall{Name: ToolGenerateReport, Arguments: json.RawMessage(`{"month":1,"year":2026}`)}, "u1")
	require.NotNil(t, res.Media)
	assert.Equal(t, "application/pdf", res.Media.MimeType)
	assert.Equal(t, "report-2026-01.pdf", res.Media.Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), res.Media.Data)
}

func TestToolErrorsDegradeToText(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeReporter{err: errors.New("db down")})
	ctx := context.Background()

	calls := []ToolCall{
		{Name: "launch_rockets"},
		{Name: ToolGenerateReport},
		{Name: ToolGetSpendingReport, Arguments: json.RawMessage(`{"month":13}`)},
		{Name: ToolSetProfileGoal, Arguments: json.RawMessage(`not json`)},
		{Name: ToolSetProfileGoal, Arguments: json.RawMessage(`{"goal_type":"yacht","amount":10}`)},
	}
	for _, call := range calls {
		res := d.Run(ctx, call, "u1")
		assert.Equal(t, MsgToolFailed, res.Content, call.Name)
		assert.Nil(t, res.Media)
	}
}
