package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finbot/internal/dto"
	"finbot/internal/models"
	"finbot/pkg/logger"
	"finbot/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ToolGetProfileGoals   = "get_profile_goals"
	ToolSetProfileGoal    = "set_profile_goal"
	ToolGetSpendingReport = "get_spending_summary"
	ToolGenerateReport    = "generate_report"
)

// ToolResult is either text fed back to the model or media sent straight to
// the user.
type ToolResult struct {
	Content string
	Media   *dto.MediaPayload
}

// ToolDispatcher executes the functions the model may call.
type ToolDispatcher struct {
	profiles ProfileStore
	reports  Reporter
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewToolDispatcher(profiles ProfileStore, reports Reporter, location *time.Location, logger *zap.Logger) *ToolDispatcher {
	return &ToolDispatcher{
		profiles: profiles,
		reports:  reports,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

var periodParameters = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"month": map[string]interface{}{"type": "integer", "description": "Month number 1-12. Defaults to the current month."},
		"year":  map[string]interface{}{"type": "integer", "description": "Four digit year. Defaults to the current year."},
	},
}

// Definitions lists the tools in the provider's function format.
func (d *ToolDispatcher) Definitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolGetProfileGoals,
			Description: "Get the user's monthly budget and savings goal.",
			Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name:        ToolSetProfileGoal,
			Description: "Set the user's monthly budget or savings goal.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"goal_type": map[string]interface{}{
						"type": "string",
						"enum": []string{string(models.GoalMonthlyBudget), string(models.GoalSavings)},
					},
					"amount": map[string]interface{}{"type": "number", "description": "Goal amount in the base currency."},
				},
				"required": []string{"goal_type", "amount"},
			},
		},
		{
			Name:        ToolGetSpendingReport,
			Description: "Summarize the user's income and expenses by category for a month.",
			Parameters:  periodParameters,
		},
		{
			Name:        ToolGenerateReport,
			Description: "Generate a PDF report of the user's finances for a month and send it to them.",
			Parameters:  periodParameters,
		},
	}
}

type goalArgs struct {
	GoalType string          `json:"goal_type"`
	Amount   decimal.Decimal `json:"amount"`
}

type periodArgs struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Run executes one call. Errors never escape: they become an apologetic
// text result.
func (d *ToolDispatcher) Run(ctx context.Context, call ToolCall, userID string) ToolResult {
	result, err := d.run(ctx, call, userID)
	if err != nil {
		metrics.ToolCalls.WithLabelValues(call.Name, "error").Inc()
		d.logger.Error("Tool execution failed",
			logger.User(userID),
			zap.String("tool", call.Name),
			zap.Error(err),
		)
		return ToolResult{Content: MsgToolFailed}
	}
	metrics.ToolCalls.WithLabelValues(call.Name, "ok").Inc()
	return result
}

func (d *ToolDispatcher) run(ctx context.Context, call ToolCall, userID string) (ToolResult, error) {
	switch call.Name {
	case ToolGetProfileGoals:
		profile, err := d.profiles.Get(ctx, userID)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Content: fmt.Sprintf("monthly_budget: %s, savings_goal: %s",
			profile.MonthlyBudget.StringFixed(2), profile.SavingsGoal.StringFixed(2))}, nil

	case ToolSetProfileGoal:
		var args goalArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return ToolResult{}, err
		}
		if !args.Amount.IsPositive() {
			return ToolResult{Content: "The goal amount must be greater than zero."}, nil
		}
		profile, err := d.profiles.Get(ctx, userID)
		if err != nil {
			return ToolResult{}, err
		}
		switch models.GoalType(args.GoalType) {
		case models.GoalMonthlyBudget:
			profile.MonthlyBudget = args.Amount
		case models.GoalSavings:
			profile.SavingsGoal = args.Amount
		default:
			return ToolResult{}, fmt.Errorf("unknown goal type %q", args.GoalType)
		}
		profile.UserID = userID
		profile.UpdatedAt = d.now()
		if err := d.profiles.Upsert(ctx, profile); err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Content: fmt.Sprintf("%s set to %s", args.GoalType, args.Amount.StringFixed(2))}, nil

	case ToolGetSpendingReport:
		month, year, err := d.period(call.Arguments)
		if err != nil {
			return ToolResult{}, err
		}
		summary, err := d.reports.SpendingSummary(ctx, userID, month, year)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Content: summary}, nil

	case ToolGenerateReport:
		month, year, err := d.period(call.Arguments)
		if err != nil {
			return ToolResult{}, err
		}
		report, err := d.reports.MonthlyReport(ctx, userID, month, year)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Media: &dto.MediaPayload{
			MimeType: "application/pdf",
			Data:     base64.StdEncoding.EncodeToString(report.Data),
			Filename: report.Filename,
			Caption:  report.Caption,
		}}, nil
	}

	return ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
}

// period reads month/year arguments, defaulting to the current month.
func (d *ToolDispatcher) period(raw json.RawMessage) (time.Month, int, error) {
	var args periodArgs
	if err := decodeArgs(raw, &args); err != nil {
		return 0, 0, err
	}
	now := d.now().In(d.location)
	month, year := now.Month(), now.Year()
	if args.Month != 0 {
		if args.Month < 1 || args.Month > 12 {
			return 0, 0, fmt.Errorf("month %d out of range", args.Month)
		}
		month = time.Month(args.Month)
	}
	if args.Year != 0 {
		year = args.Year
	}
	return month, year, nil
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
