package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"finbot/internal/models"
	"finbot/pkg/logger"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Report is a generated binary document.
type Report struct {
	Filename string
	Data     []byte
	Caption  string
}

// ReportService builds monthly summaries and PDF reports from stored
// transactions.
type ReportService struct {
	transactions TransactionStore
	profiles     ProfileStore
	insight      InsightWriter
	baseCurrency string
	location     *time.Location
	logger       *zap.Logger
}

// NewReportService accepts a nil insight writer; reports are then produced
// without the narrative paragraph.
func NewReportService(transactions TransactionStore, profiles ProfileStore, insight InsightWriter, baseCurrency string, location *time.Location, logger *zap.Logger) *ReportService {
	return &ReportService{
		transactions: transactions,
		profiles:     profiles,
		insight:      insight,
		baseCurrency: baseCurrency,
		location:     location,
		logger:       logger,
	}
}

type monthFigures struct {
	month    time.Month
	year     int
	income   decimal.Decimal
	expenses decimal.Decimal
	totals   []models.CategoryTotal
	profile  *models.UserProfile
}

func (f *monthFigures) balance() decimal.Decimal {
	return f.income.Sub(f.expenses)
}

func (s *ReportService) monthRange(month time.Month, year int) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, s.location)
	return from, from.AddDate(0, 1, 0)
}

func (s *ReportService) figures(ctx context.Context, userID string, month time.Month, year int) (*monthFigures, error) {
	from, to := s.monthRange(month, year)
	totals, err := s.transactions.SummarizeByCategory(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize transactions: %w", err)
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	f := &monthFigures{month: month, year: year, income: decimal.Zero, expenses: decimal.Zero, totals: totals, profile: profile}
	for _, t := range totals {
		if t.Kind == models.KindIncome {
			f.income = f.income.Add(t.Total)
		} else {
			f.expenses = f.expenses.Add(t.Total)
		}
	}
	return f, nil
}

func (s *ReportService) SpendingSummary(ctx context.Context, userID string, month time.Month, year int) (string, error) {
	f, err := s.figures(ctx, userID, month, year)
	if err != nil {
		return "", err
	}
	return s.summaryText(f), nil
}

func (s *ReportService) summaryText(f *monthFigures) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary for %s %d (%s)\n", f.month, f.year, s.baseCurrency)
	if len(f.totals) == 0 {
		b.WriteString("No transactions recorded.")
		return b.String()
	}

	fmt.Fprintf(&b, "Income: %s\n", f.income.StringFixed(2))
	fmt.Fprintf(&b, "Expenses: %s\n", f.expenses.StringFixed(2))
	fmt.Fprintf(&b, "Balance: %s\n", f.balance().StringFixed(2))
	if f.profile != nil && f.profile.MonthlyBudget.IsPositive() {
		used := f.expenses.Div(f.profile.MonthlyBudget).Mul(decimal.NewFromInt(100)).Round(0)
		fmt.Fprintf(&b, "Budget: %s (%s%% used)\n", f.profile.MonthlyBudget.StringFixed(2), used.String())
	}
	b.WriteString("Expenses by category:\n")
	for _, t := range f.totals {
		if t.Kind != models.KindExpense {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%d)\n", t.Category, t.Total.StringFixed(2), t.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

// MonthlyReport renders the month as a PDF.
func (s *ReportService) MonthlyReport(ctx context.Context, userID string, month time.Month, year int) (*Report, error) {
	f, err := s.figures(ctx, userID, month, year)
	if err != nil {
		return nil, err
	}
	from, to := s.monthRange(month, year)
	txs, err := s.transactions.ListByPeriod(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var insight string
	if s.insight != nil && len(txs) > 0 {
		insight, err = s.insight.WriteInsight(ctx, s.summaryText(f))
		if err != nil {
			s.logger.Warn("Report insight failed, continuing without it", logger.User(userID), zap.Error(err))
			insight = ""
		}
	}

	data, err := s.renderPDF(f, txs, insight)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	s.logger.Info("Monthly report generated",
		logger.User(userID),
		zap.Int("transactions", len(txs)),
		zap.Int("bytes", len(data)),
	)

	return &Report{
		Filename: fmt.Sprintf("report-%d-%02d.pdf", year, int(month)),
		Data:     data,
		Caption:  fmt.Sprintf("📊 Your report for %s %d", month, year),
	}, nil
}

func (s *ReportService) renderPDF(f *monthFigures, txs []*models.Transaction, insight string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Financial report - %s %d", f.month, f.year)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Income", f.income.StringFixed(2)},
		{"Expenses", f.expenses.StringFixed(2)},
		{"Balance", f.balance().StringFixed(2)},
	}
	if f.profile != nil && f.profile.MonthlyBudget.IsPositive() {
		rows = append(rows, [2]string{"Monthly budget", f.profile.MonthlyBudget.StringFixed(2)})
	}
	if f.profile != nil && f.profile.SavingsGoal.IsPositive() {
		rows = append(rows, [2]string{"Savings goal", f.profile.SavingsGoal.StringFixed(2)})
	}
	for _, r := range rows {
		pdf.CellFormat(50, 7, tr(r[0]), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, r[1]+" "+s.baseCurrency, "", 1, "R", false, 0, "")
	}

	if len(f.totals) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "By category", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, t := range f.totals {
			pdf.CellFormat(50, 6, tr(string(t.Category)), "", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, string(t.Kind), "", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, t.Total.StringFixed(2), "", 0, "R", false, 0, "")
			pdf.CellFormat(20, 6, fmt.Sprintf("%d", t.Count), "", 1, "R", false, 0, "")
		}
	}

	if insight != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Insight", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, tr(insight), "", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Transactions", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	header := []struct {
		title string
		width float64
	}{{"Date", 22}, {"Description", 70}, {"Category", 32}, {"Type", 20}, {"Amount", 30}, {"Status", 16}}
	for _, h := range header {
		pdf.CellFormat(h.width, 6, h.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, t := range txs {
		status := "ok"
		if t.Status == models.StatusPendingReview {
			status = "review"
		}
		pdf.CellFormat(22, 6, t.Date.In(s.location).Format("02/01/2006"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, tr(truncateRunes(t.Description, 40)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(32, 6, tr(string(t.Category)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, string(t.Kind), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, t.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(16, 6, status, "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
