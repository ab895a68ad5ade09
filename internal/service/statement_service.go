package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"finbot/internal/models"
	"finbot/pkg/logger"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatementPromptVersion tags transactions imported from files rather than
// extracted by the model.
const StatementPromptVersion = "statement_import"

// StatementService imports OFX/QFX and CSV bank statements through the
// extraction pipeline.
type StatementService struct {
	processor *DataProcessor
	logger    *zap.Logger
}

func NewStatementService(processor *DataProcessor, logger *zap.Logger) *StatementService {
	return &StatementService{processor: processor, logger: logger}
}

// Supports reports whether a document can be imported.
func (s *StatementService) Supports(fileName, mimeType string) bool {
	return statementFormat(fileName, mimeType) != ""
}

func statementFormat(fileName, mimeType string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".ofx", ".qfx":
		return "ofx"
	case ".csv":
		return "csv"
	}
	switch strings.ToLower(mimeType) {
	case "application/x-ofx", "application/ofx", "application/vnd.intu.qfx":
		return "ofx"
	case "text/csv", "application/csv":
		return "csv"
	}
	return ""
}

// Import parses the file and stores its lines as confirmed transactions.
func (s *StatementService) Import(ctx context.Context, userID, fileName, mimeType string, data []byte) (*ProcessResult, error) {
	var (
		items []LineItem
		err   error
	)
	switch statementFormat(fileName, mimeType) {
	case "ofx":
		items, err = parseOFX(data)
	case "csv":
		items, err = parseCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedDocument, fileName, mimeType)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Statement parsed",
		logger.User(userID),
		zap.String("file", fileName),
		zap.Int("lines", len(items)),
	)

	full := 1.0
	return s.processor.Process(ctx, userID, &ExtractionPayload{
		ConfidenceScore: &full,
		Transactions:    items,
	}, fileName, StatementPromptVersion)
}

func parseOFX(data []byte) ([]LineItem, error) {
	resp, err := ofxgo.ParseResponse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var items []LineItem
	add := func(list *ofxgo.TransactionList, currency string) {
		if list == nil {
			return
		}
		for _, tx := range list.Transactions {
			items = append(items, ofxLineItem(tx, currency))
		}
	}
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankTranList, stmt.CurDef.String())
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.BankTranList, stmt.CurDef.String())
		}
	}
	return items, nil
}

func ofxLineItem(tx ofxgo.Transaction, currency string) LineItem {
	f, _ := tx.TrnAmt.Float64()
	amount := decimal.NewFromFloat(f).Round(2)

	description := strings.TrimSpace(string(tx.Name))
	if tx.Payee != nil && tx.Payee.Name != "" {
		description = strings.TrimSpace(string(tx.Payee.Name))
	}
	if description == "" {
		description = strings.TrimSpace(string(tx.Memo))
	}

	return LineItem{
		Description: description,
		Amount:      amount.Abs(),
		Currency:    currency,
		Category:    string(models.CategoryOther),
		Type:        string(directionOf(amount)),
		Date:        tx.DtPosted.Time.Format("2006-01-02"),
	}
}

func directionOf(amount decimal.Decimal) models.TransactionKind {
	if amount.IsPositive() {
		return models.KindIncome
	}
	return models.KindExpense
}

// parseCSV reads a statement with a header row naming at least date,
// description and amount. Optional columns: currency, category, type.
func parseCSV(data []byte) ([]LineItem, error) {
	r := csv.NewReader(bytes.NewReader(data))
	if firstLine, _, _ := strings.Cut(string(data), "\n"); strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		r.Comma = ';'
	}
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"date", "description", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: CSV is missing the %q column", ErrUnsupportedDocument, required)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var items []LineItem
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		amount, err := parseLocaleAmount(field(rec, "amount"))
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
		kind := directionOf(amount)
		if t := strings.ToLower(field(rec, "type")); t == string(models.KindIncome) || t == string(models.KindExpense) {
			kind = models.TransactionKind(t)
		}
		items = append(items, LineItem{
			Description: field(rec, "description"),
			Amount:      amount.Abs(),
			Currency:    field(rec, "currency"),
			Category:    field(rec, "category"),
			Type:        string(kind),
			Date:        field(rec, "date"),
		})
	}
	return items, nil
}

// parseLocaleAmount accepts "1234.56", "1,234.56", "1.234,56" and "1234,56".
func parseLocaleAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "R$"), "$")
	s = strings.ReplaceAll(s, " ", "")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
