package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"finbot/internal/dto"
	"finbot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errProviderDown = errors.New("provider down")

// fakeProvider answers chat calls from a script of responses. Once the
// script runs out the last entry repeats.
type fakeProvider struct {
	mu       sync.Mutex
	script   []fakeReply
	requests []*ChatRequest
}

type fakeReply struct {
	resp *ChatResponse
	err  error
}

func newFakeProvider(replies ...fakeReply) *fakeProvider {
	return &fakeProvider{script: replies}
}

func textReply(content string) fakeReply {
	return fakeReply{resp: &ChatResponse{Content: content, FinishReason: "stop"}}
}

func toolReply(calls ...ToolCall) fakeReply {
	return fakeReply{resp: &ChatResponse{ToolCalls: calls, FinishReason: "function_call"}}
}

func (p *fakeProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return nil, errProviderDown
	}
	i := len(p.requests) - 1
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	return p.script[i].resp, p.script[i].err
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeEmbedder struct {
	mu         sync.Mutex
	err        error
	batchCalls int
	calls      int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchCalls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

// fakeTransactionStore keeps transactions in memory.
type fakeTransactionStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Transaction
	similar   []*models.Transaction
	createErr error
	batches   int
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{rows: make(map[uuid.UUID]*models.Transaction)}
}

func (s *fakeTransactionStore) CreateBatch(_ context.Context, txs []*models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.createErr != nil {
		return s.createErr
	}
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		s.rows[t.ID] = t
	}
	return nil
}

func (s *fakeTransactionStore) MarkConfirmed(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if t, ok := s.rows[id]; ok {
			t.Status = models.StatusConfirmed
			t.IsValidated = true
		}
	}
	return nil
}

func (s *fakeTransactionStore) SearchSimilar(_ context.Context, _ string, _ []float32, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.similar) > limit {
		return s.similar[:limit], nil
	}
	return s.similar, nil
}

func (s *fakeTransactionStore) ListByPeriod(_ context.Context, userID string, from, to time.Time) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Transaction
	for _, t := range s.rows {
		if t.UserID == userID && !t.Date.Before(from) && t.Date.Before(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *fakeTransactionStore) SummarizeByCategory(ctx context.Context, userID string, from, to time.Time) ([]models.CategoryTotal, error) {
	txs, _ := s.ListByPeriod(ctx, userID, from, to)
	totals := make(map[string]*models.CategoryTotal)
	var keys []string
	for _, t := range txs {
		key := string(t.Kind) + "/" + string(t.Category)
		ct, ok := totals[key]
		if !ok {
			ct = &models.CategoryTotal{Category: t.Category, Kind: t.Kind, Total: decimal.Zero}
			totals[key] = ct
			keys = append(keys, key)
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
	}
	sort.Strings(keys)
	out := make([]models.CategoryTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, *totals[k])
	}
	return out, nil
}

func (s *fakeTransactionStore) all() []*models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Transaction, 0, len(s.rows))
	for _, t := range s.rows {
		out = append(out, t)
	}
	return out
}

type fakeLearningStore struct {
	mu      sync.Mutex
	samples []*models.LearningSample
}

func (s *fakeLearningStore) Append(_ context.Context, sample *models.LearningSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]*models.UserProfile)}
}

func (s *fakeProfileStore) Get(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return &models.UserProfile{UserID: userID, MonthlyBudget: decimal.Zero, SavingsGoal: decimal.Zero}, nil
}

func (s *fakeProfileStore) Upsert(_ context.Context, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

// fixedRates returns a configured rate per code and 1 for anything else.
type fixedRates map[string]decimal.Decimal

func (r fixedRates) Rate(_ context.Context, code string) decimal.Decimal {
	if rate, ok := r[code]; ok {
		return rate
	}
	return decimal.NewFromInt(1)
}

type fakeReporter struct {
	summary   string
	report    *Report
	err       error
	summaries int
	reports   int
}

func (r *fakeReporter) SpendingSummary(_ context.Context, _ string, _ time.Month, _ int) (string, error) {
	r.summaries++
	return r.summary, r.err
}

func (r *fakeReporter) MonthlyReport(_ context.Context, _ string, _ time.Month, _ int) (*Report, error) {
	r.reports++
	return r.report, r.err
}

type fakeUploader struct {
	id    string
	err   error
	files int
}

func (u *fakeUploader) UploadFile(_ context.Context, _ []byte, _, _ string) (string, error) {
	u.files++
	return u.id, u.err
}

type sentMessage struct {
	to    string
	text  string
	media *dto.MediaPayload
}

type fakeMessenger struct {
	mu    sync.Mutex
	sent  []sentMessage
	media map[string][]byte
	mimes map[string]string
}

func (m *fakeMessenger) SendText(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: to, text: body})
	return nil
}

func (m *fakeMessenger) SendMedia(_ context.Context, to string, media *dto.MediaPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: to, media: media})
	return nil
}

func (m *fakeMessenger) DownloadMedia(_ context.Context, mediaID string) ([]byte, string, error) {
	data, ok := m.media[mediaID]
	if !ok {
		return nil, "", errors.New("media not found")
	}
	return data, m.mimes[mediaID], nil
}

func (m *fakeMessenger) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}
