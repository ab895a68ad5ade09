package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"finbot/pkg/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cachedRate struct {
	rate    decimal.Decimal
	fetched time.Time
}

// CurrencyService looks up exchange rates against the base currency from
// AwesomeAPI. It never fails: any problem yields a rate of 1.
type CurrencyService struct {
	baseURL      string
	baseCurrency string
	ttl          time.Duration
	httpClient   *http.Client
	logger       *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedRate
	now   func() time.Time
}

func NewCurrencyService(cfg *config.CurrencyConfig, baseCurrency string, logger *zap.Logger) *CurrencyService {
	return &CurrencyService{
		baseURL:      strings.TrimRight(cfg.APIURL, "/"),
		baseCurrency: strings.ToUpper(baseCurrency),
		ttl:          cfg.CacheTTL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		cache:        make(map[string]cachedRate),
		now:          time.Now,
	}
}

func (s *CurrencyService) Rate(ctx context.Context, code string) decimal.Decimal {
	one := decimal.NewFromInt(1)
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == s.baseCurrency {
		return one
	}

	s.mu.Lock()
	cached, ok := s.cache[code]
	s.mu.Unlock()
	if ok && s.now().Sub(cached.fetched) < s.ttl {
		return cached.rate
	}

	rate, err := s.fetch(ctx, code)
	if err != nil {
		s.logger.Warn("Exchange rate lookup failed, using 1.0",
			zap.String("currency", code),
			zap.Error(err),
		)
		return one
	}

	s.mu.Lock()
	s.cache[code] = cachedRate{rate: rate, fetched: s.now()}
	s.mu.Unlock()
	return rate
}

// fetch calls GET /json/last/{CODE}-{BASE}; the response is keyed by the
// pair without the dash, e.g. {"USDBRL": {"bid": "5.25"}}.
func (s *CurrencyService) fetch(ctx context.Context, code string) (decimal.Decimal, error) {
	pair := code + "-" + s.baseCurrency
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/json/last/"+pair, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("rate API returned status %d: %s", resp.StatusCode, string(body))
	}

	var quotes map[string]struct {
		Bid string `json:"bid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode rate response: %w", err)
	}

	quote, ok := quotes[code+s.baseCurrency]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for %s", pair)
	}
	rate, err := decimal.NewFromString(quote.Bid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid bid %q: %w", quote.Bid, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s", rate)
	}
	return rate, nil
}
