package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"finbot/pkg/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCurrencyServiceRate(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/json/last/USD-BRL":
			w.Write([]byte(`{"USDBRL":{"code":"USD","codein":"BRL","bid":"5.25","ask":"5.26"}}`))
		case "/json/last/EUR-BRL":
			w.Write([]byte(`{"EURBRL":{"bid":"not a number"}}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc := NewCurrencyService(&config.CurrencyConfig{APIURL: srv.URL + "/", CacheTTL: time.Hour}, "brl", zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "5.25", svc.Rate(ctx, "usd").String())
	assert.Equal(t, "5.25", svc.Rate(ctx, "USD").String())
	assert.Equal(t, int32(1), hits.Load(), "second lookup is cached")

	assert.Equal(t, "1", svc.Rate(ctx, "EUR").String())
	assert.Equal(t, "1", svc.Rate(ctx, "XYZ").String())
	assert.Equal(t, "1", svc.Rate(ctx, "BRL").String())
	assert.Equal(t, "1", svc.Rate(ctx, "").String())
	assert.Equal(t, int32(3), hits.Load())
}

func TestCurrencyServiceCacheExpires(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"USDBRL":{"bid":"5.00"}}`))
	}))
	defer srv.Close()

	svc := NewCurrencyService(&config.CurrencyConfig{APIURL: srv.URL, CacheTTL: time.Hour}, "BRL", zap.NewNop())
	now := time.Now()
	svc.now = func() time.Time { return now }

	svc.Rate(context.Background(), "USD")
	now = now.Add(2 * time.Hour)
	svc.Rate(context.Background(), "USD")
	assert.Equal(t, int32(2), hits.Load())
}

func TestCurrencyServiceUnreachable(t *testing.T) {
	svc := NewCurrencyService(&config.CurrencyConfig{APIURL: "http://127.0.0.1:1", CacheTTL: time.Hour}, "BRL", zap.NewNop())
	assert.Equal(t, "1", svc.Rate(context.Background(), "USD").String())
}
