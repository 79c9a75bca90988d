package analytics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/polyswap/polyswap-api/internal/analytics"
	"github.com/polyswap/polyswap-api/internal/exchange"
	"github.com/polyswap/polyswap-api/internal/settings"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&exchange.Transaction{},
		&settings.Setting{},
		&analytics.VisitorLog{},
	))
	return db
}

func stubPriceServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","price":"100000"},
			{"symbol":"ETHUSDT","price":"4000"},
			{"symbol":"ETHBTC","price":"0.04"}
		]`))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, priceURL string) (*analytics.Service, *gorm.DB, *settings.Service) {
	t.Helper()
	db := newTestDB(t)
	settingsService := settings.NewService(db)
	service := analytics.NewService(db, exchange.NewDatabase(db), settingsService,
		analytics.NewPriceClientWithURL(priceURL))
	return service, db, settingsService
}

func TestPricesFiltersToUSDTPairs(t *testing.T) {
	server := stubPriceServer(t)
	client := analytics.NewPriceClientWithURL(server.URL)

	prices := client.Prices(context.Background())

	assert.Equal(t, 100000.0, prices["BTC"])
	assert.Equal(t, 4000.0, prices["ETH"])
	assert.NotContains(t, prices, "ETHBTC", "non-USDT pairs are skipped")
	assert.Equal(t, 1.0, prices["USDC"], "stablecoins are pinned")
}

func TestPricesFallBackWhenFeedIsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	client := analytics.NewPriceClientWithURL(server.URL)

	prices := client.Prices(context.Background())

	assert.NotEmpty(t, prices["BTC"], "fallback prices keep the dashboard working")
	assert.Equal(t, 1.0, prices["USDT"])
}

func TestReportAggregatesCompletedVolume(t *testing.T) {
	server := stubPriceServer(t)
	service, db, settingsService := newTestService(t, server.URL)
	ctx := context.Background()
	require.NoError(t, settingsService.SetCommissionRate(ctx, 0.5))

	seed := []exchange.Transaction{
		{TransactionID: "tx-1", ChangeNowID: "cn-1", FromCurrency: "btc", FromAmount: 0.1,
			Status: string(exchange.StatusCompleted)},
		{TransactionID: "tx-2", StealthexID: "stx-2", FromCurrency: "eth", FromAmount: 2,
			Status: string(exchange.StatusCompleted)},
		{TransactionID: "tx-3", ChangeNowID: "cn-3", FromCurrency: "btc", FromAmount: 1,
			Status: string(exchange.StatusFailed)},
		{TransactionID: "tx-4", ChangeNowID: "cn-4", FromCurrency: "btc", FromAmount: 1,
			Status: string(exchange.StatusAwaitingDeposit)},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	report, err := service.Report(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Analytics.TotalTransactions)
	assert.Equal(t, 2, report.Analytics.CompletedCount)
	assert.InDelta(t, 0.1+2+1+1, report.Analytics.TotalVolume, 1e-9)
	// 0.1 BTC * 100000 + 2 ETH * 4000, completed rows only.
	assert.InDelta(t, 18000, report.Analytics.TotalVolumeUSD, 1e-6)
	assert.InDelta(t, 18000*0.005, report.Analytics.TotalCommissionUSD, 1e-6)
	assert.InDelta(t, 50, report.Analytics.SuccessRate, 1e-9)
	assert.Len(t, report.Transactions, 4)
}

func TestReportOnEmptyDatabase(t *testing.T) {
	server := stubPriceServer(t)
	service, _, _ := newTestService(t, server.URL)

	report, err := service.Report(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Analytics.TotalTransactions)
	assert.Zero(t, report.Analytics.SuccessRate)
	assert.Empty(t, report.Transactions)
}

func TestTrackVisitDeduplicatesByIPHash(t *testing.T) {
	server := stubPriceServer(t)
	service, db, settingsService := newTestService(t, server.URL)
	ctx := context.Background()

	service.TrackVisit(ctx, "203.0.113.7", "agent-a")
	service.TrackVisit(ctx, "203.0.113.7", "agent-b")
	service.TrackVisit(ctx, "203.0.113.8", "agent-a")

	var unique int64
	require.NoError(t, db.Model(&analytics.VisitorLog{}).Count(&unique).Error)
	assert.Equal(t, int64(2), unique, "same IP hashes to the same row")
	assert.Equal(t, int64(3), settingsService.TotalVisits(ctx), "every visit bumps the counter")

	var logged analytics.VisitorLog
	require.NoError(t, db.First(&logged).Error)
	assert.Len(t, logged.IPHash, 64)
	assert.NotContains(t, logged.IPHash, "203.0.113", "raw IP is never stored")
}
