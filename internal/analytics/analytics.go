package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/polyswap/polyswap-api/internal/exchange"
	"github.com/polyswap/polyswap-api/internal/settings"
	"github.com/polyswap/polyswap-api/pkg/response"
)

// Service computes read-only summaries over persisted transactions. It
// never mutates swap state.
type Service struct {
	db       *gorm.DB
	orders   *exchange.Database
	settings *settings.Service
	prices   *PriceClient
}

// NewService creates the analytics service.
func NewService(gormDB *gorm.DB, orders *exchange.Database, settingsSvc *settings.Service, prices *PriceClient) *Service {
	return &Service{
		db:       gormDB,
		orders:   orders,
		settings: settingsSvc,
		prices:   prices,
	}
}

// TransactionView is a transaction enriched with its approximate USD value.
type TransactionView struct {
	exchange.Transaction
	USDValue float64 `json:"usd_value,omitempty"`
}

// Summary aggregates volume, commission and success figures.
type Summary struct {
	TotalTransactions  int     `json:"total_transactions"`
	CompletedCount     int     `json:"completed_count"`
	TotalVolume        float64 `json:"total_volume"`
	TotalVolumeUSD     float64 `json:"total_volume_usd"`
	TotalCommissionUSD float64 `json:"total_commission_usd"`
	SuccessRate        float64 `json:"success_rate"`
	TotalVisits        int64   `json:"total_visits"`
	UniqueVisitors     int64   `json:"unique_visitors"`
}

// Report is the admin dashboard payload: all transactions newest first
// plus the aggregate summary.
type Report struct {
	Transactions []TransactionView `json:"transactions"`
	Analytics    Summary           `json:"analytics"`
}

// Report builds the dashboard view. Spot prices are best-effort: volume is
// valued as from_amount times the USD price of the from-currency, and the
// commission is approximated with the current rate since historical rates
// are not retained per transaction.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	transactions, err := s.orders.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	prices := s.prices.Prices(ctx)
	rate := s.settings.CommissionRate(ctx)

	report := &Report{
		Transactions: make([]TransactionView, 0, len(transactions)),
	}
	report.Analytics.TotalTransactions = len(transactions)

	for _, tx := range transactions {
		price := prices[strings.ToUpper(tx.FromCurrency)]
		usdValue := tx.FromAmount * price

		report.Analytics.TotalVolume += tx.FromAmount
		if exchange.Status(tx.Status) == exchange.StatusCompleted {
			report.Analytics.CompletedCount++
			report.Analytics.TotalVolumeUSD += usdValue
			report.Analytics.TotalCommissionUSD += usdValue * (rate / 100)
		}

		report.Transactions = append(report.Transactions, TransactionView{
			Transaction: tx,
			USDValue:    usdValue,
		})
	}

	if report.Analytics.TotalTransactions > 0 {
		report.Analytics.SuccessRate = float64(report.Analytics.CompletedCount) /
			float64(report.Analytics.TotalTransactions) * 100
	}

	report.Analytics.TotalVisits = s.settings.TotalVisits(ctx)
	s.db.WithContext(ctx).Model(&VisitorLog{}).Count(&report.Analytics.UniqueVisitors)

	return report, nil
}

// TrackVisit bumps the page-view counter and records the visitor hash.
// Failures are swallowed: visit tracking must never block the UI.
func (s *Service) TrackVisit(ctx context.Context, ip, userAgent string) {
	if err := s.settings.IncrementVisits(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to increment visit counter")
	}

	hash := sha256.Sum256([]byte(ip))
	visitor := VisitorLog{
		IPHash:    hex.EncodeToString(hash[:]),
		UserAgent: userAgent,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&visitor).Error
	if err != nil {
		log.Warn().Err(err).Msg("failed to record visitor")
	}
}

// GinHandlers contains HTTP handlers for analytics endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for analytics endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// ReportHandler handles GET requests for the admin dashboard report.
func (h *GinHandlers) ReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.service.Report(c.Request.Context())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, report)
	}
}

// TrackVisitHandler handles POST requests from the landing page. It always
// reports success even when tracking fails.
func (h *GinHandlers) TrackVisitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.service.TrackVisit(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		response.Success(c, gin.H{"tracked": true})
	}
}
