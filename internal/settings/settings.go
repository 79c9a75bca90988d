package settings

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/polyswap/polyswap-api/internal/provider"
	"github.com/polyswap/polyswap-api/pkg/response"
)

// DefaultCommission is the platform markup percentage used whenever the
// stored value is missing or unreadable. A quote must never fail because
// settings are unavailable.
const DefaultCommission = 0.4

// Service reads and writes application settings.
type Service struct {
	db *Database
}

// NewService creates a settings service backed by the given database.
func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// CommissionRate returns the current commission percentage. It never
// fails: missing rows, unreadable stores, and unparseable values all fall
// back to DefaultCommission with a warning.
func (s *Service) CommissionRate(ctx context.Context) float64 {
	value, err := s.db.Get(ctx, KeyCommissionRate)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Msg("failed to read commission rate, using default")
		}
		return DefaultCommission
	}

	rate, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
		log.Warn().Str("value", value).Msg("stored commission rate is not a number, using default")
		return DefaultCommission
	}
	return rate
}

// SetCommissionRate upserts the commission percentage. Concurrent writers
// are last-write-wins; this is an admin-only, low-frequency operation.
func (s *Service) SetCommissionRate(ctx context.Context, rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return &provider.ValidationError{Reason: "commission must be a non-negative number"}
	}
	return s.db.Upsert(ctx, KeyCommissionRate, strconv.FormatFloat(rate, 'f', -1, 64))
}

// IncrementVisits bumps the page-view counter by one.
func (s *Service) IncrementVisits(ctx context.Context) error {
	current, err := s.db.Get(ctx, KeyTotalVisits)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	visits, _ := strconv.ParseInt(current, 10, 64)
	return s.db.Upsert(ctx, KeyTotalVisits, strconv.FormatInt(visits+1, 10))
}

// TotalVisits returns the page-view counter, zero when never written.
func (s *Service) TotalVisits(ctx context.Context) int64 {
	value, err := s.db.Get(ctx, KeyTotalVisits)
	if err != nil {
		return 0
	}
	visits, _ := strconv.ParseInt(value, 10, 64)
	return visits
}

// Database wraps settings persistence.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Get(ctx context.Context, key string) (string, error) {
	var setting Setting
	if err := d.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (d *Database) Upsert(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
}

// GinHandlers contains HTTP handlers for settings endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for settings endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CommissionResponse is the public view of the commission setting.
type CommissionResponse struct {
	Percentage float64 `json:"percentage"`
}

// GetCommissionHandler handles GET requests for the current commission rate.
func (h *GinHandlers) GetCommissionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rate := h.service.CommissionRate(c.Request.Context())
		response.Success(c, CommissionResponse{Percentage: rate})
	}
}

// SetCommissionHandler handles PUT requests to update the commission rate.
// Admin only; guarded by JWT middleware at the router.
func (h *GinHandlers) SetCommissionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body CommissionResponse
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		if err := h.service.SetCommissionRate(c.Request.Context(), body.Percentage); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, CommissionResponse{Percentage: body.Percentage})
	}
}
