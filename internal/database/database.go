package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/polyswap/polyswap-api/internal/analytics"
	"github.com/polyswap/polyswap-api/internal/exchange"
	"github.com/polyswap/polyswap-api/internal/settings"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "polyswap.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&exchange.Transaction{},
		&settings.Setting{},
		&analytics.VisitorLog{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
