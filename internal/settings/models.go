package settings

import (
	"time"

	"gorm.io/gorm"
)

// Setting is a single named application value. The commission rate and the
// page-view counter both live here.
type Setting struct {
	gorm.Model `json:"-"`
	Key        string    `gorm:"uniqueIndex" json:"key"`
	Value      string    `json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	KeyCommissionRate = "commission_rate"
	KeyTotalVisits    = "total_visits"
)
