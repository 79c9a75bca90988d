package analytics

import (
	"time"

	"gorm.io/gorm"
)

// VisitorLog records one unique visitor, keyed by a SHA-256 hash of the
// client IP so no raw address is ever stored.
type VisitorLog struct {
	gorm.Model `json:"-"`
	IPHash     string    `gorm:"uniqueIndex" json:"ip_hash"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
}
