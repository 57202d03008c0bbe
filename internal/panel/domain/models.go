package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Panel represents one physical solar asset. Rows are never deleted;
// deactivation is the only removal semantic.
type Panel struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	SerialNumber  string        `gorm:"not null;uniqueIndex:ux_panels_serial_number" json:"serial_number"`
	Manufacturer  string        `gorm:"not null;default:''" json:"manufacturer"`
	Name          string        `gorm:"not null;default:''" json:"name"`
	Location      string        `gorm:"not null;default:''" json:"location"`
	CapacityWatts int64         `gorm:"not null" json:"capacity_watts"`
	OwnerAddress  string        `gorm:"not null;index" json:"owner_address"`
	Active        bool          `gorm:"not null;default:true" json:"active"`
	ShareLedgerID *snowflake.ID `gorm:"" json:"share_ledger_id,omitempty"`
	RegisteredAt  time.Time     `gorm:"not null" json:"registered_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Panel) TableName() string { return "panels" }
