package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CustodyAddress holds dividend deposits between distribution and claim.
// Partition between panels is bookkeeping on the distribution rows, not
// separate accounts.
const CustodyAddress = "treasury:dividends"

// Account is one address's balance of the payment asset, in smallest units.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Address   string       `gorm:"not null;uniqueIndex:ux_treasury_accounts_address" json:"address"`
	Balance   int64        `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "treasury_accounts" }
