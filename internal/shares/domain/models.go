package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Ledger is the fractional-ownership ledger scoped to one panel. Supply is
// zero until minted, then fixed forever.
type Ledger struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	PanelID     snowflake.ID `gorm:"not null;uniqueIndex:ux_share_ledgers_panel_id" json:"panel_id"`
	Name        string       `gorm:"not null;default:''" json:"name"`
	Symbol      string       `gorm:"not null;default:''" json:"symbol"`
	TotalSupply int64        `gorm:"not null;default:0" json:"total_supply"`
	Minted      bool         `gorm:"not null;default:false" json:"minted"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Ledger) TableName() string { return "share_ledgers" }

// Holding is one holder's balance. Rows are kept when the balance reaches
// zero so dividend computation never has to rediscover a holder of record.
type Holding struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	LedgerID  snowflake.ID `gorm:"not null;uniqueIndex:ux_share_holdings_ledger_address,priority:1" json:"ledger_id"`
	Address   string       `gorm:"not null;uniqueIndex:ux_share_holdings_ledger_address,priority:2" json:"address"`
	Balance   int64        `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Holding) TableName() string { return "share_holdings" }

// Allowance lets a spender move shares on the owner's behalf.
type Allowance struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	LedgerID       snowflake.ID `gorm:"not null;uniqueIndex:ux_share_allowances_key,priority:1" json:"ledger_id"`
	OwnerAddress   string       `gorm:"not null;uniqueIndex:ux_share_allowances_key,priority:2" json:"owner_address"`
	SpenderAddress string       `gorm:"not null;uniqueIndex:ux_share_allowances_key,priority:3" json:"spender_address"`
	Amount         int64        `gorm:"not null;default:0" json:"amount"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Allowance) TableName() string { return "share_allowances" }
