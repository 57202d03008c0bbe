package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Distribution is one append-only dividend record. Seq is the per-panel
// chronological index; TotalSupply and the DistributionShare rows freeze the
// holder balances the payout is computed against, so later transfers never
// rewrite past entitlements.
type Distribution struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	PanelID      snowflake.ID `gorm:"not null;uniqueIndex:ux_dividend_distributions_panel_seq,priority:1" json:"panel_id"`
	Seq          int64        `gorm:"not null;uniqueIndex:ux_dividend_distributions_panel_seq,priority:2" json:"seq"`
	Amount       int64        `gorm:"not null" json:"amount"`
	TotalSupply  int64        `gorm:"not null" json:"total_supply"`
	ClaimedTotal int64        `gorm:"not null;default:0" json:"claimed_total"`
	OccurredAt   time.Time    `gorm:"not null" json:"occurred_at"`
	Distributed  bool         `gorm:"not null;default:true" json:"distributed"`
}

// TableName sets the database table name.
func (Distribution) TableName() string { return "dividend_distributions" }

// DistributionShare is one holder's balance at distribution time.
type DistributionShare struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	DistributionID snowflake.ID `gorm:"not null;uniqueIndex:ux_dividend_distribution_shares_key,priority:1" json:"distribution_id"`
	Address        string       `gorm:"not null;uniqueIndex:ux_dividend_distribution_shares_key,priority:2" json:"address"`
	Balance        int64        `gorm:"not null" json:"balance"`
}

// TableName sets the database table name.
func (DistributionShare) TableName() string { return "dividend_distribution_shares" }

// ClaimState is a holder's claim watermark: every distribution with
// Seq <= LastClaimedSeq has been paid out to this address.
type ClaimState struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PanelID        snowflake.ID `gorm:"not null;uniqueIndex:ux_dividend_claims_panel_address,priority:1" json:"panel_id"`
	Address        string       `gorm:"not null;uniqueIndex:ux_dividend_claims_panel_address,priority:2" json:"address"`
	LastClaimedSeq int64        `gorm:"not null;default:0" json:"last_claimed_seq"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (ClaimState) TableName() string { return "dividend_claims" }
