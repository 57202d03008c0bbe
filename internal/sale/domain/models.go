package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Sale is a primary listing of panel shares at a fixed price, open until
// EndsAt or an explicit close. Shares are not escrowed; settlement checks
// the seller's balance at purchase time.
type Sale struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	PanelID       snowflake.ID `gorm:"not null;index:idx_sales_panel_id" json:"panel_id"`
	SellerAddress string       `gorm:"not null" json:"seller_address"`
	PricePerShare int64        `gorm:"not null" json:"price_per_share"`
	SharesForSale int64        `gorm:"not null" json:"shares_for_sale"`
	SharesSold    int64        `gorm:"not null;default:0" json:"shares_sold"`
	EndsAt        time.Time    `gorm:"not null" json:"ends_at"`
	Active        bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Sale) TableName() string { return "sales" }
