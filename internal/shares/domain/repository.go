package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is logic-free persistence. Methods accept the handle so callers
// can compose several domains inside one transaction.
type Repository interface {
	InsertLedger(ctx context.Context, db *gorm.DB, ledger *Ledger) error
	FindLedgerByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Ledger, error)
	FindLedgerByPanelID(ctx context.Context, db *gorm.DB, panelID snowflake.ID) (*Ledger, error)
	// MarkMinted fixes the supply and flips the minted flag, only when the
	// ledger has not been minted yet; reports whether the row was updated.
	MarkMinted(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, supply int64) (bool, error)

	GetHolding(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, address string) (*Holding, error)
	// CreditHolding adds to an existing balance or inserts the given row when
	// the holder has no row yet.
	CreditHolding(ctx context.Context, db *gorm.DB, holding *Holding, amount int64) error
	// DebitHolding subtracts amount only when the balance covers it; reports
	// whether the row was updated.
	DebitHolding(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, address string, amount int64, now time.Time) (bool, error)
	ListHoldings(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID) ([]*Holding, error)

	GetAllowance(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, owner, spender string) (*Allowance, error)
	// SetAllowance overwrites the allowance to an absolute amount, inserting
	// the given row when none exists.
	SetAllowance(ctx context.Context, db *gorm.DB, allowance *Allowance) error
	// DebitAllowance subtracts amount only when the allowance covers it;
	// reports whether the row was updated.
	DebitAllowance(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, owner, spender string, amount int64, now time.Time) (bool, error)
}
