package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateLedgerRequest struct {
	PanelID snowflake.ID
	Name    string
	Symbol  string
}

type Service interface {
	// CreateLedger creates the share ledger for a panel, at most one per
	// panel. Admin role.
	CreateLedger(ctx context.Context, req CreateLedgerRequest) (Ledger, error)
	// Mint fixes the total supply and credits it to a single recipient,
	// exactly once per ledger. Minter role.
	Mint(ctx context.Context, panelID snowflake.ID, to string, amount int64) (Ledger, error)
	// Transfer moves shares from the caller to another holder.
	Transfer(ctx context.Context, panelID snowflake.ID, to string, amount int64) error
	// TransferFrom moves shares on behalf of the owner, within the caller's
	// approved allowance.
	TransferFrom(ctx context.Context, panelID snowflake.ID, from, to string, amount int64) error
	// Approve sets the caller's allowance for a spender to an absolute amount.
	Approve(ctx context.Context, panelID snowflake.ID, spender string, amount int64) error

	BalanceOf(ctx context.Context, panelID snowflake.ID, address string) (int64, error)
	AllowanceOf(ctx context.Context, panelID snowflake.ID, owner, spender string) (int64, error)
	Holders(ctx context.Context, panelID snowflake.ID) ([]Holding, error)
	LedgerDetails(ctx context.Context, panelID snowflake.ID) (Ledger, error)

	// CreateLedgerTx and MintTx run inside the caller's transaction and skip
	// the role and pause gates, which the caller is expected to hold.
	CreateLedgerTx(ctx context.Context, tx *gorm.DB, req CreateLedgerRequest) (Ledger, error)
	MintTx(ctx context.Context, tx *gorm.DB, ledgerID snowflake.ID, to string, amount int64) error
	// TransferTx moves shares between two named holders inside the caller's
	// transaction. Used by the sale settlement path.
	TransferTx(ctx context.Context, tx *gorm.DB, ledgerID snowflake.ID, from, to string, amount int64) error
}

var (
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidAddress        = errors.New("invalid_address")
	ErrSelfTransfer          = errors.New("cannot transfer to self")
	ErrLedgerExists          = errors.New("share_ledger_exists")
	ErrAlreadyMinted         = errors.New("shares already minted")
	ErrNotMinted             = errors.New("shares not minted")
	ErrPanelInactive         = errors.New("panel is not active")
	ErrInsufficientBalance   = errors.New("insufficient_balance")
	ErrInsufficientAllowance = errors.New("insufficient_allowance")
	ErrNotFound              = errors.New("share ledger does not exist")
)
