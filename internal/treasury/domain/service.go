package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	// Credit adds funds to an account. Admin role; stands in for the
	// off-ramp/on-ramp boundary.
	Credit(ctx context.Context, to string, amount int64) error
	BalanceOf(ctx context.Context, address string) (int64, error)
	// TransferTx moves funds between accounts inside the caller's
	// transaction, so a failed payment aborts the enclosing operation.
	TransferTx(ctx context.Context, tx *gorm.DB, from, to string, amount int64) error
}

// Repository is logic-free persistence. Methods accept the handle so callers
// can compose several domains inside one transaction.
type Repository interface {
	GetAccount(ctx context.Context, db *gorm.DB, address string) (*Account, error)
	// CreditAccount adds to an existing balance or inserts the given row
	// when the address has no account yet.
	CreditAccount(ctx context.Context, db *gorm.DB, account *Account, amount int64) error
	// DebitAccount subtracts amount only when the balance covers it; reports
	// whether the row was updated.
	DebitAccount(ctx context.Context, db *gorm.DB, address string, amount int64, now time.Time) (bool, error)
}

var (
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidAddress    = errors.New("invalid_address")
	ErrInsufficientFunds = errors.New("insufficient_funds")
)
