package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateSaleRequest struct {
	PanelID       snowflake.ID
	PricePerShare int64
	SharesForSale int64
	EndsAt        time.Time
}

type Service interface {
	// Create lists the caller's shares for sale.
	Create(ctx context.Context, req CreateSaleRequest) (Sale, error)
	// Buy pays the seller through the treasury and transfers the shares in
	// one transaction.
	Buy(ctx context.Context, saleID snowflake.ID, quantity int64) (Sale, error)
	// Close deactivates the sale. Seller or admin.
	Close(ctx context.Context, saleID snowflake.ID) error
	GetByID(ctx context.Context, saleID snowflake.ID) (Sale, error)
	ListByPanel(ctx context.Context, panelID snowflake.ID) ([]Sale, error)

	// CreateTx lists shares for a named seller inside the caller's
	// transaction. The caller is responsible for the pause and role gates.
	CreateTx(ctx context.Context, tx *gorm.DB, seller string, req CreateSaleRequest) (Sale, error)
}

// Repository is logic-free persistence. Methods accept the handle so callers
// can compose several domains inside one transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sale *Sale) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Sale, error)
	ListByPanel(ctx context.Context, db *gorm.DB, panelID snowflake.ID) ([]*Sale, error)
	// AddSharesSold bumps the sold counter only while the listing covers it;
	// reports whether the row was updated.
	AddSharesSold(ctx context.Context, db *gorm.DB, id snowflake.ID, quantity int64) (bool, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}

var (
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidDeadline    = errors.New("invalid_deadline")
	ErrNotFound           = errors.New("sale does not exist")
	ErrSaleEnded          = errors.New("sale has ended")
	ErrSaleClosed         = errors.New("sale is not active")
	ErrInsufficientShares = errors.New("insufficient shares available")
	ErrNotSeller          = errors.New("caller is not seller or admin")
	ErrSelfPurchase       = errors.New("cannot buy from own sale")
)
