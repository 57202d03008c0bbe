package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository is logic-free persistence. Methods accept the handle so callers
// can compose several domains inside one transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, panel *Panel) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Panel, error)
	FindBySerialNumber(ctx context.Context, db *gorm.DB, serial string) (*Panel, error)
	ListByOwner(ctx context.Context, db *gorm.DB, owner string, page pagination.Pagination) ([]*Panel, error)
	UpdateMetadata(ctx context.Context, db *gorm.DB, panel *Panel) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error
	LinkShareLedger(ctx context.Context, db *gorm.DB, id, ledgerID snowflake.ID, now time.Time) (bool, error)
}
