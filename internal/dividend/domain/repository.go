package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is logic-free persistence. Methods accept the handle so callers
// can compose several domains inside one transaction.
type Repository interface {
	InsertDistribution(ctx context.Context, db *gorm.DB, distribution *Distribution) error
	// MaxSeq returns the highest Seq recorded for the panel, zero when none.
	MaxSeq(ctx context.Context, db *gorm.DB, panelID snowflake.ID) (int64, error)
	ListDistributions(ctx context.Context, db *gorm.DB, panelID snowflake.ID) ([]*Distribution, error)
	ListDistributionsAfter(ctx context.Context, db *gorm.DB, panelID snowflake.ID, afterSeq int64) ([]*Distribution, error)
	// AddClaimedTotal bumps the distribution's claimed bookkeeping, only
	// while the deposit covers it; reports whether the row was updated.
	AddClaimedTotal(ctx context.Context, db *gorm.DB, distributionID snowflake.ID, amount int64) (bool, error)

	InsertDistributionShares(ctx context.Context, db *gorm.DB, shares []*DistributionShare) error
	GetDistributionShare(ctx context.Context, db *gorm.DB, distributionID snowflake.ID, address string) (*DistributionShare, error)

	GetClaimState(ctx context.Context, db *gorm.DB, panelID snowflake.ID, address string) (*ClaimState, error)
	// AdvanceClaimState moves the watermark forward, inserting the given row
	// when the holder has never claimed. Returns ErrClaimConflict when the
	// watermark already sits at or past state.LastClaimedSeq.
	AdvanceClaimState(ctx context.Context, db *gorm.DB, state *ClaimState) error
}
