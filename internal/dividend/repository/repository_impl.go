package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/dividend/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertDistribution(ctx context.Context, db *gorm.DB, distribution *domain.Distribution) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dividend_distributions (id, panel_id, seq, amount, total_supply, claimed_total, occurred_at, distributed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		distribution.ID,
		distribution.PanelID,
		distribution.Seq,
		distribution.Amount,
		distribution.TotalSupply,
		distribution.ClaimedTotal,
		distribution.OccurredAt,
		distribution.Distributed,
	).Error
}

func (r *repo) MaxSeq(ctx context.Context, db *gorm.DB, panelID snowflake.ID) (int64, error) {
	var maxSeq int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(seq), 0) FROM dividend_distributions WHERE panel_id = ?`,
		panelID,
	).Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq, nil
}

func (r *repo) ListDistributions(ctx context.Context, db *gorm.DB, panelID snowflake.ID) ([]*domain.Distribution, error) {
	var distributions []*domain.Distribution
	err := db.WithContext(ctx).Raw(
		`SELECT id, panel_id, seq, amount, total_supply, claimed_total, occurred_at, distributed
		 FROM dividend_distributions WHERE panel_id = ? ORDER BY seq`,
		panelID,
	).Scan(&distributions).Error
	if err != nil {
		return nil, err
	}
	return distributions, nil
}

func (r *repo) ListDistributionsAfter(ctx context.Context, db *gorm.DB, panelID snowflake.ID, afterSeq int64) ([]*domain.Distribution, error) {
	var distributions []*domain.Distribution
	err := db.WithContext(ctx).Raw(
		`SELECT id, panel_id, seq, amount, total_supply, claimed_total, occurred_at, distributed
		 FROM dividend_distributions WHERE panel_id = ? AND seq > ? ORDER BY seq`,
		panelID,
		afterSeq,
	).Scan(&distributions).Error
	if err != nil {
		return nil, err
	}
	return distributions, nil
}

func (r *repo) AddClaimedTotal(ctx context.Context, db *gorm.DB, distributionID snowflake.ID, amount int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE dividend_distributions SET claimed_total = claimed_total + ?
		 WHERE id = ? AND claimed_total + ? <= amount`,
		amount,
		distributionID,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertDistributionShares(ctx context.Context, db *gorm.DB, shares []*domain.DistributionShare) error {
	for _, share := range shares {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO dividend_distribution_shares (id, distribution_id, address, balance)
			 VALUES (?, ?, ?, ?)`,
			share.ID,
			share.DistributionID,
			share.Address,
			share.Balance,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) GetDistributionShare(ctx context.Context, db *gorm.DB, distributionID snowflake.ID, address string) (*domain.DistributionShare, error) {
	var share domain.DistributionShare
	err := db.WithContext(ctx).Raw(
		`SELECT id, distribution_id, address, balance
		 FROM dividend_distribution_shares WHERE distribution_id = ? AND address = ?`,
		distributionID,
		address,
	).Scan(&share).Error
	if err != nil {
		return nil, err
	}
	if share.ID == 0 {
		return nil, nil
	}
	return &share, nil
}

func (r *repo) GetClaimState(ctx context.Context, db *gorm.DB, panelID snowflake.ID, address string) (*domain.ClaimState, error) {
	var state domain.ClaimState
	err := db.WithContext(ctx).Raw(
		`SELECT id, panel_id, address, last_claimed_seq, updated_at
		 FROM dividend_claims WHERE panel_id = ? AND address = ?`,
		panelID,
		address,
	).Scan(&state).Error
	if err != nil {
		return nil, err
	}
	if state.ID == 0 {
		return nil, nil
	}
	return &state, nil
}

func (r *repo) AdvanceClaimState(ctx context.Context, db *gorm.DB, state *domain.ClaimState) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE dividend_claims SET last_claimed_seq = ?, updated_at = ?
		 WHERE panel_id = ? AND address = ? AND last_claimed_seq < ?`,
		state.LastClaimedSeq,
		state.UpdatedAt,
		state.PanelID,
		state.Address,
		state.LastClaimedSeq,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	existing, err := r.GetClaimState(ctx, db, state.PanelID, state.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		// A row exists but the guarded update did not move it, so another
		// claim already advanced past state.LastClaimedSeq. The entitlements
		// this claim computed were paid by the other one.
		return domain.ErrClaimConflict
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO dividend_claims (id, panel_id, address, last_claimed_seq, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		state.ID,
		state.PanelID,
		state.Address,
		state.LastClaimedSeq,
		state.UpdatedAt,
	).Error
}
