package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/shares/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertLedger(ctx context.Context, db *gorm.DB, ledger *domain.Ledger) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO share_ledgers (id, panel_id, name, symbol, total_supply, minted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ledger.ID,
		ledger.PanelID,
		ledger.Name,
		ledger.Symbol,
		ledger.TotalSupply,
		ledger.Minted,
		ledger.CreatedAt,
	).Error
}

func (r *repo) FindLedgerByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Ledger, error) {
	var ledger domain.Ledger
	err := db.WithContext(ctx).Raw(
		`SELECT id, panel_id, name, symbol, total_supply, minted, created_at
		 FROM share_ledgers WHERE id = ?`,
		id,
	).Scan(&ledger).Error
	if err != nil {
		return nil, err
	}
	if ledger.ID == 0 {
		return nil, nil
	}
	return &ledger, nil
}

func (r *repo) FindLedgerByPanelID(ctx context.Context, db *gorm.DB, panelID snowflake.ID) (*domain.Ledger, error) {
	var ledger domain.Ledger
	err := db.WithContext(ctx).Raw(
		`SELECT id, panel_id, name, symbol, total_supply, minted, created_at
		 FROM share_ledgers WHERE panel_id = ?`,
		panelID,
	).Scan(&ledger).Error
	if err != nil {
		return nil, err
	}
	if ledger.ID == 0 {
		return nil, nil
	}
	return &ledger, nil
}

func (r *repo) MarkMinted(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, supply int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE share_ledgers SET total_supply = ?, minted = TRUE WHERE id = ? AND minted = FALSE`,
		supply,
		ledgerID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) GetHolding(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, address string) (*domain.Holding, error) {
	var holding domain.Holding
	err := db.WithContext(ctx).Raw(
		`SELECT id, ledger_id, address, balance, created_at, updated_at
		 FROM share_holdings WHERE ledger_id = ? AND address = ?`,
		ledgerID,
		address,
	).Scan(&holding).Error
	if err != nil {
		return nil, err
	}
	if holding.ID == 0 {
		return nil, nil
	}
	return &holding, nil
}

func (r *repo) CreditHolding(ctx context.Context, db *gorm.DB, holding *domain.Holding, amount int64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE share_holdings SET balance = balance + ?, updated_at = ? WHERE ledger_id = ? AND address = ?`,
		amount,
		holding.UpdatedAt,
		holding.LedgerID,
		holding.Address,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO share_holdings (id, ledger_id, address, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		holding.ID,
		holding.LedgerID,
		holding.Address,
		amount,
		holding.CreatedAt,
		holding.UpdatedAt,
	).Error
}

func (r *repo) DebitHolding(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, address string, amount int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE share_holdings SET balance = balance - ?, updated_at = ?
		 WHERE ledger_id = ? AND address = ? AND balance >= ?`,
		amount,
		now,
		ledgerID,
		address,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListHoldings(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID) ([]*domain.Holding, error) {
	var holdings []*domain.Holding
	err := db.WithContext(ctx).Raw(
		`SELECT id, ledger_id, address, balance, created_at, updated_at
		 FROM share_holdings WHERE ledger_id = ? ORDER BY id`,
		ledgerID,
	).Scan(&holdings).Error
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

func (r *repo) GetAllowance(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, owner, spender string) (*domain.Allowance, error) {
	var allowance domain.Allowance
	err := db.WithContext(ctx).Raw(
		`SELECT id, ledger_id, owner_address, spender_address, amount, updated_at
		 FROM share_allowances WHERE ledger_id = ? AND owner_address = ? AND spender_address = ?`,
		ledgerID,
		owner,
		spender,
	).Scan(&allowance).Error
	if err != nil {
		return nil, err
	}
	if allowance.ID == 0 {
		return nil, nil
	}
	return &allowance, nil
}

func (r *repo) SetAllowance(ctx context.Context, db *gorm.DB, allowance *domain.Allowance) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE share_allowances SET amount = ?, updated_at = ?
		 WHERE ledger_id = ? AND owner_address = ? AND spender_address = ?`,
		allowance.Amount,
		allowance.UpdatedAt,
		allowance.LedgerID,
		allowance.OwnerAddress,
		allowance.SpenderAddress,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO share_allowances (id, ledger_id, owner_address, spender_address, amount, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		allowance.ID,
		allowance.LedgerID,
		allowance.OwnerAddress,
		allowance.SpenderAddress,
		allowance.Amount,
		allowance.UpdatedAt,
	).Error
}

func (r *repo) DebitAllowance(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID, owner, spender string, amount int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE share_allowances SET amount = amount - ?, updated_at = ?
		 WHERE ledger_id = ? AND owner_address = ? AND spender_address = ? AND amount >= ?`,
		amount,
		now,
		ledgerID,
		owner,
		spender,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
