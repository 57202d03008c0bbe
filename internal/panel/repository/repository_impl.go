package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, panel *domain.Panel) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO panels (id, serial_number, manufacturer, name, location, capacity_watts, owner_address, active, share_ledger_id, registered_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		panel.ID,
		panel.SerialNumber,
		panel.Manufacturer,
		panel.Name,
		panel.Location,
		panel.CapacityWatts,
		panel.OwnerAddress,
		panel.Active,
		panel.ShareLedgerID,
		panel.RegisteredAt,
		panel.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Panel, error) {
	var panel domain.Panel
	err := db.WithContext(ctx).Raw(
		`SELECT id, serial_number, manufacturer, name, location, capacity_watts, owner_address, active, share_ledger_id, registered_at, updated_at
		 FROM panels WHERE id = ?`,
		id,
	).Scan(&panel).Error
	if err != nil {
		return nil, err
	}
	if panel.ID == 0 {
		return nil, nil
	}
	return &panel, nil
}

func (r *repo) FindBySerialNumber(ctx context.Context, db *gorm.DB, serial string) (*domain.Panel, error) {
	var panel domain.Panel
	err := db.WithContext(ctx).Raw(
		`SELECT id, serial_number, manufacturer, name, location, capacity_watts, owner_address, active, share_ledger_id, registered_at, updated_at
		 FROM panels WHERE serial_number = ?`,
		serial,
	).Scan(&panel).Error
	if err != nil {
		return nil, err
	}
	if panel.ID == 0 {
		return nil, nil
	}
	return &panel, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, owner string, page pagination.Pagination) ([]*domain.Panel, error) {
	var panels []*domain.Panel
	stmt := db.WithContext(ctx).
		Model(&domain.Panel{}).
		Where("owner_address = ?", owner)

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.ID != "" {
			if id, parseErr := snowflake.ParseString(cursor.ID); parseErr == nil {
				stmt = stmt.Where("id < ?", id)
			}
		}
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	err := stmt.
		Order("id desc").
		Limit(limit + 1).
		Find(&panels).Error
	if err != nil {
		return nil, err
	}
	return panels, nil
}

func (r *repo) UpdateMetadata(ctx context.Context, db *gorm.DB, panel *domain.Panel) error {
	return db.WithContext(ctx).Exec(
		`UPDATE panels SET name = ?, location = ?, capacity_watts = ?, updated_at = ? WHERE id = ?`,
		panel.Name,
		panel.Location,
		panel.CapacityWatts,
		panel.UpdatedAt,
		panel.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE panels SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		now,
		id,
	).Error
}

// LinkShareLedger sets the ledger reference only when none is set yet and
// reports whether the row was updated.
func (r *repo) LinkShareLedger(ctx context.Context, db *gorm.DB, id, ledgerID snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE panels SET share_ledger_id = ?, updated_at = ? WHERE id = ? AND share_ledger_id IS NULL`,
		ledgerID,
		now,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
