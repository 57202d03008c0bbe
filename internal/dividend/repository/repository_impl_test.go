package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/dividend/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openClaimDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	_ = db.Exec("PRAGMA journal_mode = WAL").Error

	stmts := []string{
		`CREATE TABLE dividend_claims (
			id BIGINT PRIMARY KEY,
			panel_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			last_claimed_seq BIGINT NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_dividend_claims_panel_address ON dividend_claims (panel_id, address)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	return db
}

func TestAdvanceClaimStateInsertsAndAdvances(t *testing.T) {
	ctx := context.Background()
	db := openClaimDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	r := Provide()

	panelID := node.Generate()
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	if err := r.AdvanceClaimState(ctx, db, &domain.ClaimState{
		ID:             node.Generate(),
		PanelID:        panelID,
		Address:        "holder",
		LastClaimedSeq: 1,
		UpdatedAt:      at,
	}); err != nil {
		t.Fatalf("first advance: %v", err)
	}

	later := at.Add(time.Hour)
	if err := r.AdvanceClaimState(ctx, db, &domain.ClaimState{
		ID:             node.Generate(),
		PanelID:        panelID,
		Address:        "holder",
		LastClaimedSeq: 3,
		UpdatedAt:      later,
	}); err != nil {
		t.Fatalf("second advance: %v", err)
	}

	state, err := r.GetClaimState(ctx, db, panelID, "holder")
	if err != nil {
		t.Fatalf("get claim state: %v", err)
	}
	if state == nil || state.LastClaimedSeq != 3 {
		t.Fatalf("watermark = %+v, want seq 3", state)
	}
	if !state.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at = %v, want %v", state.UpdatedAt, later)
	}
}

// Two claims that both read watermark 0 must not both succeed. The first
// writer wins; the second sees its guarded update match nothing against a
// row that already exists and has to abort, otherwise the holder is paid
// twice out of custody that belongs to everyone else.
func TestAdvanceClaimStateStaleWatermarkConflicts(t *testing.T) {
	ctx := context.Background()
	db := openClaimDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	r := Provide()

	panelID := node.Generate()
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	winner := &domain.ClaimState{
		ID:             node.Generate(),
		PanelID:        panelID,
		Address:        "holder",
		LastClaimedSeq: 2,
		UpdatedAt:      at,
	}
	if err := r.AdvanceClaimState(ctx, db, winner); err != nil {
		t.Fatalf("winning advance: %v", err)
	}

	// The loser computed the same entitlements from the same stale read.
	loser := &domain.ClaimState{
		ID:             node.Generate(),
		PanelID:        panelID,
		Address:        "holder",
		LastClaimedSeq: 2,
		UpdatedAt:      at.Add(time.Minute),
	}
	err = r.AdvanceClaimState(ctx, db, loser)
	if !errors.Is(err, domain.ErrClaimConflict) {
		t.Fatalf("stale advance err = %v, want ErrClaimConflict", err)
	}

	// Moving backwards conflicts too.
	behind := &domain.ClaimState{
		ID:             node.Generate(),
		PanelID:        panelID,
		Address:        "holder",
		LastClaimedSeq: 1,
		UpdatedAt:      at.Add(time.Minute),
	}
	if err := r.AdvanceClaimState(ctx, db, behind); !errors.Is(err, domain.ErrClaimConflict) {
		t.Fatalf("backwards advance err = %v, want ErrClaimConflict", err)
	}

	state, err := r.GetClaimState(ctx, db, panelID, "holder")
	if err != nil {
		t.Fatalf("get claim state: %v", err)
	}
	if state.LastClaimedSeq != 2 {
		t.Fatalf("watermark = %d, want 2", state.LastClaimedSeq)
	}
	if !state.UpdatedAt.Equal(at) {
		t.Fatalf("updated_at = %v, want untouched %v", state.UpdatedAt, at)
	}
}
