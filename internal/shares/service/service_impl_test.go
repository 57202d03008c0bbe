package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/actorctx"
	"github.com/heliovolt/solshare/internal/clock"
	"github.com/heliovolt/solshare/internal/events"
	panelrepository "github.com/heliovolt/solshare/internal/panel/repository"
	"github.com/heliovolt/solshare/internal/pause"
	"github.com/heliovolt/solshare/internal/shares/domain"
	"github.com/heliovolt/solshare/internal/shares/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type authzStub struct {
	roles map[string]map[string]bool
}

func newAuthzStub() *authzStub {
	return &authzStub{roles: map[string]map[string]bool{}}
}

func (a *authzStub) grant(role, account string) {
	if a.roles[role] == nil {
		a.roles[role] = map[string]bool{}
	}
	a.roles[role][account] = true
}

func (a *authzStub) GrantRole(ctx context.Context, role, account string) error {
	a.grant(role, account)
	return nil
}

func (a *authzStub) RevokeRole(ctx context.Context, role, account string) error {
	delete(a.roles[role], account)
	return nil
}

func (a *authzStub) HasRole(ctx context.Context, role, account string) (bool, error) {
	return a.roles[role][account], nil
}

func (a *authzStub) Require(ctx context.Context, role string) (string, error) {
	return a.RequireAny(ctx, role)
}

func (a *authzStub) RequireAny(ctx context.Context, roles ...string) (string, error) {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return "", accesscontrol.ErrInvalidActor
	}
	for _, role := range roles {
		if a.roles[role][actor] {
			return actor, nil
		}
	}
	return "", &accesscontrol.UnauthorizedError{Role: roles[0], Actor: actor}
}

type pauseStub struct {
	paused bool
}

func (p *pauseStub) Pause(ctx context.Context) error {
	p.paused = true
	return nil
}

func (p *pauseStub) Unpause(ctx context.Context) error {
	p.paused = false
	return nil
}

func (p *pauseStub) Paused(ctx context.Context) (bool, error) {
	return p.paused, nil
}

func (p *pauseStub) RequireActive(ctx context.Context) error {
	if p.paused {
		return pause.ErrPaused
	}
	return nil
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func openTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func prepareSharesSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	statements := []string{
		`CREATE TABLE panels (
			id BIGINT PRIMARY KEY,
			serial_number TEXT NOT NULL,
			manufacturer TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			capacity_watts BIGINT NOT NULL,
			owner_address TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			share_ledger_id BIGINT,
			registered_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_panels_serial_number ON panels (serial_number)`,
		`CREATE TABLE share_ledgers (
			id BIGINT PRIMARY KEY,
			panel_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			symbol TEXT NOT NULL DEFAULT '',
			total_supply BIGINT NOT NULL DEFAULT 0,
			minted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_share_ledgers_panel_id ON share_ledgers (panel_id)`,
		`CREATE TABLE share_holdings (
			id BIGINT PRIMARY KEY,
			ledger_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_share_holdings_ledger_address ON share_holdings (ledger_id, address)`,
		`CREATE TABLE share_allowances (
			id BIGINT PRIMARY KEY,
			ledger_id BIGINT NOT NULL,
			owner_address TEXT NOT NULL,
			spender_address TEXT NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0),
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_share_allowances_key ON share_allowances (ledger_id, owner_address, spender_address)`,
		`CREATE TABLE outbox_events (
			id BIGINT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			dedupe_key TEXT,
			occurred_at DATETIME NOT NULL,
			published_at DATETIME
		)`,
		`CREATE UNIQUE INDEX ux_outbox_events_dedupe_key ON outbox_events (dedupe_key)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func setupSharesService(t *testing.T, node *snowflake.Node, authz *authzStub, pauseSvc *pauseStub) (domain.Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	prepareSharesSchema(t, db)

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewSystem(),
		Repo:      repository.Provide(),
		PanelRepo: panelrepository.Provide(),
		AuthzSvc:  authz,
		PauseSvc:  pauseSvc,
		Outbox:    events.NewOutbox(zap.NewNop(), node),
	})
	return svc, db
}

func seedPanel(t *testing.T, db *gorm.DB, node *snowflake.Node, serial, owner string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	err := db.Exec(
		`INSERT INTO panels (id, serial_number, capacity_watts, owner_address, active, registered_at, updated_at)
		 VALUES (?, ?, 5000, ?, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, serial, owner,
	).Error
	if err != nil {
		t.Fatalf("seed panel: %v", err)
	}
	return id
}

func seedLedger(t *testing.T, svc domain.Service, db *gorm.DB, panelID snowflake.ID) domain.Ledger {
	t.Helper()
	var ledger domain.Ledger
	err := db.Transaction(func(tx *gorm.DB) error {
		created, err := svc.CreateLedgerTx(context.Background(), tx, domain.CreateLedgerRequest{
			PanelID: panelID,
			Name:    "Panel Shares",
			Symbol:  "PNL",
		})
		ledger = created
		return err
	})
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return ledger
}

func actorCtx(actor string) context.Context {
	return actorctx.WithActor(context.Background(), actor)
}

func sumBalances(t *testing.T, db *gorm.DB, ledgerID snowflake.ID) int64 {
	t.Helper()
	var sum int64
	if err := db.Raw(`SELECT COALESCE(SUM(balance), 0) FROM share_holdings WHERE ledger_id = ?`, ledgerID).Scan(&sum).Error; err != nil {
		t.Fatalf("sum balances: %v", err)
	}
	return sum
}

func countHoldings(t *testing.T, db *gorm.DB, ledgerID snowflake.ID) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM share_holdings WHERE ledger_id = ?`, ledgerID).Scan(&count).Error; err != nil {
		t.Fatalf("count holdings: %v", err)
	}
	return count
}

func TestMintExactlyOnce(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleMinter, "minter")
	svc, db := setupSharesService(t, node, authz, &pauseStub{})

	panelID := seedPanel(t, db, node, "SN-MINT-1", "owner")
	ledger := seedLedger(t, svc, db, panelID)
	ctx := actorCtx("minter")

	minted, err := svc.Mint(ctx, panelID, "owner", 1000)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !minted.Minted || minted.TotalSupply != 1000 {
		t.Fatalf("expected minted ledger with supply 1000, got %+v", minted)
	}

	if _, err := svc.Mint(ctx, panelID, "owner", 500); !errors.Is(err, domain.ErrAlreadyMinted) {
		t.Fatalf("expected ErrAlreadyMinted, got %v", err)
	}
	if sum := sumBalances(t, db, ledger.ID); sum != 1000 {
		t.Fatalf("expected total balances 1000 after rejected re-mint, got %d", sum)
	}
}

func TestMintRequiresRole(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	svc, db := setupSharesService(t, node, authz, &pauseStub{})

	panelID := seedPanel(t, db, node, "SN-MINT-2", "owner")
	ledger := seedLedger(t, svc, db, panelID)

	_, err := svc.Mint(actorCtx("intruder"), panelID, "intruder", 1000)
	if !errors.Is(err, accesscontrol.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	details, err := svc.LedgerDetails(context.Background(), panelID)
	if err != nil {
		t.Fatalf("ledger details: %v", err)
	}
	if details.Minted || details.TotalSupply != 0 {
		t.Fatalf("expected untouched ledger after denied mint, got %+v", details)
	}
	if count := countHoldings(t, db, ledger.ID); count != 0 {
		t.Fatalf("expected no holdings after denied mint, got %d", count)
	}

	// The same call passes once the role is granted.
	authz.grant(accesscontrol.RoleMinter, "intruder")
	minted, err := svc.Mint(actorCtx("intruder"), panelID, "intruder", 1000)
	if err != nil {
		t.Fatalf("mint after grant: %v", err)
	}
	if !minted.Minted || minted.TotalSupply != 1000 {
		t.Fatalf("expected mint after grant, got %+v", minted)
	}
}

func TestMintInactivePanel(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleMinter, "minter")
	svc, db := setupSharesService(t, node, authz, &pauseStub{})

	panelID := seedPanel(t, db, node, "SN-MINT-3", "owner")
	seedLedger(t, svc, db, panelID)
	if err := db.Exec(`UPDATE panels SET active = FALSE WHERE id = ?`, panelID).Error; err != nil {
		t.Fatalf("deactivate panel: %v", err)
	}

	if _, err := svc.Mint(actorCtx("minter"), panelID, "owner", 1000); !errors.Is(err, domain.ErrPanelInactive) {
		t.Fatalf("expected ErrPanelInactive, got %v", err)
	}
}

func TestTransferConservesSupply(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleMinter, "minter")
	svc, db := setupSharesService(t, node, authz, &pauseStub{})

	panelID := seedPanel(t, db, node, "SN-XFER-1", "alice")
	ledger := seedLedger(t, svc, db, panelID)
	if _, err := svc.Mint(actorCtx("minter"), panelID, "alice", 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := svc.Transfer(actorCtx("alice"), panelID, "bob", 300); err != nil {
		t.Fatalf("transfer to bob: %v", err)
	}
	if err := svc.Transfer(actorCtx("alice"), panelID, "carol", 200); err != nil {
		t.Fatalf("transfer to carol: %v", err)
	}

	for holder, want := range map[string]int64{"alice": 500, "bob": 300, "carol": 200} {
		got, err := svc.BalanceOf(context.Background(), panelID, holder)
		if err != nil {
			t.Fatalf("balance of %s: %v", holder, err)
		}
		if got != want {
			t.Fatalf("expected %s balance %d, got %d", holder, want, got)
		}
	}
	if sum := sumBalances(t, db, ledger.ID); sum != 1000 {
		t.Fatalf("expected conserved supply 1000, got %d", sum)
	}

	// Selling out leaves the holder of record at zero, not deleted.
	if err := svc.Transfer(actorCtx("alice"), panelID, "bob", 500); err != nil {
		t.Fatalf("transfer remainder: %v", err)
	}
	if count := countHoldings(t, db, ledger.ID); count != 3 {
		t.Fatalf("expected 3 holding rows, got %d", count)
	}
	got, err := svc.BalanceOf(context.Background(), panelID, "alice")
	if err != nil {
		t.Fatalf("balance of alice: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected alice balance 0, got %d", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleMinter, "minter")
	svc, db := setupSharesService(t, node, authz, &pauseStub{})

	panelID := seedPanel(t, db, node, "SN-XFER-2", "alice")
	ledger := seedLedger(t, svc, db, panelID)
	if _, err := svc.Mint(actorCtx("minter"), panelID, "alice", 100); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := svc.Transfer(actorCtx("alice"), panelID, "bob", 101); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if sum := sumBalances(t, db, ledger.ID); sum != 100 {
		t.Fatalf("expected untouched balances, got sum %d", sum)
	}
}

func TestTransferSelfAndZeroRejected(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleMinter, "minter")
	svc, db := setupSharesService(t, node, authz, &pauseStub{})

	panelID := seedPanel(t, db, node, "SN-XFER-3", "alice")
	seedLedger(t, svc, db, panelID)
	if _, err := svc.Mint(actorCtx("minter"), panelID, "alice", 100); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := svc.Transfer(actorCtx("alice"), panelID, "alice", 10); !errors.Is(err, domain.ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if err := svc.Transfer(actorCtx("alice"), panelID, "bob", 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferPauseGate(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleMinter, "minter")
	pauseSvc := &pauseStub{}
	svc, db := setupSharesService(t, node, authz, pauseSvc)

	panelID := seedPanel(t, db, node, "SN-PAUSE-1", "alice")
	seedLedger(t, svc, db, panelID)
	if _, err := svc.Mint(actorCtx("minter"), panelID, "alice", 100); err != nil {
		t.Fatalf("mint: %v", err)
	}

	pauseSvc.paused = true
	if err := svc.Transfer(actorCtx("alice"), panelID, "bob", 10); !errors.Is(err, pause.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	// The identical call goes through once the switch is released.
	pauseSvc.paused = false
	if err := svc.Transfer(actorCtx("alice"), panelID, "bob", 10); err != nil {
		t.Fatalf("transfer after unpause: %v", err)
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	node := mustNode(t)
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleMinter, "minter")
	svc, db := setupSharesService(t, node, authz, &pauseStub{})

	panelID := seedPanel(t, db, node, "SN-ALLOW-1", "alice")
	seedLedger(t, svc, db, panelID)
	if _, err := svc.Mint(actorCtx("minter"), panelID, "alice", 500); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := svc.Approve(actorCtx("alice"), panelID, "broker", 200); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.TransferFrom(actorCtx("broker"), panelID, "alice", "bob", 150); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	remaining, err := svc.AllowanceOf(context.Background(), panelID, "alice", "broker")
	if err != nil {
		t.Fatalf("allowance of: %v", err)
	}
	if remaining != 50 {
		t.Fatalf("expected allowance 50, got %d", remaining)
	}

	if err := svc.TransferFrom(actorCtx("broker"), panelID, "alice", "bob", 100); !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	got, err := svc.BalanceOf(context.Background(), panelID, "bob")
	if err != nil {
		t.Fatalf("balance of bob: %v", err)
	}
	if got != 150 {
		t.Fatalf("expected bob balance 150, got %d", got)
	}
}
