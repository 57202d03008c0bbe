package accesscontrol

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/actorctx"
	"github.com/heliovolt/solshare/internal/config"
	"github.com/heliovolt/solshare/internal/events"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

// setupService runs against a real enforcer and the gorm adapter so the
// policy storage path is covered, not stubbed.
func setupService(t *testing.T, genesisAdmin string) (Service, *gorm.DB) {
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

	err = db.Exec(`CREATE TABLE outbox_events (
		id BIGINT PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		dedupe_key TEXT,
		occurred_at DATETIME NOT NULL,
		published_at DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("prepare schema: %v", err)
	}
	err = db.Exec(`CREATE UNIQUE INDEX ux_outbox_events_dedupe_key ON outbox_events (dedupe_key)`).Error
	if err != nil {
		t.Fatalf("prepare schema: %v", err)
	}

	enforcer, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	log := zap.NewNop()
	if err := SeedGenesisAdmin(config.Config{GenesisAdmin: genesisAdmin}, db, enforcer, log); err != nil {
		t.Fatalf("seed genesis admin: %v", err)
	}

	return NewService(Params{
		DB:       db,
		Log:      log,
		Enforcer: enforcer,
		Outbox:   events.NewOutbox(log, mustNode(t)),
	}), db
}

func actorCtx(actor string) context.Context {
	return actorctx.WithActor(context.Background(), actor)
}

func TestGenesisAdminSeeded(t *testing.T) {
	svc, _ := setupService(t, "root")

	has, err := svc.HasRole(context.Background(), RoleAdmin, "root")
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if !has {
		t.Fatalf("expected genesis admin to hold the admin role")
	}
	if _, err := svc.Require(actorCtx("root"), RoleAdmin); err != nil {
		t.Fatalf("expected genesis admin to pass Require, got %v", err)
	}
}

func TestGrantAndRevokeRole(t *testing.T) {
	svc, _ := setupService(t, "root")

	if err := svc.GrantRole(actorCtx("root"), RoleDistributor, "op"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	actor, err := svc.Require(actorCtx("op"), RoleDistributor)
	if err != nil {
		t.Fatalf("require after grant: %v", err)
	}
	if actor != "op" {
		t.Fatalf("expected actor op, got %s", actor)
	}

	if err := svc.RevokeRole(actorCtx("root"), RoleDistributor, "op"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Require(actorCtx("op"), RoleDistributor); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revoke, got %v", err)
	}
}

func TestGrantRequiresAdmin(t *testing.T) {
	svc, _ := setupService(t, "root")

	err := svc.GrantRole(actorCtx("stranger"), RoleDistributor, "op")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	has, err := svc.HasRole(context.Background(), RoleDistributor, "op")
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if has {
		t.Fatalf("expected no grant from an unauthorized caller")
	}
}

func TestGrantIdempotent(t *testing.T) {
	svc, _ := setupService(t, "root")

	if err := svc.GrantRole(actorCtx("root"), RoleRegistrar, "reg"); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if err := svc.GrantRole(actorCtx("root"), RoleRegistrar, "reg"); err != nil {
		t.Fatalf("repeat grant: %v", err)
	}
	// Revoking a non-member is equally quiet.
	if err := svc.RevokeRole(actorCtx("root"), RoleRegistrar, "never-granted"); err != nil {
		t.Fatalf("revoke non-member: %v", err)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	svc, _ := setupService(t, "root")

	if err := svc.GrantRole(actorCtx("root"), "role:bogus", "op"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := svc.GrantRole(actorCtx("root"), RoleDistributor, "  "); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestRequireWithoutActor(t *testing.T) {
	svc, _ := setupService(t, "root")

	if _, err := svc.Require(context.Background(), RoleAdmin); !errors.Is(err, ErrInvalidActor) {
		t.Fatalf("expected ErrInvalidActor, got %v", err)
	}
}

func TestRequireAnyMatchesAnyRole(t *testing.T) {
	svc, _ := setupService(t, "root")

	if err := svc.GrantRole(actorCtx("root"), RoleMinter, "worker"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	actor, err := svc.RequireAny(actorCtx("worker"), RoleAdmin, RoleMinter)
	if err != nil {
		t.Fatalf("require any: %v", err)
	}
	if actor != "worker" {
		t.Fatalf("expected actor worker, got %s", actor)
	}
}

// Membership must be durable in the same transaction that records the
// event, so a fresh enforcer reading the database agrees with the mirror
// stream.
func TestGrantPersistsRuleWithEvent(t *testing.T) {
	svc, db := setupService(t, "root")

	if err := svc.GrantRole(actorCtx("root"), RoleMinter, "op"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	reloaded, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("reload enforcer: %v", err)
	}
	has, err := reloaded.HasGroupingPolicy("op", RoleMinter)
	if err != nil {
		t.Fatalf("has grouping policy: %v", err)
	}
	if !has {
		t.Fatalf("expected grant to be durable across enforcer reload")
	}

	var granted int64
	err = db.Raw(
		`SELECT COUNT(*) FROM outbox_events WHERE event_type = ?`,
		events.EventRoleGranted,
	).Scan(&granted).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if granted != 1 {
		t.Fatalf("expected 1 role.granted event, got %d", granted)
	}

	if err := svc.RevokeRole(actorCtx("root"), RoleMinter, "op"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	reloaded, err = NewEnforcer(db)
	if err != nil {
		t.Fatalf("reload enforcer: %v", err)
	}
	has, err = reloaded.HasGroupingPolicy("op", RoleMinter)
	if err != nil {
		t.Fatalf("has grouping policy: %v", err)
	}
	if has {
		t.Fatalf("expected revoke to be durable across enforcer reload")
	}
	var revoked int64
	err = db.Raw(
		`SELECT COUNT(*) FROM outbox_events WHERE event_type = ?`,
		events.EventRoleRevoked,
	).Scan(&revoked).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("expected 1 role.revoked event, got %d", revoked)
	}
}

// A failed event write must leave membership untouched so a retry can
// publish it.
func TestGrantRollsBackWithoutEvent(t *testing.T) {
	svc, db := setupService(t, "root")

	// Dropping the outbox table makes the event insert fail after the
	// rule insert succeeded inside the same transaction.
	if err := db.Exec(`DROP TABLE outbox_events`).Error; err != nil {
		t.Fatalf("drop outbox: %v", err)
	}
	if err := svc.GrantRole(actorCtx("root"), RoleMinter, "op"); err == nil {
		t.Fatalf("expected grant to fail without the outbox table")
	}

	var rules int64
	err := db.Raw(
		`SELECT COUNT(*) FROM casbin_rule WHERE ptype = 'g' AND v0 = ? AND v1 = ?`,
		"op", RoleMinter,
	).Scan(&rules).Error
	if err != nil {
		t.Fatalf("count rules: %v", err)
	}
	if rules != 0 {
		t.Fatalf("expected no membership row after rollback, got %d", rules)
	}
	has, err := svc.HasRole(context.Background(), RoleMinter, "op")
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if has {
		t.Fatalf("expected no membership after rollback")
	}
}
