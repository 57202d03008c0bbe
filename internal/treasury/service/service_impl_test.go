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
	"github.com/heliovolt/solshare/internal/treasury/domain"
	"github.com/heliovolt/solshare/internal/treasury/repository"
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

func setupTreasury(t *testing.T, authz accesscontrol.Service) (domain.Service, *gorm.DB) {
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

	statements := []string{
		`CREATE TABLE treasury_accounts (
			id BIGINT PRIMARY KEY,
			address TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_treasury_accounts_address ON treasury_accounts (address)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewSystem(),
		Repo:     repository.Provide(),
		AuthzSvc: authz,
	})
	return svc, db
}

func actorCtx(actor string) context.Context {
	return actorctx.WithActor(context.Background(), actor)
}

func TestCreditAccumulates(t *testing.T) {
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleAdmin, "root")
	svc, _ := setupTreasury(t, authz)

	if err := svc.Credit(actorCtx("root"), "alice", 100); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if err := svc.Credit(actorCtx("root"), "alice", 50); err != nil {
		t.Fatalf("second credit: %v", err)
	}

	balance, err := svc.BalanceOf(context.Background(), "alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 150 {
		t.Fatalf("expected 150, got %d", balance)
	}
}

func TestCreditRequiresAdmin(t *testing.T) {
	svc, _ := setupTreasury(t, newAuthzStub())

	if err := svc.Credit(actorCtx("stranger"), "alice", 100); !errors.Is(err, accesscontrol.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	balance, err := svc.BalanceOf(context.Background(), "alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected no credit, got %d", balance)
	}
}

func TestCreditValidation(t *testing.T) {
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleAdmin, "root")
	svc, _ := setupTreasury(t, authz)

	if err := svc.Credit(actorCtx("root"), "alice", 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := svc.Credit(actorCtx("root"), "  ", 10); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestTransferTxAtomicDebitCredit(t *testing.T) {
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleAdmin, "root")
	svc, db := setupTreasury(t, authz)

	if err := svc.Credit(actorCtx("root"), "alice", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.TransferTx(context.Background(), tx, "alice", "bob", 60)
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	for address, want := range map[string]int64{"alice": 40, "bob": 60} {
		balance, err := svc.BalanceOf(context.Background(), address)
		if err != nil {
			t.Fatalf("balance %s: %v", address, err)
		}
		if balance != want {
			t.Fatalf("expected %s at %d, got %d", address, want, balance)
		}
	}
}

func TestTransferTxInsufficientFunds(t *testing.T) {
	authz := newAuthzStub()
	authz.grant(accesscontrol.RoleAdmin, "root")
	svc, db := setupTreasury(t, authz)

	if err := svc.Credit(actorCtx("root"), "alice", 30); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.TransferTx(context.Background(), tx, "alice", "bob", 60)
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Debits from an account that was never funded behave the same.
	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.TransferTx(context.Background(), tx, "ghost", "bob", 1)
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds for unknown account, got %v", err)
	}

	balance, err := svc.BalanceOf(context.Background(), "bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected bob unfunded, got %d", balance)
	}
}
