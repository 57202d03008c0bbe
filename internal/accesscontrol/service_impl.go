package accesscontrol

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/heliovolt/solshare/internal/actorctx"
	"github.com/heliovolt/solshare/internal/config"
	"github.com/heliovolt/solshare/internal/events"
	obsmetrics "github.com/heliovolt/solshare/internal/observability/metrics"
	pkgdb "github.com/heliovolt/solshare/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// NewEnforcer builds the casbin enforcer backed by the application database.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	// Autosave would write membership outside the transaction that records
	// the outbox event. The service persists grouping rules itself so both
	// land atomically; the enforcer only mirrors them in memory.
	enforcer.EnableAutoSave(false)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Enforcer   *casbin.SyncedEnforcer
	Outbox     *events.Outbox
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type ServiceImpl struct {
	db         *gorm.DB
	log        *zap.Logger
	enforcer   *casbin.SyncedEnforcer
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:         p.DB,
		log:        p.Log.Named("accesscontrol.service"),
		enforcer:   p.Enforcer,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *ServiceImpl) GrantRole(ctx context.Context, role, account string) error {
	role, account, err := s.normalize(role, account)
	if err != nil {
		return err
	}
	actor, err := s.Require(ctx, RoleAdmin)
	if err != nil {
		return err
	}

	has, err := s.enforcer.HasGroupingPolicy(account, role)
	if err != nil {
		return err
	}
	if has {
		// Already a member; grants are idempotent.
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertGroupingRule(ctx, tx, account, role); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventRoleGranted,
			Payload: map[string]any{
				"role":       role,
				"account":    account,
				"granted_by": actor,
			},
		})
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			// Another grant won the race; the rule and its event are durable.
			s.syncGroupingPolicy(account, role)
			return nil
		}
		return err
	}
	s.syncGroupingPolicy(account, role)

	s.log.Info("role granted",
		zap.String("role", role),
		zap.String("account", account),
		zap.String("granted_by", actor),
	)
	return nil
}

func (s *ServiceImpl) RevokeRole(ctx context.Context, role, account string) error {
	role, account, err := s.normalize(role, account)
	if err != nil {
		return err
	}
	actor, err := s.Require(ctx, RoleAdmin)
	if err != nil {
		return err
	}

	has, err := s.enforcer.HasGroupingPolicy(account, role)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Exec(
			`DELETE FROM casbin_rule WHERE ptype = 'g' AND v0 = ? AND v1 = ?`,
			account,
			role,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Another revoke already removed the rule and its event.
			return nil
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventRoleRevoked,
			Payload: map[string]any{
				"role":       role,
				"account":    account,
				"revoked_by": actor,
			},
		})
	})
	if err != nil {
		return err
	}
	if _, err := s.enforcer.RemoveGroupingPolicy(account, role); err != nil {
		s.log.Error("enforcer out of sync with role store",
			zap.String("role", role),
			zap.String("account", account),
			zap.Error(err),
		)
	}

	if role == RoleAdmin {
		if members, err := s.enforcer.GetUsersForRole(RoleAdmin); err == nil && len(members) == 0 {
			// Known risk, not silently fixed: an empty admin role leaves the
			// registry unadministerable.
			s.log.Warn("admin role has no members left",
				zap.String("revoked_account", account),
				zap.String("revoked_by", actor),
			)
		}
	}

	s.log.Info("role revoked",
		zap.String("role", role),
		zap.String("account", account),
		zap.String("revoked_by", actor),
	)
	return nil
}

// syncGroupingPolicy mirrors a durable rule into the in-memory enforcer.
// Failure is tolerable: the next LoadPolicy picks the rule up again.
func (s *ServiceImpl) syncGroupingPolicy(account, role string) {
	if _, err := s.enforcer.AddGroupingPolicy(account, role); err != nil {
		s.log.Error("enforcer out of sync with role store",
			zap.String("role", role),
			zap.String("account", account),
			zap.Error(err),
		)
	}
}

// insertGroupingRule writes the grouping rule the way the gorm adapter
// lays it out, so LoadPolicy reads it back on the next start.
func insertGroupingRule(ctx context.Context, tx *gorm.DB, account, role string) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO casbin_rule (ptype, v0, v1, v2, v3, v4, v5)
		 VALUES ('g', ?, ?, '', '', '', '')`,
		account,
		role,
	).Error
}

func (s *ServiceImpl) HasRole(ctx context.Context, role, account string) (bool, error) {
	role, account, err := s.normalize(role, account)
	if err != nil {
		return false, err
	}
	return s.enforcer.HasGroupingPolicy(account, role)
}

func (s *ServiceImpl) Require(ctx context.Context, role string) (string, error) {
	return s.RequireAny(ctx, role)
}

func (s *ServiceImpl) RequireAny(ctx context.Context, roles ...string) (string, error) {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return "", ErrInvalidActor
	}
	for _, role := range roles {
		has, err := s.HasRole(ctx, role, actor)
		if err != nil {
			return "", err
		}
		if has {
			return actor, nil
		}
	}
	s.obsMetrics.RecordAuthorizationDenied(ctx, roles[0])
	return "", &UnauthorizedError{Role: roles[0], Actor: actor}
}

func (s *ServiceImpl) normalize(role, account string) (string, string, error) {
	role = strings.TrimSpace(role)
	if _, ok := knownRoles[role]; !ok {
		return "", "", ErrInvalidRole
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return "", "", ErrInvalidAccount
	}
	return role, account, nil
}

// SeedGenesisAdmin assigns the admin role to the configured genesis address.
// Runs on every start; the grant is idempotent.
func SeedGenesisAdmin(cfg config.Config, db *gorm.DB, enforcer *casbin.SyncedEnforcer, log *zap.Logger) error {
	admin := strings.TrimSpace(cfg.GenesisAdmin)
	if admin == "" {
		log.Warn("no genesis admin configured; role registry starts unadministerable")
		return nil
	}
	has, err := enforcer.HasGroupingPolicy(admin, RoleAdmin)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if err := insertGroupingRule(context.Background(), db, admin, RoleAdmin); err != nil {
		if !pkgdb.IsDuplicateKeyErr(err) {
			return err
		}
	}
	if _, err := enforcer.AddGroupingPolicy(admin, RoleAdmin); err != nil {
		return err
	}
	log.Info("genesis admin seeded", zap.String("account", admin))
	return nil
}
