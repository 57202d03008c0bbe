package migration

import (
	"github.com/heliovolt/solshare/internal/config"
	dividenddomain "github.com/heliovolt/solshare/internal/dividend/domain"
	"github.com/heliovolt/solshare/internal/events"
	paneldomain "github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/internal/pause"
	saledomain "github.com/heliovolt/solshare/internal/sale/domain"
	sharesdomain "github.com/heliovolt/solshare/internal/shares/domain"
	treasurydomain "github.com/heliovolt/solshare/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run brings the schema up to date on startup. Postgres goes through
// versioned migrations; sqlite and mysql fall back to AutoMigrate for
// local and test setups.
func Run(cfg config.Config, gormDB *gorm.DB, log *zap.Logger) error {
	if cfg.DBType == "postgres" {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("schema migrations applied")
		return nil
	}

	if err := gormDB.AutoMigrate(
		&paneldomain.Panel{},
		&sharesdomain.Ledger{},
		&sharesdomain.Holding{},
		&sharesdomain.Allowance{},
		&treasurydomain.Account{},
		&dividenddomain.Distribution{},
		&dividenddomain.DistributionShare{},
		&dividenddomain.ClaimState{},
		&saledomain.Sale{},
		&pause.State{},
		&events.OutboxRow{},
	); err != nil {
		return err
	}
	log.Info("schema auto-migrated", zap.String("db_type", cfg.DBType))
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(Run),
)
