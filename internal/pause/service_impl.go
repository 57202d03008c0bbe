package pause

import (
	"context"
	"errors"
	"time"

	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrPaused rejects mutating operations while the circuit breaker is
	// engaged. Every mutating entry point checks it first.
	ErrPaused = errors.New("paused")
	// ErrNotPaused rejects an unpause of a running system.
	ErrNotPaused = errors.New("not_paused")
	// ErrAlreadyPaused rejects a pause of an already-paused system.
	ErrAlreadyPaused = errors.New("already_paused")
)

// State is the single-row circuit breaker record.
type State struct {
	ID        int16     `gorm:"primaryKey"`
	Paused    bool      `gorm:"not null;default:false"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (State) TableName() string { return "pause_state" }

// Service is the global pause circuit breaker.
type Service interface {
	Pause(ctx context.Context) error
	Unpause(ctx context.Context) error
	Paused(ctx context.Context) (bool, error)
	// RequireActive returns ErrPaused when the switch is engaged. It is the
	// first precondition of every state-mutating operation outside this
	// package and accesscontrol.
	RequireActive(ctx context.Context) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	AuthzSvc accesscontrol.Service
	Outbox   *events.Outbox
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	authzSvc accesscontrol.Service
	outbox   *events.Outbox
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("pause.service"),
		authzSvc: p.AuthzSvc,
		outbox:   p.Outbox,
	}
}

func (s *ServiceImpl) Pause(ctx context.Context) error {
	actor, err := s.authzSvc.RequireAny(ctx, accesscontrol.RolePauser, accesscontrol.RoleAdmin)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paused, err := currentState(ctx, tx)
		if err != nil {
			return err
		}
		if paused {
			return ErrAlreadyPaused
		}
		if err := setState(ctx, tx, true); err != nil {
			return err
		}
		s.log.Warn("system paused", zap.String("paused_by", actor))
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:    events.EventSystemPaused,
			Payload: map[string]any{"paused_by": actor},
		})
	})
}

func (s *ServiceImpl) Unpause(ctx context.Context) error {
	actor, err := s.authzSvc.RequireAny(ctx, accesscontrol.RolePauser, accesscontrol.RoleAdmin)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paused, err := currentState(ctx, tx)
		if err != nil {
			return err
		}
		if !paused {
			return ErrNotPaused
		}
		if err := setState(ctx, tx, false); err != nil {
			return err
		}
		s.log.Info("system unpaused", zap.String("unpaused_by", actor))
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:    events.EventSystemUnpaused,
			Payload: map[string]any{"unpaused_by": actor},
		})
	})
}

func (s *ServiceImpl) Paused(ctx context.Context) (bool, error) {
	return currentState(ctx, s.db)
}

func (s *ServiceImpl) RequireActive(ctx context.Context) error {
	paused, err := currentState(ctx, s.db)
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func currentState(ctx context.Context, db *gorm.DB) (bool, error) {
	var row struct {
		Paused bool `gorm:"column:paused"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT paused FROM pause_state WHERE id = 1`,
	).Scan(&row).Error
	if err != nil {
		return false, err
	}
	// Missing row means the switch has never been engaged.
	return row.Paused, nil
}

func setState(ctx context.Context, tx *gorm.DB, paused bool) error {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE pause_state SET paused = ?, updated_at = ? WHERE id = 1`,
		paused,
		now,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO pause_state (id, paused, updated_at) VALUES (1, ?, ?)`,
		paused,
		now,
	).Error
}
