package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/clock"
	"github.com/heliovolt/solshare/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuthzSvc accesscontrol.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	authzSvc accesscontrol.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("treasury.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		authzSvc: p.AuthzSvc,
	}
}

func (s *Service) Credit(ctx context.Context, to string, amount int64) error {
	if _, err := s.authzSvc.Require(ctx, accesscontrol.RoleAdmin); err != nil {
		return err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return domain.ErrInvalidAddress
	}
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account := domain.Account{
			ID:        s.genID.Generate(),
			Address:   to,
			UpdatedAt: s.clock.Now(),
		}
		return s.repo.CreditAccount(ctx, tx, &account, amount)
	})
	if err != nil {
		return err
	}

	s.log.Info("treasury credit",
		zap.String("to", to),
		zap.Int64("amount", amount),
	)
	return nil
}

func (s *Service) BalanceOf(ctx context.Context, address string) (int64, error) {
	account, err := s.repo.GetAccount(ctx, s.db, strings.TrimSpace(address))
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

func (s *Service) TransferTx(ctx context.Context, tx *gorm.DB, from, to string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	now := s.clock.Now()
	debited, err := s.repo.DebitAccount(ctx, tx, from, amount, now)
	if err != nil {
		return err
	}
	if !debited {
		return domain.ErrInsufficientFunds
	}
	account := domain.Account{
		ID:        s.genID.Generate(),
		Address:   to,
		UpdatedAt: now,
	}
	return s.repo.CreditAccount(ctx, tx, &account, amount)
}
