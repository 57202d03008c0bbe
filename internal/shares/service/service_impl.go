package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/actorctx"
	"github.com/heliovolt/solshare/internal/clock"
	"github.com/heliovolt/solshare/internal/events"
	obsmetrics "github.com/heliovolt/solshare/internal/observability/metrics"
	paneldomain "github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/internal/pause"
	"github.com/heliovolt/solshare/internal/shares/domain"
	"github.com/heliovolt/solshare/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	PanelRepo  paneldomain.Repository
	AuthzSvc   accesscontrol.Service
	PauseSvc   pause.Service
	Outbox     *events.Outbox
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	panelRepo  paneldomain.Repository
	authzSvc   accesscontrol.Service
	pauseSvc   pause.Service
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("shares.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		panelRepo:  p.PanelRepo,
		authzSvc:   p.AuthzSvc,
		pauseSvc:   p.PauseSvc,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateLedger(ctx context.Context, req domain.CreateLedgerRequest) (domain.Ledger, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Ledger{}, err
	}
	if _, err := s.authzSvc.Require(ctx, accesscontrol.RoleAdmin); err != nil {
		return domain.Ledger{}, err
	}

	var created domain.Ledger
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := s.CreateLedgerTx(ctx, tx, req)
		if err != nil {
			return err
		}
		created = ledger
		return nil
	})
	if err != nil {
		return domain.Ledger{}, err
	}
	return created, nil
}

// CreateLedgerTx creates the ledger inside the caller's transaction. The
// caller is responsible for the pause and role gates.
func (s *Service) CreateLedgerTx(ctx context.Context, tx *gorm.DB, req domain.CreateLedgerRequest) (domain.Ledger, error) {
	panel, err := s.panelRepo.FindByID(ctx, tx, req.PanelID)
	if err != nil {
		return domain.Ledger{}, err
	}
	if panel == nil {
		return domain.Ledger{}, paneldomain.ErrNotFound
	}

	existing, err := s.repo.FindLedgerByPanelID(ctx, tx, req.PanelID)
	if err != nil {
		return domain.Ledger{}, err
	}
	if existing != nil {
		return domain.Ledger{}, domain.ErrLedgerExists
	}

	ledger := domain.Ledger{
		ID:        s.genID.Generate(),
		PanelID:   req.PanelID,
		Name:      strings.TrimSpace(req.Name),
		Symbol:    strings.TrimSpace(req.Symbol),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertLedger(ctx, tx, &ledger); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Ledger{}, domain.ErrLedgerExists
		}
		return domain.Ledger{}, err
	}
	return ledger, nil
}

func (s *Service) Mint(ctx context.Context, panelID snowflake.ID, to string, amount int64) (domain.Ledger, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Ledger{}, err
	}
	if _, err := s.authzSvc.Require(ctx, accesscontrol.RoleMinter); err != nil {
		return domain.Ledger{}, err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return domain.Ledger{}, domain.ErrInvalidAddress
	}
	if amount <= 0 {
		return domain.Ledger{}, domain.ErrInvalidAmount
	}

	var minted domain.Ledger
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		panel, err := s.panelRepo.FindByID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if panel == nil {
			return paneldomain.ErrNotFound
		}
		if !panel.Active {
			return domain.ErrPanelInactive
		}

		ledger, err := s.repo.FindLedgerByPanelID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if ledger == nil {
			return domain.ErrNotFound
		}
		if ledger.Minted {
			return domain.ErrAlreadyMinted
		}
		if err := s.MintTx(ctx, tx, ledger.ID, to, amount); err != nil {
			return err
		}
		ledger.TotalSupply = amount
		ledger.Minted = true
		minted = *ledger
		return nil
	})
	if err != nil {
		return domain.Ledger{}, err
	}

	s.obsMetrics.RecordSharesMinted(ctx)
	s.log.Info("shares minted",
		zap.String("panel_id", panelID.String()),
		zap.String("ledger_id", minted.ID.String()),
		zap.String("to", to),
		zap.Int64("amount", amount),
	)
	return minted, nil
}

// MintTx fixes the supply and credits it inside the caller's transaction.
// The caller is responsible for the pause and role gates.
func (s *Service) MintTx(ctx context.Context, tx *gorm.DB, ledgerID snowflake.ID, to string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	updated, err := s.repo.MarkMinted(ctx, tx, ledgerID, amount)
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrAlreadyMinted
	}

	now := s.clock.Now()
	holding := domain.Holding{
		ID:        s.genID.Generate(),
		LedgerID:  ledgerID,
		Address:   to,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreditHolding(ctx, tx, &holding, amount); err != nil {
		return err
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventSharesMinted,
		Payload: map[string]any{
			"ledger_id": ledgerID.String(),
			"to":        to,
			"amount":    amount,
		},
		DedupeKey: "shares_minted:" + ledgerID.String(),
	})
}

func (s *Service) Transfer(ctx context.Context, panelID snowflake.ID, to string, amount int64) error {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return err
	}
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return accesscontrol.ErrInvalidActor
	}
	return s.transfer(ctx, panelID, actor, to, amount, false)
}

func (s *Service) TransferFrom(ctx context.Context, panelID snowflake.ID, from, to string, amount int64) error {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return err
	}
	if _, ok := actorctx.ActorFromContext(ctx); !ok {
		return accesscontrol.ErrInvalidActor
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return domain.ErrInvalidAddress
	}
	return s.transfer(ctx, panelID, from, to, amount, true)
}

func (s *Service) transfer(ctx context.Context, panelID snowflake.ID, from, to string, amount int64, spend bool) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return domain.ErrInvalidAddress
	}
	if to == from {
		return domain.ErrSelfTransfer
	}
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := s.repo.FindLedgerByPanelID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if ledger == nil {
			return domain.ErrNotFound
		}
		if spend {
			spender, _ := actorctx.ActorFromContext(ctx)
			debited, err := s.repo.DebitAllowance(ctx, tx, ledger.ID, from, spender, amount, s.clock.Now())
			if err != nil {
				return err
			}
			if !debited {
				return domain.ErrInsufficientAllowance
			}
		}
		return s.TransferTx(ctx, tx, ledger.ID, from, to, amount)
	})
	if err != nil {
		return err
	}

	s.obsMetrics.RecordSharesTransferred(ctx)
	return nil
}

// TransferTx debits from and credits to inside the caller's transaction.
// The sender's row stays behind at zero balance so the holder of record set
// never shrinks.
func (s *Service) TransferTx(ctx context.Context, tx *gorm.DB, ledgerID snowflake.ID, from, to string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	now := s.clock.Now()
	debited, err := s.repo.DebitHolding(ctx, tx, ledgerID, from, amount, now)
	if err != nil {
		return err
	}
	if !debited {
		return domain.ErrInsufficientBalance
	}

	holding := domain.Holding{
		ID:        s.genID.Generate(),
		LedgerID:  ledgerID,
		Address:   to,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreditHolding(ctx, tx, &holding, amount); err != nil {
		return err
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventSharesTransferred,
		Payload: map[string]any{
			"ledger_id": ledgerID.String(),
			"from":      from,
			"to":        to,
			"amount":    amount,
		},
	})
}

func (s *Service) Approve(ctx context.Context, panelID snowflake.ID, spender string, amount int64) error {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return err
	}
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return accesscontrol.ErrInvalidActor
	}
	spender = strings.TrimSpace(spender)
	if spender == "" {
		return domain.ErrInvalidAddress
	}
	if amount < 0 {
		return domain.ErrInvalidAmount
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := s.repo.FindLedgerByPanelID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if ledger == nil {
			return domain.ErrNotFound
		}
		now := s.clock.Now()
		allowance := domain.Allowance{
			ID:             s.genID.Generate(),
			LedgerID:       ledger.ID,
			OwnerAddress:   actor,
			SpenderAddress: spender,
			Amount:         amount,
			UpdatedAt:      now,
		}
		if err := s.repo.SetAllowance(ctx, tx, &allowance); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventSharesApproved,
			Payload: map[string]any{
				"ledger_id": ledger.ID.String(),
				"owner":     actor,
				"spender":   spender,
				"amount":    amount,
			},
		})
	})
}

func (s *Service) BalanceOf(ctx context.Context, panelID snowflake.ID, address string) (int64, error) {
	ledger, err := s.repo.FindLedgerByPanelID(ctx, s.db, panelID)
	if err != nil {
		return 0, err
	}
	if ledger == nil {
		return 0, domain.ErrNotFound
	}
	holding, err := s.repo.GetHolding(ctx, s.db, ledger.ID, strings.TrimSpace(address))
	if err != nil {
		return 0, err
	}
	if holding == nil {
		return 0, nil
	}
	return holding.Balance, nil
}

func (s *Service) AllowanceOf(ctx context.Context, panelID snowflake.ID, owner, spender string) (int64, error) {
	ledger, err := s.repo.FindLedgerByPanelID(ctx, s.db, panelID)
	if err != nil {
		return 0, err
	}
	if ledger == nil {
		return 0, domain.ErrNotFound
	}
	allowance, err := s.repo.GetAllowance(ctx, s.db, ledger.ID, strings.TrimSpace(owner), strings.TrimSpace(spender))
	if err != nil {
		return 0, err
	}
	if allowance == nil {
		return 0, nil
	}
	return allowance.Amount, nil
}

func (s *Service) Holders(ctx context.Context, panelID snowflake.ID) ([]domain.Holding, error) {
	ledger, err := s.repo.FindLedgerByPanelID(ctx, s.db, panelID)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.ListHoldings(ctx, s.db, ledger.ID)
	if err != nil {
		return nil, err
	}
	holdings := make([]domain.Holding, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		holdings = append(holdings, *item)
	}
	return holdings, nil
}

func (s *Service) LedgerDetails(ctx context.Context, panelID snowflake.ID) (domain.Ledger, error) {
	ledger, err := s.repo.FindLedgerByPanelID(ctx, s.db, panelID)
	if err != nil {
		return domain.Ledger{}, err
	}
	if ledger == nil {
		return domain.Ledger{}, domain.ErrNotFound
	}
	return *ledger, nil
}
