package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/actorctx"
	"github.com/heliovolt/solshare/internal/clock"
	"github.com/heliovolt/solshare/internal/dividend/domain"
	"github.com/heliovolt/solshare/internal/events"
	obsmetrics "github.com/heliovolt/solshare/internal/observability/metrics"
	paneldomain "github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/internal/pause"
	sharesdomain "github.com/heliovolt/solshare/internal/shares/domain"
	treasurydomain "github.com/heliovolt/solshare/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	PanelRepo   paneldomain.Repository
	SharesRepo  sharesdomain.Repository
	TreasurySvc treasurydomain.Service
	AuthzSvc    accesscontrol.Service
	PauseSvc    pause.Service
	Outbox      *events.Outbox
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	panelRepo   paneldomain.Repository
	sharesRepo  sharesdomain.Repository
	treasurySvc treasurydomain.Service
	authzSvc    accesscontrol.Service
	pauseSvc    pause.Service
	outbox      *events.Outbox
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("dividend.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		panelRepo:   p.PanelRepo,
		sharesRepo:  p.SharesRepo,
		treasurySvc: p.TreasurySvc,
		authzSvc:    p.AuthzSvc,
		pauseSvc:    p.PauseSvc,
		outbox:      p.Outbox,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Distribute(ctx context.Context, panelID snowflake.ID, amount int64) (domain.Distribution, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Distribution{}, err
	}
	actor, err := s.authzSvc.Require(ctx, accesscontrol.RoleDistributor)
	if err != nil {
		return domain.Distribution{}, err
	}
	if amount <= 0 {
		return domain.Distribution{}, domain.ErrInvalidAmount
	}

	var distribution domain.Distribution
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		panel, err := s.panelRepo.FindByID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if panel == nil {
			return paneldomain.ErrNotFound
		}
		ledger, err := s.sharesRepo.FindLedgerByPanelID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if ledger == nil || !ledger.Minted {
			return domain.ErrNotMinted
		}

		// Funds move first so a short deposit appends nothing.
		if err := s.treasurySvc.TransferTx(ctx, tx, actor, treasurydomain.CustodyAddress, amount); err != nil {
			return err
		}

		maxSeq, err := s.repo.MaxSeq(ctx, tx, panelID)
		if err != nil {
			return err
		}
		distribution = domain.Distribution{
			ID:          s.genID.Generate(),
			PanelID:     panelID,
			Seq:         maxSeq + 1,
			Amount:      amount,
			TotalSupply: ledger.TotalSupply,
			OccurredAt:  s.clock.Now(),
			Distributed: true,
		}
		if err := s.repo.InsertDistribution(ctx, tx, &distribution); err != nil {
			return err
		}

		holdings, err := s.sharesRepo.ListHoldings(ctx, tx, ledger.ID)
		if err != nil {
			return err
		}
		snapshot := make([]*domain.DistributionShare, 0, len(holdings))
		for _, holding := range holdings {
			if holding == nil || holding.Balance <= 0 {
				continue
			}
			snapshot = append(snapshot, &domain.DistributionShare{
				ID:             s.genID.Generate(),
				DistributionID: distribution.ID,
				Address:        holding.Address,
				Balance:        holding.Balance,
			})
		}
		if err := s.repo.InsertDistributionShares(ctx, tx, snapshot); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventDividendDistributed,
			Payload: map[string]any{
				"panel_id":     panelID.String(),
				"seq":          distribution.Seq,
				"amount":       amount,
				"total_supply": distribution.TotalSupply,
				"from":         actor,
			},
			DedupeKey: "dividend_distributed:" + distribution.ID.String(),
		})
	})
	if err != nil {
		return domain.Distribution{}, err
	}

	s.obsMetrics.RecordDividendDistributed(ctx)
	s.log.Info("dividend distributed",
		zap.String("panel_id", panelID.String()),
		zap.Int64("seq", distribution.Seq),
		zap.Int64("amount", amount),
	)
	return distribution, nil
}

func (s *Service) Unclaimed(ctx context.Context, panelID snowflake.ID, holder string) (int64, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return 0, nil
	}
	return s.unclaimed(ctx, s.db, panelID, holder)
}

func (s *Service) unclaimed(ctx context.Context, db *gorm.DB, panelID snowflake.ID, holder string) (int64, error) {
	watermark := int64(0)
	state, err := s.repo.GetClaimState(ctx, db, panelID, holder)
	if err != nil {
		return 0, err
	}
	if state != nil {
		watermark = state.LastClaimedSeq
	}

	distributions, err := s.repo.ListDistributionsAfter(ctx, db, panelID, watermark)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, distribution := range distributions {
		share, err := s.repo.GetDistributionShare(ctx, db, distribution.ID, holder)
		if err != nil {
			return 0, err
		}
		if share == nil {
			continue
		}
		total += domain.Payout(distribution.Amount, share.Balance, distribution.TotalSupply)
	}
	return total, nil
}

func (s *Service) Claim(ctx context.Context, panelID snowflake.ID) (int64, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return 0, err
	}
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return 0, accesscontrol.ErrInvalidActor
	}

	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		panel, err := s.panelRepo.FindByID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if panel == nil {
			return paneldomain.ErrNotFound
		}
		ledger, err := s.sharesRepo.FindLedgerByPanelID(ctx, tx, panelID)
		if err != nil {
			return err
		}
		if ledger == nil {
			return domain.ErrNotMinted
		}
		holding, err := s.sharesRepo.GetHolding(ctx, tx, ledger.ID, actor)
		if err != nil {
			return err
		}
		if holding == nil {
			return domain.ErrNoShares
		}

		watermark := int64(0)
		state, err := s.repo.GetClaimState(ctx, tx, panelID, actor)
		if err != nil {
			return err
		}
		if state != nil {
			watermark = state.LastClaimedSeq
		}
		distributions, err := s.repo.ListDistributionsAfter(ctx, tx, panelID, watermark)
		if err != nil {
			return err
		}
		if len(distributions) == 0 {
			return domain.ErrNothingToClaim
		}

		lastSeq := watermark
		for _, distribution := range distributions {
			lastSeq = distribution.Seq
			share, err := s.repo.GetDistributionShare(ctx, tx, distribution.ID, actor)
			if err != nil {
				return err
			}
			if share == nil {
				continue
			}
			payout := domain.Payout(distribution.Amount, share.Balance, distribution.TotalSupply)
			if payout == 0 {
				continue
			}
			// Per-distribution bookkeeping keeps one panel's claims from
			// draining another panel's custody.
			bumped, err := s.repo.AddClaimedTotal(ctx, tx, distribution.ID, payout)
			if err != nil {
				return err
			}
			if !bumped {
				return domain.ErrCustodyExceeded
			}
			total += payout
		}
		if total == 0 {
			return domain.ErrNothingToClaim
		}

		if err := s.treasurySvc.TransferTx(ctx, tx, treasurydomain.CustodyAddress, actor, total); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.repo.AdvanceClaimState(ctx, tx, &domain.ClaimState{
			ID:             s.genID.Generate(),
			PanelID:        panelID,
			Address:        actor,
			LastClaimedSeq: lastSeq,
			UpdatedAt:      now,
		}); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventDividendClaimed,
			Payload: map[string]any{
				"panel_id": panelID.String(),
				"holder":   actor,
				"amount":   total,
				"last_seq": lastSeq,
			},
		})
	})
	if err != nil {
		return 0, err
	}

	s.obsMetrics.RecordDividendClaimed(ctx)
	s.log.Info("dividend claimed",
		zap.String("panel_id", panelID.String()),
		zap.String("holder", actor),
		zap.Int64("amount", total),
	)
	return total, nil
}

func (s *Service) History(ctx context.Context, panelID snowflake.ID) ([]domain.HistoryEntry, error) {
	panel, err := s.panelRepo.FindByID(ctx, s.db, panelID)
	if err != nil {
		return nil, err
	}
	if panel == nil {
		return nil, paneldomain.ErrNotFound
	}
	distributions, err := s.repo.ListDistributions(ctx, s.db, panelID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(distributions))
	for _, distribution := range distributions {
		entries = append(entries, domain.HistoryEntry{
			Seq:         distribution.Seq,
			Amount:      distribution.Amount,
			OccurredAt:  distribution.OccurredAt,
			Distributed: distribution.Distributed,
		})
	}
	return entries, nil
}
