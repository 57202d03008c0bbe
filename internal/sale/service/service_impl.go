package service

import (
	"context"
	"math"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/actorctx"
	"github.com/heliovolt/solshare/internal/clock"
	"github.com/heliovolt/solshare/internal/events"
	"github.com/heliovolt/solshare/internal/pause"
	"github.com/heliovolt/solshare/internal/sale/domain"
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
	SharesRepo  sharesdomain.Repository
	SharesSvc   sharesdomain.Service
	TreasurySvc treasurydomain.Service
	AuthzSvc    accesscontrol.Service
	PauseSvc    pause.Service
	Outbox      *events.Outbox
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	sharesRepo  sharesdomain.Repository
	sharesSvc   sharesdomain.Service
	treasurySvc treasurydomain.Service
	authzSvc    accesscontrol.Service
	pauseSvc    pause.Service
	outbox      *events.Outbox
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("sale.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		sharesRepo:  p.SharesRepo,
		sharesSvc:   p.SharesSvc,
		treasurySvc: p.TreasurySvc,
		authzSvc:    p.AuthzSvc,
		pauseSvc:    p.PauseSvc,
		outbox:      p.Outbox,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Sale{}, err
	}
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, accesscontrol.ErrInvalidActor
	}

	var created domain.Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := s.CreateTx(ctx, tx, actor, req)
		if err != nil {
			return err
		}
		created = sale
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return created, nil
}

// CreateTx lists shares inside the caller's transaction. The caller is
// responsible for the pause and role gates.
func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, seller string, req domain.CreateSaleRequest) (domain.Sale, error) {
	if req.PricePerShare <= 0 {
		return domain.Sale{}, domain.ErrInvalidPrice
	}
	if req.SharesForSale <= 0 {
		return domain.Sale{}, domain.ErrInvalidQuantity
	}
	now := s.clock.Now()
	if !req.EndsAt.After(now) {
		return domain.Sale{}, domain.ErrInvalidDeadline
	}

	ledger, err := s.sharesRepo.FindLedgerByPanelID(ctx, tx, req.PanelID)
	if err != nil {
		return domain.Sale{}, err
	}
	if ledger == nil {
		return domain.Sale{}, sharesdomain.ErrNotFound
	}
	holding, err := s.sharesRepo.GetHolding(ctx, tx, ledger.ID, seller)
	if err != nil {
		return domain.Sale{}, err
	}
	if holding == nil || holding.Balance < req.SharesForSale {
		return domain.Sale{}, sharesdomain.ErrInsufficientBalance
	}

	sale := domain.Sale{
		ID:            s.genID.Generate(),
		PanelID:       req.PanelID,
		SellerAddress: seller,
		PricePerShare: req.PricePerShare,
		SharesForSale: req.SharesForSale,
		EndsAt:        req.EndsAt.UTC(),
		Active:        true,
		CreatedAt:     now,
	}
	if err := s.repo.Insert(ctx, tx, &sale); err != nil {
		return domain.Sale{}, err
	}
	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventSaleCreated,
		Payload: map[string]any{
			"sale_id":         sale.ID.String(),
			"panel_id":        sale.PanelID.String(),
			"seller":          sale.SellerAddress,
			"price_per_share": sale.PricePerShare,
			"shares_for_sale": sale.SharesForSale,
			"ends_at":         sale.EndsAt,
		},
		DedupeKey: "sale_created:" + sale.ID.String(),
	}); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (s *Service) Buy(ctx context.Context, saleID snowflake.ID, quantity int64) (domain.Sale, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Sale{}, err
	}
	buyer, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, accesscontrol.ErrInvalidActor
	}
	if quantity <= 0 {
		return domain.Sale{}, domain.ErrInvalidQuantity
	}

	var purchased domain.Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := s.repo.FindByID(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.ErrNotFound
		}
		if !sale.Active {
			return domain.ErrSaleClosed
		}
		if !s.clock.Now().Before(sale.EndsAt) {
			return domain.ErrSaleEnded
		}
		if buyer == sale.SellerAddress {
			return domain.ErrSelfPurchase
		}
		if quantity > math.MaxInt64/sale.PricePerShare {
			return domain.ErrInvalidQuantity
		}

		sold, err := s.repo.AddSharesSold(ctx, tx, saleID, quantity)
		if err != nil {
			return err
		}
		if !sold {
			return domain.ErrInsufficientShares
		}

		cost := quantity * sale.PricePerShare
		if err := s.treasurySvc.TransferTx(ctx, tx, buyer, sale.SellerAddress, cost); err != nil {
			return err
		}
		ledger, err := s.sharesRepo.FindLedgerByPanelID(ctx, tx, sale.PanelID)
		if err != nil {
			return err
		}
		if ledger == nil {
			return sharesdomain.ErrNotFound
		}
		if err := s.sharesSvc.TransferTx(ctx, tx, ledger.ID, sale.SellerAddress, buyer, quantity); err != nil {
			return err
		}

		sale.SharesSold += quantity
		purchased = *sale
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventSalePurchase,
			Payload: map[string]any{
				"sale_id":  sale.ID.String(),
				"panel_id": sale.PanelID.String(),
				"buyer":    buyer,
				"quantity": quantity,
				"cost":     cost,
			},
		})
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.log.Info("sale purchase",
		zap.String("sale_id", saleID.String()),
		zap.String("buyer", buyer),
		zap.Int64("quantity", quantity),
	)
	return purchased, nil
}

func (s *Service) Close(ctx context.Context, saleID snowflake.ID) error {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return err
	}
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return accesscontrol.ErrInvalidActor
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := s.repo.FindByID(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.ErrNotFound
		}
		if !sale.Active {
			return domain.ErrSaleClosed
		}
		if actor != sale.SellerAddress {
			isAdmin, err := s.authzSvc.HasRole(ctx, accesscontrol.RoleAdmin, actor)
			if err != nil {
				return err
			}
			if !isAdmin {
				return domain.ErrNotSeller
			}
		}
		if err := s.repo.SetActive(ctx, tx, saleID, false); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventSaleClosed,
			Payload: map[string]any{
				"sale_id":  sale.ID.String(),
				"panel_id": sale.PanelID.String(),
			},
		})
	})
}

func (s *Service) GetByID(ctx context.Context, saleID snowflake.ID) (domain.Sale, error) {
	sale, err := s.repo.FindByID(ctx, s.db, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale == nil {
		return domain.Sale{}, domain.ErrNotFound
	}
	return *sale, nil
}

func (s *Service) ListByPanel(ctx context.Context, panelID snowflake.ID) ([]domain.Sale, error) {
	items, err := s.repo.ListByPanel(ctx, s.db, panelID)
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		sales = append(sales, *item)
	}
	return sales, nil
}
