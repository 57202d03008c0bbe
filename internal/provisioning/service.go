package provisioning

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	"github.com/heliovolt/solshare/internal/clock"
	"github.com/heliovolt/solshare/internal/events"
	obsmetrics "github.com/heliovolt/solshare/internal/observability/metrics"
	paneldomain "github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/internal/pause"
	saledomain "github.com/heliovolt/solshare/internal/sale/domain"
	sharesdomain "github.com/heliovolt/solshare/internal/shares/domain"
	"github.com/heliovolt/solshare/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrArrayLengthMismatch = errors.New("array_length_mismatch")
	ErrEmptyBatch          = errors.New("empty_batch")
)

type SaleTerms struct {
	PricePerShare int64
	EndsAt        time.Time
}

type CreatePanelRequest struct {
	SerialNumber  string
	Manufacturer  string
	Name          string
	Location      string
	CapacityWatts int64
	TokenName     string
	TokenSymbol   string
	TotalShares   int64
	// Sale, when set, lists the full supply at the given terms.
	Sale *SaleTerms
}

type Result struct {
	Panel  paneldomain.Panel   `json:"panel"`
	Ledger sharesdomain.Ledger `json:"ledger"`
	Sale   *saledomain.Sale    `json:"sale,omitempty"`
}

type Service interface {
	// CreatePanelWithShares registers a panel, creates and links its share
	// ledger, mints the full supply to the owner, and optionally lists it
	// for sale, all in one transaction. Registrar role.
	CreatePanelWithShares(ctx context.Context, req CreatePanelRequest) (Result, error)
	// CreatePanelBatch provisions panels for parallel owners. The whole
	// batch is one transaction; any failure provisions nothing.
	CreatePanelBatch(ctx context.Context, reqs []CreatePanelRequest, owners []string) ([]Result, error)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	PanelRepo  paneldomain.Repository
	SharesSvc  sharesdomain.Service
	SaleSvc    saledomain.Service
	AuthzSvc   accesscontrol.Service
	PauseSvc   pause.Service
	Outbox     *events.Outbox
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	panelRepo  paneldomain.Repository
	sharesSvc  sharesdomain.Service
	saleSvc    saledomain.Service
	authzSvc   accesscontrol.Service
	pauseSvc   pause.Service
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("provisioning.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		panelRepo:  p.PanelRepo,
		sharesSvc:  p.SharesSvc,
		saleSvc:    p.SaleSvc,
		authzSvc:   p.AuthzSvc,
		pauseSvc:   p.PauseSvc,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *service) CreatePanelWithShares(ctx context.Context, req CreatePanelRequest) (Result, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return Result{}, err
	}
	actor, err := s.authzSvc.Require(ctx, accesscontrol.RoleRegistrar)
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err = s.provision(ctx, tx, actor, req)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	s.obsMetrics.RecordPanelRegistered(ctx)
	s.log.Info("panel provisioned",
		zap.String("panel_id", result.Panel.ID.String()),
		zap.String("ledger_id", result.Ledger.ID.String()),
		zap.String("owner", result.Panel.OwnerAddress),
	)
	return result, nil
}

func (s *service) CreatePanelBatch(ctx context.Context, reqs []CreatePanelRequest, owners []string) ([]Result, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return nil, err
	}
	if _, err := s.authzSvc.Require(ctx, accesscontrol.RoleRegistrar); err != nil {
		return nil, err
	}
	if len(reqs) != len(owners) {
		return nil, ErrArrayLengthMismatch
	}
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}

	// Duplicate serials within the batch would only fail mid-transaction;
	// reject them up front.
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		serial := strings.TrimSpace(req.SerialNumber)
		if serial == "" {
			return nil, paneldomain.ErrInvalidSerialNumber
		}
		if _, dup := seen[serial]; dup {
			return nil, paneldomain.ErrSerialExists
		}
		seen[serial] = struct{}{}
	}

	results := make([]Result, 0, len(reqs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, req := range reqs {
			owner := strings.TrimSpace(owners[i])
			if owner == "" {
				return paneldomain.ErrInvalidOwner
			}
			result, err := s.provision(ctx, tx, owner, req)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("panel batch provisioned", zap.Int("count", len(results)))
	return results, nil
}

func (s *service) provision(ctx context.Context, tx *gorm.DB, owner string, req CreatePanelRequest) (Result, error) {
	serial := strings.TrimSpace(req.SerialNumber)
	if serial == "" {
		return Result{}, paneldomain.ErrInvalidSerialNumber
	}
	if req.CapacityWatts <= 0 {
		return Result{}, paneldomain.ErrInvalidCapacity
	}
	if req.TotalShares <= 0 {
		return Result{}, sharesdomain.ErrInvalidAmount
	}

	existing, err := s.panelRepo.FindBySerialNumber(ctx, tx, serial)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return Result{}, paneldomain.ErrSerialExists
	}

	now := s.clock.Now()
	panel := paneldomain.Panel{
		ID:            s.genID.Generate(),
		SerialNumber:  serial,
		Manufacturer:  strings.TrimSpace(req.Manufacturer),
		Name:          strings.TrimSpace(req.Name),
		Location:      strings.TrimSpace(req.Location),
		CapacityWatts: req.CapacityWatts,
		OwnerAddress:  owner,
		Active:        true,
		RegisteredAt:  now,
		UpdatedAt:     now,
	}
	if err := s.panelRepo.Insert(ctx, tx, &panel); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return Result{}, paneldomain.ErrSerialExists
		}
		return Result{}, err
	}
	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventPanelRegistered,
		Payload: map[string]any{
			"panel_id":       panel.ID.String(),
			"serial_number":  panel.SerialNumber,
			"manufacturer":   panel.Manufacturer,
			"capacity_watts": panel.CapacityWatts,
			"owner":          panel.OwnerAddress,
		},
		DedupeKey: "panel_registered:" + panel.ID.String(),
	}); err != nil {
		return Result{}, err
	}

	ledger, err := s.sharesSvc.CreateLedgerTx(ctx, tx, sharesdomain.CreateLedgerRequest{
		PanelID: panel.ID,
		Name:    req.TokenName,
		Symbol:  req.TokenSymbol,
	})
	if err != nil {
		return Result{}, err
	}
	linked, err := s.panelRepo.LinkShareLedger(ctx, tx, panel.ID, ledger.ID, now)
	if err != nil {
		return Result{}, err
	}
	if !linked {
		return Result{}, paneldomain.ErrShareLedgerLinked
	}
	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventPanelLedgerLinked,
		Payload: map[string]any{
			"panel_id":  panel.ID.String(),
			"ledger_id": ledger.ID.String(),
		},
	}); err != nil {
		return Result{}, err
	}

	if err := s.sharesSvc.MintTx(ctx, tx, ledger.ID, owner, req.TotalShares); err != nil {
		return Result{}, err
	}
	ledgerID := ledger.ID
	panel.ShareLedgerID = &ledgerID
	ledger.TotalSupply = req.TotalShares
	ledger.Minted = true

	result := Result{Panel: panel, Ledger: ledger}
	if req.Sale != nil {
		sale, err := s.saleSvc.CreateTx(ctx, tx, owner, saledomain.CreateSaleRequest{
			PanelID:       panel.ID,
			PricePerShare: req.Sale.PricePerShare,
			SharesForSale: req.TotalShares,
			EndsAt:        req.Sale.EndsAt,
		})
		if err != nil {
			return Result{}, err
		}
		result.Sale = &sale
	}
	return result, nil
}
