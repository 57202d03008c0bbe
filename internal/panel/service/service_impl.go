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
	"github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/internal/pause"
	"github.com/heliovolt/solshare/pkg/db"
	"github.com/heliovolt/solshare/pkg/db/pagination"
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
	authzSvc   accesscontrol.Service
	pauseSvc   pause.Service
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("panel.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		authzSvc:   p.AuthzSvc,
		pauseSvc:   p.PauseSvc,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterPanelRequest) (domain.Panel, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Panel{}, err
	}
	actor, err := s.authzSvc.Require(ctx, accesscontrol.RoleRegistrar)
	if err != nil {
		return domain.Panel{}, err
	}
	return s.register(ctx, actor, req)
}

func (s *Service) RegisterFor(ctx context.Context, owner string, req domain.RegisterPanelRequest) (domain.Panel, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Panel{}, err
	}
	if _, err := s.authzSvc.Require(ctx, accesscontrol.RoleRegistrar); err != nil {
		return domain.Panel{}, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return domain.Panel{}, domain.ErrInvalidOwner
	}
	return s.register(ctx, owner, req)
}

func (s *Service) register(ctx context.Context, owner string, req domain.RegisterPanelRequest) (domain.Panel, error) {
	serial := strings.TrimSpace(req.SerialNumber)
	if serial == "" {
		return domain.Panel{}, domain.ErrInvalidSerialNumber
	}
	if req.CapacityWatts <= 0 {
		return domain.Panel{}, domain.ErrInvalidCapacity
	}

	now := s.clock.Now()
	panel := domain.Panel{
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

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindBySerialNumber(ctx, tx, serial)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrSerialExists
		}
		if err := s.repo.Insert(ctx, tx, &panel); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSerialExists
			}
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPanelRegistered,
			Payload: map[string]any{
				"panel_id":       panel.ID.String(),
				"serial_number":  panel.SerialNumber,
				"manufacturer":   panel.Manufacturer,
				"capacity_watts": panel.CapacityWatts,
				"owner":          panel.OwnerAddress,
			},
			DedupeKey: "panel_registered:" + panel.ID.String(),
		})
	})
	if err != nil {
		return domain.Panel{}, err
	}

	s.obsMetrics.RecordPanelRegistered(ctx)
	s.log.Info("panel registered",
		zap.String("panel_id", panel.ID.String()),
		zap.String("serial_number", panel.SerialNumber),
		zap.String("owner", panel.OwnerAddress),
	)
	return panel, nil
}

func (s *Service) UpdateMetadata(ctx context.Context, req domain.UpdateMetadataRequest) (domain.Panel, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Panel{}, err
	}
	if req.CapacityWatts <= 0 {
		return domain.Panel{}, domain.ErrInvalidCapacity
	}

	var updated domain.Panel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		panel, err := s.requireOwnerOrAdmin(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		panel.Name = strings.TrimSpace(req.Name)
		panel.Location = strings.TrimSpace(req.Location)
		panel.CapacityWatts = req.CapacityWatts
		panel.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateMetadata(ctx, tx, panel); err != nil {
			return err
		}
		updated = *panel
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPanelUpdated,
			Payload: map[string]any{
				"panel_id":       panel.ID.String(),
				"name":           panel.Name,
				"location":       panel.Location,
				"capacity_watts": panel.CapacityWatts,
			},
		})
	})
	if err != nil {
		return domain.Panel{}, err
	}
	return updated, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, active bool) (domain.Panel, error) {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return domain.Panel{}, err
	}

	var updated domain.Panel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		panel, err := s.requireOwnerOrAdmin(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, id, active, s.clock.Now()); err != nil {
			return err
		}
		panel.Active = active
		updated = *panel
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPanelStatusChanged,
			Payload: map[string]any{
				"panel_id": panel.ID.String(),
				"active":   active,
			},
		})
	})
	if err != nil {
		return domain.Panel{}, err
	}
	return updated, nil
}

func (s *Service) LinkShareLedger(ctx context.Context, id, ledgerID snowflake.ID) error {
	if err := s.pauseSvc.RequireActive(ctx); err != nil {
		return err
	}
	if _, err := s.authzSvc.Require(ctx, accesscontrol.RoleAdmin); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		panel, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if panel == nil {
			return domain.ErrNotFound
		}
		if panel.ShareLedgerID != nil {
			return domain.ErrShareLedgerLinked
		}
		linked, err := s.repo.LinkShareLedger(ctx, tx, id, ledgerID, s.clock.Now())
		if err != nil {
			return err
		}
		if !linked {
			return domain.ErrShareLedgerLinked
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPanelLedgerLinked,
			Payload: map[string]any{
				"panel_id":  id.String(),
				"ledger_id": ledgerID.String(),
			},
		})
	})
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Panel, error) {
	panel, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Panel{}, err
	}
	if panel == nil {
		return domain.Panel{}, domain.ErrNotFound
	}
	return *panel, nil
}

func (s *Service) GetBySerialNumber(ctx context.Context, serial string) (domain.Panel, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return domain.Panel{}, domain.ErrInvalidSerialNumber
	}
	panel, err := s.repo.FindBySerialNumber(ctx, s.db, serial)
	if err != nil {
		return domain.Panel{}, err
	}
	if panel == nil {
		return domain.Panel{}, domain.ErrNotFound
	}
	return *panel, nil
}

func (s *Service) ListByOwner(ctx context.Context, req domain.ListByOwnerRequest) (domain.ListByOwnerResponse, error) {
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return domain.ListByOwnerResponse{}, domain.ErrInvalidOwner
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByOwner(ctx, s.db, owner, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListByOwnerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(panel *domain.Panel) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: panel.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	panels := make([]domain.Panel, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		panels = append(panels, *item)
	}

	resp := domain.ListByOwnerResponse{Panels: panels}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) requireOwnerOrAdmin(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Panel, error) {
	panel, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if panel == nil {
		return nil, domain.ErrNotFound
	}

	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return nil, accesscontrol.ErrInvalidActor
	}
	if actor == panel.OwnerAddress {
		return panel, nil
	}
	isAdmin, err := s.authzSvc.HasRole(ctx, accesscontrol.RoleAdmin, actor)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, domain.ErrNotPanelOwner
	}
	return panel, nil
}
