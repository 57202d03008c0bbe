package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/pkg/db/pagination"
)

type RegisterPanelRequest struct {
	SerialNumber  string
	Manufacturer  string
	Name          string
	Location      string
	CapacityWatts int64
}

type UpdateMetadataRequest struct {
	ID            snowflake.ID
	Name          string
	Location      string
	CapacityWatts int64
}

type ListByOwnerRequest struct {
	Owner     string
	PageToken string
	PageSize  int
}

type ListByOwnerResponse struct {
	pagination.PageInfo
	Panels []Panel `json:"panels"`
}

type Service interface {
	// Register records a new panel with the caller as owner. Registrar role.
	Register(ctx context.Context, req RegisterPanelRequest) (Panel, error)
	// RegisterFor records a new panel on behalf of owner. Registrar role.
	RegisterFor(ctx context.Context, owner string, req RegisterPanelRequest) (Panel, error)
	// UpdateMetadata mutates the mutable fields only. Panel owner or admin.
	UpdateMetadata(ctx context.Context, req UpdateMetadataRequest) (Panel, error)
	// SetStatus flips the active flag. Panel owner or admin.
	SetStatus(ctx context.Context, id snowflake.ID, active bool) (Panel, error)
	// LinkShareLedger binds a share ledger to the panel, exactly once. Admin.
	LinkShareLedger(ctx context.Context, id, ledgerID snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (Panel, error)
	GetBySerialNumber(ctx context.Context, serial string) (Panel, error)
	ListByOwner(ctx context.Context, req ListByOwnerRequest) (ListByOwnerResponse, error)
}

var (
	ErrInvalidSerialNumber = errors.New("invalid_serial_number")
	ErrInvalidCapacity     = errors.New("invalid_capacity")
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrSerialExists        = errors.New("serial_number_exists")
	ErrShareLedgerLinked   = errors.New("share_ledger_already_linked")
	ErrNotPanelOwner       = errors.New("caller is not panel owner or admin")
	ErrNotFound            = errors.New("panel does not exist")
)
