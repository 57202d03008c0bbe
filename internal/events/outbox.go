package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types consumed by the off-chain indexer to mirror ledger state.
const (
	EventPanelRegistered     = "panel.registered"
	EventPanelUpdated        = "panel.updated"
	EventPanelStatusChanged  = "panel.status_changed"
	EventPanelLedgerLinked   = "panel.share_ledger_linked"
	EventSharesMinted        = "shares.minted"
	EventSharesTransferred   = "shares.transferred"
	EventSharesApproved      = "shares.approved"
	EventDividendDistributed = "dividend.distributed"
	EventDividendClaimed     = "dividend.claimed"
	EventRoleGranted         = "role.granted"
	EventRoleRevoked         = "role.revoked"
	EventSystemPaused        = "system.paused"
	EventSystemUnpaused      = "system.unpaused"
	EventSaleCreated         = "sale.created"
	EventSaleClosed          = "sale.closed"
	EventSalePurchase        = "sale.purchase"
)

// Event is a single outbox entry. Payload must be JSON-serializable.
type Event struct {
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// OutboxRow is the persisted form of an Event.
type OutboxRow struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	EventType   string         `gorm:"type:text;not null;index"`
	Payload     datatypes.JSON `gorm:"not null"`
	DedupeKey   *string        `gorm:"uniqueIndex"`
	OccurredAt  time.Time      `gorm:"not null"`
	PublishedAt *time.Time     `gorm:"index"`
}

// TableName sets the database table name.
func (OutboxRow) TableName() string { return "outbox_events" }

// Outbox writes events in the same transaction as the state change that
// produced them, so an event exists iff its state transition committed.
type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewOutbox(log *zap.Logger, genID *snowflake.Node) *Outbox {
	return &Outbox{
		log:   log.Named("events.outbox"),
		genID: genID,
	}
}

// PublishTx appends an event inside the caller's transaction. A duplicate
// dedupe key is a silent no-op.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	var dedupe *string
	if event.DedupeKey != "" {
		dedupe = &event.DedupeKey
	}

	now := time.Now().UTC()
	if dedupe != nil {
		return tx.WithContext(ctx).Exec(
			`INSERT INTO outbox_events (id, event_type, payload, dedupe_key, occurred_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (dedupe_key) DO NOTHING`,
			o.genID.Generate(),
			event.Type,
			string(payload),
			*dedupe,
			now,
		).Error
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, event_type, payload, occurred_at)
		 VALUES (?, ?, ?, ?)`,
		o.genID.Generate(),
		event.Type,
		string(payload),
		now,
	).Error
}

// Unpublished returns up to limit pending events in append order.
func (o *Outbox) Unpublished(ctx context.Context, db *gorm.DB, limit int) ([]OutboxRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []OutboxRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, payload, dedupe_key, occurred_at, published_at
		 FROM outbox_events
		 WHERE published_at IS NULL
		 ORDER BY id ASC
		 LIMIT ?`,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkPublished stamps the rows after the indexer has consumed them.
func (o *Outbox) MarkPublished(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_events SET published_at = ? WHERE id IN ?`,
		time.Now().UTC(),
		ids,
	).Error
}
