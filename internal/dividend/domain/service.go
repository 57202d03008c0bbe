package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type HistoryEntry struct {
	Seq         int64     `json:"seq"`
	Amount      int64     `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
	Distributed bool      `json:"distributed"`
}

type Service interface {
	// Distribute deposits amount from the caller's treasury account into
	// dividend custody and appends a distribution with the holder balances
	// frozen as of now. Distributor role.
	Distribute(ctx context.Context, panelID snowflake.ID, amount int64) (Distribution, error)
	// Unclaimed reports the holder's accrued, not yet claimed payout. Zero
	// for unknown panels and non-holders.
	Unclaimed(ctx context.Context, panelID snowflake.ID, holder string) (int64, error)
	// Claim pays out everything the caller has accrued since their last
	// claim and advances the watermark.
	Claim(ctx context.Context, panelID snowflake.ID) (int64, error)
	History(ctx context.Context, panelID snowflake.ID) ([]HistoryEntry, error)
}

var (
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrNotMinted      = errors.New("shares not minted")
	ErrNoShares       = errors.New("no shares owned")
	ErrNothingToClaim = errors.New("no unclaimed dividends")
	// ErrCustodyExceeded signals a claim that would pay out more than the
	// distribution deposited. It aborts the transaction and should never be
	// reachable through the public surface.
	ErrCustodyExceeded = errors.New("distribution custody exceeded")
	// ErrClaimConflict signals that another claim already advanced the
	// watermark past what this claim computed. The caller's snapshot is
	// stale and the whole transaction must roll back.
	ErrClaimConflict = errors.New("concurrent claim conflict")
)
