// Package store defines the persistence interface for the realm engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache) and in-memory (for testing).
//
// Every balance mutation is a relative delta applied atomically by the
// store, never a read-modify-write of a cached value, so concurrent actions
// touching the same actor or treasury cannot lose updates.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/model"
)

var (
	// ErrNotFound is returned when an actor, collective or record is missing.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when creating a record whose id or name
	// is taken.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrBountyClaimed is returned when no unclaimed bounty stands on a target.
	ErrBountyClaimed = errors.New("store: bounty already claimed")

	// ErrInsufficientTreasury is returned when a treasury debit would go
	// below zero.
	ErrInsufficientTreasury = errors.New("store: insufficient treasury balance")
)

// Reader holds the non-transactional queries.
type Reader interface {
	// GetActor retrieves an actor by id.
	GetActor(ctx context.Context, id string) (*model.Actor, error)

	// GetActorByName retrieves an actor by display name.
	GetActorByName(ctx context.Context, name string) (*model.Actor, error)

	// GetCollective retrieves a collective by id.
	GetCollective(ctx context.Context, id string) (*model.Collective, error)

	// ListActorIDs returns every actor id.
	ListActorIDs(ctx context.Context) ([]string, error)

	// ListCollectiveIDs returns every collective id.
	ListCollectiveIDs(ctx context.Context) ([]string, error)

	// ActiveEffects returns the effects on an actor that are live at now.
	ActiveEffects(ctx context.Context, actorID string, now time.Time) ([]model.Effect, error)

	// GetBounty returns the standing bounty on a target.
	GetBounty(ctx context.Context, targetID string) (*model.Bounty, error)

	// ListReports returns the newest reports involving an actor.
	ListReports(ctx context.Context, actorID string, limit int) ([]model.Report, error)

	// ListTreasuryEntries returns a collective's treasury audit log.
	ListTreasuryEntries(ctx context.Context, collectiveID string) ([]model.TreasuryEntry, error)

	// ListNotifications returns notifications for a recipient.
	ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	Reader

	// CreateActor persists a new actor.
	CreateActor(ctx context.Context, a *model.Actor) error

	// CreateCollective persists a new collective.
	CreateCollective(ctx context.Context, c *model.Collective) error

	// WithTx runs fn inside one transaction. If fn returns an error (or
	// panics) every mutation made through tx is rolled back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// LockActor loads an actor and holds its row lock until the end of
	// the transaction.
	LockActor(ctx context.Context, id string) (*model.Actor, error)

	// LockCollective loads a collective and holds its row lock.
	LockCollective(ctx context.Context, id string) (*model.Collective, error)

	// ActiveEffects returns the live effects on an actor.
	ActiveEffects(ctx context.Context, actorID string, now time.Time) ([]model.Effect, error)

	// InsertCollective persists a new collective inside the transaction.
	InsertCollective(ctx context.Context, c *model.Collective) error

	// SetMembership moves an actor into a collective. An empty id leaves
	// any collective.
	SetMembership(ctx context.Context, actorID, collectiveID string) error

	// ApplyActorDelta adds d to the actor's balances, clamping at zero.
	ApplyActorDelta(ctx context.Context, id string, d model.ActorDelta) error

	// IncrementStructure raises one structure level.
	IncrementStructure(ctx context.Context, id string, s model.Structure, by int) error

	// SetActorNetWorth stores a freshly computed net worth.
	SetActorNetWorth(ctx context.Context, id string, netWorth float64) error

	// AdjustTreasury adds delta to a treasury. Debits that would leave a
	// negative balance fail with ErrInsufficientTreasury.
	AdjustTreasury(ctx context.Context, collectiveID string, delta decimal.Decimal) error

	// AppendTreasuryEntry appends an audit record.
	AppendTreasuryEntry(ctx context.Context, e *model.TreasuryEntry) error

	// SetDirective sets a collective's directive and its expiry.
	SetDirective(ctx context.Context, collectiveID string, d model.Directive, until time.Time) error

	// MarkCompounded records when interest was last applied.
	MarkCompounded(ctx context.Context, collectiveID string, at time.Time) error

	// SumMemberNetWorth aggregates the stored net worth of every member.
	SumMemberNetWorth(ctx context.Context, collectiveID string) (float64, error)

	// SetCollectiveNetWorth stores a freshly aggregated net worth.
	SetCollectiveNetWorth(ctx context.Context, collectiveID string, netWorth float64) error

	// PlaceBounty adds to the bounty on a target, creating it if absent.
	PlaceBounty(ctx context.Context, b *model.Bounty) error

	// ClaimBounty removes and returns the bounty on a target. At most one
	// concurrent caller succeeds; the rest get ErrBountyClaimed.
	ClaimBounty(ctx context.Context, targetID string) (*model.Bounty, error)

	// AddEffect inserts a timed effect.
	AddEffect(ctx context.Context, e *model.Effect) error

	// ConsumeEffect removes an actor's effect by key.
	ConsumeEffect(ctx context.Context, actorID string, key model.EffectKey) error

	// PurgeExpiredEffects deletes effects expired at now.
	PurgeExpiredEffects(ctx context.Context, now time.Time) (int64, error)

	// InsertReport appends an immutable report.
	InsertReport(ctx context.Context, r *model.Report) error

	// InsertNotification enqueues a notification.
	InsertNotification(ctx context.Context, n *model.Notification) error
}

// PostTreasury applies e.Amount to the collective's treasury and appends e
// to the audit log in the same transaction.
func PostTreasury(ctx context.Context, tx Tx, e *model.TreasuryEntry) error {
	if err := tx.AdjustTreasury(ctx, e.CollectiveID, e.Amount); err != nil {
		return err
	}
	return tx.AppendTreasuryEntry(ctx, e)
}
