// Package turn advances the realm by one tick: income, upkeep and attack
// turn regeneration for every actor, then treasury interest and net-worth
// aggregation for every collective.
//
// Each actor and each collective is its own transaction. A failure is
// logged and skipped; it never aborts the rest of the batch.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/config"
	"github.com/warfront/realm-engine/internal/metrics"
	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/power"
	"github.com/warfront/realm-engine/internal/store"
)

// ErrTickRunning is returned when a tick is requested while another is
// still in progress.
var ErrTickRunning = errors.New("turn: tick already running")

// Config holds the tick constants that are not modifier tables.
type Config struct {
	InterestRate   decimal.Decimal // treasury interest per tick
	InterestPlaces int32           // decimal places interest is rounded to
}

// LoadConfig reads the tick constants from the balance document.
func LoadConfig(b *config.Balance) Config {
	return Config{
		InterestRate:   decimal.NewFromFloat(b.Float("turn.interest_rate", 0.05)),
		InterestPlaces: int32(b.Int("turn.interest_places", 4)),
	}
}

// Summary reports what one tick did.
type Summary struct {
	ActorsProcessed      int           `json:"actors_processed"`
	ActorsFailed         int           `json:"actors_failed"`
	CollectivesProcessed int           `json:"collectives_processed"`
	CollectivesFailed    int           `json:"collectives_failed"`
	EffectsPurged        int64         `json:"effects_purged"`
	Truncated            bool          `json:"truncated"`
	Duration             time.Duration `json:"duration"`
}

// Processor runs ticks against a store.
type Processor struct {
	store  store.Store
	engine *power.Engine
	cfg    Config
	now    func() time.Time

	running sync.Mutex
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a turn processor.
func NewProcessor(st store.Store, engine *power.Engine, cfg Config, opts ...Option) *Processor {
	p := &Processor{
		store:  st,
		engine: engine,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessAll runs one tick. Actor and collective ids are snapshotted up
// front and each is visited exactly once. Cancelling ctx stops the
// iteration; entities already committed stay committed and the returned
// summary is marked truncated.
func (p *Processor) ProcessAll(ctx context.Context) (sum Summary, err error) {
	if !p.running.TryLock() {
		return Summary{}, ErrTickRunning
	}
	defer p.running.Unlock()

	start := time.Now()
	now := p.now()
	defer func() {
		sum.Duration = time.Since(start)
		metrics.TickDuration.Observe(sum.Duration.Seconds())
	}()

	err = p.store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.PurgeExpiredEffects(ctx, now)
		sum.EffectsPurged = n
		return err
	})
	if err != nil {
		slog.Error("tick: purge expired effects", "err", err)
	}

	actorIDs, err := p.store.ListActorIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("list actors: %w", err)
	}
	for _, id := range actorIDs {
		if ctx.Err() != nil {
			sum.Truncated = true
			break
		}
		if err := p.guard(func() error { return p.processActor(ctx, id, now) }); err != nil {
			sum.ActorsFailed++
			metrics.TickFailures.WithLabelValues("actor").Inc()
			slog.Error("tick: actor failed", "actor", id, "err", err)
			continue
		}
		sum.ActorsProcessed++
		metrics.TickProcessed.WithLabelValues("actor").Inc()
	}

	if !sum.Truncated {
		collectiveIDs, err := p.store.ListCollectiveIDs(ctx)
		if err != nil {
			return sum, fmt.Errorf("list collectives: %w", err)
		}
		for _, id := range collectiveIDs {
			if ctx.Err() != nil {
				sum.Truncated = true
				break
			}
			var interest decimal.Decimal
			err := p.guard(func() (err error) {
				interest, err = p.processCollective(ctx, id, now)
				return err
			})
			if err != nil {
				sum.CollectivesFailed++
				metrics.TickFailures.WithLabelValues("collective").Inc()
				slog.Error("tick: collective failed", "collective", id, "err", err)
				continue
			}
			sum.CollectivesProcessed++
			metrics.TickProcessed.WithLabelValues("collective").Inc()
			metrics.InterestPaid.Add(interest.InexactFloat64())
		}
	}

	slog.Info("tick complete",
		"actors", sum.ActorsProcessed,
		"actors_failed", sum.ActorsFailed,
		"collectives", sum.CollectivesProcessed,
		"collectives_failed", sum.CollectivesFailed,
		"effects_purged", sum.EffectsPurged,
		"truncated", sum.Truncated,
	)
	if sum.Truncated {
		return sum, fmt.Errorf("tick truncated: %w", ctx.Err())
	}
	return sum, nil
}

// guard turns a panic in one batch item into an error so the batch goes on.
func (p *Processor) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn: panic: %v", r)
		}
	}()
	return fn()
}

// processActor applies one tick of production to one actor.
func (p *Processor) processActor(ctx context.Context, id string, now time.Time) error {
	return p.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.LockActor(ctx, id)
		if err != nil {
			return err
		}
		var coll *model.Collective
		if a.CollectiveID != "" {
			coll, err = tx.LockCollective(ctx, a.CollectiveID)
			if errors.Is(err, store.ErrNotFound) {
				coll, err = nil, nil
			}
			if err != nil {
				return err
			}
		}
		effects, err := tx.ActiveEffects(ctx, id, now)
		if err != nil {
			return err
		}

		d := p.TickDelta(a, p.engine.Income(power.Snapshot{Actor: *a, Effects: effects, Now: now}, coll))
		if err := tx.ApplyActorDelta(ctx, id, d); err != nil {
			return err
		}

		after := *a
		after.Apply(d)
		return tx.SetActorNetWorth(ctx, id, p.engine.NetWorth(&after))
	})
}

// TickDelta is the relative change one tick makes to an actor. Upkeep is
// paid from this tick's alloy plus the balance and never goes below zero.
// Attack turns regenerate up to the configured maximum.
func (p *Processor) TickDelta(a *model.Actor, inc power.Income) model.ActorDelta {
	econ := p.engine.Tables().Economy
	d := model.ActorDelta{
		Gold:       inc.Gold,
		Banked:     inc.Interest,
		Citizens:   inc.Citizens,
		Research:   inc.Research,
		DarkMatter: inc.DarkMatter,
		Crystals:   inc.Crystals,
	}
	upkeep := min(inc.Upkeep, a.Alloy+inc.Alloy)
	d.Alloy = inc.Alloy - upkeep
	d.AttackTurns = min(econ.TurnsPerTick, max(econ.MaxAttackTurns-a.AttackTurns, 0))
	return d
}

// processCollective compounds treasury interest and refreshes the
// aggregate net worth from the members' stored values.
func (p *Processor) processCollective(ctx context.Context, id string, now time.Time) (decimal.Decimal, error) {
	var interest decimal.Decimal
	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.LockCollective(ctx, id)
		if err != nil {
			return err
		}
		interest = c.Treasury.Mul(p.cfg.InterestRate).RoundFloor(p.cfg.InterestPlaces)
		if interest.IsPositive() {
			err := store.PostTreasury(ctx, tx, &model.TreasuryEntry{
				ID:           uuid.New().String(),
				CollectiveID: id,
				Kind:         "interest",
				Amount:       interest,
				Timestamp:    now,
			})
			if err != nil {
				return err
			}
		}
		if err := tx.MarkCompounded(ctx, id, now); err != nil {
			return err
		}
		nw, err := tx.SumMemberNetWorth(ctx, id)
		if err != nil {
			return err
		}
		return tx.SetCollectiveNetWorth(ctx, id, nw)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return interest, nil
}
