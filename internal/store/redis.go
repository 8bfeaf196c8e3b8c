package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for actors and collectives. Transactions go to the primary store;
// every actor or collective a transaction touched is evicted after it
// commits, so the next read re-populates from the source of truth.
//
// Each cached key has a generation counter bumped on eviction. A read that
// missed the cache only writes back if the generation is unchanged since
// the miss, so a row read before a commit never outlives the eviction.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, then cache) ---

func (s *CachedStore) CreateActor(ctx context.Context, a *model.Actor) error {
	if err := s.primary.CreateActor(ctx, a); err != nil {
		return err
	}
	s.cache(ctx, actorKey(a.ID), a)
	return nil
}

func (s *CachedStore) CreateCollective(ctx context.Context, c *model.Collective) error {
	if err := s.primary.CreateCollective(ctx, c); err != nil {
		return err
	}
	s.cache(ctx, collectiveKey(c.ID), c)
	return nil
}

// WithTx runs fn on the primary store and evicts touched entries once the
// transaction has committed.
func (s *CachedStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var tracked *trackingTx
	err := s.primary.WithTx(ctx, func(tx Tx) error {
		tracked = &trackingTx{Tx: tx, keys: make(map[string]struct{})}
		return fn(tracked)
	})
	if err != nil || tracked == nil {
		return err
	}
	s.evict(ctx, tracked.touched())
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetActor(ctx context.Context, id string) (*model.Actor, error) {
	var a model.Actor
	if s.lookup(ctx, actorKey(id), &a) {
		return &a, nil
	}

	// Cache miss: read from primary.
	gen := s.generation(ctx, actorKey(id))
	got, err := s.primary.GetActor(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, actorKey(id), gen, got)
	return got, nil
}

func (s *CachedStore) GetCollective(ctx context.Context, id string) (*model.Collective, error) {
	var c model.Collective
	if s.lookup(ctx, collectiveKey(id), &c) {
		return &c, nil
	}

	gen := s.generation(ctx, collectiveKey(id))
	got, err := s.primary.GetCollective(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, collectiveKey(id), gen, got)
	return got, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetActorByName(ctx context.Context, name string) (*model.Actor, error) {
	return s.primary.GetActorByName(ctx, name)
}

func (s *CachedStore) ListActorIDs(ctx context.Context) ([]string, error) {
	return s.primary.ListActorIDs(ctx)
}

func (s *CachedStore) ListCollectiveIDs(ctx context.Context) ([]string, error) {
	return s.primary.ListCollectiveIDs(ctx)
}

func (s *CachedStore) ActiveEffects(ctx context.Context, actorID string, now time.Time) ([]model.Effect, error) {
	return s.primary.ActiveEffects(ctx, actorID, now)
}

func (s *CachedStore) GetBounty(ctx context.Context, targetID string) (*model.Bounty, error) {
	return s.primary.GetBounty(ctx, targetID)
}

func (s *CachedStore) ListReports(ctx context.Context, actorID string, limit int) ([]model.Report, error) {
	return s.primary.ListReports(ctx, actorID, limit)
}

func (s *CachedStore) ListTreasuryEntries(ctx context.Context, collectiveID string) ([]model.TreasuryEntry, error) {
	return s.primary.ListTreasuryEntries(ctx, collectiveID)
}

func (s *CachedStore) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	return s.primary.ListNotifications(ctx, recipientID)
}

// --- Cache helpers ---

func (s *CachedStore) lookup(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

// generation returns the eviction counter of key, or -1 if Redis is
// unreachable.
func (s *CachedStore) generation(ctx context.Context, key string) int64 {
	n, err := s.rdb.Get(ctx, genKey(key)).Int64()
	switch {
	case err == redis.Nil:
		return 0
	case err != nil:
		return -1
	}
	return n
}

// fill caches v under key unless key was evicted after gen was read.
func (s *CachedStore) fill(ctx context.Context, key string, gen int64, v any) {
	if gen < 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	gk := genKey(key)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Get(ctx, gk).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if n != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, gk)
	if err != nil && err != redis.TxFailedErr {
		slog.Debug("cache fill skipped", "key", key, "err", err)
	}
}

// evict bumps the generation of each key and drops its cached value.
func (s *CachedStore) evict(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, genKey(k))
			p.Del(ctx, k)
		}
		return nil
	})
	if err != nil {
		slog.Warn("cache eviction failed", "keys", keys, "err", err)
	}
}

func genKey(key string) string { return "gen:" + key }

func actorKey(id string) string      { return fmt.Sprintf("actor:%s", id) }
func collectiveKey(id string) string { return fmt.Sprintf("collective:%s", id) }

// trackingTx records the cache keys a transaction's writes invalidate.
type trackingTx struct {
	Tx
	mu   sync.Mutex
	keys map[string]struct{}
}

func (t *trackingTx) touch(key string) {
	t.mu.Lock()
	t.keys[key] = struct{}{}
	t.mu.Unlock()
}

func (t *trackingTx) touched() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.keys))
	for k := range t.keys {
		keys = append(keys, k)
	}
	return keys
}

func (t *trackingTx) InsertCollective(ctx context.Context, c *model.Collective) error {
	t.touch(collectiveKey(c.ID))
	return t.Tx.InsertCollective(ctx, c)
}

func (t *trackingTx) SetMembership(ctx context.Context, actorID, collectiveID string) error {
	t.touch(actorKey(actorID))
	return t.Tx.SetMembership(ctx, actorID, collectiveID)
}

func (t *trackingTx) ApplyActorDelta(ctx context.Context, id string, d model.ActorDelta) error {
	t.touch(actorKey(id))
	return t.Tx.ApplyActorDelta(ctx, id, d)
}

func (t *trackingTx) IncrementStructure(ctx context.Context, id string, st model.Structure, by int) error {
	t.touch(actorKey(id))
	return t.Tx.IncrementStructure(ctx, id, st, by)
}

func (t *trackingTx) SetActorNetWorth(ctx context.Context, id string, netWorth float64) error {
	t.touch(actorKey(id))
	return t.Tx.SetActorNetWorth(ctx, id, netWorth)
}

func (t *trackingTx) AdjustTreasury(ctx context.Context, collectiveID string, delta decimal.Decimal) error {
	t.touch(collectiveKey(collectiveID))
	return t.Tx.AdjustTreasury(ctx, collectiveID, delta)
}

func (t *trackingTx) SetDirective(ctx context.Context, collectiveID string, d model.Directive, until time.Time) error {
	t.touch(collectiveKey(collectiveID))
	return t.Tx.SetDirective(ctx, collectiveID, d, until)
}

func (t *trackingTx) MarkCompounded(ctx context.Context, collectiveID string, at time.Time) error {
	t.touch(collectiveKey(collectiveID))
	return t.Tx.MarkCompounded(ctx, collectiveID, at)
}

func (t *trackingTx) SetCollectiveNetWorth(ctx context.Context, collectiveID string, netWorth float64) error {
	t.touch(collectiveKey(collectiveID))
	return t.Tx.SetCollectiveNetWorth(ctx, collectiveID, netWorth)
}
