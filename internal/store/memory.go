package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// Transactions hold the write lock for their whole duration and snapshot
// the mutable state up front; a failed transaction restores the snapshot.
type MemoryStore struct {
	mu            sync.RWMutex
	actors        map[string]*model.Actor
	collectives   map[string]*model.Collective
	effects       []model.Effect
	bounties      map[string]*model.Bounty
	reports       []model.Report
	treasury      []model.TreasuryEntry
	notifications []model.Notification
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		actors:      make(map[string]*model.Actor),
		collectives: make(map[string]*model.Collective),
		bounties:    make(map[string]*model.Bounty),
	}
}

func (s *MemoryStore) CreateActor(_ context.Context, a *model.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actors[a.ID]; ok {
		return fmt.Errorf("%w: actor %s", ErrAlreadyExists, a.ID)
	}
	for _, existing := range s.actors {
		if existing.Name == a.Name {
			return fmt.Errorf("%w: actor name %s", ErrAlreadyExists, a.Name)
		}
	}
	s.actors[a.ID] = cloneActor(a)
	return nil
}

func (s *MemoryStore) CreateCollective(_ context.Context, c *model.Collective) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCollective(c)
}

func (s *MemoryStore) insertCollective(c *model.Collective) error {
	if _, ok := s.collectives[c.ID]; ok {
		return fmt.Errorf("%w: collective %s", ErrAlreadyExists, c.ID)
	}
	cp := *c
	s.collectives[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetActor(_ context.Context, id string) (*model.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actor(id)
}

func (s *MemoryStore) GetActorByName(_ context.Context, name string) (*model.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.actors {
		if a.Name == name {
			return cloneActor(a), nil
		}
	}
	return nil, fmt.Errorf("%w: actor named %s", ErrNotFound, name)
}

func (s *MemoryStore) GetCollective(_ context.Context, id string) (*model.Collective, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collective(id)
}

func (s *MemoryStore) ListActorIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.actors), nil
}

func (s *MemoryStore) ListCollectiveIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.collectives), nil
}

func (s *MemoryStore) ActiveEffects(_ context.Context, actorID string, now time.Time) ([]model.Effect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeEffects(actorID, now), nil
}

func (s *MemoryStore) GetBounty(_ context.Context, targetID string) (*model.Bounty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bounties[targetID]
	if !ok {
		return nil, fmt.Errorf("%w: bounty on %s", ErrNotFound, targetID)
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) ListReports(_ context.Context, actorID string, limit int) ([]model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Report
	for i := len(s.reports) - 1; i >= 0; i-- {
		r := s.reports[i]
		if r.AttackerID != actorID && r.DefenderID != actorID {
			continue
		}
		result = append(result, r)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) ListTreasuryEntries(_ context.Context, collectiveID string) ([]model.TreasuryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TreasuryEntry
	for _, e := range s.treasury {
		if e.CollectiveID == collectiveID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, recipientID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	return result, nil
}

// WithTx runs fn under the write lock and restores the pre-transaction
// state if fn fails or panics.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(&memoryTx{s: s}); err != nil {
		return err
	}
	committed = true
	return nil
}

// --- helpers (callers hold the lock) ---

func (s *MemoryStore) actor(id string) (*model.Actor, error) {
	a, ok := s.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: actor %s", ErrNotFound, id)
	}
	return cloneActor(a), nil
}

func (s *MemoryStore) collective(id string) (*model.Collective, error) {
	c, ok := s.collectives[id]
	if !ok {
		return nil, fmt.Errorf("%w: collective %s", ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) activeEffects(actorID string, now time.Time) []model.Effect {
	var result []model.Effect
	for _, e := range s.effects {
		if e.ActorID == actorID && e.Active(now) {
			result = append(result, e)
		}
	}
	return result
}

type memorySnapshot struct {
	actors        map[string]model.Actor
	collectives   map[string]model.Collective
	bounties      map[string]model.Bounty
	effects       []model.Effect
	reports       int
	treasury      int
	notifications int
}

func (s *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		actors:        make(map[string]model.Actor, len(s.actors)),
		collectives:   make(map[string]model.Collective, len(s.collectives)),
		bounties:      make(map[string]model.Bounty, len(s.bounties)),
		effects:       append([]model.Effect(nil), s.effects...),
		reports:       len(s.reports),
		treasury:      len(s.treasury),
		notifications: len(s.notifications),
	}
	for id, a := range s.actors {
		snap.actors[id] = *a
	}
	for id, c := range s.collectives {
		snap.collectives[id] = *c
	}
	for id, b := range s.bounties {
		snap.bounties[id] = *b
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.actors = make(map[string]*model.Actor, len(snap.actors))
	for id, a := range snap.actors {
		a := a
		s.actors[id] = &a
	}
	s.collectives = make(map[string]*model.Collective, len(snap.collectives))
	for id, c := range snap.collectives {
		c := c
		s.collectives[id] = &c
	}
	s.bounties = make(map[string]*model.Bounty, len(snap.bounties))
	for id, b := range snap.bounties {
		b := b
		s.bounties[id] = &b
	}
	s.effects = snap.effects
	s.reports = s.reports[:snap.reports]
	s.treasury = s.treasury[:snap.treasury]
	s.notifications = s.notifications[:snap.notifications]
}

func cloneActor(a *model.Actor) *model.Actor {
	cp := *a
	cp.Equipment = append([]model.ItemStack(nil), a.Equipment...)
	cp.Champions = make([]model.Champion, len(a.Champions))
	for i, c := range a.Champions {
		cp.Champions[i] = model.Champion{Kind: c.Kind, Items: append([]model.ChampionItem(nil), c.Items...)}
	}
	return &cp
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// memoryTx is the Tx view of a MemoryStore whose write lock is held.
type memoryTx struct {
	s *MemoryStore
}

func (t *memoryTx) LockActor(_ context.Context, id string) (*model.Actor, error) {
	return t.s.actor(id)
}

func (t *memoryTx) LockCollective(_ context.Context, id string) (*model.Collective, error) {
	return t.s.collective(id)
}

func (t *memoryTx) ActiveEffects(_ context.Context, actorID string, now time.Time) ([]model.Effect, error) {
	return t.s.activeEffects(actorID, now), nil
}

func (t *memoryTx) InsertCollective(_ context.Context, c *model.Collective) error {
	return t.s.insertCollective(c)
}

func (t *memoryTx) SetMembership(_ context.Context, actorID, collectiveID string) error {
	a, ok := t.s.actors[actorID]
	if !ok {
		return fmt.Errorf("%w: actor %s", ErrNotFound, actorID)
	}
	if collectiveID != "" {
		if _, ok := t.s.collectives[collectiveID]; !ok {
			return fmt.Errorf("%w: collective %s", ErrNotFound, collectiveID)
		}
	}
	a.CollectiveID = collectiveID
	return nil
}

func (t *memoryTx) ApplyActorDelta(_ context.Context, id string, d model.ActorDelta) error {
	a, ok := t.s.actors[id]
	if !ok {
		return fmt.Errorf("%w: actor %s", ErrNotFound, id)
	}
	a.Apply(d)
	return nil
}

func (t *memoryTx) IncrementStructure(_ context.Context, id string, st model.Structure, by int) error {
	a, ok := t.s.actors[id]
	if !ok {
		return fmt.Errorf("%w: actor %s", ErrNotFound, id)
	}
	if int(st) >= model.NumStructures {
		return fmt.Errorf("store: unknown structure %d", st)
	}
	a.Structures[st] = max(a.Structures[st]+by, 0)
	return nil
}

func (t *memoryTx) SetActorNetWorth(_ context.Context, id string, netWorth float64) error {
	a, ok := t.s.actors[id]
	if !ok {
		return fmt.Errorf("%w: actor %s", ErrNotFound, id)
	}
	a.NetWorth = netWorth
	return nil
}

func (t *memoryTx) AdjustTreasury(_ context.Context, collectiveID string, delta decimal.Decimal) error {
	c, ok := t.s.collectives[collectiveID]
	if !ok {
		return fmt.Errorf("%w: collective %s", ErrNotFound, collectiveID)
	}
	next := c.Treasury.Add(delta)
	if next.IsNegative() {
		return ErrInsufficientTreasury
	}
	c.Treasury = next
	return nil
}

func (t *memoryTx) AppendTreasuryEntry(_ context.Context, e *model.TreasuryEntry) error {
	t.s.treasury = append(t.s.treasury, *e)
	return nil
}

func (t *memoryTx) SetDirective(_ context.Context, collectiveID string, d model.Directive, until time.Time) error {
	c, ok := t.s.collectives[collectiveID]
	if !ok {
		return fmt.Errorf("%w: collective %s", ErrNotFound, collectiveID)
	}
	c.Directive = d
	c.DirectiveUntil = until
	return nil
}

func (t *memoryTx) MarkCompounded(_ context.Context, collectiveID string, at time.Time) error {
	c, ok := t.s.collectives[collectiveID]
	if !ok {
		return fmt.Errorf("%w: collective %s", ErrNotFound, collectiveID)
	}
	c.LastCompounded = at
	return nil
}

func (t *memoryTx) SumMemberNetWorth(_ context.Context, collectiveID string) (float64, error) {
	var sum float64
	for _, a := range t.s.actors {
		if a.CollectiveID == collectiveID {
			sum += a.NetWorth
		}
	}
	return sum, nil
}

func (t *memoryTx) SetCollectiveNetWorth(_ context.Context, collectiveID string, netWorth float64) error {
	c, ok := t.s.collectives[collectiveID]
	if !ok {
		return fmt.Errorf("%w: collective %s", ErrNotFound, collectiveID)
	}
	c.NetWorth = netWorth
	return nil
}

func (t *memoryTx) PlaceBounty(_ context.Context, b *model.Bounty) error {
	if existing, ok := t.s.bounties[b.TargetID]; ok {
		existing.Amount += b.Amount
		return nil
	}
	cp := *b
	t.s.bounties[b.TargetID] = &cp
	return nil
}

func (t *memoryTx) ClaimBounty(_ context.Context, targetID string) (*model.Bounty, error) {
	b, ok := t.s.bounties[targetID]
	if !ok {
		return nil, ErrBountyClaimed
	}
	delete(t.s.bounties, targetID)
	cp := *b
	return &cp, nil
}

func (t *memoryTx) AddEffect(_ context.Context, e *model.Effect) error {
	t.s.effects = append(t.s.effects, *e)
	return nil
}

func (t *memoryTx) ConsumeEffect(_ context.Context, actorID string, key model.EffectKey) error {
	kept := t.s.effects[:0:0]
	for _, e := range t.s.effects {
		if e.ActorID == actorID && e.Key == key {
			continue
		}
		kept = append(kept, e)
	}
	t.s.effects = kept
	return nil
}

func (t *memoryTx) PurgeExpiredEffects(_ context.Context, now time.Time) (int64, error) {
	var kept []model.Effect
	var purged int64
	for _, e := range t.s.effects {
		if !e.Active(now) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	t.s.effects = kept
	return purged, nil
}

func (t *memoryTx) InsertReport(_ context.Context, r *model.Report) error {
	t.s.reports = append(t.s.reports, *r)
	return nil
}

func (t *memoryTx) InsertNotification(_ context.Context, n *model.Notification) error {
	t.s.notifications = append(t.s.notifications, *n)
	return nil
}
