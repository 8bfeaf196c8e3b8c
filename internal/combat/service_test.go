package combat_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/combat"
	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/modifier"
	"github.com/warfront/realm-engine/internal/power"
	"github.com/warfront/realm-engine/internal/progression"
	"github.com/warfront/realm-engine/internal/store"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type constRand float64

func (r constRand) Float64() float64 { return float64(r) }

type seqRand struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[min(r.i, len(r.vals)-1)]
	r.i++
	return v
}

type eventLog struct {
	mu     sync.Mutex
	events []model.Event
	notes  []model.Notification
}

func (l *eventLog) PublishEvent(_ context.Context, ev model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) Notify(_ context.Context, n model.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notes = append(l.notes, n)
}

type testEnv struct {
	svc *combat.Service
	ms  *store.MemoryStore
	log *eventLog
}

func newTestEnv(t *testing.T, st store.Store, ms *store.MemoryStore, rng combat.Rand) *testEnv {
	t.Helper()
	tables, err := modifier.Load(nil)
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	log := &eventLog{}
	svc := combat.NewService(st, power.NewEngine(tables), progression.LoadCurve(nil), combat.LoadConfig(nil), rng,
		combat.WithPublisher(log),
		combat.WithNotifier(log),
		combat.WithClock(func() time.Time { return now }),
	)
	return &testEnv{svc: svc, ms: ms, log: log}
}

func newEnv(t *testing.T, rng combat.Rand) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	return newTestEnv(t, ms, ms, rng)
}

// seedAttacker creates the 2025-offense attacker: 100 soldiers × 10,
// 100 tier-1 weapons × 5, war hall 5 (+25%), strength 10 (+10%).
func seedAttacker(t *testing.T, ms *store.MemoryStore, collectiveID string) *model.Actor {
	t.Helper()
	a := &model.Actor{
		ID:           "att",
		Name:         "Aurelia",
		CollectiveID: collectiveID,
		Gold:         100,
		Level:        1,
		AttackTurns:  10,
		Equipment:    []model.ItemStack{{Kind: model.ItemWeapon, Tier: 1, Count: 100}},
		CreatedAt:    now,
	}
	a.Units[model.UnitSoldier] = 100
	a.Units[model.UnitSpy] = 10
	a.Structures[model.StructWarHall] = 5
	a.Stats[model.StatStrength] = 10
	if err := ms.CreateActor(context.Background(), a); err != nil {
		t.Fatalf("seed attacker: %v", err)
	}
	return a
}

// seedDefender creates a defender with 1000 defense.
func seedDefender(t *testing.T, ms *store.MemoryStore, collectiveID string) *model.Actor {
	t.Helper()
	d := &model.Actor{
		ID:           "def",
		Name:         "Borin",
		CollectiveID: collectiveID,
		Gold:         10000,
		Level:        1,
		AttackTurns:  10,
		DarkMatter:   100,
		Crystals:     50,
		Alloy:        200,
		CreatedAt:    now,
	}
	d.Units[model.UnitGuard] = 100
	d.Units[model.UnitWorker] = 50
	if err := ms.CreateActor(context.Background(), d); err != nil {
		t.Fatalf("seed defender: %v", err)
	}
	return d
}

func seedCollective(t *testing.T, ms *store.MemoryStore, id string) {
	t.Helper()
	if err := ms.CreateCollective(context.Background(), &model.Collective{
		ID: id, Name: "collective-" + id, Treasury: decimal.Zero, CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed collective: %v", err)
	}
}

func addEffect(t *testing.T, ms *store.MemoryStore, actorID string, key model.EffectKey) {
	t.Helper()
	err := ms.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.AddEffect(context.Background(), &model.Effect{
			ID: "fx-" + key.String(), ActorID: actorID, Key: key, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("add effect: %v", err)
	}
}

func mustActor(t *testing.T, ms *store.MemoryStore, id string) *model.Actor {
	t.Helper()
	a, err := ms.GetActor(context.Background(), id)
	if err != nil {
		t.Fatalf("get actor %s: %v", id, err)
	}
	return a
}

// --- Validation ---

func TestAttack_NoUnitsRejectedWithoutSpendingTurns(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	a := &model.Actor{ID: "att", Name: "Aurelia", Level: 1, AttackTurns: 5}
	if err := env.ms.CreateActor(ctx, a); err != nil {
		t.Fatal(err)
	}
	seedDefender(t, env.ms, "")

	res := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: "att", Target: "Borin"})
	if res.Status != model.StatusRejected || res.Code != combat.CodeNoUnits {
		t.Fatalf("result = %+v, want no_units rejection", res)
	}
	if res.Message != "no units to send" {
		t.Errorf("message = %q", res.Message)
	}
	if got := mustActor(t, env.ms, "att").AttackTurns; got != 5 {
		t.Errorf("attack turns = %d, want 5", got)
	}
	if reports, _ := env.ms.ListReports(ctx, "att", 0); len(reports) != 0 {
		t.Errorf("rejection stored %d reports", len(reports))
	}
}

func TestAttack_ValidationRejections(t *testing.T) {
	tests := []struct {
		name     string
		attacker string
		target   string
		turns    int64
		wantCode string
	}{
		{"unknown target", "att", "Nobody", 10, combat.CodeTargetNotFound},
		{"self by name", "att", "Aurelia", 10, combat.CodeSelfTarget},
		{"self by id", "att", "att", 10, combat.CodeSelfTarget},
		{"no turns", "att", "Borin", 0, combat.CodeNoTurns},
		{"unknown attacker", "ghost", "Borin", 10, combat.CodeAttackerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, constRand(0.5))
			a := seedAttacker(t, env.ms, "")
			seedDefender(t, env.ms, "")
			if tt.turns != a.AttackTurns {
				_ = env.ms.WithTx(context.Background(), func(tx store.Tx) error {
					return tx.ApplyActorDelta(context.Background(), "att", model.ActorDelta{AttackTurns: tt.turns - a.AttackTurns})
				})
			}

			res := env.svc.Attack(context.Background(), combat.AttackRequest{AttackerID: tt.attacker, Target: tt.target})
			if res.Status != model.StatusRejected || res.Code != tt.wantCode {
				t.Errorf("result = %+v, want %s", res, tt.wantCode)
			}
		})
	}
}

// --- Battle ---

func TestAttack_Offense2025BeatsDefense1000(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	seedAttacker(t, env.ms, "")
	seedDefender(t, env.ms, "")

	res := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: "att", Target: "Borin"})
	if res.Status != model.StatusSuccess {
		t.Fatalf("result = %+v, want success", res)
	}
	r := res.Report
	if r.Outcome != model.OutcomeVictory {
		t.Fatalf("outcome = %s, want victory", r.Outcome)
	}
	if math.Abs(r.AttackerPower-2025) > 1e-6 || math.Abs(r.DefenderPower-1000) > 1e-6 {
		t.Errorf("power = %v vs %v, want 2025 vs 1000", r.AttackerPower, r.DefenderPower)
	}

	att := mustActor(t, env.ms, "att")
	def := mustActor(t, env.ms, "def")
	if att.AttackTurns != 9 {
		t.Errorf("attack turns = %d, want 9", att.AttackTurns)
	}
	if att.Gold != 1100 || def.Gold != 9000 {
		t.Errorf("gold attacker=%d defender=%d, want 1100 and 9000", att.Gold, def.Gold)
	}
	if def.Units[model.UnitGuard] != 88 || def.Units[model.UnitWorker] != 47 {
		t.Errorf("defender guards=%d workers=%d, want 88 and 47", def.Units[model.UnitGuard], def.Units[model.UnitWorker])
	}
	if att.Experience != 100 || def.Experience != 20 {
		t.Errorf("experience attacker=%d defender=%d", att.Experience, def.Experience)
	}
	if !att.Influence.IsPositive() {
		t.Errorf("expected influence gain, got %s", att.Influence)
	}

	reports, _ := env.ms.ListReports(ctx, "def", 0)
	if len(reports) != 1 || reports[0].ID != r.ID {
		t.Errorf("stored reports = %+v", reports)
	}
	notes, _ := env.ms.ListNotifications(ctx, "def")
	if len(notes) != 1 || !strings.Contains(notes[0].Body, "Aurelia") {
		t.Errorf("defender notifications = %+v", notes)
	}
	if len(env.log.events) != 1 || env.log.events[0].Type != combat.EventBattleResolved {
		t.Errorf("published events = %+v", env.log.events)
	}
	if len(env.log.notes) != 1 || env.log.notes[0].RecipientID != "def" {
		t.Errorf("live notifications = %+v", env.log.notes)
	}
}

func TestAttack_ShieldDeflectsButSpendsTurns(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	seedAttacker(t, env.ms, "")
	seedDefender(t, env.ms, "")
	addEffect(t, env.ms, "def", model.EffectShield)

	res := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: "att", Target: "Borin"})
	if res.Status != model.StatusDeflected || res.Code != combat.CodeTargetShielded {
		t.Fatalf("result = %+v, want deflected", res)
	}
	if res.Report == nil || res.Report.Outcome != model.OutcomeDeflected || res.Report.AttackerPower != 0 {
		t.Errorf("report = %+v, want deflected report without power", res.Report)
	}
	att := mustActor(t, env.ms, "att")
	def := mustActor(t, env.ms, "def")
	if att.AttackTurns != 9 {
		t.Errorf("attack turns = %d, want 9", att.AttackTurns)
	}
	if def.Gold != 10000 || def.Units[model.UnitGuard] != 100 {
		t.Errorf("defender changed: gold=%d guards=%d", def.Gold, def.Units[model.UnitGuard])
	}
}

func TestAttack_TaxAndTributeReachTreasuries(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	seedCollective(t, env.ms, "north")
	seedCollective(t, env.ms, "south")
	seedAttacker(t, env.ms, "north")
	seedDefender(t, env.ms, "south")

	res := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: "att", Target: "Borin"})
	if res.Status != model.StatusSuccess || res.Report.Outcome != model.OutcomeVictory {
		t.Fatalf("result = %+v", res)
	}

	north, _ := env.ms.GetCollective(ctx, "north")
	south, _ := env.ms.GetCollective(ctx, "south")
	if !north.Treasury.Equal(decimal.NewFromInt(50)) || !south.Treasury.Equal(decimal.NewFromInt(20)) {
		t.Errorf("treasuries north=%s south=%s, want 50 and 20", north.Treasury, south.Treasury)
	}
	if att := mustActor(t, env.ms, "att"); att.Gold != 100+930 {
		t.Errorf("attacker gold = %d, want 1030", att.Gold)
	}
	entries, _ := env.ms.ListTreasuryEntries(ctx, "north")
	if len(entries) != 1 || entries[0].Kind != "tax" {
		t.Errorf("north audit log = %+v", entries)
	}
	if ev := env.log.events[0]; ev.AttackerCollective != "north" || ev.DefenderCollective != "south" {
		t.Errorf("event collectives = %q/%q", ev.AttackerCollective, ev.DefenderCollective)
	}
}

func TestAttack_BountyPaidOnce(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	seedAttacker(t, env.ms, "")
	seedDefender(t, env.ms, "")
	err := env.ms.WithTx(ctx, func(tx store.Tx) error {
		return tx.PlaceBounty(ctx, &model.Bounty{ID: "b1", TargetID: "def", PlacerID: "x", Amount: 500, CreatedAt: now})
	})
	if err != nil {
		t.Fatal(err)
	}

	first := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: "att", Target: "Borin"})
	if first.Report.BountyPaid != 500 {
		t.Errorf("first bounty paid = %d, want 500", first.Report.BountyPaid)
	}
	second := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: "att", Target: "Borin"})
	if second.Status != model.StatusSuccess || second.Report.BountyPaid != 0 {
		t.Errorf("second attack = %+v, want success without bounty", second)
	}
}

func TestAttack_ConcurrentAttacksOnOneDefender(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	seedDefender(t, env.ms, "")
	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		a := &model.Actor{ID: id, Name: "raider-" + id, Level: 1, AttackTurns: 5}
		a.Units[model.UnitSoldier] = 500
		if err := env.ms.CreateActor(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var plundered int64
	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: id, Target: "def"})
			if res.Status != model.StatusSuccess {
				t.Errorf("%s: %+v", id, res)
				return
			}
			mu.Lock()
			plundered += res.Report.Plunder
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	def := mustActor(t, env.ms, "def")
	if def.Gold != 10000-plundered {
		t.Errorf("defender gold = %d, want %d (lost update)", def.Gold, 10000-plundered)
	}
	if def.Units[model.UnitGuard] < 0 || def.Units[model.UnitWorker] < 0 {
		t.Errorf("negative counts: %+v", def.Units)
	}
}

// --- Atomicity ---

// faultyStore injects a failure at one named mutation step.
type faultyStore struct {
	*store.MemoryStore
	failAt string
	panics bool
}

func (s *faultyStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.MemoryStore.WithTx(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{Tx: tx, s: s})
	})
}

type faultyTx struct {
	store.Tx
	s     *faultyStore
	seenA bool
}

var errInjected = errors.New("injected failure")

func (t *faultyTx) trip(step string) error {
	if t.s.failAt != step {
		return nil
	}
	if t.s.panics {
		panic(errInjected)
	}
	return errInjected
}

func (t *faultyTx) ApplyActorDelta(ctx context.Context, id string, d model.ActorDelta) error {
	step := "apply_attacker"
	if t.seenA {
		step = "apply_defender"
	}
	if err := t.Tx.ApplyActorDelta(ctx, id, d); err != nil {
		return err
	}
	t.seenA = true
	return t.trip(step)
}

func (t *faultyTx) ClaimBounty(ctx context.Context, targetID string) (*model.Bounty, error) {
	b, err := t.Tx.ClaimBounty(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return b, t.trip("claim_bounty")
}

func (t *faultyTx) AdjustTreasury(ctx context.Context, id string, delta decimal.Decimal) error {
	if err := t.Tx.AdjustTreasury(ctx, id, delta); err != nil {
		return err
	}
	return t.trip("treasury")
}

func (t *faultyTx) AppendTreasuryEntry(ctx context.Context, e *model.TreasuryEntry) error {
	if err := t.Tx.AppendTreasuryEntry(ctx, e); err != nil {
		return err
	}
	return t.trip("audit")
}

func (t *faultyTx) InsertReport(ctx context.Context, r *model.Report) error {
	if err := t.Tx.InsertReport(ctx, r); err != nil {
		return err
	}
	return t.trip("report")
}

func (t *faultyTx) InsertNotification(ctx context.Context, n *model.Notification) error {
	if err := t.Tx.InsertNotification(ctx, n); err != nil {
		return err
	}
	return t.trip("notification")
}

func TestAttack_FailureAtAnyStepLeavesNoTrace(t *testing.T) {
	steps := []string{"claim_bounty", "apply_attacker", "apply_defender", "treasury", "audit", "report", "notification"}
	for _, panics := range []bool{false, true} {
		for _, step := range steps {
			name := step
			if panics {
				name += "/panic"
			}
			t.Run(name, func(t *testing.T) {
				ms := store.NewMemoryStore()
				fs := &faultyStore{MemoryStore: ms, failAt: step, panics: panics}
				env := newTestEnv(t, fs, ms, constRand(0.5))
				ctx := context.Background()
				seedCollective(t, ms, "north")
				seedCollective(t, ms, "south")
				seedAttacker(t, ms, "north")
				seedDefender(t, ms, "south")
				_ = ms.WithTx(ctx, func(tx store.Tx) error {
					return tx.PlaceBounty(ctx, &model.Bounty{ID: "b1", TargetID: "def", Amount: 500})
				})
				before := []*model.Actor{mustActor(t, ms, "att"), mustActor(t, ms, "def")}

				res := env.svc.Attack(ctx, combat.AttackRequest{AttackerID: "att", Target: "Borin"})
				if res.Status != model.StatusFailed || res.Code != model.CodeInternal {
					t.Fatalf("result = %+v, want internal failure", res)
				}

				for _, b := range before {
					after := mustActor(t, ms, b.ID)
					if after.Gold != b.Gold || after.Units != b.Units || after.AttackTurns != b.AttackTurns || after.Experience != b.Experience {
						t.Errorf("%s changed after rollback: before=%+v after=%+v", b.ID, b, after)
					}
				}
				for _, id := range []string{"north", "south"} {
					c, _ := ms.GetCollective(ctx, id)
					if !c.Treasury.IsZero() {
						t.Errorf("%s treasury = %s after rollback", id, c.Treasury)
					}
					if entries, _ := ms.ListTreasuryEntries(ctx, id); len(entries) != 0 {
						t.Errorf("%s audit entries survived rollback", id)
					}
				}
				if _, err := ms.GetBounty(ctx, "def"); err != nil {
					t.Errorf("bounty lost in rollback: %v", err)
				}
				if reports, _ := ms.ListReports(ctx, "att", 0); len(reports) != 0 {
					t.Errorf("report survived rollback")
				}
				if notes, _ := ms.ListNotifications(ctx, "def"); len(notes) != 0 {
					t.Errorf("notification survived rollback")
				}
				if len(env.log.events) != 0 || len(env.log.notes) != 0 {
					t.Errorf("post-commit side effects ran for a rolled-back action")
				}
			})
		}
	}
}

func TestSpy_FailureAtAnyStepLeavesNoTrace(t *testing.T) {
	steps := []string{"apply_attacker", "apply_defender", "report", "notification"}
	for _, panics := range []bool{false, true} {
		for _, step := range steps {
			name := step
			if panics {
				name += "/panic"
			}
			t.Run(name, func(t *testing.T) {
				ms := store.NewMemoryStore()
				fs := &faultyStore{MemoryStore: ms, failAt: step, panics: panics}
				env := newTestEnv(t, fs, ms, constRand(0.5))
				ctx := context.Background()
				seedAttacker(t, ms, "")
				seedDefender(t, ms, "")
				before := []*model.Actor{mustActor(t, ms, "att"), mustActor(t, ms, "def")}

				res := env.svc.Spy(ctx, combat.SpyRequest{AttackerID: "att", Target: "Borin"})
				if res.Status != model.StatusFailed || res.Code != model.CodeInternal {
					t.Fatalf("result = %+v, want internal failure", res)
				}

				for _, b := range before {
					after := mustActor(t, ms, b.ID)
					if after.Gold != b.Gold || after.Units != b.Units || after.AttackTurns != b.AttackTurns ||
						after.DarkMatter != b.DarkMatter || after.Crystals != b.Crystals || after.Alloy != b.Alloy {
						t.Errorf("%s changed after rollback: before=%+v after=%+v", b.ID, b, after)
					}
				}
				if reports, _ := ms.ListReports(ctx, "att", 0); len(reports) != 0 {
					t.Errorf("report survived rollback")
				}
				if notes, _ := ms.ListNotifications(ctx, "def"); len(notes) != 0 {
					t.Errorf("notification survived rollback")
				}
				if len(env.log.events) != 0 || len(env.log.notes) != 0 {
					t.Errorf("post-commit side effects ran for a rolled-back action")
				}
			})
		}
	}
}

// --- Espionage ---

func TestSpy_JammingIsCriticalFailure(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	a := seedAttacker(t, env.ms, "")
	_ = env.ms.WithTx(ctx, func(tx store.Tx) error {
		var d model.ActorDelta
		d.Units[model.UnitSpy] = 90
		return tx.ApplyActorDelta(ctx, a.ID, d)
	})
	seedDefender(t, env.ms, "")
	addEffect(t, env.ms, "def", model.EffectJamming)

	res := env.svc.Spy(ctx, combat.SpyRequest{AttackerID: "att", Target: "Borin"})
	if res.Report == nil || res.Report.Outcome != model.OutcomeCriticalFailure {
		t.Fatalf("result = %+v, want critical failure report", res)
	}
	if res.Code != combat.CodeTargetJammed {
		t.Errorf("code = %q, want %q", res.Code, combat.CodeTargetJammed)
	}
	if res.Report.AttackerPower != 0 || res.Report.DefenderPower != 0 {
		t.Errorf("jammed attempt compared power: %v vs %v", res.Report.AttackerPower, res.Report.DefenderPower)
	}
	att := mustActor(t, env.ms, "att")
	if att.AttackTurns != 9 {
		t.Errorf("attack turns = %d, want 9", att.AttackTurns)
	}
	if att.Units[model.UnitSpy] != 90 {
		t.Errorf("spies = %d, want 90 after losing 10%%", att.Units[model.UnitSpy])
	}
	if def := mustActor(t, env.ms, "def"); def.Gold != 10000 {
		t.Errorf("defender gold changed: %d", def.Gold)
	}
}

func TestSpy_SuccessStealsResources(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	seedAttacker(t, env.ms, "")
	seedDefender(t, env.ms, "") // no sentries: success at the cap, never caught

	res := env.svc.Spy(ctx, combat.SpyRequest{AttackerID: "att", Target: "Borin"})
	if res.Status != model.StatusSuccess || res.Report.Outcome != model.OutcomeSuccess {
		t.Fatalf("result = %+v, want success", res)
	}
	want := model.Loot{Gold: 500, DarkMatter: 3, Crystals: 1, Alloy: 6}
	if res.Report.Stolen != want {
		t.Errorf("stolen = %+v, want %+v", res.Report.Stolen, want)
	}

	att := mustActor(t, env.ms, "att")
	def := mustActor(t, env.ms, "def")
	if att.Gold != 600 || att.DarkMatter != 3 || att.Crystals != 1 || att.Alloy != 6 {
		t.Errorf("attacker balances gold=%d dm=%v crystals=%v alloy=%v", att.Gold, att.DarkMatter, att.Crystals, att.Alloy)
	}
	if def.Gold != 9500 || def.DarkMatter != 97 || def.Crystals != 49 || def.Alloy != 194 {
		t.Errorf("defender balances gold=%d dm=%v crystals=%v alloy=%v", def.Gold, def.DarkMatter, def.Crystals, def.Alloy)
	}
	notes, _ := env.ms.ListNotifications(ctx, "def")
	if len(notes) != 1 || strings.Contains(notes[0].Body, "Aurelia") {
		t.Errorf("uncaught spy must stay anonymous: %+v", notes)
	}
}

func TestSpy_CaughtRevealsAttacker(t *testing.T) {
	tests := []struct {
		name       string
		rolls      []float64
		wantCaught bool
		wantLost   int64
	}{
		{"caught", []float64{0.99, 0.0, 0.5}, true, 3},
		{"escaped", []float64{0.99, 0.95, 0.5}, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, &seqRand{vals: tt.rolls})
			ctx := context.Background()
			seedAttacker(t, env.ms, "") // 10 spies: 80 espionage
			d := seedDefender(t, env.ms, "")
			_ = env.ms.WithTx(ctx, func(tx store.Tx) error {
				var delta model.ActorDelta
				delta.Units[model.UnitSentry] = 100 // 800 sentry
				return tx.ApplyActorDelta(ctx, d.ID, delta)
			})

			res := env.svc.Spy(ctx, combat.SpyRequest{AttackerID: "att", Target: "Borin"})
			if res.Status != model.StatusSuccess || res.Report.Outcome != model.OutcomeFailure {
				t.Fatalf("result = %+v, want committed failure", res)
			}
			if res.Report.Caught != tt.wantCaught || res.Report.AttackerLosses != tt.wantLost {
				t.Errorf("caught=%v lost=%d, want %v and %d", res.Report.Caught, res.Report.AttackerLosses, tt.wantCaught, tt.wantLost)
			}
			if got := mustActor(t, env.ms, "att").Units[model.UnitSpy]; got != 10-tt.wantLost {
				t.Errorf("spies = %d, want %d", got, 10-tt.wantLost)
			}
			notes, _ := env.ms.ListNotifications(ctx, "def")
			if len(notes) != 1 {
				t.Fatalf("expected one notification, got %d", len(notes))
			}
			if revealed := strings.Contains(notes[0].Body, "Aurelia"); revealed != tt.wantCaught {
				t.Errorf("identity revealed = %v, want %v (%q)", revealed, tt.wantCaught, notes[0].Body)
			}
		})
	}
}

func TestSpy_NoSpiesRejected(t *testing.T) {
	env := newEnv(t, constRand(0.5))
	ctx := context.Background()
	a := &model.Actor{ID: "att", Name: "Aurelia", Level: 1, AttackTurns: 5}
	a.Units[model.UnitSoldier] = 10
	if err := env.ms.CreateActor(ctx, a); err != nil {
		t.Fatal(err)
	}
	seedDefender(t, env.ms, "")

	res := env.svc.Spy(ctx, combat.SpyRequest{AttackerID: "att", Target: "Borin"})
	if res.Status != model.StatusRejected || res.Code != combat.CodeNoUnits {
		t.Errorf("result = %+v, want no_units", res)
	}
}
