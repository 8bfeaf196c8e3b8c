package combat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/broadcast"
	"github.com/warfront/realm-engine/internal/metrics"
	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/power"
	"github.com/warfront/realm-engine/internal/progression"
	"github.com/warfront/realm-engine/internal/store"
)

// Event types published after commit.
const (
	EventBattleResolved    = "battle_resolved"
	EventEspionageResolved = "espionage_resolved"
)

// Rejection codes.
const (
	CodeAttackerNotFound = "attacker_not_found"
	CodeTargetNotFound   = "target_not_found"
	CodeSelfTarget       = "self_target"
	CodeNoTurns          = "no_turns"
	CodeNoUnits          = "no_units"
	CodeTargetShielded   = "target_shielded"
	CodeTargetJammed     = "target_jammed"
)

// AttackRequest is the JSON body for POST /battle.
type AttackRequest struct {
	AttackerID string `json:"attacker_id"`
	Target     string `json:"target"` // display name or id
}

// SpyRequest is the JSON body for POST /spy.
type SpyRequest struct {
	AttackerID string `json:"attacker_id"`
	Target     string `json:"target"`
}

// Service resolves combat actions. Each action is one transaction against
// the store; the engine itself takes no locks and relies on the store's
// row locking for actions that touch the same actor.
type Service struct {
	store    store.Store
	engine   *power.Engine
	curve    progression.Curve
	cfg      Config
	rng      Rand
	events   broadcast.Publisher
	notifier broadcast.Notifier
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the post-commit domain event sink.
func WithPublisher(p broadcast.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithNotifier sets the live notification sink.
func WithNotifier(n broadcast.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a combat service.
func NewService(st store.Store, engine *power.Engine, curve progression.Curve, cfg Config, rng Rand, opts ...Option) *Service {
	s := &Service{
		store:  st,
		engine: engine,
		curve:  curve,
		cfg:    cfg,
		rng:    rng,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolution is what a committed transaction hands to post-commit work.
type resolution struct {
	report *model.Report
	note   *model.Notification
	event  model.Event
}

// sides holds the row-locked participants of one action.
type sides struct {
	attacker *model.Actor
	defender *model.Actor
	attColl  *model.Collective
	defColl  *model.Collective
}

// Attack resolves a battle.
func (s *Service) Attack(ctx context.Context, req AttackRequest) model.Result {
	start := time.Now()
	defer func() { metrics.ActionLatency.WithLabelValues("battle").Observe(time.Since(start).Seconds()) }()

	cost := s.cfg.Battle.TurnCost
	attacker, defender, rej := s.validate(ctx, req.AttackerID, req.Target, cost, model.UnitSoldier, "no units to send")
	if rej != nil {
		metrics.Rejections.WithLabelValues("battle", rej.Code).Inc()
		return rej.Result()
	}

	var res resolution
	err := s.runTx(ctx, func(tx store.Tx) error {
		now := s.now()
		sd, err := lockSides(ctx, tx, attacker.ID, defender.ID)
		if err != nil {
			return err
		}
		if rej := checkReady(sd.attacker, cost, model.UnitSoldier, "no units to send"); rej != nil {
			return rej
		}
		defEffects, err := tx.ActiveEffects(ctx, sd.defender.ID, now)
		if err != nil {
			return err
		}
		if s.gated(defEffects, now, func(fx effectGate) bool { return fx.battle }) {
			res, err = s.deflect(ctx, tx, sd, now)
			return err
		}
		attEffects, err := tx.ActiveEffects(ctx, sd.attacker.ID, now)
		if err != nil {
			return err
		}
		res, err = s.fight(ctx, tx, sd, attEffects, defEffects, now)
		return err
	})
	if result, failed := s.failure("battle", req.AttackerID, err); failed {
		return result
	}

	s.afterCommit(ctx, res)
	r := res.report
	metrics.BattlesTotal.WithLabelValues(string(r.Outcome)).Inc()
	if r.BountyPaid > 0 {
		metrics.BountiesClaimed.Inc()
	}
	slog.Info("battle resolved",
		"report", r.ID,
		"attacker", r.AttackerID,
		"defender", r.DefenderID,
		"outcome", r.Outcome,
		"attack", r.AttackerPower,
		"defense", r.DefenderPower,
		"plunder", r.Plunder,
	)

	if r.Outcome == model.OutcomeDeflected {
		return model.Result{
			Status:  model.StatusDeflected,
			Code:    CodeTargetShielded,
			Message: "target is shielded; the attack was deflected",
			Report:  r,
		}
	}
	return model.Succeeded(fmt.Sprintf("battle %s", r.Outcome), r)
}

// fight runs the full battle inside tx.
func (s *Service) fight(ctx context.Context, tx store.Tx, sd *sides, attEffects, defEffects []model.Effect, now time.Time) (resolution, error) {
	cfg := s.cfg.Battle
	a, d := sd.attacker, sd.defender
	attSnap := power.Snapshot{Actor: *a, Effects: attEffects, Now: now}
	defSnap := power.Snapshot{Actor: *d, Effects: defEffects, Now: now}

	offense, _ := s.engine.Compute(attSnap, model.MetricOffense, sd.attColl)
	defense, _ := s.engine.Compute(defSnap, model.MetricDefense, sd.defColl)
	shield, _ := s.engine.Compute(defSnap, model.MetricShield, sd.defColl)
	infirmary := s.engine.Tables().Structures[model.StructInfirmary]

	out := ResolveBattle(BattleInput{
		AttackPower:        offense,
		DefensePower:       defense,
		ShieldHP:           shield,
		AttackerUnits:      a.Units[model.UnitSoldier],
		DefenderUnits:      d.Units[model.UnitGuard],
		DefenderWorkers:    d.Units[model.UnitWorker],
		DefenderGold:       d.Gold,
		DefenderNetWorth:   s.engine.NetWorth(d),
		Mitigation:         infirmary.Pct(d.Structures[model.StructInfirmary]),
		AttackerCollective: sd.attColl != nil,
		DefenderCollective: sd.defColl != nil,
	}, cfg, s.rng)

	report := &model.Report{
		ID:             uuid.New().String(),
		Kind:           model.ReportBattle,
		AttackerID:     a.ID,
		DefenderID:     d.ID,
		Outcome:        out.Outcome,
		AttackerPower:  offense,
		DefenderPower:  defense,
		ShieldAbsorbed: out.ShieldAbsorbed,
		AttackerLosses: out.AttackerLosses,
		DefenderLosses: out.DefenderLosses,
		WorkerLosses:   out.WorkerLosses,
		Plunder:        out.Plunder,
		Tax:            out.Tax,
		Tribute:        out.Tribute,
		Influence:      out.Influence,
		AttackerXP:     out.AttackerXP,
		DefenderXP:     out.DefenderXP,
		TurnsSpent:     cfg.TurnCost,
		CreatedAt:      now,
	}

	var ad, dd model.ActorDelta
	ad.AttackTurns = -cfg.TurnCost
	ad.Units[model.UnitSoldier] = -out.AttackerLosses
	dd.Units[model.UnitGuard] = -out.DefenderLosses
	dd.Units[model.UnitWorker] = -out.WorkerLosses

	if out.Outcome == model.OutcomeVictory {
		ad.Gold = out.AttackerGain()
		ad.Influence = out.Influence
		dd.Gold = -out.Plunder

		bounty, err := tx.ClaimBounty(ctx, d.ID)
		switch {
		case err == nil:
			ad.Gold += bounty.Amount
			report.BountyPaid = bounty.Amount
		case !errors.Is(err, store.ErrBountyClaimed):
			return resolution{}, fmt.Errorf("claim bounty on %s: %w", d.ID, err)
		}
	}

	ad.Add(s.curve.Grant(a.Level, a.Experience, out.AttackerXP))
	dd.Add(s.curve.Grant(d.Level, d.Experience, out.DefenderXP))

	if err := tx.ApplyActorDelta(ctx, a.ID, ad); err != nil {
		return resolution{}, err
	}
	if err := tx.ApplyActorDelta(ctx, d.ID, dd); err != nil {
		return resolution{}, err
	}

	if out.Tax > 0 && sd.attColl != nil {
		if err := s.postTreasury(ctx, tx, sd.attColl.ID, a.ID, "tax", out.Tax, now); err != nil {
			return resolution{}, err
		}
	}
	if out.Tribute > 0 && sd.defColl != nil {
		if err := s.postTreasury(ctx, tx, sd.defColl.ID, a.ID, "tribute", out.Tribute, now); err != nil {
			return resolution{}, err
		}
	}

	if err := tx.InsertReport(ctx, report); err != nil {
		return resolution{}, err
	}

	var title, body string
	switch out.Outcome {
	case model.OutcomeVictory:
		title = "Your defenses fell"
		body = fmt.Sprintf("%s overran your defenses and plundered %d gold. You lost %d guards and %d workers.",
			a.Name, out.Plunder, out.DefenderLosses, out.WorkerLosses)
	case model.OutcomeDefeat:
		title = "Attack repelled"
		body = fmt.Sprintf("Your guards repelled an attack by %s. You lost %d guards.", a.Name, out.DefenderLosses)
	default:
		title = "Battle ended in stalemate"
		body = fmt.Sprintf("An attack by %s ended in stalemate. You lost %d guards.", a.Name, out.DefenderLosses)
	}
	note, err := s.notify(ctx, tx, d.ID, "battle", title, body, report.ID, now)
	if err != nil {
		return resolution{}, err
	}

	return resolution{
		report: report,
		note:   note,
		event:  s.event(EventBattleResolved, report, sd, out.AttackerLosses+out.DefenderLosses+out.WorkerLosses),
	}, nil
}

// deflect spends the attacker's turns and records the deflected attempt.
// No power is computed.
func (s *Service) deflect(ctx context.Context, tx store.Tx, sd *sides, now time.Time) (resolution, error) {
	cost := s.cfg.Battle.TurnCost
	if err := tx.ApplyActorDelta(ctx, sd.attacker.ID, model.ActorDelta{AttackTurns: -cost}); err != nil {
		return resolution{}, err
	}
	report := &model.Report{
		ID:         uuid.New().String(),
		Kind:       model.ReportBattle,
		AttackerID: sd.attacker.ID,
		DefenderID: sd.defender.ID,
		Outcome:    model.OutcomeDeflected,
		Influence:  decimal.Zero,
		TurnsSpent: cost,
		CreatedAt:  now,
	}
	if err := tx.InsertReport(ctx, report); err != nil {
		return resolution{}, err
	}
	note, err := s.notify(ctx, tx, sd.defender.ID, "battle", "Shield held",
		fmt.Sprintf("Your shield deflected an attack by %s.", sd.attacker.Name), report.ID, now)
	if err != nil {
		return resolution{}, err
	}
	return resolution{report: report, note: note, event: s.event(EventBattleResolved, report, sd, 0)}, nil
}

// Spy resolves an espionage attempt.
func (s *Service) Spy(ctx context.Context, req SpyRequest) model.Result {
	start := time.Now()
	defer func() { metrics.ActionLatency.WithLabelValues("espionage").Observe(time.Since(start).Seconds()) }()

	cost := s.cfg.Espionage.TurnCost
	attacker, defender, rej := s.validate(ctx, req.AttackerID, req.Target, cost, model.UnitSpy, "no spies to send")
	if rej != nil {
		metrics.Rejections.WithLabelValues("espionage", rej.Code).Inc()
		return rej.Result()
	}

	var res resolution
	err := s.runTx(ctx, func(tx store.Tx) error {
		now := s.now()
		sd, err := lockSides(ctx, tx, attacker.ID, defender.ID)
		if err != nil {
			return err
		}
		if rej := checkReady(sd.attacker, cost, model.UnitSpy, "no spies to send"); rej != nil {
			return rej
		}
		res, err = s.infiltrate(ctx, tx, sd, now)
		return err
	})
	if result, failed := s.failure("espionage", req.AttackerID, err); failed {
		return result
	}

	s.afterCommit(ctx, res)
	r := res.report
	metrics.EspionageTotal.WithLabelValues(string(r.Outcome)).Inc()
	slog.Info("espionage resolved",
		"report", r.ID,
		"attacker", r.AttackerID,
		"defender", r.DefenderID,
		"outcome", r.Outcome,
		"caught", r.Caught,
		"spies_lost", r.AttackerLosses,
	)

	if r.Outcome == model.OutcomeCriticalFailure {
		return model.Result{
			Status:  model.StatusDeflected,
			Code:    CodeTargetJammed,
			Message: "the target's jamming field caused a critical failure",
			Report:  r,
		}
	}
	return model.Succeeded(fmt.Sprintf("espionage %s", r.Outcome), r)
}

func (s *Service) infiltrate(ctx context.Context, tx store.Tx, sd *sides, now time.Time) (resolution, error) {
	cfg := s.cfg.Espionage
	a, d := sd.attacker, sd.defender

	defEffects, err := tx.ActiveEffects(ctx, d.ID, now)
	if err != nil {
		return resolution{}, err
	}
	in := EspionageInput{
		Spies:  a.Units[model.UnitSpy],
		Jammed: s.gated(defEffects, now, func(fx effectGate) bool { return fx.espionage }),
	}
	if !in.Jammed {
		attEffects, err := tx.ActiveEffects(ctx, a.ID, now)
		if err != nil {
			return resolution{}, err
		}
		in.EspionagePower, _ = s.engine.Compute(power.Snapshot{Actor: *a, Effects: attEffects, Now: now}, model.MetricEspionage, sd.attColl)
		in.SentryPower, _ = s.engine.Compute(power.Snapshot{Actor: *d, Effects: defEffects, Now: now}, model.MetricSentry, sd.defColl)
		in.DefenderWorkers = d.Units[model.UnitWorker]
		in.DefenderGold = d.Gold
		in.DefenderDarkMatter = d.DarkMatter
		in.DefenderCrystals = d.Crystals
		in.DefenderAlloy = d.Alloy
	}
	out := ResolveEspionage(in, cfg, s.rng)

	report := &model.Report{
		ID:             uuid.New().String(),
		Kind:           model.ReportEspionage,
		AttackerID:     a.ID,
		DefenderID:     d.ID,
		Outcome:        out.Outcome,
		Caught:         out.Caught,
		AttackerPower:  in.EspionagePower,
		DefenderPower:  in.SentryPower,
		AttackerLosses: out.SpyLosses,
		WorkerLosses:   out.WorkerLosses,
		Influence:      decimal.Zero,
		Stolen:         out.Stolen,
		AttackerXP:     out.AttackerXP,
		DefenderXP:     out.DefenderXP,
		TurnsSpent:     cfg.TurnCost,
		CreatedAt:      now,
	}

	var ad, dd model.ActorDelta
	ad.AttackTurns = -cfg.TurnCost
	ad.Units[model.UnitSpy] = -out.SpyLosses
	if out.Outcome == model.OutcomeSuccess {
		ad.Gold = out.Stolen.Gold
		ad.DarkMatter = out.Stolen.DarkMatter
		ad.Crystals = out.Stolen.Crystals
		ad.Alloy = out.Stolen.Alloy
		dd.Gold = -out.Stolen.Gold
		dd.DarkMatter = -out.Stolen.DarkMatter
		dd.Crystals = -out.Stolen.Crystals
		dd.Alloy = -out.Stolen.Alloy
		dd.Units[model.UnitWorker] = -out.WorkerLosses
	}
	ad.Add(s.curve.Grant(a.Level, a.Experience, out.AttackerXP))
	dd.Add(s.curve.Grant(d.Level, d.Experience, out.DefenderXP))

	if err := tx.ApplyActorDelta(ctx, a.ID, ad); err != nil {
		return resolution{}, err
	}
	if !dd.IsZero() {
		if err := tx.ApplyActorDelta(ctx, d.ID, dd); err != nil {
			return resolution{}, err
		}
	}
	if err := tx.InsertReport(ctx, report); err != nil {
		return resolution{}, err
	}

	// The attacker's identity is revealed only when caught.
	var title, body string
	switch {
	case out.Outcome == model.OutcomeCriticalFailure:
		title = "Jamming held"
		body = "Your jamming field broke up an espionage attempt."
	case out.Caught:
		title = "Spies caught"
		body = fmt.Sprintf("Your sentries caught spies sent by %s. %d of them were taken.", a.Name, out.SpyLosses)
	case out.Outcome == model.OutcomeSuccess:
		title = "Intrusion detected"
		body = fmt.Sprintf("Unknown agents stole %d gold from your vaults.", out.Stolen.Gold)
	default:
		title = "Intrusion repelled"
		body = "Your sentries repelled an unidentified espionage attempt."
	}
	note, err := s.notify(ctx, tx, d.ID, "espionage", title, body, report.ID, now)
	if err != nil {
		return resolution{}, err
	}

	return resolution{
		report: report,
		note:   note,
		event:  s.event(EventEspionageResolved, report, sd, out.SpyLosses+out.WorkerLosses),
	}, nil
}

// --- validation ---

// validate resolves both participants and runs the checks that need no
// transaction. It returns a rejection instead of an error.
func (s *Service) validate(ctx context.Context, attackerID, target string, cost int64, unit model.Unit, noUnits string) (*model.Actor, *model.Actor, *model.Rejection) {
	attacker, err := s.store.GetActor(ctx, attackerID)
	if err != nil {
		return nil, nil, &model.Rejection{Code: CodeAttackerNotFound, Message: "attacker not found"}
	}
	defender, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, nil, &model.Rejection{Code: CodeTargetNotFound, Message: fmt.Sprintf("no realm named %q", target)}
	}
	if attacker.ID == defender.ID {
		return nil, nil, &model.Rejection{Code: CodeSelfTarget, Message: "you cannot target yourself"}
	}
	if rej := checkReady(attacker, cost, unit, noUnits); rej != nil {
		return nil, nil, rej
	}
	return attacker, defender, nil
}

func (s *Service) resolveTarget(ctx context.Context, target string) (*model.Actor, error) {
	if target == "" {
		return nil, store.ErrNotFound
	}
	a, err := s.store.GetActorByName(ctx, target)
	if err == nil {
		return a, nil
	}
	return s.store.GetActor(ctx, target)
}

func checkReady(a *model.Actor, cost int64, unit model.Unit, noUnits string) *model.Rejection {
	if a.AttackTurns < cost || a.AttackTurns <= 0 {
		return &model.Rejection{Code: CodeNoTurns, Message: "not enough attack turns"}
	}
	if a.Units[unit] <= 0 {
		return &model.Rejection{Code: CodeNoUnits, Message: noUnits}
	}
	return nil
}

type effectGate struct {
	battle    bool
	espionage bool
}

// gated reports whether any active effect closes the gate selected by pick.
func (s *Service) gated(effects []model.Effect, now time.Time, pick func(effectGate) bool) bool {
	tables := s.engine.Tables()
	for _, fx := range effects {
		if int(fx.Key) >= model.NumEffects || !fx.Active(now) {
			continue
		}
		spec := tables.Effects[fx.Key]
		if pick(effectGate{battle: spec.BlocksBattle, espionage: spec.BlocksEspionage}) {
			return true
		}
	}
	return false
}

// --- transaction glue ---

// lockSides locks both actors and their collectives in id order so two
// actions on the same pair cannot deadlock.
func lockSides(ctx context.Context, tx store.Tx, attackerID, defenderID string) (*sides, error) {
	actors := make(map[string]*model.Actor, 2)
	for _, id := range sortedIDs(attackerID, defenderID) {
		a, err := tx.LockActor(ctx, id)
		if err != nil {
			return nil, err
		}
		actors[id] = a
	}
	sd := &sides{attacker: actors[attackerID], defender: actors[defenderID]}

	collectives := make(map[string]*model.Collective, 2)
	for _, id := range sortedIDs(sd.attacker.CollectiveID, sd.defender.CollectiveID) {
		c, err := tx.LockCollective(ctx, id)
		if err != nil {
			return nil, err
		}
		collectives[id] = c
	}
	sd.attColl = collectives[sd.attacker.CollectiveID]
	sd.defColl = collectives[sd.defender.CollectiveID]
	return sd, nil
}

func sortedIDs(ids ...string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// runTx converts a panic inside the transaction into an error after the
// store has rolled back.
func (s *Service) runTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("combat: panic in transaction: %v", r)
		}
	}()
	return s.store.WithTx(ctx, fn)
}

// failure maps a transaction error to its Result. Rejections raised inside
// the transaction keep their reason; anything else is logged and surfaced
// as an opaque failure.
func (s *Service) failure(action, attackerID string, err error) (model.Result, bool) {
	if err == nil {
		return model.Result{}, false
	}
	var rej *model.Rejection
	if errors.As(err, &rej) {
		metrics.Rejections.WithLabelValues(action, rej.Code).Inc()
		return rej.Result(), true
	}
	metrics.Rollbacks.WithLabelValues(action).Inc()
	slog.Error("combat transaction rolled back", "action", action, "attacker", attackerID, "err", err)
	return model.Failed(), true
}

func (s *Service) postTreasury(ctx context.Context, tx store.Tx, collectiveID, actorID, kind string, amount int64, now time.Time) error {
	return store.PostTreasury(ctx, tx, &model.TreasuryEntry{
		ID:           uuid.New().String(),
		CollectiveID: collectiveID,
		ActorID:      actorID,
		Kind:         kind,
		Amount:       decimal.NewFromInt(amount),
		Timestamp:    now,
	})
}

func (s *Service) notify(ctx context.Context, tx store.Tx, recipient, category, title, body, reportID string, now time.Time) (*model.Notification, error) {
	n := &model.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipient,
		Category:    category,
		Title:       title,
		Body:        body,
		Link:        fmt.Sprintf(s.cfg.NotifyLink, reportID),
		CreatedAt:   now,
	}
	if err := tx.InsertNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) event(typ string, r *model.Report, sd *sides, casualties int64) model.Event {
	ev := model.Event{
		Type:       typ,
		ReportID:   r.ID,
		AttackerID: r.AttackerID,
		DefenderID: r.DefenderID,
		Outcome:    r.Outcome,
		Casualties: casualties,
		Timestamp:  r.CreatedAt,
	}
	if sd.attColl != nil {
		ev.AttackerCollective = sd.attColl.ID
	}
	if sd.defColl != nil {
		ev.DefenderCollective = sd.defColl.ID
	}
	return ev
}

// afterCommit hands the event and notification to their sinks. Delivery
// is best-effort.
func (s *Service) afterCommit(ctx context.Context, res resolution) {
	if s.events != nil {
		s.events.PublishEvent(ctx, res.event)
		metrics.EventsPublished.WithLabelValues(res.event.Type).Inc()
	}
	if s.notifier != nil && res.note != nil {
		s.notifier.Notify(ctx, *res.note)
	}
}
