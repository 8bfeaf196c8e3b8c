// Package economy holds the non-combat actions that move gold between
// actors, collective treasuries and bounties, and the purchases that raise
// structure levels.
//
// Every action is one transaction of relative updates. Treasury movements
// always append an audit entry in the same transaction.
package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/broadcast"
	"github.com/warfront/realm-engine/internal/metrics"
	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/power"
	"github.com/warfront/realm-engine/internal/store"
)

// Rejection codes.
const (
	CodeActorNotFound        = "actor_not_found"
	CodeCollectiveNotFound   = "collective_not_found"
	CodeTargetNotFound       = "target_not_found"
	CodeSelfTarget           = "self_target"
	CodeNotMember            = "not_member"
	CodeNotLeader            = "not_leader"
	CodeInvalidAmount        = "invalid_amount"
	CodeInsufficientGold     = "insufficient_gold"
	CodeInsufficientTreasury = "insufficient_treasury"
	CodeNoLoan               = "no_loan"
	CodeInvalidStructure     = "invalid_structure"
	CodeInvalidDirective     = "invalid_directive"
)

// Treasury audit kinds.
const (
	KindDonation  = "donation"
	KindLoan      = "loan"
	KindRepayment = "repayment"
)

// DonateRequest is the JSON body for POST /collectives/{id}/donate.
type DonateRequest struct {
	ActorID      string `json:"actor_id"`
	CollectiveID string `json:"-"`
	Amount       int64  `json:"amount"`
}

// LoanRequest disburses treasury gold to a member.
type LoanRequest struct {
	CollectiveID string `json:"-"`
	LeaderID     string `json:"leader_id"`
	BorrowerID   string `json:"borrower_id"`
	Amount       int64  `json:"amount"`
}

// RepayRequest pays down an actor's loan into their collective's treasury.
type RepayRequest struct {
	ActorID string `json:"actor_id"`
	Amount  int64  `json:"amount"`
}

// BountyRequest is the JSON body for POST /bounties.
type BountyRequest struct {
	PlacerID string `json:"placer_id"`
	Target   string `json:"target"`
	Amount   int64  `json:"amount"`
}

// UpgradeRequest raises one structure by one level.
type UpgradeRequest struct {
	ActorID   string          `json:"actor_id"`
	Structure model.Structure `json:"structure"`
}

// DirectiveRequest sets a collective's directive. A zero Duration keeps it
// in force until replaced.
type DirectiveRequest struct {
	CollectiveID string          `json:"-"`
	LeaderID     string          `json:"leader_id"`
	Directive    model.Directive `json:"directive"`
	Duration     time.Duration   `json:"duration"`
}

// Service runs economy actions.
type Service struct {
	store    store.Store
	engine   *power.Engine
	notifier broadcast.Notifier
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the live notification sink.
func WithNotifier(n broadcast.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an economy service.
func NewService(st store.Store, engine *power.Engine, opts ...Option) *Service {
	s := &Service{
		store:  st,
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Donate moves gold from an actor into their own collective's treasury.
func (s *Service) Donate(ctx context.Context, req DonateRequest) model.Result {
	if req.Amount <= 0 {
		return s.reject("donate", CodeInvalidAmount, "amount must be positive")
	}
	err := s.run(ctx, func(tx store.Tx) error {
		a, err := lockActor(ctx, tx, req.ActorID)
		if err != nil {
			return err
		}
		if a.CollectiveID == "" || a.CollectiveID != req.CollectiveID {
			return model.Reject(CodeNotMember, "you are not a member of this collective")
		}
		if _, err := lockCollective(ctx, tx, req.CollectiveID); err != nil {
			return err
		}
		if a.Gold < req.Amount {
			return model.Reject(CodeInsufficientGold, "not enough gold")
		}
		if err := tx.ApplyActorDelta(ctx, a.ID, model.ActorDelta{Gold: -req.Amount}); err != nil {
			return err
		}
		return s.post(ctx, tx, req.CollectiveID, a.ID, KindDonation, decimal.NewFromInt(req.Amount))
	})
	if res, failed := s.failure("donate", err); failed {
		return res
	}
	slog.Info("donation", "actor", req.ActorID, "collective", req.CollectiveID, "amount", req.Amount)
	return model.Succeeded(fmt.Sprintf("donated %d gold", req.Amount), nil)
}

// GrantLoan disburses treasury gold to a member and records the debt.
func (s *Service) GrantLoan(ctx context.Context, req LoanRequest) model.Result {
	if req.Amount <= 0 {
		return s.reject("loan", CodeInvalidAmount, "amount must be positive")
	}
	var note *model.Notification
	err := s.run(ctx, func(tx store.Tx) error {
		borrower, err := lockActor(ctx, tx, req.BorrowerID)
		if err != nil {
			return err
		}
		c, err := lockCollective(ctx, tx, req.CollectiveID)
		if err != nil {
			return err
		}
		if c.LeaderID != req.LeaderID {
			return model.Reject(CodeNotLeader, "only the collective leader can grant loans")
		}
		if borrower.CollectiveID != c.ID {
			return model.Reject(CodeNotMember, "borrower is not a member of this collective")
		}
		err = s.post(ctx, tx, c.ID, borrower.ID, KindLoan, decimal.NewFromInt(-req.Amount))
		if errors.Is(err, store.ErrInsufficientTreasury) {
			return model.Reject(CodeInsufficientTreasury, "the treasury cannot cover this loan")
		}
		if err != nil {
			return err
		}
		if err := tx.ApplyActorDelta(ctx, borrower.ID, model.ActorDelta{Gold: req.Amount, Loan: req.Amount}); err != nil {
			return err
		}
		note, err = s.notify(ctx, tx, borrower.ID, "Loan granted",
			fmt.Sprintf("%s lent you %d gold from the treasury.", c.Name, req.Amount))
		return err
	})
	if res, failed := s.failure("loan", err); failed {
		return res
	}
	s.push(ctx, note)
	slog.Info("loan granted", "collective", req.CollectiveID, "borrower", req.BorrowerID, "amount", req.Amount)
	return model.Succeeded(fmt.Sprintf("lent %d gold", req.Amount), nil)
}

// RepayLoan pays down up to Amount of the actor's loan. Overpayment is
// capped at the outstanding balance.
func (s *Service) RepayLoan(ctx context.Context, req RepayRequest) model.Result {
	if req.Amount <= 0 {
		return s.reject("repay", CodeInvalidAmount, "amount must be positive")
	}
	var paid int64
	err := s.run(ctx, func(tx store.Tx) error {
		a, err := lockActor(ctx, tx, req.ActorID)
		if err != nil {
			return err
		}
		if a.Loan <= 0 {
			return model.Reject(CodeNoLoan, "you have no outstanding loan")
		}
		if a.CollectiveID == "" {
			return model.Reject(CodeNotMember, "you are not in a collective")
		}
		if _, err := lockCollective(ctx, tx, a.CollectiveID); err != nil {
			return err
		}
		paid = min(req.Amount, a.Loan)
		if a.Gold < paid {
			return model.Reject(CodeInsufficientGold, "not enough gold")
		}
		if err := tx.ApplyActorDelta(ctx, a.ID, model.ActorDelta{Gold: -paid, Loan: -paid}); err != nil {
			return err
		}
		return s.post(ctx, tx, a.CollectiveID, a.ID, KindRepayment, decimal.NewFromInt(paid))
	})
	if res, failed := s.failure("repay", err); failed {
		return res
	}
	slog.Info("loan repaid", "actor", req.ActorID, "amount", paid)
	return model.Succeeded(fmt.Sprintf("repaid %d gold", paid), nil)
}

// PlaceBounty escrows gold as a reward on a target. Bounties on the same
// target accumulate and are paid once, to the next victorious attacker.
func (s *Service) PlaceBounty(ctx context.Context, req BountyRequest) model.Result {
	if req.Amount <= 0 {
		return s.reject("bounty", CodeInvalidAmount, "amount must be positive")
	}
	target, err := s.store.GetActorByName(ctx, req.Target)
	if err != nil {
		target, err = s.store.GetActor(ctx, req.Target)
	}
	if err != nil {
		return s.reject("bounty", CodeTargetNotFound, fmt.Sprintf("no realm named %q", req.Target))
	}
	if target.ID == req.PlacerID {
		return s.reject("bounty", CodeSelfTarget, "you cannot place a bounty on yourself")
	}

	var note *model.Notification
	err = s.run(ctx, func(tx store.Tx) error {
		placer, err := lockActor(ctx, tx, req.PlacerID)
		if err != nil {
			return err
		}
		if placer.Gold < req.Amount {
			return model.Reject(CodeInsufficientGold, "not enough gold")
		}
		if err := tx.ApplyActorDelta(ctx, placer.ID, model.ActorDelta{Gold: -req.Amount}); err != nil {
			return err
		}
		err = tx.PlaceBounty(ctx, &model.Bounty{
			ID:        uuid.New().String(),
			TargetID:  target.ID,
			PlacerID:  placer.ID,
			Amount:    req.Amount,
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}
		note, err = s.notify(ctx, tx, target.ID, "Bounty placed",
			fmt.Sprintf("A bounty of %d gold now stands on your head.", req.Amount))
		return err
	})
	if res, failed := s.failure("bounty", err); failed {
		return res
	}
	s.push(ctx, note)
	slog.Info("bounty placed", "placer", req.PlacerID, "target", target.ID, "amount", req.Amount)
	return model.Succeeded(fmt.Sprintf("placed a %d gold bounty", req.Amount), nil)
}

// UpgradeStructure buys one level of a structure. The cost grows
// geometrically and is compared in float64 so very high levels are simply
// unaffordable rather than overflowing.
func (s *Service) UpgradeStructure(ctx context.Context, req UpgradeRequest) model.Result {
	if int(req.Structure) >= model.NumStructures {
		return s.reject("upgrade", CodeInvalidStructure, "unknown structure")
	}
	spec := s.engine.Tables().Structures[req.Structure]

	var cost int64
	err := s.run(ctx, func(tx store.Tx) error {
		a, err := lockActor(ctx, tx, req.ActorID)
		if err != nil {
			return err
		}
		price := math.Ceil(spec.UpgradeCost(a.Structures[req.Structure]))
		if math.IsInf(price, 0) || math.IsNaN(price) || price > float64(a.Gold) {
			return model.Reject(CodeInsufficientGold, fmt.Sprintf("upgrade costs %.0f gold", price))
		}
		cost = int64(price)
		if err := tx.ApplyActorDelta(ctx, a.ID, model.ActorDelta{Gold: -cost}); err != nil {
			return err
		}
		if err := tx.IncrementStructure(ctx, a.ID, req.Structure, 1); err != nil {
			return err
		}
		after := *a
		after.Gold -= cost
		after.Structures[req.Structure]++
		return tx.SetActorNetWorth(ctx, a.ID, s.engine.NetWorth(&after))
	})
	if res, failed := s.failure("upgrade", err); failed {
		return res
	}
	slog.Info("structure upgraded", "actor", req.ActorID, "structure", req.Structure, "cost", cost)
	return model.Succeeded(fmt.Sprintf("%s upgraded for %d gold", req.Structure, cost), nil)
}

// SetDirective switches a collective's directive. Only the leader may.
func (s *Service) SetDirective(ctx context.Context, req DirectiveRequest) model.Result {
	if int(req.Directive) >= model.NumDirectives {
		return s.reject("directive", CodeInvalidDirective, "unknown directive")
	}
	if req.Duration < 0 {
		return s.reject("directive", CodeInvalidAmount, "duration must not be negative")
	}
	err := s.run(ctx, func(tx store.Tx) error {
		c, err := lockCollective(ctx, tx, req.CollectiveID)
		if err != nil {
			return err
		}
		if c.LeaderID != req.LeaderID {
			return model.Reject(CodeNotLeader, "only the collective leader can set directives")
		}
		var until time.Time
		if req.Duration > 0 {
			until = s.now().Add(req.Duration)
		}
		return tx.SetDirective(ctx, c.ID, req.Directive, until)
	})
	if res, failed := s.failure("directive", err); failed {
		return res
	}
	slog.Info("directive set", "collective", req.CollectiveID, "directive", req.Directive, "duration", req.Duration)
	return model.Succeeded(fmt.Sprintf("directive %s in force", req.Directive), nil)
}

// --- helpers ---

func lockActor(ctx context.Context, tx store.Tx, id string) (*model.Actor, error) {
	a, err := tx.LockActor(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.Reject(CodeActorNotFound, "actor not found")
	}
	return a, err
}

func lockCollective(ctx context.Context, tx store.Tx, id string) (*model.Collective, error) {
	c, err := tx.LockCollective(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.Reject(CodeCollectiveNotFound, "collective not found")
	}
	return c, err
}

func (s *Service) post(ctx context.Context, tx store.Tx, collectiveID, actorID, kind string, amount decimal.Decimal) error {
	return store.PostTreasury(ctx, tx, &model.TreasuryEntry{
		ID:           uuid.New().String(),
		CollectiveID: collectiveID,
		ActorID:      actorID,
		Kind:         kind,
		Amount:       amount,
		Timestamp:    s.now(),
	})
}

func (s *Service) notify(ctx context.Context, tx store.Tx, recipient, title, body string) (*model.Notification, error) {
	n := &model.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipient,
		Category:    "economy",
		Title:       title,
		Body:        body,
		CreatedAt:   s.now(),
	}
	if err := tx.InsertNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) push(ctx context.Context, n *model.Notification) {
	if s.notifier != nil && n != nil {
		s.notifier.Notify(ctx, *n)
	}
}

// run executes fn in one transaction and turns a panic into an error.
func (s *Service) run(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("economy: panic in transaction: %v", r)
		}
	}()
	return s.store.WithTx(ctx, fn)
}

func (s *Service) reject(action, code, msg string) model.Result {
	metrics.Rejections.WithLabelValues(action, code).Inc()
	return model.Rejected(code, msg)
}

func (s *Service) failure(action string, err error) (model.Result, bool) {
	if err == nil {
		return model.Result{}, false
	}
	var rej *model.Rejection
	if errors.As(err, &rej) {
		metrics.Rejections.WithLabelValues(action, rej.Code).Inc()
		return rej.Result(), true
	}
	metrics.Rollbacks.WithLabelValues(action).Inc()
	slog.Error("economy transaction rolled back", "action", action, "err", err)
	return model.Failed(), true
}
