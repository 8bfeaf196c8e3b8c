// Package model defines the core domain records shared across the realm
// engine. Records are plain values; behaviour lives in the power, combat and
// turn packages. Treasury and premium balances use shopspring/decimal;
// geometric cost and power terms use float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitCounts holds one count per unit type, indexed by Unit.
type UnitCounts [NumUnits]int64

// ItemStack is a quantity of armory items of one kind and tier.
type ItemStack struct {
	Kind  ItemKind `json:"kind"`
	Tier  int      `json:"tier"`
	Count int64    `json:"count"`
}

// Champion is a general-like entity with equipped items.
type Champion struct {
	Kind  ChampionKind   `json:"kind"`
	Items []ChampionItem `json:"items,omitempty"`
}

// Actor is a player: resources, units, stats, structures and equipment.
// All counts are non-negative; the store clamps every delta at zero.
type Actor struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	CollectiveID string `json:"collective_id,omitempty" db:"collective_id"`

	Gold     int64 `json:"gold" db:"gold"`
	Banked   int64 `json:"banked" db:"banked"`
	Citizens int64 `json:"citizens" db:"citizens"`
	Loan     int64 `json:"loan" db:"loan"`

	Gems      decimal.Decimal `json:"gems" db:"gems"`
	Influence decimal.Decimal `json:"influence" db:"influence"`

	Research   float64 `json:"research" db:"research"`
	DarkMatter float64 `json:"dark_matter" db:"dark_matter"`
	Crystals   float64 `json:"crystals" db:"crystals"`
	Alloy      float64 `json:"alloy" db:"alloy"`

	Units UnitCounts `json:"units" db:"units"`

	Level       int                `json:"level" db:"level"`
	Experience  int64              `json:"experience" db:"experience"`
	StatPoints  int                `json:"stat_points" db:"stat_points"`
	Stats       [NumStats]int      `json:"stats" db:"stats"`
	AttackTurns int64              `json:"attack_turns" db:"attack_turns"`
	Structures  [NumStructures]int `json:"structures" db:"structures"`

	Equipment []ItemStack `json:"equipment,omitempty" db:"equipment"`
	Champions []Champion  `json:"champions,omitempty" db:"champions"`

	NetWorth  float64   `json:"net_worth" db:"net_worth"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Collective is an alliance with a shared treasury.
type Collective struct {
	ID             string                     `json:"id" db:"id"`
	Name           string                     `json:"name" db:"name"`
	LeaderID       string                     `json:"leader_id" db:"leader_id"`
	Treasury       decimal.Decimal            `json:"treasury" db:"treasury"`
	NetWorth       float64                    `json:"net_worth" db:"net_worth"`
	Structures     [NumAllianceStructures]int `json:"structures" db:"structures"`
	Directive      Directive                  `json:"directive" db:"directive"`
	DirectiveUntil time.Time                  `json:"directive_until" db:"directive_until"`
	LastCompounded time.Time                  `json:"last_compounded" db:"last_compounded"`
	CreatedAt      time.Time                  `json:"created_at" db:"created_at"`
}

// ActiveDirective returns the directive in force at now.
func (c *Collective) ActiveDirective(now time.Time) Directive {
	if c == nil || c.Directive == DirectiveNone {
		return DirectiveNone
	}
	if !c.DirectiveUntil.IsZero() && !now.Before(c.DirectiveUntil) {
		return DirectiveNone
	}
	return c.Directive
}

// Effect is a timed modifier or gate on one actor.
type Effect struct {
	ID        string    `json:"id" db:"id"`
	ActorID   string    `json:"actor_id" db:"actor_id"`
	Key       EffectKey `json:"key" db:"key"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether the effect is in force at now.
func (e Effect) Active(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// HasEffect reports whether any effect with key is active at now.
func HasEffect(effects []Effect, key EffectKey, now time.Time) bool {
	for _, e := range effects {
		if e.Key == key && e.Active(now) {
			return true
		}
	}
	return false
}

// Bounty is a standing reward on a target. Claimed at most once.
type Bounty struct {
	ID        string    `json:"id" db:"id"`
	TargetID  string    `json:"target_id" db:"target_id"`
	PlacerID  string    `json:"placer_id" db:"placer_id"`
	Amount    int64     `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TreasuryEntry is an immutable audit record of one treasury movement.
type TreasuryEntry struct {
	ID           string          `json:"id" db:"id"`
	CollectiveID string          `json:"collective_id" db:"collective_id"`
	ActorID      string          `json:"actor_id,omitempty" db:"actor_id"`
	Kind         string          `json:"kind" db:"kind"` // donation, tax, tribute, interest, loan, repayment
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// Notification is a message for one actor.
type Notification struct {
	ID          string    `json:"id" db:"id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	Category    string    `json:"category" db:"category"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body" db:"body"`
	Link        string    `json:"link,omitempty" db:"link"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Loot is what an espionage success carried off.
type Loot struct {
	Gold       int64   `json:"gold"`
	DarkMatter float64 `json:"dark_matter"`
	Crystals   float64 `json:"crystals"`
	Alloy      float64 `json:"alloy"`
}

// Report is an immutable record of one resolved battle or espionage action.
// Once created, reports are never modified or deleted.
type Report struct {
	ID         string     `json:"id" db:"id"`
	Kind       ReportKind `json:"kind" db:"kind"`
	AttackerID string     `json:"attacker_id" db:"attacker_id"`
	DefenderID string     `json:"defender_id" db:"defender_id"`
	Outcome    Outcome    `json:"outcome" db:"outcome"`
	Caught     bool       `json:"caught,omitempty" db:"caught"`

	AttackerPower  float64 `json:"attacker_power" db:"attacker_power"`
	DefenderPower  float64 `json:"defender_power" db:"defender_power"`
	ShieldAbsorbed float64 `json:"shield_absorbed,omitempty" db:"shield_absorbed"`

	AttackerLosses int64 `json:"attacker_losses" db:"attacker_losses"`
	DefenderLosses int64 `json:"defender_losses" db:"defender_losses"`
	WorkerLosses   int64 `json:"worker_losses" db:"worker_losses"`

	Plunder    int64           `json:"plunder,omitempty" db:"plunder"`
	Tax        int64           `json:"tax,omitempty" db:"tax"`
	Tribute    int64           `json:"tribute,omitempty" db:"tribute"`
	BountyPaid int64           `json:"bounty_paid,omitempty" db:"bounty_paid"`
	Influence  decimal.Decimal `json:"influence" db:"influence"`
	Stolen     Loot            `json:"stolen" db:"stolen"`

	AttackerXP int64 `json:"attacker_xp" db:"attacker_xp"`
	DefenderXP int64 `json:"defender_xp" db:"defender_xp"`
	TurnsSpent int64 `json:"turns_spent" db:"turns_spent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Event is the post-commit domain event emitted per resolved combat action.
type Event struct {
	Type               string    `json:"type"` // "battle_resolved", "espionage_resolved"
	ReportID           string    `json:"report_id"`
	AttackerID         string    `json:"attacker_id"`
	DefenderID         string    `json:"defender_id"`
	AttackerCollective string    `json:"attacker_collective,omitempty"`
	DefenderCollective string    `json:"defender_collective,omitempty"`
	Outcome            Outcome   `json:"outcome"`
	Casualties         int64     `json:"casualties"`
	Timestamp          time.Time `json:"timestamp"`
}
