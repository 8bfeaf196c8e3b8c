// Package combat resolves battles and espionage between two actors.
//
// Resolution is split in two: pure resolvers (ResolveBattle,
// ResolveEspionage) that turn power numbers and a random source into an
// outcome, and a Service that validates requests, runs the resolvers on
// row-locked snapshots and applies every mutation in one transaction.
package combat

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/model"
)

// BattleInput is everything the battle resolver reads.
type BattleInput struct {
	AttackPower  float64
	DefensePower float64
	ShieldHP     float64

	AttackerUnits   int64 // soldiers sent
	DefenderUnits   int64 // guards holding
	DefenderWorkers int64

	DefenderGold     int64
	DefenderNetWorth float64

	// Mitigation reduces defender casualties; already capped by the
	// infirmary table.
	Mitigation float64

	AttackerCollective bool
	DefenderCollective bool
}

// BattleOutcome is the resolved battle. Losses never exceed the counts in
// the input.
type BattleOutcome struct {
	Outcome         model.Outcome
	Ratio           float64
	EffectiveAttack float64
	ShieldAbsorbed  float64

	AttackerLosses int64
	DefenderLosses int64
	WorkerLosses   int64

	Plunder   int64
	Tax       int64
	Tribute   int64
	Influence decimal.Decimal

	AttackerXP int64
	DefenderXP int64
}

// AttackerGain is the plunder left to the attacker after tax and tribute.
func (o BattleOutcome) AttackerGain() int64 {
	return o.Plunder - o.Tax - o.Tribute
}

// ResolveBattle classifies the battle and computes casualties and
// transfers. It reads rng only for casualty rolls.
func ResolveBattle(in BattleInput, cfg BattleConfig, rng Rand) BattleOutcome {
	var out BattleOutcome

	// The shield soaks part of the incoming power before classification.
	out.ShieldAbsorbed = math.Min(in.AttackPower*cfg.ShieldAbsorb, math.Max(in.ShieldHP, 0))
	out.EffectiveAttack = math.Max(in.AttackPower-out.ShieldAbsorbed, 0)
	out.Outcome, out.Ratio = classify(out.EffectiveAttack, in.DefensePower, cfg.StalemateBand)

	// Losers lose more the more lopsided the fight; winners lose less.
	ratio := clampRatio(out.Ratio, cfg.RatioCap)
	var attPct, defPct float64
	switch out.Outcome {
	case model.OutcomeVictory:
		defPct = uniform(rng, cfg.LoserLossMin, cfg.LoserLossMax) * ratio
		attPct = uniform(rng, cfg.WinnerLossMin, cfg.WinnerLossMax) / ratio
	case model.OutcomeDefeat:
		attPct = uniform(rng, cfg.LoserLossMin, cfg.LoserLossMax) / ratio
		defPct = uniform(rng, cfg.WinnerLossMin, cfg.WinnerLossMax) * ratio
	default:
		attPct = uniform(rng, cfg.WinnerLossMin, cfg.WinnerLossMax)
		defPct = uniform(rng, cfg.WinnerLossMin, cfg.WinnerLossMax)
	}
	attPct = clamp(attPct*cfg.CasualtyScale, 0, cfg.MaxLossPct)
	defPct = clamp(defPct*cfg.CasualtyScale*(1-clamp(in.Mitigation, 0, 1)), 0, cfg.MaxLossPct)

	out.AttackerLosses = lossOf(in.AttackerUnits, attPct)
	out.DefenderLosses = lossOf(in.DefenderUnits, defPct)

	// Collateral worker losses follow the defender's relative military loss.
	if in.DefenderUnits > 0 {
		frac := float64(out.DefenderLosses) / float64(in.DefenderUnits)
		out.WorkerLosses = lossOf(in.DefenderWorkers, math.Min(frac*cfg.CollateralFactor, cfg.CollateralCap))
	}

	switch out.Outcome {
	case model.OutcomeVictory:
		out.Plunder = lossOf(in.DefenderGold, cfg.PlunderPct)
		if in.AttackerCollective {
			out.Tax = int64(math.Floor(float64(out.Plunder) * cfg.TaxPct))
		}
		if in.DefenderCollective {
			out.Tribute = int64(math.Floor(float64(out.Plunder) * cfg.TributePct))
		}
		if out.Tax+out.Tribute > out.Plunder {
			out.Tribute = out.Plunder - out.Tax
		}
		out.Influence = decimal.NewFromFloat(math.Max(in.DefenderNetWorth*cfg.InfluencePct, 0)).Round(4)
		out.AttackerXP, out.DefenderXP = cfg.XPWin, cfg.XPDefendLose
	case model.OutcomeDefeat:
		out.AttackerXP, out.DefenderXP = cfg.XPLose, cfg.XPDefendWin
	default:
		out.AttackerXP, out.DefenderXP = cfg.XPStalemate, cfg.XPStalemate
	}
	return out
}

// classify compares attack to defense. Ratios within band of 1 are a
// stalemate.
func classify(attack, defense, band float64) (model.Outcome, float64) {
	var ratio float64
	switch {
	case defense > 0:
		ratio = attack / defense
	case attack > 0:
		ratio = math.Inf(1)
	default:
		return model.OutcomeStalemate, 1
	}
	switch {
	case math.Abs(ratio-1) <= band:
		return model.OutcomeStalemate, ratio
	case ratio > 1:
		return model.OutcomeVictory, ratio
	default:
		return model.OutcomeDefeat, ratio
	}
}

func clampRatio(r, limit float64) float64 {
	if limit < 1 {
		limit = 1
	}
	if r <= 0 || math.IsNaN(r) {
		return 1 / limit
	}
	return clamp(r, 1/limit, limit)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// lossOf is floor(n × pct), never more than n and never negative.
func lossOf(n int64, pct float64) int64 {
	if n <= 0 || pct <= 0 {
		return 0
	}
	return min(int64(math.Floor(float64(n)*pct)), n)
}
