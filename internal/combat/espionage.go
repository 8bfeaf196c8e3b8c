package combat

import (
	"math"

	"github.com/warfront/realm-engine/internal/model"
)

// EspionageInput is everything the espionage resolver reads.
type EspionageInput struct {
	EspionagePower float64
	SentryPower    float64
	Spies          int64

	DefenderWorkers    int64
	DefenderGold       int64
	DefenderDarkMatter float64
	DefenderCrystals   float64
	DefenderAlloy      float64

	// Jammed short-circuits to a critical failure before any comparison.
	Jammed bool
}

// EspionageOutcome is the resolved attempt.
type EspionageOutcome struct {
	Outcome       model.Outcome
	Caught        bool
	Ratio         float64
	SuccessChance float64
	CatchChance   float64

	SpyLosses    int64
	WorkerLosses int64
	Stolen       model.Loot

	AttackerXP int64
	DefenderXP int64
}

// ResolveEspionage rolls success and detection independently against the
// same power ratio. A jammed attempt reads no power and no randomness.
func ResolveEspionage(in EspionageInput, cfg EspionageConfig, rng Rand) EspionageOutcome {
	var out EspionageOutcome

	if in.Jammed {
		out.Outcome = model.OutcomeCriticalFailure
		out.SpyLosses = lossOf(in.Spies, cfg.JamLossPct)
		return out
	}

	out.Ratio = espionageRatio(in.EspionagePower, in.SentryPower)
	out.SuccessChance = clamp(cfg.SuccessMult*out.Ratio, cfg.SuccessFloor, cfg.SuccessCap)
	switch {
	case math.IsInf(out.Ratio, 1):
		out.CatchChance = 0
	case out.Ratio == 0:
		out.CatchChance = cfg.CatchCap
	default:
		out.CatchChance = clamp(cfg.CatchMult/out.Ratio, 0, cfg.CatchCap)
	}

	succeeded := rng.Float64() < out.SuccessChance
	out.Caught = rng.Float64() < out.CatchChance

	if succeeded {
		out.Outcome = model.OutcomeSuccess
		out.Stolen = model.Loot{
			Gold:       lossOf(in.DefenderGold, cfg.GoldPct),
			DarkMatter: math.Min(floorTo(in.DefenderDarkMatter*cfg.DarkMatterPct, 4), math.Max(in.DefenderDarkMatter, 0)),
			Crystals:   math.Min(math.Floor(in.DefenderCrystals*cfg.CrystalsPct), math.Max(in.DefenderCrystals, 0)),
			Alloy:      math.Min(floorTo(in.DefenderAlloy*cfg.AlloyPct, 4), math.Max(in.DefenderAlloy, 0)),
		}
		out.Stolen.DarkMatter = math.Max(out.Stolen.DarkMatter, 0)
		out.Stolen.Crystals = math.Max(out.Stolen.Crystals, 0)
		out.Stolen.Alloy = math.Max(out.Stolen.Alloy, 0)
		out.WorkerLosses = lossOf(in.DefenderWorkers, cfg.WorkerLossPct)
		out.AttackerXP = cfg.XPSuccess
	} else {
		out.Outcome = model.OutcomeFailure
		out.AttackerXP = cfg.XPFailure
	}

	// Failed or detected spies are lost in proportion to the defender's
	// relative sentry strength.
	if !succeeded || out.Caught {
		pct := uniform(rng, cfg.SpyLossMin, cfg.SpyLossMax) * clampRatio(1/out.Ratio, cfg.RatioCap)
		if out.Caught {
			pct *= cfg.CaughtLossMult
			out.DefenderXP = cfg.XPCatch
		}
		out.SpyLosses = lossOf(in.Spies, math.Min(pct, 1))
	}
	return out
}

func espionageRatio(esp, sentry float64) float64 {
	switch {
	case sentry > 0:
		return esp / sentry
	case esp > 0:
		return math.Inf(1)
	default:
		return 1
	}
}

// floorTo truncates v to places decimal places.
func floorTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p) / p
}
