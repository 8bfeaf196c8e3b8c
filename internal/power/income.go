package power

import (
	"math"

	"github.com/warfront/realm-engine/internal/model"
)

// Income is one tick of production for an actor. Secondary resources are
// fractional because their multipliers are often below one.
type Income struct {
	Gold       int64   `json:"gold"`
	Interest   int64   `json:"interest"`
	Citizens   int64   `json:"citizens"`
	Research   float64 `json:"research"`
	DarkMatter float64 `json:"dark_matter"`
	Crystals   float64 `json:"crystals"`
	Alloy      float64 `json:"alloy"`

	// Upkeep is alloy owed for champions and scientists this tick.
	Upkeep float64 `json:"upkeep"`

	GoldBreakdown Breakdown `json:"gold_breakdown"`
}

// Income computes per-tick production. Each secondary resource is gated by
// its own structure level and scaled by its own multiplier chain.
func (e *Engine) Income(s Snapshot, collective *model.Collective) Income {
	t := e.tables
	a := &s.Actor

	gold, bd := e.Compute(s, model.MetricIncome, collective)
	inc := Income{
		Gold:          int64(math.Floor(gold)),
		GoldBreakdown: bd,
	}

	vault := t.Structures[model.StructVault]
	inc.Interest = int64(math.Floor(float64(a.Banked) * vault.Pct(a.Structures[model.StructVault])))

	housing := t.Structures[model.StructHousing]
	inc.Citizens = int64(math.Floor(t.Economy.CitizenGrowth + housing.Flat(a.Structures[model.StructHousing])))

	// Timed income effects (blight) also slow secondary production.
	effectMult := math.Max(1+bd.EffectPct, 0)

	if lvl := a.Structures[model.StructLaboratory]; lvl > 0 {
		lab := t.Structures[model.StructLaboratory]
		inc.Research = float64(a.Units[model.UnitScientist]) * t.Economy.ResearchPerScientist *
			(1 + lab.Pct(lvl)) * effectMult
	}
	inc.DarkMatter = e.production(a, model.StructCollider) * effectMult
	inc.Crystals = e.production(a, model.StructQuarry) * effectMult
	inc.Alloy = e.production(a, model.StructFoundry) * effectMult

	inc.Upkeep = e.Upkeep(a)
	return inc
}

// production is flat-per-level output compounded by the structure's own
// percentage. Zero when the structure is unbuilt.
func (e *Engine) production(a *model.Actor, st model.Structure) float64 {
	lvl := a.Structures[st]
	if lvl <= 0 {
		return 0
	}
	spec := e.tables.Structures[st]
	return spec.Flat(lvl) * (1 + spec.Pct(lvl))
}

// Upkeep returns the alloy owed per tick for champions and scientists.
func (e *Engine) Upkeep(a *model.Actor) float64 {
	t := e.tables
	var upkeep float64
	for _, c := range a.Champions {
		if int(c.Kind) < model.NumChampionKinds {
			upkeep += t.Champions[c.Kind].Upkeep
		}
	}
	upkeep += float64(a.Units[model.UnitScientist]) * t.Economy.ScientistUpkeep
	return upkeep
}

// NetWorth values everything an actor owns at canonical exchange rates.
// It is always recomputed from scratch, never tracked incrementally.
func (e *Engine) NetWorth(a *model.Actor) float64 {
	t := e.tables
	r := t.Economy

	nw := float64(a.Gold)*r.RateGold + float64(a.Banked)*r.RateBanked
	for u, n := range a.Units {
		nw += float64(n) * t.Units[u].Value
	}
	for st, lvl := range a.Structures {
		nw += t.Structures[st].InvestedValue(lvl) * r.RateStructure
	}
	nw += a.Research*r.RateResearch + a.DarkMatter*r.RateDarkMatter +
		a.Crystals*r.RateCrystals + a.Alloy*r.RateAlloy
	nw += a.Gems.InexactFloat64()*r.RateGems + a.Influence.InexactFloat64()*r.RateInfluence
	nw -= float64(a.Loan) * r.RateGold

	if nw < 0 || math.IsNaN(nw) {
		return 0
	}
	return nw
}
