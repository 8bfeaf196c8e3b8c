// Package modifier holds the read-only lookup tables behind every modifier
// source: unit stats, structure levels, armory tiers, champions and their
// gear, alliance structures, directives and timed effects.
//
// Each table is a fixed-size array indexed by the closed enumerations in the
// model package. Tables start from built-in defaults, are overridden key by
// key from the balance document, and are validated once at load time.
package modifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/warfront/realm-engine/internal/config"
	"github.com/warfront/realm-engine/internal/model"
)

// ErrInvalidTable is returned when a loaded table fails validation.
var ErrInvalidTable = errors.New("modifier: invalid table")

// UnitSpec describes one unit type.
type UnitSpec struct {
	Power  float64 // flat power per effective unit toward its metric
	Income float64 // gold per tick per unit (workers)
	Value  float64 // net-worth value per unit
}

// StructureSpec describes one structure type. Costs grow geometrically and
// are kept in float64 because they pass 2^63 at high levels.
type StructureSpec struct {
	PctPerLevel  float64
	FlatPerLevel float64
	Cap          float64 // cap on the percentage; 0 means uncapped
	BaseCost     float64
	CostGrowth   float64
}

// Pct returns the percentage bonus at level, capped.
func (s StructureSpec) Pct(level int) float64 {
	p := float64(level) * s.PctPerLevel
	if s.Cap > 0 && p > s.Cap {
		return s.Cap
	}
	return p
}

// Flat returns the flat bonus at level.
func (s StructureSpec) Flat(level int) float64 {
	return float64(level) * s.FlatPerLevel
}

// UpgradeCost returns the cost of raising the structure from level to level+1.
func (s StructureSpec) UpgradeCost(level int) float64 {
	return s.BaseCost * math.Pow(s.CostGrowth, float64(level))
}

// InvestedValue returns the total cost paid to reach level from zero.
func (s StructureSpec) InvestedValue(level int) float64 {
	if level <= 0 {
		return 0
	}
	if s.CostGrowth == 1 {
		return s.BaseCost * float64(level)
	}
	return s.BaseCost * (math.Pow(s.CostGrowth, float64(level)) - 1) / (s.CostGrowth - 1)
}

// ItemSpec is the per-unit bonus of an armory item kind, indexed by tier.
// Tier 0 is "no item" and always zero.
type ItemSpec struct {
	Tiers []float64
}

// Bonus returns the per-unit bonus for tier, zero when out of range.
func (s ItemSpec) Bonus(tier int) float64 {
	if tier <= 0 || tier >= len(s.Tiers) {
		return 0
	}
	return s.Tiers[tier]
}

// ChampionSpec describes a champion kind.
type ChampionSpec struct {
	Metric model.Metric
	Flat   float64
	Upkeep float64 // alloy per tick
}

// GearSpec describes an item equipped on a champion.
type GearSpec struct {
	Metric    model.Metric
	Flat      float64
	GlobalPct float64 // final multiplier over the whole metric
}

// AllianceSpec describes an alliance structure.
type AllianceSpec struct {
	Metric      model.Metric
	PctPerLevel float64
}

// DirectiveSpec describes a collective directive.
type DirectiveSpec struct {
	Metric    model.Metric
	Pct       float64
	GlobalPct float64
}

// EffectSpec describes a timed effect. Pct may be negative for debuffs.
type EffectSpec struct {
	Metric          model.Metric
	Pct             float64
	BlocksBattle    bool
	BlocksEspionage bool
}

// CapacitySpec is the army capacity rule: Base + PerOfficer per officer.
type CapacitySpec struct {
	Base       int64
	PerOfficer int64
}

// Capacity returns the effective-unit cap for an officer count.
func (c CapacitySpec) Capacity(officers int64) int64 {
	return c.Base + officers*c.PerOfficer
}

// EconomySpec holds income and valuation constants.
type EconomySpec struct {
	CitizenGrowth        float64 // base citizens per tick
	ResearchPerScientist float64
	ScientistUpkeep      float64 // alloy per scientist per tick
	MaxAttackTurns       int64
	TurnsPerTick         int64

	// Canonical exchange rates into gold for net worth.
	RateGold       float64
	RateBanked     float64
	RateResearch   float64
	RateDarkMatter float64
	RateCrystals   float64
	RateAlloy      float64
	RateGems       float64
	RateInfluence  float64
	RateStructure  float64 // fraction of invested structure cost
}

// Tables is the complete set of modifier lookup tables.
type Tables struct {
	Version    string
	Units      [model.NumUnits]UnitSpec
	Structures [model.NumStructures]StructureSpec
	Items      [model.NumItemKinds]ItemSpec
	Champions  [model.NumChampionKinds]ChampionSpec
	Gear       [model.NumChampionItems]GearSpec
	Alliance   [model.NumAllianceStructures]AllianceSpec
	Directives [model.NumDirectives]DirectiveSpec
	Effects    [model.NumEffects]EffectSpec
	StatPct    [model.NumStats]float64
	Capacity   CapacitySpec
	Economy    EconomySpec
}

// Load builds tables from defaults overridden by the balance document.
// A nil balance yields the defaults.
func Load(b *config.Balance) (*Tables, error) {
	t := Defaults()
	t.Version = b.Version()

	for u := range t.Units {
		name := "units." + model.Unit(u).String()
		over(b, name+".power", &t.Units[u].Power)
		over(b, name+".income", &t.Units[u].Income)
		over(b, name+".value", &t.Units[u].Value)
	}
	for s := range t.Structures {
		name := "structures." + model.Structure(s).String()
		spec := &t.Structures[s]
		over(b, name+".pct_per_level", &spec.PctPerLevel)
		over(b, name+".flat_per_level", &spec.FlatPerLevel)
		over(b, name+".cap", &spec.Cap)
		over(b, name+".base_cost", &spec.BaseCost)
		over(b, name+".cost_growth", &spec.CostGrowth)
	}
	for k := range t.Items {
		key := "items." + model.ItemKind(k).String() + ".tiers"
		if tiers := list(b, key); tiers != nil {
			t.Items[k].Tiers = tiers
		}
	}
	for k := range t.Champions {
		name := "champions." + model.ChampionKind(k).String()
		over(b, name+".flat", &t.Champions[k].Flat)
		over(b, name+".upkeep", &t.Champions[k].Upkeep)
	}
	for g := range t.Gear {
		name := "gear." + model.ChampionItem(g).String()
		over(b, name+".flat", &t.Gear[g].Flat)
		over(b, name+".global_pct", &t.Gear[g].GlobalPct)
	}
	for a := range t.Alliance {
		over(b, "alliance."+model.AllianceStructure(a).String()+".pct_per_level", &t.Alliance[a].PctPerLevel)
	}
	for d := range t.Directives {
		name := "directives." + model.Directive(d).String()
		over(b, name+".pct", &t.Directives[d].Pct)
		over(b, name+".global_pct", &t.Directives[d].GlobalPct)
	}
	for e := range t.Effects {
		over(b, "effects."+model.EffectKey(e).String()+".pct", &t.Effects[e].Pct)
	}
	for s := range t.StatPct {
		over(b, "stats."+model.Stat(s).String()+".pct_per_point", &t.StatPct[s])
	}
	t.Capacity.Base = b.Int("capacity.base", t.Capacity.Base)
	t.Capacity.PerOfficer = b.Int("capacity.per_officer", t.Capacity.PerOfficer)

	e := &t.Economy
	over(b, "economy.citizen_growth", &e.CitizenGrowth)
	over(b, "economy.research_per_scientist", &e.ResearchPerScientist)
	over(b, "economy.scientist_upkeep", &e.ScientistUpkeep)
	e.MaxAttackTurns = b.Int("economy.max_attack_turns", e.MaxAttackTurns)
	e.TurnsPerTick = b.Int("economy.turns_per_tick", e.TurnsPerTick)
	over(b, "networth.gold", &e.RateGold)
	over(b, "networth.banked", &e.RateBanked)
	over(b, "networth.research", &e.RateResearch)
	over(b, "networth.dark_matter", &e.RateDarkMatter)
	over(b, "networth.crystals", &e.RateCrystals)
	over(b, "networth.alloy", &e.RateAlloy)
	over(b, "networth.gems", &e.RateGems)
	over(b, "networth.influence", &e.RateInfluence)
	over(b, "networth.structure", &e.RateStructure)

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func over(b *config.Balance, key string, dst *float64) {
	*dst = b.Float(key, *dst)
}

func list(b *config.Balance, key string) []float64 {
	var out []float64
	for i := 0; b.Has(fmt.Sprintf("%s.%d", key, i)); i++ {
		out = append(out, b.Float(fmt.Sprintf("%s.%d", key, i), 0))
	}
	return out
}

// Validate checks table invariants: non-negative bonuses and costs, cost
// growth of at least 1, and non-decreasing item tiers starting at zero.
func (t *Tables) Validate() error {
	for u, spec := range t.Units {
		if spec.Power < 0 || spec.Income < 0 || spec.Value < 0 {
			return fmt.Errorf("%w: unit %s has negative values", ErrInvalidTable, model.Unit(u))
		}
	}
	for s, spec := range t.Structures {
		name := model.Structure(s)
		if spec.PctPerLevel < 0 || spec.FlatPerLevel < 0 || spec.Cap < 0 || spec.BaseCost < 0 {
			return fmt.Errorf("%w: structure %s has negative values", ErrInvalidTable, name)
		}
		if spec.CostGrowth < 1 {
			return fmt.Errorf("%w: structure %s cost growth %.3f < 1", ErrInvalidTable, name, spec.CostGrowth)
		}
	}
	for k, spec := range t.Items {
		if len(spec.Tiers) == 0 || spec.Tiers[0] != 0 {
			return fmt.Errorf("%w: item %s tier 0 must be zero", ErrInvalidTable, model.ItemKind(k))
		}
		for i := 1; i < len(spec.Tiers); i++ {
			if spec.Tiers[i] < spec.Tiers[i-1] {
				return fmt.Errorf("%w: item %s tiers must not decrease", ErrInvalidTable, model.ItemKind(k))
			}
		}
	}
	for k, spec := range t.Champions {
		if spec.Flat < 0 || spec.Upkeep < 0 {
			return fmt.Errorf("%w: champion %s has negative values", ErrInvalidTable, model.ChampionKind(k))
		}
	}
	for g, spec := range t.Gear {
		if spec.Flat < 0 || spec.GlobalPct < 0 {
			return fmt.Errorf("%w: gear %s has negative values", ErrInvalidTable, model.ChampionItem(g))
		}
	}
	for a, spec := range t.Alliance {
		if spec.PctPerLevel < 0 {
			return fmt.Errorf("%w: alliance structure %s has negative values", ErrInvalidTable, model.AllianceStructure(a))
		}
	}
	for d, spec := range t.Directives {
		if spec.Pct < 0 || spec.GlobalPct < 0 {
			return fmt.Errorf("%w: directive %s has negative values", ErrInvalidTable, model.Directive(d))
		}
	}
	for s, pct := range t.StatPct {
		if pct < 0 {
			return fmt.Errorf("%w: stat %s has negative pct", ErrInvalidTable, model.Stat(s))
		}
	}
	if t.Capacity.Base < 0 || t.Capacity.PerOfficer < 0 {
		return fmt.Errorf("%w: negative capacity", ErrInvalidTable)
	}
	if t.Economy.MaxAttackTurns < 0 || t.Economy.TurnsPerTick < 0 {
		return fmt.Errorf("%w: negative attack turn settings", ErrInvalidTable)
	}
	return nil
}

// StructureFor returns the structure whose level bonus feeds a metric.
func StructureFor(m model.Metric) (model.Structure, bool) {
	switch m {
	case model.MetricOffense:
		return model.StructWarHall, true
	case model.MetricDefense:
		return model.StructFortress, true
	case model.MetricEspionage:
		return model.StructSpyAcademy, true
	case model.MetricSentry:
		return model.StructWatchtower, true
	case model.MetricShield:
		return model.StructShieldGenerator, true
	case model.MetricIncome:
		return model.StructMine, true
	}
	return 0, false
}

// ItemFor returns the armory item kind that equips a metric's units.
func ItemFor(m model.Metric) (model.ItemKind, bool) {
	switch m {
	case model.MetricOffense:
		return model.ItemWeapon, true
	case model.MetricDefense:
		return model.ItemArmor, true
	case model.MetricEspionage:
		return model.ItemCloak, true
	case model.MetricSentry:
		return model.ItemLens, true
	}
	return 0, false
}
