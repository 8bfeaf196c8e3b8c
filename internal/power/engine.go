// Package power aggregates modifier sources into derived metrics: offense,
// defense, espionage, sentry and shield power, per-tick income and net
// worth.
//
// The engine is a pure function of its inputs. It holds only read-only
// tables, uses no randomness and is safe to call concurrently.
package power

import (
	"math"
	"sort"
	"time"

	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/modifier"
)

// Snapshot is the fully-loaded state the engine reads for one actor.
type Snapshot struct {
	Actor   model.Actor
	Effects []model.Effect
	Now     time.Time
}

// Breakdown records each aggregation step for one metric. Steps are listed
// in application order.
type Breakdown struct {
	Metric model.Metric `json:"metric"`

	Owned       int64 `json:"owned"`
	Capacity    int64 `json:"capacity"`
	Effective   int64 `json:"effective"`
	Ineffective int64 `json:"ineffective"`

	// 1. flat base power over effective units
	UnitFlat float64 `json:"unit_flat"`
	// 2. structure bonuses
	StructureFlat float64 `json:"structure_flat"`
	StructurePct  float64 `json:"structure_pct"`
	// 3. armory equipment, bounded by effective units
	EquipmentFlat float64 `json:"equipment_flat"`
	// 4. champions and their gear
	ChampionFlat float64 `json:"champion_flat"`
	// 5. alliance structures and directive
	AlliancePct  float64 `json:"alliance_pct"`
	DirectivePct float64 `json:"directive_pct"`
	// stat allocation and timed effects
	StatPct   float64 `json:"stat_pct"`
	EffectPct float64 `json:"effect_pct"`
	// 6. global multiplier over the accumulated sum
	GlobalMultiplier float64 `json:"global_multiplier"`

	FlatSum float64 `json:"flat_sum"`
	Total   float64 `json:"total"`
}

// PctSum is the additive percentage applied over the flat sum.
func (b Breakdown) PctSum() float64 {
	return b.StructurePct + b.AlliancePct + b.DirectivePct + b.StatPct + b.EffectPct
}

// Engine computes derived metrics from snapshots.
type Engine struct {
	tables *modifier.Tables
}

// NewEngine creates an engine over validated tables.
func NewEngine(tables *modifier.Tables) *Engine {
	return &Engine{tables: tables}
}

// Tables returns the lookup tables the engine reads.
func (e *Engine) Tables() *modifier.Tables {
	return e.tables
}

// Capacity returns the actor's effective combat unit cap.
func (e *Engine) Capacity(a *model.Actor) int64 {
	return e.tables.Capacity.Capacity(a.Units[model.UnitOfficer])
}

// Compute returns a metric and its breakdown. collective may be nil; when
// set, its structures and active directive contribute. The result is never
// negative.
func (e *Engine) Compute(s Snapshot, m model.Metric, collective *model.Collective) (float64, Breakdown) {
	t := e.tables
	a := &s.Actor
	b := Breakdown{Metric: m, GlobalMultiplier: 1}

	// 1. Base power from effective units only.
	if u, ok := model.UnitFor(m); ok {
		b.Owned = a.Units[u]
		b.Capacity = e.Capacity(a)
		b.Effective = min(b.Owned, max(b.Capacity, 0))
		b.Ineffective = b.Owned - b.Effective
		b.UnitFlat = float64(b.Effective) * t.Units[u].Power
	} else if m == model.MetricIncome {
		b.Owned = a.Units[model.UnitWorker]
		b.Effective = b.Owned
		b.UnitFlat = float64(b.Owned) * t.Units[model.UnitWorker].Income
	}

	// 2. Structure flat and percentage.
	if st, ok := modifier.StructureFor(m); ok {
		spec := t.Structures[st]
		level := a.Structures[st]
		b.StructureFlat = spec.Flat(level)
		b.StructurePct = spec.Pct(level)
	}

	// 3. Equipment, never applied beyond the effective unit count.
	if kind, ok := modifier.ItemFor(m); ok {
		b.EquipmentFlat = equipmentBonus(a.Equipment, kind, t.Items[kind], b.Effective)
	}

	// 4. Champions and their gear.
	for _, c := range a.Champions {
		if int(c.Kind) >= model.NumChampionKinds {
			continue
		}
		if spec := t.Champions[c.Kind]; spec.Metric == m {
			b.ChampionFlat += spec.Flat
		}
		for _, g := range c.Items {
			if int(g) >= model.NumChampionItems {
				continue
			}
			gear := t.Gear[g]
			if gear.Metric != m {
				continue
			}
			b.ChampionFlat += gear.Flat
			if gear.GlobalPct > 0 {
				b.GlobalMultiplier *= 1 + gear.GlobalPct
			}
		}
	}

	// 5. Alliance structures and directive.
	if collective != nil {
		for i, spec := range t.Alliance {
			if spec.Metric == m {
				b.AlliancePct += float64(collective.Structures[i]) * spec.PctPerLevel
			}
		}
		if d := collective.ActiveDirective(s.Now); d != model.DirectiveNone {
			spec := t.Directives[d]
			if spec.Metric == m {
				b.DirectivePct += spec.Pct
				if spec.GlobalPct > 0 {
					b.GlobalMultiplier *= 1 + spec.GlobalPct
				}
			}
		}
	}

	if st, ok := model.StatFor(m); ok {
		b.StatPct = float64(a.Stats[st]) * t.StatPct[st]
	}
	for _, fx := range s.Effects {
		if int(fx.Key) >= model.NumEffects || !fx.Active(s.Now) {
			continue
		}
		if spec := t.Effects[fx.Key]; spec.Metric == m && spec.Pct != 0 {
			b.EffectPct += spec.Pct
		}
	}

	// 6. Percentages over the flat sum, then the global multiplier.
	b.FlatSum = b.UnitFlat + b.StructureFlat + b.EquipmentFlat + b.ChampionFlat
	total := b.FlatSum * math.Max(1+b.PctSum(), 0) * b.GlobalMultiplier
	if total < 0 || math.IsNaN(total) {
		total = 0
	}
	b.Total = total
	return total, b
}

// equipmentBonus assigns the best items first and stops at the effective
// unit count.
func equipmentBonus(stacks []model.ItemStack, kind model.ItemKind, spec modifier.ItemSpec, effective int64) float64 {
	var owned []model.ItemStack
	for _, st := range stacks {
		if st.Kind == kind && st.Count > 0 {
			owned = append(owned, st)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].Tier > owned[j].Tier })

	remaining := effective
	var bonus float64
	for _, st := range owned {
		if remaining <= 0 {
			break
		}
		n := min(st.Count, remaining)
		bonus += float64(n) * spec.Bonus(st.Tier)
		remaining -= n
	}
	return bonus
}
