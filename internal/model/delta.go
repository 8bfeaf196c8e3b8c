package model

import "github.com/shopspring/decimal"

// ActorDelta is a relative change to an actor's balances. Stores apply it
// atomically (col = max(col + delta, 0)); callers never write absolute values.
type ActorDelta struct {
	Gold        int64 `json:"gold,omitempty"`
	Banked      int64 `json:"banked,omitempty"`
	Citizens    int64 `json:"citizens,omitempty"`
	Loan        int64 `json:"loan,omitempty"`
	AttackTurns int64 `json:"attack_turns,omitempty"`
	Experience  int64 `json:"experience,omitempty"`
	Level       int   `json:"level,omitempty"`
	StatPoints  int   `json:"stat_points,omitempty"`

	Units UnitCounts `json:"units"`

	Research   float64 `json:"research,omitempty"`
	DarkMatter float64 `json:"dark_matter,omitempty"`
	Crystals   float64 `json:"crystals,omitempty"`
	Alloy      float64 `json:"alloy,omitempty"`

	Gems      decimal.Decimal `json:"gems"`
	Influence decimal.Decimal `json:"influence"`
}

// Add accumulates o into d.
func (d *ActorDelta) Add(o ActorDelta) {
	d.Gold += o.Gold
	d.Banked += o.Banked
	d.Citizens += o.Citizens
	d.Loan += o.Loan
	d.AttackTurns += o.AttackTurns
	d.Experience += o.Experience
	d.Level += o.Level
	d.StatPoints += o.StatPoints
	for i := range d.Units {
		d.Units[i] += o.Units[i]
	}
	d.Research += o.Research
	d.DarkMatter += o.DarkMatter
	d.Crystals += o.Crystals
	d.Alloy += o.Alloy
	d.Gems = d.Gems.Add(o.Gems)
	d.Influence = d.Influence.Add(o.Influence)
}

// IsZero reports whether the delta changes nothing.
func (d ActorDelta) IsZero() bool {
	z := d
	z.Gems, z.Influence = decimal.Decimal{}, decimal.Decimal{}
	return z == (ActorDelta{}) && d.Gems.IsZero() && d.Influence.IsZero()
}

// Apply adds d to a, clamping every balance at zero. This mirrors the
// GREATEST(col + delta, 0) update used by the SQL store.
func (a *Actor) Apply(d ActorDelta) {
	a.Gold = clampAdd(a.Gold, d.Gold)
	a.Banked = clampAdd(a.Banked, d.Banked)
	a.Citizens = clampAdd(a.Citizens, d.Citizens)
	a.Loan = clampAdd(a.Loan, d.Loan)
	a.AttackTurns = clampAdd(a.AttackTurns, d.AttackTurns)
	a.Experience = clampAdd(a.Experience, d.Experience)
	a.Level = int(clampAdd(int64(a.Level), int64(d.Level)))
	a.StatPoints = int(clampAdd(int64(a.StatPoints), int64(d.StatPoints)))
	for i := range a.Units {
		a.Units[i] = clampAdd(a.Units[i], d.Units[i])
	}
	a.Research = clampAddF(a.Research, d.Research)
	a.DarkMatter = clampAddF(a.DarkMatter, d.DarkMatter)
	a.Crystals = clampAddF(a.Crystals, d.Crystals)
	a.Alloy = clampAddF(a.Alloy, d.Alloy)
	a.Gems = clampAddD(a.Gems, d.Gems)
	a.Influence = clampAddD(a.Influence, d.Influence)
}

func clampAdd(v, d int64) int64 {
	if v+d < 0 {
		return 0
	}
	return v + d
}

func clampAddF(v, d float64) float64 {
	if v+d < 0 {
		return 0
	}
	return v + d
}

func clampAddD(v, d decimal.Decimal) decimal.Decimal {
	r := v.Add(d)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
