package power

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/modifier"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	tables, err := modifier.Load(nil)
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	return NewEngine(tables)
}

func snap(a model.Actor, effects ...model.Effect) Snapshot {
	return Snapshot{Actor: a, Effects: effects, Now: now}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCompute_AggregationExample(t *testing.T) {
	e := newEngine(t)

	// 100 soldiers × 10 = 1000, 100 tier-1 weapons × 5 = 500,
	// war hall level 5 at 5% = 25%, strength 10 at 1% = 10%.
	var a model.Actor
	a.Units[model.UnitSoldier] = 100
	a.Structures[model.StructWarHall] = 5
	a.Stats[model.StatStrength] = 10
	a.Equipment = []model.ItemStack{{Kind: model.ItemWeapon, Tier: 1, Count: 100}}

	got, bd := e.Compute(snap(a), model.MetricOffense, nil)
	if !approx(got, 2025) {
		t.Fatalf("expected offense 2025, got %v (%+v)", got, bd)
	}
	if bd.UnitFlat != 1000 || bd.EquipmentFlat != 500 {
		t.Errorf("unexpected flat terms: unit=%v equipment=%v", bd.UnitFlat, bd.EquipmentFlat)
	}
	if !approx(bd.StructurePct, 0.25) || !approx(bd.StatPct, 0.10) {
		t.Errorf("unexpected pct terms: structure=%v stat=%v", bd.StructurePct, bd.StatPct)
	}
	if bd.GlobalMultiplier != 1 {
		t.Errorf("expected no global multiplier, got %v", bd.GlobalMultiplier)
	}
}

func TestCompute_UnitCapInvariant(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		owned, officers int64
		wantEffective   int64
	}{
		{0, 0, 0},
		{500, 0, 500},
		{1000, 0, 1000},
		{1500, 0, 1000},
		{1500, 10, 1250},
		{5000, 40, 2000},
	}
	for _, tt := range tests {
		var a model.Actor
		a.Units[model.UnitGuard] = tt.owned
		a.Units[model.UnitOfficer] = tt.officers

		got, bd := e.Compute(snap(a), model.MetricDefense, nil)
		if bd.Effective+bd.Ineffective != tt.owned {
			t.Errorf("owned=%d: effective %d + ineffective %d != owned", tt.owned, bd.Effective, bd.Ineffective)
		}
		if bd.Effective != tt.wantEffective {
			t.Errorf("owned=%d officers=%d: expected effective %d, got %d",
				tt.owned, tt.officers, tt.wantEffective, bd.Effective)
		}
		if want := float64(tt.wantEffective) * 10; got != want {
			t.Errorf("owned=%d: ineffective units must add nothing: expected %v, got %v", tt.owned, want, got)
		}
	}
}

func TestCompute_EquipmentBoundedByEffectiveUnits(t *testing.T) {
	e := newEngine(t)

	var a model.Actor
	a.Units[model.UnitSoldier] = 1200 // 200 over the cap
	a.Equipment = []model.ItemStack{
		{Kind: model.ItemWeapon, Tier: 1, Count: 2000},
		{Kind: model.ItemWeapon, Tier: 3, Count: 300},
		{Kind: model.ItemArmor, Tier: 4, Count: 1000}, // wrong metric
	}

	_, bd := e.Compute(snap(a), model.MetricOffense, nil)
	// Best first: 300 × 25 + 700 × 5.
	if want := 300*25.0 + 700*5.0; bd.EquipmentFlat != want {
		t.Errorf("expected equipment %v, got %v", want, bd.EquipmentFlat)
	}
}

func TestCompute_ChampionsAndGlobalMultiplier(t *testing.T) {
	e := newEngine(t)

	var a model.Actor
	a.Units[model.UnitSoldier] = 100
	a.Champions = []model.Champion{
		{Kind: model.ChampionWarlord, Items: []model.ChampionItem{model.GearBlade, model.GearBanner}},
		{Kind: model.ChampionMarshal, Items: []model.ChampionItem{model.GearAegis}},
	}

	got, bd := e.Compute(snap(a), model.MetricOffense, nil)
	if bd.ChampionFlat != 350 {
		t.Errorf("expected champion flat 350, got %v", bd.ChampionFlat)
	}
	if !approx(got, (1000+350)*1.05) {
		t.Errorf("expected %v, got %v", (1000+350)*1.05, got)
	}

	_, def := e.Compute(snap(a), model.MetricDefense, nil)
	if def.ChampionFlat != 350 {
		t.Errorf("expected marshal + aegis = 350 defense, got %v", def.ChampionFlat)
	}
}

func TestCompute_AllianceAndDirective(t *testing.T) {
	e := newEngine(t)

	var a model.Actor
	a.Units[model.UnitSoldier] = 100
	c := &model.Collective{Directive: model.DirectiveWar, DirectiveUntil: now.Add(time.Hour)}
	c.Structures[model.AllianceWarCamp] = 5

	got, bd := e.Compute(snap(a), model.MetricOffense, c)
	if !approx(bd.AlliancePct, 0.10) || !approx(bd.DirectivePct, 0.10) {
		t.Errorf("unexpected alliance=%v directive=%v", bd.AlliancePct, bd.DirectivePct)
	}
	if !approx(got, 1200) {
		t.Errorf("expected 1200, got %v", got)
	}

	c.DirectiveUntil = now.Add(-time.Minute)
	got, _ = e.Compute(snap(a), model.MetricOffense, c)
	if !approx(got, 1100) {
		t.Errorf("expired directive should not apply: expected 1100, got %v", got)
	}

	c.Directive = model.DirectiveShadow
	c.DirectiveUntil = time.Time{}
	a.Units[model.UnitSpy] = 100
	_, spy := e.Compute(snap(a), model.MetricEspionage, c)
	if !approx(spy.GlobalMultiplier, 1.1) {
		t.Errorf("shadow directive should multiply espionage by 1.1, got %v", spy.GlobalMultiplier)
	}
}

func TestCompute_EffectsRespectExpiry(t *testing.T) {
	e := newEngine(t)

	var a model.Actor
	a.Units[model.UnitSoldier] = 100
	active := model.Effect{Key: model.EffectFury, ExpiresAt: now.Add(time.Minute)}
	expired := model.Effect{Key: model.EffectFury, ExpiresAt: now.Add(-time.Minute)}

	got, _ := e.Compute(snap(a, active), model.MetricOffense, nil)
	if !approx(got, 1100) {
		t.Errorf("active fury should add 10%%: got %v", got)
	}
	got, _ = e.Compute(snap(a, expired), model.MetricOffense, nil)
	if got != 1000 {
		t.Errorf("expired fury should not apply: got %v", got)
	}
}

func TestCompute_FloorsAtZero(t *testing.T) {
	tables := modifier.Defaults()
	tables.Effects[model.EffectBlight].Pct = -5
	e := NewEngine(tables)

	var empty model.Actor
	for m := 0; m < model.NumMetrics; m++ {
		if got, _ := e.Compute(snap(empty), model.Metric(m), nil); got != 0 {
			t.Errorf("%s: empty actor should have zero, got %v", model.Metric(m), got)
		}
	}

	var a model.Actor
	a.Units[model.UnitWorker] = 100
	blight := model.Effect{Key: model.EffectBlight, ExpiresAt: now.Add(time.Hour)}
	if got, _ := e.Compute(snap(a, blight), model.MetricIncome, nil); got != 0 {
		t.Errorf("income should floor at zero, got %v", got)
	}
}

func TestCompute_ShieldFromGenerator(t *testing.T) {
	e := newEngine(t)

	var a model.Actor
	a.Structures[model.StructShieldGenerator] = 4
	got, _ := e.Compute(snap(a), model.MetricShield, nil)
	if !approx(got, 2000*1.04) {
		t.Errorf("expected shield %v, got %v", 2000*1.04, got)
	}
}

func TestCompute_Purity(t *testing.T) {
	e := newEngine(t)

	var a model.Actor
	a.Units[model.UnitSoldier] = 750
	a.Units[model.UnitOfficer] = 3
	a.Structures[model.StructWarHall] = 12
	a.Stats[model.StatStrength] = 7
	a.Equipment = []model.ItemStack{{Kind: model.ItemWeapon, Tier: 2, Count: 400}}
	a.Champions = []model.Champion{{Kind: model.ChampionWarlord, Items: []model.ChampionItem{model.GearBanner}}}
	s := snap(a, model.Effect{Key: model.EffectFury, ExpiresAt: now.Add(time.Hour)})

	first, firstBD := e.Compute(s, model.MetricOffense, nil)
	second, secondBD := e.Compute(s, model.MetricOffense, nil)
	if first != second || firstBD != secondBD {
		t.Fatalf("repeated calls differ: %v vs %v", first, second)
	}

	var wg sync.WaitGroup
	results := make([]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.Compute(s, model.MetricOffense, nil)
		}(i)
	}
	wg.Wait()
	for i, r := range results {
		if r != first {
			t.Errorf("concurrent call %d returned %v, want %v", i, r, first)
		}
	}
}
