package modifier

import "github.com/warfront/realm-engine/internal/model"

// Defaults returns the built-in tables used when the balance document is
// silent.
func Defaults() *Tables {
	return &Tables{
		Units: [model.NumUnits]UnitSpec{
			model.UnitSoldier:   {Power: 10, Value: 150},
			model.UnitGuard:     {Power: 10, Value: 150},
			model.UnitSpy:       {Power: 8, Value: 200},
			model.UnitSentry:    {Power: 8, Value: 200},
			model.UnitWorker:    {Income: 5, Value: 50},
			model.UnitOfficer:   {Value: 500},
			model.UnitScientist: {Value: 300},
		},
		Structures: [model.NumStructures]StructureSpec{
			model.StructWarHall:         {PctPerLevel: 0.05, BaseCost: 1000, CostGrowth: 1.35},
			model.StructFortress:        {PctPerLevel: 0.05, BaseCost: 1000, CostGrowth: 1.35},
			model.StructSpyAcademy:      {PctPerLevel: 0.05, BaseCost: 1200, CostGrowth: 1.35},
			model.StructWatchtower:      {PctPerLevel: 0.05, BaseCost: 1200, CostGrowth: 1.35},
			model.StructMine:            {FlatPerLevel: 100, BaseCost: 800, CostGrowth: 1.3},
			model.StructVault:           {PctPerLevel: 0.005, Cap: 0.05, BaseCost: 2000, CostGrowth: 1.4},
			model.StructHousing:         {FlatPerLevel: 10, BaseCost: 500, CostGrowth: 1.3},
			model.StructLaboratory:      {PctPerLevel: 0.1, BaseCost: 5000, CostGrowth: 1.5},
			model.StructCollider:        {FlatPerLevel: 0.05, PctPerLevel: 0.02, BaseCost: 20000, CostGrowth: 1.6},
			model.StructQuarry:          {FlatPerLevel: 0.1, PctPerLevel: 0.02, BaseCost: 10000, CostGrowth: 1.5},
			model.StructFoundry:         {FlatPerLevel: 0.25, PctPerLevel: 0.02, BaseCost: 8000, CostGrowth: 1.45},
			model.StructInfirmary:       {PctPerLevel: 0.02, Cap: 0.5, BaseCost: 3000, CostGrowth: 1.4},
			model.StructShieldGenerator: {FlatPerLevel: 500, PctPerLevel: 0.01, BaseCost: 4000, CostGrowth: 1.45},
		},
		Items: [model.NumItemKinds]ItemSpec{
			model.ItemWeapon: {Tiers: []float64{0, 5, 12, 25, 50}},
			model.ItemArmor:  {Tiers: []float64{0, 5, 12, 25, 50}},
			model.ItemCloak:  {Tiers: []float64{0, 4, 10, 20, 40}},
			model.ItemLens:   {Tiers: []float64{0, 4, 10, 20, 40}},
		},
		Champions: [model.NumChampionKinds]ChampionSpec{
			model.ChampionWarlord:   {Metric: model.MetricOffense, Flat: 250, Upkeep: 2},
			model.ChampionMarshal:   {Metric: model.MetricDefense, Flat: 250, Upkeep: 2},
			model.ChampionSpymaster: {Metric: model.MetricEspionage, Flat: 150, Upkeep: 2},
		},
		Gear: [model.NumChampionItems]GearSpec{
			model.GearBlade:  {Metric: model.MetricOffense, Flat: 100},
			model.GearAegis:  {Metric: model.MetricDefense, Flat: 100},
			model.GearMask:   {Metric: model.MetricEspionage, Flat: 80},
			model.GearBanner: {Metric: model.MetricOffense, GlobalPct: 0.05},
		},
		Alliance: [model.NumAllianceStructures]AllianceSpec{
			model.AllianceWarCamp:    {Metric: model.MetricOffense, PctPerLevel: 0.02},
			model.AllianceBulwark:    {Metric: model.MetricDefense, PctPerLevel: 0.02},
			model.AllianceSpyNetwork: {Metric: model.MetricEspionage, PctPerLevel: 0.02},
			model.AllianceSentinel:   {Metric: model.MetricSentry, PctPerLevel: 0.02},
			model.AllianceExchange:   {Metric: model.MetricIncome, PctPerLevel: 0.01},
		},
		Directives: [model.NumDirectives]DirectiveSpec{
			model.DirectiveNone:       {},
			model.DirectiveWar:        {Metric: model.MetricOffense, Pct: 0.1},
			model.DirectiveFortify:    {Metric: model.MetricDefense, Pct: 0.1},
			model.DirectiveShadow:     {Metric: model.MetricEspionage, GlobalPct: 0.1},
			model.DirectiveProsperity: {Metric: model.MetricIncome, Pct: 0.1},
		},
		Effects: [model.NumEffects]EffectSpec{
			model.EffectShield:    {BlocksBattle: true},
			model.EffectJamming:   {BlocksEspionage: true},
			model.EffectFury:      {Metric: model.MetricOffense, Pct: 0.1},
			model.EffectBlight:    {Metric: model.MetricIncome, Pct: -0.1},
			model.EffectVigilance: {Metric: model.MetricSentry, Pct: 0.15},
		},
		StatPct: [model.NumStats]float64{0.01, 0.01, 0.01, 0.01, 0.01},
		Capacity: CapacitySpec{
			Base:       1000,
			PerOfficer: 25,
		},
		Economy: EconomySpec{
			CitizenGrowth:        5,
			ResearchPerScientist: 0.5,
			ScientistUpkeep:      0.1,
			MaxAttackTurns:       100,
			TurnsPerTick:         1,
			RateGold:             1,
			RateBanked:           1,
			RateResearch:         20,
			RateDarkMatter:       500,
			RateCrystals:         250,
			RateAlloy:            40,
			RateGems:             1000,
			RateInfluence:        10,
			RateStructure:        0.5,
		},
	}
}
