package model

import "fmt"

// Closed enumerations for every modifier category. Lookup tables elsewhere
// are fixed-size arrays indexed by these values, so adding a variant without
// a table entry fails to compile wherever the array literal is declared.

// Metric identifies one derived number computed by the power engine.
type Metric uint8

const (
	MetricOffense Metric = iota
	MetricDefense
	MetricEspionage
	MetricSentry
	MetricShield
	MetricIncome

	NumMetrics = int(MetricIncome) + 1
)

var metricNames = [NumMetrics]string{"offense", "defense", "espionage", "sentry", "shield", "income"}

func (m Metric) String() string { return enumName(metricNames[:], int(m)) }

// ParseMetric resolves a metric from its string name.
func ParseMetric(s string) (Metric, error) {
	i, err := parseEnum(metricNames[:], "metric", s)
	return Metric(i), err
}

func (m Metric) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	*m = v
	return err
}

// Unit is a trainable unit type.
type Unit uint8

const (
	UnitSoldier Unit = iota
	UnitGuard
	UnitSpy
	UnitSentry
	UnitWorker
	UnitOfficer
	UnitScientist

	NumUnits = int(UnitScientist) + 1
)

var unitNames = [NumUnits]string{"soldier", "guard", "spy", "sentry", "worker", "officer", "scientist"}

func (u Unit) String() string { return enumName(unitNames[:], int(u)) }

// ParseUnit resolves a unit type from its string name.
func ParseUnit(s string) (Unit, error) {
	i, err := parseEnum(unitNames[:], "unit", s)
	return Unit(i), err
}

// UnitFor returns the combat unit whose count drives a metric.
// Shield and income have no combat unit.
func UnitFor(m Metric) (Unit, bool) {
	switch m {
	case MetricOffense:
		return UnitSoldier, true
	case MetricDefense:
		return UnitGuard, true
	case MetricEspionage:
		return UnitSpy, true
	case MetricSentry:
		return UnitSentry, true
	}
	return 0, false
}

// Stat is an allocable stat point category.
type Stat uint8

const (
	StatStrength Stat = iota
	StatConstitution
	StatDexterity
	StatCharisma
	StatWealth

	NumStats = int(StatWealth) + 1
)

var statNames = [NumStats]string{"strength", "constitution", "dexterity", "charisma", "wealth"}

func (s Stat) String() string { return enumName(statNames[:], int(s)) }

// ParseStat resolves a stat from its string name.
func ParseStat(s string) (Stat, error) {
	i, err := parseEnum(statNames[:], "stat", s)
	return Stat(i), err
}

// StatFor returns the stat whose points add a percentage to a metric.
func StatFor(m Metric) (Stat, bool) {
	switch m {
	case MetricOffense:
		return StatStrength, true
	case MetricDefense:
		return StatConstitution, true
	case MetricEspionage:
		return StatDexterity, true
	case MetricSentry:
		return StatCharisma, true
	case MetricIncome:
		return StatWealth, true
	}
	return 0, false
}

// Structure is a per-actor building type. Levels are unbounded.
type Structure uint8

const (
	StructWarHall Structure = iota
	StructFortress
	StructSpyAcademy
	StructWatchtower
	StructMine
	StructVault
	StructHousing
	StructLaboratory
	StructCollider
	StructQuarry
	StructFoundry
	StructInfirmary
	StructShieldGenerator

	NumStructures = int(StructShieldGenerator) + 1
)

var structureNames = [NumStructures]string{
	"war_hall", "fortress", "spy_academy", "watchtower", "mine", "vault", "housing",
	"laboratory", "collider", "quarry", "foundry", "infirmary", "shield_generator",
}

func (s Structure) String() string { return enumName(structureNames[:], int(s)) }

// ParseStructure resolves a structure from its string name.
func ParseStructure(s string) (Structure, error) {
	i, err := parseEnum(structureNames[:], "structure", s)
	return Structure(i), err
}

func (s Structure) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Structure) UnmarshalText(b []byte) error {
	v, err := ParseStructure(string(b))
	*s = v
	return err
}

// ItemKind is an armory item category; each boosts one metric per unit.
type ItemKind uint8

const (
	ItemWeapon ItemKind = iota
	ItemArmor
	ItemCloak
	ItemLens

	NumItemKinds = int(ItemLens) + 1
)

var itemKindNames = [NumItemKinds]string{"weapon", "armor", "cloak", "lens"}

func (k ItemKind) String() string { return enumName(itemKindNames[:], int(k)) }

// ParseItemKind resolves an item kind from its string name.
func ParseItemKind(s string) (ItemKind, error) {
	i, err := parseEnum(itemKindNames[:], "item kind", s)
	return ItemKind(i), err
}

func (k ItemKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ItemKind) UnmarshalText(b []byte) error {
	v, err := ParseItemKind(string(b))
	*k = v
	return err
}

// ChampionKind is a general-like entity that carries items.
type ChampionKind uint8

const (
	ChampionWarlord ChampionKind = iota
	ChampionMarshal
	ChampionSpymaster

	NumChampionKinds = int(ChampionSpymaster) + 1
)

var championNames = [NumChampionKinds]string{"warlord", "marshal", "spymaster"}

func (k ChampionKind) String() string { return enumName(championNames[:], int(k)) }

// ParseChampionKind resolves a champion kind from its string name.
func ParseChampionKind(s string) (ChampionKind, error) {
	i, err := parseEnum(championNames[:], "champion", s)
	return ChampionKind(i), err
}

func (k ChampionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ChampionKind) UnmarshalText(b []byte) error {
	v, err := ParseChampionKind(string(b))
	*k = v
	return err
}

// ChampionItem is an item equipped on a champion.
type ChampionItem uint8

const (
	GearBlade ChampionItem = iota
	GearAegis
	GearMask
	GearBanner

	NumChampionItems = int(GearBanner) + 1
)

var gearNames = [NumChampionItems]string{"blade", "aegis", "mask", "banner"}

func (g ChampionItem) String() string { return enumName(gearNames[:], int(g)) }

// ParseChampionItem resolves a champion item from its string name.
func ParseChampionItem(s string) (ChampionItem, error) {
	i, err := parseEnum(gearNames[:], "champion item", s)
	return ChampionItem(i), err
}

func (g ChampionItem) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *ChampionItem) UnmarshalText(b []byte) error {
	v, err := ParseChampionItem(string(b))
	*g = v
	return err
}

// AllianceStructure is a collective-level building type.
type AllianceStructure uint8

const (
	AllianceWarCamp AllianceStructure = iota
	AllianceBulwark
	AllianceSpyNetwork
	AllianceSentinel
	AllianceExchange

	NumAllianceStructures = int(AllianceExchange) + 1
)

var allianceNames = [NumAllianceStructures]string{"war_camp", "bulwark", "spy_network", "sentinel", "exchange"}

func (a AllianceStructure) String() string { return enumName(allianceNames[:], int(a)) }

// ParseAllianceStructure resolves an alliance structure from its string name.
func ParseAllianceStructure(s string) (AllianceStructure, error) {
	i, err := parseEnum(allianceNames[:], "alliance structure", s)
	return AllianceStructure(i), err
}

// Directive is a collective-wide toggled bonus.
type Directive uint8

const (
	DirectiveNone Directive = iota
	DirectiveWar
	DirectiveFortify
	DirectiveShadow
	DirectiveProsperity

	NumDirectives = int(DirectiveProsperity) + 1
)

var directiveNames = [NumDirectives]string{"none", "war", "fortify", "shadow", "prosperity"}

func (d Directive) String() string { return enumName(directiveNames[:], int(d)) }

// ParseDirective resolves a directive from its string name.
func ParseDirective(s string) (Directive, error) {
	i, err := parseEnum(directiveNames[:], "directive", s)
	return Directive(i), err
}

func (d Directive) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Directive) UnmarshalText(b []byte) error {
	v, err := ParseDirective(string(b))
	*d = v
	return err
}

// EffectKey identifies a timed modifier or gate.
type EffectKey uint8

const (
	EffectShield EffectKey = iota
	EffectJamming
	EffectFury
	EffectBlight
	EffectVigilance

	NumEffects = int(EffectVigilance) + 1
)

var effectNames = [NumEffects]string{"shield", "jamming", "fury", "blight", "vigilance"}

func (k EffectKey) String() string { return enumName(effectNames[:], int(k)) }

// ParseEffectKey resolves an effect key from its string name.
func ParseEffectKey(s string) (EffectKey, error) {
	i, err := parseEnum(effectNames[:], "effect", s)
	return EffectKey(i), err
}

func (k EffectKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EffectKey) UnmarshalText(b []byte) error {
	v, err := ParseEffectKey(string(b))
	*k = v
	return err
}

// ReportKind distinguishes battle and espionage reports.
type ReportKind string

const (
	ReportBattle    ReportKind = "battle"
	ReportEspionage ReportKind = "espionage"
)

// Outcome classifies a resolved action.
type Outcome string

const (
	OutcomeVictory         Outcome = "victory"
	OutcomeDefeat          Outcome = "defeat"
	OutcomeStalemate       Outcome = "stalemate"
	OutcomeDeflected       Outcome = "deflected"
	OutcomeSuccess         Outcome = "success"
	OutcomeFailure         Outcome = "failure"
	OutcomeCriticalFailure Outcome = "critical_failure"
)

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parseEnum(names []string, kind, s string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("model: unknown %s %q", kind, s)
}
