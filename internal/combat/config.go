package combat

import "github.com/warfront/realm-engine/internal/config"

// BattleConfig holds the tunable constants of battle resolution. The
// casualty bounds keep the shape of the formula (ratio-scaled, randomized,
// clamped) while leaving the numbers to the balance document.
type BattleConfig struct {
	TurnCost      int64
	StalemateBand float64 // |ratio-1| within the band is a stalemate
	RatioCap      float64 // power ratio is clamped to [1/cap, cap] for casualties

	LoserLossMin  float64
	LoserLossMax  float64
	WinnerLossMin float64
	WinnerLossMax float64
	MaxLossPct    float64
	CasualtyScale float64

	ShieldAbsorb float64 // share of incoming power the shield may soak

	CollateralFactor float64 // worker loss per unit of defender military loss
	CollateralCap    float64

	PlunderPct   float64
	InfluencePct float64 // share of defender net worth granted as influence
	TaxPct       float64 // attacker collective's cut of plunder
	TributePct   float64 // defender collective's cut of plunder

	XPWin        int64
	XPLose       int64
	XPStalemate  int64
	XPDefendWin  int64
	XPDefendLose int64
}

// EspionageConfig holds the tunable constants of espionage resolution.
type EspionageConfig struct {
	TurnCost int64

	SuccessMult  float64
	SuccessFloor float64
	SuccessCap   float64
	CatchMult    float64
	CatchCap     float64

	GoldPct       float64
	DarkMatterPct float64
	CrystalsPct   float64
	AlloyPct      float64

	WorkerLossPct  float64
	SpyLossMin     float64
	SpyLossMax     float64
	CaughtLossMult float64
	RatioCap       float64
	JamLossPct     float64

	XPSuccess int64
	XPFailure int64
	XPCatch   int64
}

// Config bundles both resolvers' constants.
type Config struct {
	Battle    BattleConfig
	Espionage EspionageConfig

	NotifyLink string // link template; %s is the report id
}

// LoadConfig reads combat constants from the balance document. Missing
// keys fall back to the defaults below.
func LoadConfig(b *config.Balance) Config {
	return Config{
		Battle: BattleConfig{
			TurnCost:         b.Int("battle.turn_cost", 1),
			StalemateBand:    b.Float("battle.stalemate_band", 0.05),
			RatioCap:         b.Float("battle.ratio_cap", 3),
			LoserLossMin:     b.Float("battle.loser_loss_min", 0.04),
			LoserLossMax:     b.Float("battle.loser_loss_max", 0.08),
			WinnerLossMin:    b.Float("battle.winner_loss_min", 0.01),
			WinnerLossMax:    b.Float("battle.winner_loss_max", 0.03),
			MaxLossPct:       b.Float("battle.max_loss_pct", 0.5),
			CasualtyScale:    b.Float("battle.casualty_scale", 1),
			ShieldAbsorb:     b.Float("battle.shield_absorb", 0.25),
			CollateralFactor: b.Float("battle.collateral_factor", 0.5),
			CollateralCap:    b.Float("battle.collateral_cap", 0.1),
			PlunderPct:       b.Float("battle.plunder_pct", 0.1),
			InfluencePct:     b.Float("battle.influence_pct", 0.001),
			TaxPct:           b.Float("battle.tax_pct", 0.05),
			TributePct:       b.Float("battle.tribute_pct", 0.02),
			XPWin:            b.Int("battle.xp.win", 100),
			XPLose:           b.Int("battle.xp.lose", 25),
			XPStalemate:      b.Int("battle.xp.stalemate", 40),
			XPDefendWin:      b.Int("battle.xp.defend_win", 60),
			XPDefendLose:     b.Int("battle.xp.defend_lose", 20),
		},
		Espionage: EspionageConfig{
			TurnCost:       b.Int("espionage.turn_cost", 1),
			SuccessMult:    b.Float("espionage.success_mult", 0.5),
			SuccessFloor:   b.Float("espionage.success_floor", 0.05),
			SuccessCap:     b.Float("espionage.success_cap", 0.95),
			CatchMult:      b.Float("espionage.catch_mult", 0.3),
			CatchCap:       b.Float("espionage.catch_cap", 0.9),
			GoldPct:        b.Float("espionage.steal.gold", 0.05),
			DarkMatterPct:  b.Float("espionage.steal.dark_matter", 0.03),
			CrystalsPct:    b.Float("espionage.steal.crystals", 0.03),
			AlloyPct:       b.Float("espionage.steal.alloy", 0.03),
			WorkerLossPct:  b.Float("espionage.worker_loss_pct", 0.01),
			SpyLossMin:     b.Float("espionage.spy_loss_min", 0.05),
			SpyLossMax:     b.Float("espionage.spy_loss_max", 0.1),
			CaughtLossMult: b.Float("espionage.caught_loss_mult", 1.5),
			RatioCap:       b.Float("espionage.ratio_cap", 3),
			JamLossPct:     b.Float("espionage.jam_loss_pct", 0.1),
			XPSuccess:      b.Int("espionage.xp.success", 50),
			XPFailure:      b.Int("espionage.xp.failure", 10),
			XPCatch:        b.Int("espionage.xp.catch", 20),
		},
		NotifyLink: "/reports/%s",
	}
}
