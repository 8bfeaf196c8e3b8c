// Package progression turns experience grants into level-ups.
package progression

import (
	"math"

	"github.com/warfront/realm-engine/internal/config"
	"github.com/warfront/realm-engine/internal/model"
)

// Curve is the experience requirement curve.
type Curve struct {
	BaseXP         float64 // xp needed to leave level 1
	Growth         float64 // requirement multiplier per level
	PointsPerLevel int
	MaxLevel       int // 0 means no cap
}

// LoadCurve reads the curve from the balance document.
func LoadCurve(b *config.Balance) Curve {
	return Curve{
		BaseXP:         b.Float("progression.base_xp", 1000),
		Growth:         b.Float("progression.growth", 1.15),
		PointsPerLevel: int(b.Int("progression.points_per_level", 3)),
		MaxLevel:       int(b.Int("progression.max_level", 0)),
	}
}

// Required returns the xp needed to advance from level to level+1.
func (c Curve) Required(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Ceil(c.BaseXP * math.Pow(c.Growth, float64(level-1))))
}

// Grant returns the relative delta for awarding xp to an actor at
// (level, experience). Several levels may be gained at once; experience
// beyond each threshold carries over. A stored level below 1 counts as
// level 1 and the delta lifts it there.
func (c Curve) Grant(level int, experience, xp int64) model.ActorDelta {
	var d model.ActorDelta
	if xp <= 0 {
		return d
	}
	from := max(level, 1)
	exp := experience + xp
	newLevel := from
	for c.MaxLevel == 0 || newLevel < c.MaxLevel {
		need := c.Required(newLevel)
		if need <= 0 || exp < need {
			break
		}
		exp -= need
		newLevel++
	}
	d.Experience = exp - experience
	d.Level = newLevel - level
	d.StatPoints = (newLevel - from) * c.PointsPerLevel
	return d
}
