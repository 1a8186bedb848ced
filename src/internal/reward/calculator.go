package reward

import "math"

// Reward tuning constants. XP scales with group size up to a cap; coins do
// not. Top placements in large rooms earn an extra percentage.
const (
	XPPerMinute    = 4
	CoinsPerMinute = 2

	GroupStep = 0.015
	GroupCap  = 1.15

	RankBonusThreshold = 7

	RoomXPCap = 600

	levelStepXP = 120
)

var rankBonuses = map[int]float64{
	1: 0.15,
	2: 0.08,
	3: 0.04,
}

// Reward is the outcome of a single settlement calculation.
type Reward struct {
	XP          int
	Coins       int
	Minutes     int
	Multipliers []string
}

// GroupMultiplier rewards larger groups, capped at GroupCap.
func GroupMultiplier(memberCount int) float64 {
	extra := memberCount - 1
	if extra < 0 {
		extra = 0
	}
	return math.Min(GroupCap, 1+float64(extra)*GroupStep)
}

// RankBonus returns the additional multiplier fraction for rankPosition,
// or 0 when the room is too small or the placement is out of the bonus
// tiers. rankPosition 0 means unranked.
func RankBonus(memberCount, rankPosition int) float64 {
	if memberCount < RankBonusThreshold {
		return 0
	}
	return rankBonuses[rankPosition]
}

// Calculate turns an effective duration and room metadata into credited
// XP and coins. effectiveMinutes is clamped to [0, plannedMinutes]; the
// group multiplier and rank bonus apply to XP only; final XP is rounded
// then clamped to RoomXPCap.
func Calculate(effectiveMinutes, plannedMinutes, memberCount, rankPosition int) Reward {
	if effectiveMinutes < 0 {
		effectiveMinutes = 0
	}
	if plannedMinutes >= 0 && effectiveMinutes > plannedMinutes {
		effectiveMinutes = plannedMinutes
	}

	multipliers := []string{}

	xp := float64(effectiveMinutes * XPPerMinute)

	groupMult := GroupMultiplier(memberCount)
	if groupMult > 1 {
		xp *= groupMult
		multipliers = append(multipliers, "group")
	}

	if bonus := RankBonus(memberCount, rankPosition); bonus > 0 {
		xp *= 1 + bonus
		multipliers = append(multipliers, "rank")
	}

	finalXP := int(math.Round(xp))
	if finalXP > RoomXPCap {
		finalXP = RoomXPCap
		multipliers = append(multipliers, "cap")
	}
	if finalXP < 0 {
		finalXP = 0
	}

	return Reward{
		XP:          finalXP,
		Coins:       effectiveMinutes * CoinsPerMinute,
		Minutes:     effectiveMinutes,
		Multipliers: multipliers,
	}
}

// LevelForXP returns the smallest L such that (L+1)^2 * 120 > totalXP.
// Levels are recomputed from the cumulative total, never incremented.
func LevelForXP(totalXP int) int {
	if totalXP < 0 {
		return 0
	}
	level := 0
	for (level+1)*(level+1)*levelStepXP <= totalXP {
		level++
	}
	return level
}
