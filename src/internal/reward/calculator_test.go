package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate_BaseRates(t *testing.T) {
	r := Calculate(10, 60, 1, 0)

	assert.Equal(t, 40, r.XP)
	assert.Equal(t, 20, r.Coins)
	assert.Equal(t, 10, r.Minutes)
	assert.Empty(t, r.Multipliers)
}

func TestCalculate_ForcedEndScenario(t *testing.T) {
	// 60-minute room, 3 members, force-ended at +40min.
	r := Calculate(40, 60, 3, 2)

	// groupMult(3) = 1 + 2*0.015 = 1.03 -> round(164.8) = 165
	assert.Equal(t, 165, r.XP)
	assert.Equal(t, 80, r.Coins)
	assert.Equal(t, []string{"group"}, r.Multipliers)
}

func TestCalculate_ClampsNegativeMinutes(t *testing.T) {
	r := Calculate(-5, 60, 3, 0)

	assert.Equal(t, 0, r.XP)
	assert.Equal(t, 0, r.Coins)
	assert.Equal(t, 0, r.Minutes)
}

func TestCalculate_ClampsToPlannedMinutes(t *testing.T) {
	r := Calculate(90, 60, 1, 0)

	assert.Equal(t, 60, r.Minutes)
	assert.Equal(t, 60*XPPerMinute, r.XP)
	assert.Equal(t, 60*CoinsPerMinute, r.Coins)
}

func TestCalculate_GroupMultiplierNotAppliedToCoins(t *testing.T) {
	solo := Calculate(30, 60, 1, 0)
	grouped := Calculate(30, 60, 5, 0)

	assert.Greater(t, grouped.XP, solo.XP)
	assert.Equal(t, solo.Coins, grouped.Coins)
}

func TestGroupMultiplier_Cap(t *testing.T) {
	assert.Equal(t, 1.0, GroupMultiplier(1))
	assert.Equal(t, 1.0, GroupMultiplier(0))
	assert.InDelta(t, 1.03, GroupMultiplier(3), 1e-9)
	assert.Equal(t, GroupCap, GroupMultiplier(11))
	assert.Equal(t, GroupCap, GroupMultiplier(100))
}

func TestRankBonus_RequiresThreshold(t *testing.T) {
	assert.Equal(t, 0.0, RankBonus(6, 1))
	assert.Equal(t, 0.15, RankBonus(7, 1))
	assert.Equal(t, 0.08, RankBonus(7, 2))
	assert.Equal(t, 0.04, RankBonus(7, 3))
	assert.Equal(t, 0.0, RankBonus(7, 4))
	assert.Equal(t, 0.0, RankBonus(7, 0))
}

func TestCalculate_RankBonusStacksOnGroupMultiplier(t *testing.T) {
	// 8 members: groupMult = 1 + 7*0.015 = 1.105; winner gets +15% on top.
	r := Calculate(30, 60, 8, 1)

	// 30*4 = 120; 120*1.105 = 132.6; *1.15 = 152.49 -> 152
	assert.Equal(t, 152, r.XP)
	assert.Equal(t, []string{"group", "rank"}, r.Multipliers)
}

func TestCalculate_RoomXPCap(t *testing.T) {
	// 480 planned minutes at full attendance would exceed the cap.
	r := Calculate(480, 480, 10, 1)

	assert.Equal(t, RoomXPCap, r.XP)
	assert.Contains(t, r.Multipliers, "cap")
}

func TestCalculate_MonotonicInMinutes(t *testing.T) {
	prev := -1
	for minutes := 0; minutes <= 480; minutes++ {
		r := Calculate(minutes, 480, 5, 0)
		if r.XP < prev {
			t.Fatalf("xp decreased at %d minutes: %d < %d", minutes, r.XP, prev)
		}
		prev = r.XP
	}
	assert.Equal(t, RoomXPCap, prev)
}

func TestLevelForXP(t *testing.T) {
	// Level L requires (L+1)^2 * 120 XP to pass.
	assert.Equal(t, 0, LevelForXP(0))
	assert.Equal(t, 0, LevelForXP(119))
	assert.Equal(t, 1, LevelForXP(120))
	assert.Equal(t, 1, LevelForXP(479))
	assert.Equal(t, 2, LevelForXP(480))
	assert.Equal(t, 9, LevelForXP(12000))
	assert.Equal(t, 0, LevelForXP(-10))
}

func TestLevelForXP_MonotonicAndRecomputedFromTotal(t *testing.T) {
	prev := 0
	for xp := 0; xp < 5000; xp += 37 {
		level := LevelForXP(xp)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}
