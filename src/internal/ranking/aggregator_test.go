package ranking

import (
	"testing"
	"time"

	"studyhall-session-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func stay(userID string, startMin, endMin int) *models.Stay {
	s := &models.Stay{
		ID:      userID + "-stay",
		RoomID:  "room-1",
		UserID:  userID,
		StartAt: t0.Add(time.Duration(startMin) * time.Minute),
	}
	if endMin >= 0 {
		end := t0.Add(time.Duration(endMin) * time.Minute)
		s.EndAt = &end
	}
	return s
}

func TestAggregate_ClipsToWindow(t *testing.T) {
	stays := []*models.Stay{
		stay("alice", -10, 70), // overhangs both sides
		stay("bob", 10, 30),
	}

	entries := Aggregate(stays, t0, t0.Add(40*time.Minute), t0.Add(2*time.Hour))

	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, int64(40*60000), entries[0].EngagedMs)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "bob", entries[1].UserID)
	assert.Equal(t, int64(20*60000), entries[1].EngagedMs)
	assert.Equal(t, 2, entries[1].Rank)
}

func TestAggregate_OpenStayEndsAtNow(t *testing.T) {
	stays := []*models.Stay{
		stay("carol", 0, -1), // still open
	}

	now := t0.Add(15 * time.Minute)
	entries := Aggregate(stays, t0, t0.Add(60*time.Minute), now)

	require.Len(t, entries, 1)
	assert.Equal(t, int64(15*60000), entries[0].EngagedMs)
}

func TestAggregate_MergesMultipleStaysPerUser(t *testing.T) {
	stays := []*models.Stay{
		stay("dave", 0, 10),
		stay("dave", 20, 35),
	}

	entries := Aggregate(stays, t0, t0.Add(60*time.Minute), t0.Add(time.Hour))

	require.Len(t, entries, 1)
	assert.Equal(t, int64(25*60000), entries[0].EngagedMs)
}

func TestAggregate_TiesBrokenByUserID(t *testing.T) {
	stays := []*models.Stay{
		stay("zed", 0, 30),
		stay("amy", 0, 30),
	}

	entries := Aggregate(stays, t0, t0.Add(60*time.Minute), t0.Add(time.Hour))

	require.Len(t, entries, 2)
	assert.Equal(t, "amy", entries[0].UserID)
	assert.Equal(t, "zed", entries[1].UserID)
	assert.Equal(t, entries[0].EngagedMs, entries[1].EngagedMs)
}

func TestAggregate_StayOutsideWindowCountsZero(t *testing.T) {
	stays := []*models.Stay{
		stay("eve", 50, 60),
	}

	entries := Aggregate(stays, t0, t0.Add(40*time.Minute), t0.Add(time.Hour))

	require.Len(t, entries, 1)
	assert.Equal(t, int64(0), entries[0].EngagedMs)
}

func TestAggregate_DeterministicAcrossCalls(t *testing.T) {
	stays := []*models.Stay{
		stay("a", 0, 20),
		stay("b", 0, 20),
		stay("c", 5, 25),
	}

	first := Aggregate(stays, t0, t0.Add(60*time.Minute), t0.Add(time.Hour))
	for i := 0; i < 10; i++ {
		again := Aggregate(stays, t0, t0.Add(60*time.Minute), t0.Add(time.Hour))
		assert.Equal(t, first, again)
	}
}

func TestAggregate_Empty(t *testing.T) {
	entries := Aggregate(nil, t0, t0.Add(time.Hour), t0.Add(time.Hour))
	assert.Empty(t, entries)
}
