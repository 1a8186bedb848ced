package presence

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"studyhall-session-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStayRepo struct {
	mu    sync.Mutex
	stays map[string]*models.Stay
}

var _ Repository = (*fakeStayRepo)(nil)

func newFakeStayRepo() *fakeStayRepo {
	return &fakeStayRepo{stays: make(map[string]*models.Stay)}
}

func (f *fakeStayRepo) InsertStay(_ context.Context, stay *models.Stay) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *stay
	f.stays[stay.ID] = &copied
	return nil
}

func (f *fakeStayRepo) CloseStayByID(_ context.Context, stayID string, endAt time.Time, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stay, ok := f.stays[stayID]
	if !ok || stay.EndAt != nil {
		return false, nil
	}
	end := endAt
	stay.EndAt = &end
	stay.Reason = reason
	return true, nil
}

func (f *fakeStayRepo) FindOpenStays(_ context.Context, roomID, userID string, limit int) ([]*models.Stay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []*models.Stay
	for _, stay := range f.stays {
		if stay.RoomID == roomID && stay.UserID == userID && stay.EndAt == nil {
			copied := *stay
			open = append(open, &copied)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartAt.After(open[j].StartAt) })
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (f *fakeStayRepo) FindStaysByRoom(_ context.Context, roomID string) ([]*models.Stay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stays []*models.Stay
	for _, stay := range f.stays {
		if stay.RoomID == roomID {
			copied := *stay
			stays = append(stays, &copied)
		}
	}
	return stays, nil
}

func (f *fakeStayRepo) openCount(roomID, userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, stay := range f.stays {
		if stay.RoomID == roomID && stay.UserID == userID && stay.EndAt == nil {
			count++
		}
	}
	return count
}

func TestTracker_OpenThenClose(t *testing.T) {
	ctx := context.Background()
	repo := newFakeStayRepo()
	tracker := NewTracker(repo, 5)

	stayID, err := tracker.OpenStay(ctx, "room-1", "alice", models.StayReasonFocus)
	require.NoError(t, err)
	assert.NotEmpty(t, stayID)
	assert.Equal(t, 1, repo.openCount("room-1", "alice"))

	require.NoError(t, tracker.CloseStay(ctx, "room-1", "alice", models.StayReasonBlur))
	assert.Equal(t, 0, repo.openCount("room-1", "alice"))
}

func TestTracker_DoubleOpenSelfHeals(t *testing.T) {
	ctx := context.Background()
	repo := newFakeStayRepo()
	tracker := NewTracker(repo, 5)

	first, err := tracker.OpenStay(ctx, "room-1", "alice", models.StayReasonFocus)
	require.NoError(t, err)

	// Focus fires, then foreground fires, with no close in between.
	second, err := tracker.OpenStay(ctx, "room-1", "alice", models.StayReasonForeground)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	assert.Equal(t, 1, repo.openCount("room-1", "alice"))
}

func TestTracker_CloseWithoutOpenIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := newFakeStayRepo()
	tracker := NewTracker(repo, 5)

	err := tracker.CloseStay(ctx, "room-1", "alice", models.StayReasonBackground)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.openCount("room-1", "alice"))
}

func TestTracker_CloseFallsBackWithoutLocalHandle(t *testing.T) {
	ctx := context.Background()
	repo := newFakeStayRepo()

	// One tracker opens, a second (fresh process state) closes.
	opener := NewTracker(repo, 5)
	_, err := opener.OpenStay(ctx, "room-1", "alice", models.StayReasonFocus)
	require.NoError(t, err)

	closer := NewTracker(repo, 5)
	require.NoError(t, closer.CloseStay(ctx, "room-1", "alice", models.StayReasonBackground))
	assert.Equal(t, 0, repo.openCount("room-1", "alice"))
}

func TestTracker_InvalidReasonRejected(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newFakeStayRepo(), 5)

	_, err := tracker.OpenStay(ctx, "room-1", "alice", "napping")
	assert.ErrorIs(t, err, models.ErrInvalidStayReason)

	err = tracker.CloseStay(ctx, "room-1", "alice", "napping")
	assert.ErrorIs(t, err, models.ErrInvalidStayReason)
}

func TestTracker_PairsAreIndependent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeStayRepo()
	tracker := NewTracker(repo, 5)

	_, err := tracker.OpenStay(ctx, "room-1", "alice", models.StayReasonFocus)
	require.NoError(t, err)
	_, err = tracker.OpenStay(ctx, "room-1", "bob", models.StayReasonFocus)
	require.NoError(t, err)
	_, err = tracker.OpenStay(ctx, "room-2", "alice", models.StayReasonFocus)
	require.NoError(t, err)

	require.NoError(t, tracker.CloseStay(ctx, "room-1", "alice", models.StayReasonBlur))

	assert.Equal(t, 0, repo.openCount("room-1", "alice"))
	assert.Equal(t, 1, repo.openCount("room-1", "bob"))
	assert.Equal(t, 1, repo.openCount("room-2", "alice"))
}

func TestTracker_ConcurrentOpensLeaveOneOpenStay(t *testing.T) {
	ctx := context.Background()
	repo := newFakeStayRepo()
	tracker := NewTracker(repo, 5)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tracker.OpenStay(ctx, "room-1", "alice", models.StayReasonFocus)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.openCount("room-1", "alice"))
}
