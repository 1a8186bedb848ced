package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"
	"studyhall-session-svc/src/internal/settlement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

var _ Repository = (*fakeRoomRepo)(nil)

func newFakeRoomRepo(rooms ...*models.Room) *fakeRoomRepo {
	repo := &fakeRoomRepo{rooms: make(map[string]*models.Room)}
	for _, room := range rooms {
		copied := *room
		repo.rooms[room.ID] = &copied
	}
	return repo
}

func (f *fakeRoomRepo) Create(_ context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.rooms[room.ID]; exists {
		return models.ErrDuplicateRecord
	}
	copied := *room
	f.rooms[room.ID] = &copied
	return nil
}

func (f *fakeRoomRepo) GetByID(_ context.Context, roomID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (f *fakeRoomRepo) AddMember(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return models.ErrRoomNotFound
	}
	if room.IsEnded() {
		return models.ErrRoomAlreadyEnded
	}
	if !room.HasMember(userID) {
		room.Members = append(room.Members, userID)
	}
	return nil
}

func (f *fakeRoomRepo) MarkEnded(_ context.Context, roomID string, forced bool, endedAt time.Time) (*models.Room, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, false, models.ErrRoomNotFound
	}
	if room.IsEnded() {
		copied := *room
		return &copied, true, nil
	}
	room.Status = models.RoomStatusEnded
	if forced {
		stamped := endedAt
		room.ForcedEndAt = &stamped
	}
	copied := *room
	return &copied, false, nil
}

func (f *fakeRoomRepo) ClaimTerminationHandle(_ context.Context, roomID, handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return false, models.ErrRoomNotFound
	}
	if room.ScheduledTerminationHandle != nil {
		return false, nil
	}
	room.ScheduledTerminationHandle = &handle
	return true, nil
}

func (f *fakeRoomRepo) ReleaseTerminationHandle(_ context.Context, roomID, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if ok && room.ScheduledTerminationHandle != nil && *room.ScheduledTerminationHandle == handle {
		room.ScheduledTerminationHandle = nil
	}
	return nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeScheduler) ScheduleTermination(_ context.Context, room *models.Room) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "task-" + room.ID, nil
}

type fakeSettlement struct {
	mu       sync.Mutex
	fanOuts  int
	settled  map[string]int
	rankings [][]models.RankingEntry
}

var _ settlement.Service = (*fakeSettlement)(nil)

func newFakeSettlement() *fakeSettlement {
	return &fakeSettlement{settled: make(map[string]int)}
}

func (f *fakeSettlement) Settle(_ context.Context, _ *models.Room, userID string, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[userID]++
	return f.settled[userID] == 1, nil
}

func (f *fakeSettlement) SettleAll(ctx context.Context, room *models.Room, entries []models.RankingEntry) []settlement.MemberResult {
	f.mu.Lock()
	f.fanOuts++
	f.rankings = append(f.rankings, entries)
	f.mu.Unlock()

	results := make([]settlement.MemberResult, 0, len(room.Members))
	for _, userID := range room.Members {
		credited, err := f.Settle(ctx, room, userID, 0)
		results = append(results, settlement.MemberResult{UserID: userID, Credited: credited, Err: err})
	}
	return results
}

func (f *fakeSettlement) GetResult(context.Context, *models.Room, string) (*settlement.ResultView, error) {
	return &settlement.ResultView{Status: "processing"}, nil
}

func (f *fakeSettlement) GetWallet(_ context.Context, userID string) (*models.Wallet, error) {
	return &models.Wallet{UserID: userID}, nil
}

type fakeRanking struct {
	entries []models.RankingEntry
}

func (f *fakeRanking) BuildRanking(context.Context, string, time.Time, time.Time) ([]models.RankingEntry, error) {
	return f.entries, nil
}

func (f *fakeRanking) LiveLeaderboard(context.Context, *models.Room) ([]models.RankingEntry, error) {
	return f.entries, nil
}

func (f *fakeRanking) SaveSnapshot(context.Context, *models.Room, string) (*models.RankingSnapshot, error) {
	return &models.RankingSnapshot{Entries: f.entries}, nil
}

func (f *fakeRanking) GetSnapshot(context.Context, string) (*models.RankingSnapshot, error) {
	return nil, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes int
}

func (f *fakeNotifier) PublishRoomEnded(*models.Room, string, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Rooms: config.RoomsConfig{
			MinPlannedMinutes: 1,
			MaxPlannedMinutes: 480,
			MaxMembers:        50,
			StayRepairLimit:   5,
		},
	}
}

func activeRoom(members ...string) *models.Room {
	started := time.Now().Add(-30 * time.Minute)
	return &models.Room{
		ID:                "room-1",
		HostID:            members[0],
		Members:           members,
		PlannedMinutes:    60,
		Status:            models.RoomStatusActive,
		CreatedAt:         started,
		StartedAt:         &started,
		TerminationSecret: "secret-1",
	}
}

func newService(repo Repository, sched *fakeScheduler, settle *fakeSettlement, notifier *fakeNotifier) Service {
	return NewRoomService(repo, sched, settle, &fakeRanking{}, notifier, testConfig())
}

func TestCreateRoom_SchedulesTermination(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo()
	sched := &fakeScheduler{}
	svc := newService(repo, sched, newFakeSettlement(), &fakeNotifier{})

	room, err := svc.CreateRoom(ctx, "alice", "math", 60)
	require.NoError(t, err)

	assert.Equal(t, "alice", room.HostID)
	assert.Equal(t, []string{"alice"}, room.Members)
	assert.Equal(t, models.RoomStatusActive, room.Status)
	assert.NotEmpty(t, room.TerminationSecret)
	assert.Equal(t, 1, sched.calls)
	require.NotNil(t, room.ScheduledTerminationHandle)
}

func TestCreateRoom_RejectsBadDuration(t *testing.T) {
	ctx := context.Background()
	svc := newService(newFakeRoomRepo(), &fakeScheduler{}, newFakeSettlement(), &fakeNotifier{})

	_, err := svc.CreateRoom(ctx, "alice", "", 0)
	assert.ErrorIs(t, err, models.ErrInvalidDuration)

	_, err = svc.CreateRoom(ctx, "alice", "", 481)
	assert.ErrorIs(t, err, models.ErrInvalidDuration)
}

func TestCreateRoom_SurvivesSchedulerFailure(t *testing.T) {
	ctx := context.Background()
	sched := &fakeScheduler{err: models.ErrDatabaseUpdate}
	svc := newService(newFakeRoomRepo(), sched, newFakeSettlement(), &fakeNotifier{})

	room, err := svc.CreateRoom(ctx, "alice", "", 60)
	require.NoError(t, err)
	assert.Nil(t, room.ScheduledTerminationHandle)
}

func TestEndForced_OnlyHostMayEnd(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo(activeRoom("alice", "bob"))
	svc := newService(repo, &fakeScheduler{}, newFakeSettlement(), &fakeNotifier{})

	_, err := svc.EndForced(ctx, "room-1", "bob")
	assert.ErrorIs(t, err, models.ErrNotRoomHost)

	room, err := repo.GetByID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusActive, room.Status)
}

func TestEndForced_SettlesAndNotifies(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo(activeRoom("alice", "bob", "carol"))
	settle := newFakeSettlement()
	notifier := &fakeNotifier{}
	svc := newService(repo, &fakeScheduler{}, settle, notifier)

	alreadyEnded, err := svc.EndForced(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.False(t, alreadyEnded)

	room, err := repo.GetByID(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, room.IsEnded())
	require.NotNil(t, room.ForcedEndAt)

	assert.Equal(t, 1, settle.fanOuts)
	assert.Equal(t, 1, settle.settled["alice"])
	assert.Equal(t, 1, settle.settled["bob"])
	assert.Equal(t, 1, settle.settled["carol"])
	assert.Equal(t, 1, notifier.count())
}

func TestMarkEnded_IdempotentUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo(activeRoom("alice", "bob"))
	settle := newFakeSettlement()
	notifier := &fakeNotifier{}
	svc := newService(repo, &fakeScheduler{}, settle, notifier)

	const n = 12
	firstTransitions := make(chan bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alreadyEnded, err := svc.EndForced(ctx, "room-1", "alice")
			if err == nil && !alreadyEnded {
				firstTransitions <- true
			}
		}()
	}
	wg.Wait()
	close(firstTransitions)

	assert.Equal(t, 1, len(firstTransitions), "exactly one caller wins the transition")

	room, err := repo.GetByID(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, room.IsEnded())

	// Every trigger re-ran the fan-out, but the ledger dedup meant each
	// member was credited exactly once.
	assert.Equal(t, n, settle.fanOuts)
	assert.Equal(t, 1, notifier.count())
}

func TestEndScheduled_ValidatesToken(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo(activeRoom("alice"))
	svc := newService(repo, &fakeScheduler{}, newFakeSettlement(), &fakeNotifier{})

	_, err := svc.EndScheduled(ctx, "room-1", "wrong-token")
	assert.ErrorIs(t, err, models.ErrInvalidTaskToken)

	_, err = svc.EndScheduled(ctx, "room-1", "")
	assert.ErrorIs(t, err, models.ErrInvalidTaskToken)

	room, err := repo.GetByID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusActive, room.Status)
}

func TestEndScheduled_AfterForcedIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo(activeRoom("alice", "bob"))
	settle := newFakeSettlement()
	notifier := &fakeNotifier{}
	svc := newService(repo, &fakeScheduler{}, settle, notifier)

	// Host force-ends; five minutes later the scheduled task fires.
	_, err := svc.EndForced(ctx, "room-1", "alice")
	require.NoError(t, err)

	alreadyEnded, err := svc.EndScheduled(ctx, "room-1", "secret-1")
	require.NoError(t, err)
	assert.True(t, alreadyEnded)

	// No duplicate credits and no second notification.
	assert.Equal(t, 1, settle.settled["alice"])
	assert.Equal(t, 1, settle.settled["bob"])
	assert.Equal(t, 1, notifier.count())
}

func TestEndExternal_UnknownRoom(t *testing.T) {
	ctx := context.Background()
	svc := newService(newFakeRoomRepo(), &fakeScheduler{}, newFakeSettlement(), &fakeNotifier{})

	_, err := svc.EndExternal(ctx, "ghost", "token")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo(activeRoom("alice"))
	svc := newService(repo, &fakeScheduler{}, newFakeSettlement(), &fakeNotifier{})

	require.NoError(t, svc.JoinRoom(ctx, "room-1", "bob"))

	room, err := repo.GetByID(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, room.HasMember("bob"))

	// Joining an ended room is rejected.
	_, err = svc.EndForced(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.JoinRoom(ctx, "room-1", "dave"), models.ErrRoomAlreadyEnded)
}
