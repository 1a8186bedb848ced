package presence

import (
	"context"
	"sync"
	"time"

	"studyhall-session-svc/src/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultRepairLimit = 5

// Tracker records per-user presence intervals for a room. Operations for
// the same (room, user) pair are serialized; the id of the stay opened
// last is kept as a local handle so the common close path is a single
// targeted update.
//
// Presence is best-effort telemetry: callers are expected to log and
// swallow errors rather than fail the surrounding flow.
type Tracker struct {
	repo        Repository
	repairLimit int

	mu      sync.Mutex
	pairs   map[string]*sync.Mutex
	handles map[string]string // pair key -> open stay id
}

func NewTracker(repo Repository, repairLimit int) *Tracker {
	if repairLimit <= 0 {
		repairLimit = defaultRepairLimit
	}
	return &Tracker{
		repo:        repo,
		repairLimit: repairLimit,
		pairs:       make(map[string]*sync.Mutex),
		handles:     make(map[string]string),
	}
}

func pairKey(roomID, userID string) string {
	return roomID + ":" + userID
}

func (t *Tracker) pairLock(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.pairs[key]
	if !ok {
		lock = &sync.Mutex{}
		t.pairs[key] = lock
	}
	return lock
}

// OpenStay closes any stale open stays for the pair, then inserts a new
// open stay. The defensive close makes the operation self-healing: a lost
// CloseStay (killed app, dropped connection) is repaired on the next open
// instead of producing overlapping intervals.
func (t *Tracker) OpenStay(ctx context.Context, roomID, userID, reason string) (string, error) {
	if !models.IsValidStayReason(reason) {
		return "", models.ErrInvalidStayReason
	}

	key := pairKey(roomID, userID)
	lock := t.pairLock(key)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	stale, err := t.repo.FindOpenStays(ctx, roomID, userID, t.repairLimit)
	if err != nil {
		return "", err
	}

	for _, s := range stale {
		closed, err := t.repo.CloseStayByID(ctx, s.ID, now, s.Reason)
		if err != nil {
			return "", err
		}
		if closed {
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"user_id": userID,
				"stay_id": s.ID,
			}).Debug("Closed stale open stay before reopening")
		}
	}

	stay := &models.Stay{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		StartAt:   now,
		Reason:    reason,
		CreatedAt: now,
	}

	if err := t.repo.InsertStay(ctx, stay); err != nil {
		return "", err
	}

	t.mu.Lock()
	t.handles[key] = stay.ID
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": userID,
		"stay_id": stay.ID,
		"reason":  reason,
	}).Debug("Stay opened")

	return stay.ID, nil
}

// CloseStay stamps end_at on the currently tracked open stay. With no
// local handle (fresh process) it falls back to the most recent open stay
// in the store; with nothing open it is a no-op — correctness rests on
// OpenStay's repair, not on every close landing.
func (t *Tracker) CloseStay(ctx context.Context, roomID, userID, reason string) error {
	if !models.IsValidStayReason(reason) {
		return models.ErrInvalidStayReason
	}

	key := pairKey(roomID, userID)
	lock := t.pairLock(key)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	t.mu.Lock()
	stayID, ok := t.handles[key]
	delete(t.handles, key)
	t.mu.Unlock()

	if !ok {
		open, err := t.repo.FindOpenStays(ctx, roomID, userID, 1)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"user_id": userID,
			}).Debug("No open stay to close")
			return nil
		}
		stayID = open[0].ID
	}

	closed, err := t.repo.CloseStayByID(ctx, stayID, now, reason)
	if err != nil {
		return err
	}
	if !closed {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"user_id": userID,
			"stay_id": stayID,
		}).Debug("Stay was already closed")
	}

	return nil
}
