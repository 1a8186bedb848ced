package ranking

import (
	"context"
	"errors"
	"time"

	"studyhall-session-svc/src/internal/cache"
	"studyhall-session-svc/src/internal/models"
	"studyhall-session-svc/src/internal/presence"

	"github.com/sirupsen/logrus"
)

type Service interface {
	BuildRanking(ctx context.Context, roomID string, windowStart, windowEnd time.Time) ([]models.RankingEntry, error)
	LiveLeaderboard(ctx context.Context, room *models.Room) ([]models.RankingEntry, error)
	SaveSnapshot(ctx context.Context, room *models.Room, savedBy string) (*models.RankingSnapshot, error)
	GetSnapshot(ctx context.Context, roomID string) (*models.RankingSnapshot, error)
}

type rankingService struct {
	stays        presence.Repository
	snapshots    SnapshotRepository
	cacheService cache.Service
}

func NewRankingService(stays presence.Repository, snapshots SnapshotRepository, cacheService cache.Service) Service {
	return &rankingService{
		stays:        stays,
		snapshots:    snapshots,
		cacheService: cacheService,
	}
}

// BuildRanking computes the leaderboard over an explicit window. Read-only;
// safe to call arbitrarily often.
func (s *rankingService) BuildRanking(ctx context.Context, roomID string, windowStart, windowEnd time.Time) ([]models.RankingEntry, error) {
	stays, err := s.stays.FindStaysByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	entries := Aggregate(stays, windowStart, windowEnd, time.Now())

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"entries": len(entries),
	}).Debug("Ranking built")

	return entries, nil
}

// LiveLeaderboard serves the rendering path: the effective window of the
// room, with a short-TTL cache in front so a busy room does not rescan its
// stays on every poll.
func (s *rankingService) LiveLeaderboard(ctx context.Context, room *models.Room) ([]models.RankingEntry, error) {
	cached, err := s.cacheService.GetLeaderboard(ctx, room.ID)
	if err == nil && cached != nil {
		return cached, nil
	}

	entries, err := s.BuildRanking(ctx, room.ID, room.EffectiveStart(), room.EffectiveEnd())
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.SaveLeaderboard(ctx, room.ID, entries); err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Warn("Failed to cache leaderboard")
	}

	return entries, nil
}

// SaveSnapshot persists the leaderboard once, for durability. The stays
// remain the source of truth; a repeated save returns the stored copy.
func (s *rankingService) SaveSnapshot(ctx context.Context, room *models.Room, savedBy string) (*models.RankingSnapshot, error) {
	windowStart := room.EffectiveStart()
	windowEnd := room.EffectiveEnd()

	entries, err := s.BuildRanking(ctx, room.ID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	snapshot := &models.RankingSnapshot{
		RoomID:        room.ID,
		Entries:       entries,
		WindowStartAt: windowStart,
		WindowEndAt:   windowEnd,
		SavedBy:       savedBy,
		CreatedAt:     time.Now(),
	}

	err = s.snapshots.InsertSnapshot(ctx, snapshot)
	if err != nil {
		if errors.Is(err, models.ErrSnapshotExists) {
			logrus.WithField("room_id", room.ID).Debug("Ranking snapshot already saved")
			return s.snapshots.GetSnapshot(ctx, room.ID)
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"saved_by": savedBy,
		"entries":  len(entries),
	}).Info("Ranking snapshot saved")

	return snapshot, nil
}

func (s *rankingService) GetSnapshot(ctx context.Context, roomID string) (*models.RankingSnapshot, error) {
	return s.snapshots.GetSnapshot(ctx, roomID)
}
