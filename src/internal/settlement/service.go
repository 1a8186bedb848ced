package settlement

import (
	"context"
	"sync"
	"time"

	"studyhall-session-svc/src/internal/cache"
	"studyhall-session-svc/src/internal/models"
	"studyhall-session-svc/src/internal/reward"

	"github.com/sirupsen/logrus"
)

type Service interface {
	Settle(ctx context.Context, room *models.Room, userID string, rankPosition int) (bool, error)
	SettleAll(ctx context.Context, room *models.Room, rankingEntries []models.RankingEntry) []MemberResult
	GetResult(ctx context.Context, room *models.Room, userID string) (*ResultView, error)
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
}

// MemberResult is the per-member outcome of a settlement fan-out.
type MemberResult struct {
	UserID   string `json:"userId"`
	Credited bool   `json:"credited"`
	Err      error  `json:"-"`
}

// ResultView is the member-facing settlement state. Processing is the
// normal transient answer between termination and the member's credit
// landing, not an error.
type ResultView struct {
	Status string              `json:"status"` // "processing" or "settled"
	Entry  *models.LedgerEntry `json:"entry,omitempty"`
}

type settlementService struct {
	repo         Repository
	cacheService cache.Service
}

func NewSettlementService(repo Repository, cacheService cache.Service) Service {
	return &settlementService{
		repo:         repo,
		cacheService: cacheService,
	}
}

// Settle credits one member exactly once for the room's effective window.
// Repeats with the same window are no-ops thanks to the ledger key.
func (s *settlementService) Settle(ctx context.Context, room *models.Room, userID string, rankPosition int) (bool, error) {
	windowStart := room.EffectiveStart()
	windowEnd := room.EffectiveEnd()
	key := models.LedgerKey(room.ID, windowStart, windowEnd, userID)

	calculated := reward.Calculate(room.EffectiveMinutes(), room.PlannedMinutes, len(room.Members), rankPosition)

	entry := &models.LedgerEntry{
		ID:                 key,
		RoomID:             room.ID,
		UserID:             userID,
		XPAwarded:          calculated.XP,
		CoinsAwarded:       calculated.Coins,
		MinutesCounted:     calculated.Minutes,
		MultipliersApplied: calculated.Multipliers,
		CreatedAt:          time.Now(),
	}

	credited, err := s.repo.CreditOnce(ctx, entry)
	if err != nil {
		return false, err
	}

	if !credited {
		logrus.WithFields(logrus.Fields{
			"ledger_key": key,
			"user_id":    userID,
		}).Debug("Settlement already credited, skipping")
		return false, nil
	}

	if err := s.cacheService.InvalidateWallet(ctx, userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate wallet cache after credit")
	}

	logrus.WithFields(logrus.Fields{
		"room_id": room.ID,
		"user_id": userID,
		"xp":      calculated.XP,
		"coins":   calculated.Coins,
		"minutes": calculated.Minutes,
		"rank":    rankPosition,
	}).Info("Member credited")

	return true, nil
}

// SettleAll fans out settlement across all members in parallel. A failure
// for one member never aborts the others; retrying the whole fan-out is
// safe because already-credited members short-circuit on the ledger key.
func (s *settlementService) SettleAll(ctx context.Context, room *models.Room, rankingEntries []models.RankingEntry) []MemberResult {
	results := make([]MemberResult, len(room.Members))

	var wg sync.WaitGroup
	for i, userID := range room.Members {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			rankPosition := models.RankPosition(rankingEntries, userID)
			credited, err := s.Settle(ctx, room, userID, rankPosition)
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"room_id": room.ID,
					"user_id": userID,
				}).Error("Settlement failed for member")
			}
			results[i] = MemberResult{UserID: userID, Credited: credited, Err: err}
		}(i, userID)
	}
	wg.Wait()

	return results
}

func (s *settlementService) GetResult(ctx context.Context, room *models.Room, userID string) (*ResultView, error) {
	key := models.LedgerKey(room.ID, room.EffectiveStart(), room.EffectiveEnd(), userID)

	entry, err := s.repo.GetLedgerEntry(ctx, key)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return &ResultView{Status: "processing"}, nil
	}

	return &ResultView{Status: "settled", Entry: entry}, nil
}

func (s *settlementService) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	cached, err := s.cacheService.GetWallet(ctx, userID)
	if err == nil && cached != nil {
		return cached, nil
	}

	wallet, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		wallet = &models.Wallet{UserID: userID}
	}

	if err := s.cacheService.SaveWallet(ctx, wallet); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to cache wallet")
	}

	return wallet, nil
}
