package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Service interface {
	GetLeaderboard(ctx context.Context, roomID string) ([]models.RankingEntry, error)
	SaveLeaderboard(ctx context.Context, roomID string, entries []models.RankingEntry) error
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
	SaveWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID string) error
}

type cacheService struct {
	client *redis.Client
	cfg    *config.CacheConfig
}

func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client: client,
		cfg:    &cfg.Cache,
	}
}

func (c *cacheService) leaderboardKey(roomID string) string {
	return fmt.Sprintf("%s:%s", c.cfg.LeaderboardKeyPrefix, roomID)
}

func (c *cacheService) walletKey(userID string) string {
	return fmt.Sprintf("%s:%s", c.cfg.WalletKeyPrefix, userID)
}

func (c *cacheService) GetLeaderboard(ctx context.Context, roomID string) ([]models.RankingEntry, error) {
	key := c.leaderboardKey(roomID)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("key", key).Debug("Leaderboard not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to get leaderboard from cache")
		return nil, models.ErrRedisGet
	}

	var entries []models.RankingEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to unmarshal cached leaderboard")
		return nil, models.ErrRedisGet
	}

	logrus.WithField("key", key).Debug("Leaderboard retrieved from cache")
	return entries, nil
}

func (c *cacheService) SaveLeaderboard(ctx context.Context, roomID string, entries []models.RankingEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal leaderboard for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.cfg.LeaderboardExpirySeconds) * time.Second
	err = c.client.Set(ctx, c.leaderboardKey(roomID), data, expiration).Err()
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to cache leaderboard")
		return models.ErrRedisSet
	}
	return nil
}

func (c *cacheService) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	key := c.walletKey(userID)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("key", key).Debug("Wallet not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to get wallet from cache")
		return nil, models.ErrRedisGet
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to unmarshal cached wallet")
		return nil, models.ErrRedisGet
	}

	return &wallet, nil
}

func (c *cacheService) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal wallet for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.cfg.WalletExpirationMinutes) * time.Minute
	err = c.client.Set(ctx, c.walletKey(wallet.UserID), data, expiration).Err()
	if err != nil {
		logrus.WithError(err).WithField("user_id", wallet.UserID).Error("Failed to cache wallet")
		return models.ErrRedisSet
	}
	return nil
}

// InvalidateWallet drops the cached wallet after a settlement credit so
// the next read reflects the new totals.
func (c *cacheService) InvalidateWallet(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.walletKey(userID)).Err(); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to invalidate cached wallet")
		return models.ErrRedisSet
	}
	return nil
}
